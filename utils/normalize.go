package utils

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// placeholderTokens are values clients send when a field is left at a
// generated default; they mean "no value".
var placeholderTokens = map[string]struct{}{
	"string":    {},
	"none":      {},
	"null":      {},
	"undefined": {},
	"true":      {},
	"false":     {},
}

// Normalize trims, lower-cases, strips diacritics and collapses whitespace.
// Placeholder tokens normalize to "".
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = CollapseSpaces(StripDiacritics(s))
	if _, ok := placeholderTokens[s]; ok {
		return ""
	}
	return s
}

// StripDiacritics decomposes s and drops combining marks.
func StripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// CollapseSpaces replaces every whitespace run with one space and trims the ends.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
