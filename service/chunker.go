package service

import "strings"

const (
	DEFAULT_UPSERT_MAX_CHARS = 1200
	DEFAULT_UPSERT_OVERLAP   = 120
)

// ChunkText cuts text into fixed windows of maxChars runes, each window
// starting overlap runes before the end of the previous one. Text that fits
// in one window is returned whole.
func ChunkText(text string, maxChars, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if maxChars <= 0 {
		maxChars = DEFAULT_UPSERT_MAX_CHARS
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxChars {
		overlap = maxChars - 1
	}

	runes := []rune(text)
	if len(runes) <= maxChars {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := min(len(runes), start+maxChars)
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
		start = max(0, end-overlap)
	}
	return chunks
}
