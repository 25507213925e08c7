/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"encoding/json"
	"io"
)

// printJSON writes v as indented JSON, the same shape the HTTP API returns.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
