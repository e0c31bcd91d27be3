package service

import (
	"encoding/json"
	"fmt"
	"io"
)

// EncodeDocument writes v as two-space indented JSON with non-ASCII text
// left as-is.
func EncodeDocument(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	return nil
}
