package extract

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
)

// Text decodes data to UTF-8 using the charset named in contentType, falling
// back to detection, and unescapes HTML entities so "&#64;" reads as "@".
func Text(data []byte, contentType string) (string, error) {
	if utf8.Valid(data) {
		return html.UnescapeString(string(data)), nil
	}
	r, err := charset.NewReader(bytes.NewReader(data), contentType)
	if err != nil {
		return "", fmt.Errorf("decode text: %w", err)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decode text: %w", err)
	}
	return html.UnescapeString(string(b)), nil
}
