// Package encoding provides text decoding utilities for shader sources.
package encoding

import (
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DecodeSource converts raw shader file bytes to a UTF-8 string.
// A UTF-8 or UTF-16 byte order mark selects the decoder and is stripped;
// without one the data is treated as UTF-8. Windows line endings are
// normalized to "\n" so line numbers stay stable across platforms.
func DecodeSource(data []byte) (string, error) {
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	result, _, err := transform.Bytes(decoder, data)
	if err != nil {
		return "", err
	}
	return NormalizeNewlines(string(result)), nil
}

// NormalizeNewlines rewrites "\r\n" and lone "\r" as "\n".
func NormalizeNewlines(s string) string {
	if !strings.ContainsRune(s, '\r') {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
