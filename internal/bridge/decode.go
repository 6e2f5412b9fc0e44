package bridge

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// DecodeArgs converts host argument bytes to text. Each invalid byte is
// replaced with U+FFFD rather than rejected: construction has no failure
// path.
func DecodeArgs(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	// The UTF-8 decoder substitutes and never returns an error.
	s, _ := unicode.UTF8.NewDecoder().String(string(raw))
	return s
}
