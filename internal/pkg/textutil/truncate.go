// internal/pkg/textutil/truncate.go
package textutil

import (
	"strings"
	"unicode/utf8"
)

// Truncate shortens s to at most max runes without splitting a multi-byte
// character. Invalid UTF-8 input is repaired first.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "\uFFFD")
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}

	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
