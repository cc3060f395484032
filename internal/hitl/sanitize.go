package hitl

import (
	"strings"
	"unicode"

	"github.com/charmbracelet/x/ansi"
)

// Sanitize removes terminal escape sequences and control characters from
// untrusted text. Newlines and tabs survive; carriage returns do not.
func Sanitize(s string) string {
	if s == "" {
		return s
	}
	s = ansi.Strip(s)
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case unicode.IsControl(r):
			return -1
		case r == unicode.ReplacementChar:
			return -1
		}
		return r
	}, s)
}

// SanitizeAll sanitizes every element of ss in place.
func SanitizeAll(ss []string) {
	for i := range ss {
		ss[i] = Sanitize(ss[i])
	}
}
