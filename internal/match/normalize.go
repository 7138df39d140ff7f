package match

import (
	"strings"
	"unicode"
)

// NormalizeText lowercases text and strips punctuation, keeping decimal
// points that sit between digits. Runs of stripped characters collapse to a
// single space.
func NormalizeText(value string) string {
	lowered := strings.ToLower(strings.TrimSpace(value))
	runes := []rune(lowered)
	var b strings.Builder
	b.Grow(len(lowered))
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '.' && isDigitAt(runes, i-1) && isDigitAt(runes, i+1):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Tokens returns the normalized token set for text.
func Tokens(value string) map[string]struct{} {
	fields := strings.Fields(NormalizeText(value))
	set := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		set[field] = struct{}{}
	}
	return set
}

func isDigitAt(runes []rune, index int) bool {
	if index < 0 || index >= len(runes) {
		return false
	}
	return unicode.IsDigit(runes[index])
}
