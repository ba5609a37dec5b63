package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Fold converts fullwidth letters, digits, and punctuation to their narrow
// forms and returns the NFC composition of the result.
func Fold(value string) string {
	if value == "" {
		return ""
	}
	return norm.NFC.String(width.Fold.String(value))
}

// NormalizeForComparison folds the value, lowercases it, and drops every rune
// that is neither a letter nor a digit. It is used to compare titles that only
// differ in punctuation, spacing, or character width.
func NormalizeForComparison(value string) string {
	folded := strings.ToLower(Fold(value))
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
