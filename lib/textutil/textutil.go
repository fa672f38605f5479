package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// TitleCase lowercases `s` and capitalizes the first letter of every word,
// "JOÃO DA SILVA" becomes "João Da Silva".
func TitleCase(s string) string {
	return cases.Title(language.BrazilianPortuguese).String(strings.ToLower(s))
}

// IsAllCaps reports whether `s` has at least one letter and no lowercase letters.
func IsAllCaps(s string) bool {
	hasUpper := false
	for _, c := range s {
		if unicode.IsLower(c) {
			return false
		}
		if unicode.IsUpper(c) {
			hasUpper = true
		}
	}
	return hasUpper
}

// NameComparer returns a pt-BR, case and accent aware comparison function.
// The returned function must not be used from multiple goroutines.
func NameComparer() func(a, b string) int {
	collator := collate.New(language.BrazilianPortuguese)
	return collator.CompareString
}
