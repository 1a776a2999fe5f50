package vecturakit

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// tokenize implements the deterministic, pure tokenizer: Unicode lowercase,
// diacritic fold (strip combining marks after NFD decomposition), split on
// any code point outside [A-Za-z0-9], drop empty fragments. It must produce
// identical output regardless of platform locale, so no locale-sensitive
// case folding or collation is used.
func tokenize(text string) []string {
	folded := foldDiacritics(strings.ToLower(text))

	var tokens []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	for _, r := range folded {
		if isAlnum(r) {
			b.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// foldDiacritics decomposes text to NFD and drops combining marks, so
// e.g. "café" becomes "cafe" before the alphanumeric split.
func foldDiacritics(text string) string {
	decomposed := norm.NFD.String(text)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
