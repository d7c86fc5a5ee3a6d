package codegen

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const fallbackPrefix = "X"

// DerivePrefix builds the code prefix for a display name.
//
//	""                 -> "X"
//	"Apple"            -> "AP"
//	"John Doe"         -> "JD"
//	"PT Maju Jaya" (3) -> "PMJ"
//
// A single word contributes its first prefixLength runes, several words contribute the first
// rune of each of the first prefixLength words. The result is always upper case.
func DerivePrefix(name string, prefixLength int) string {
	if prefixLength < 1 {
		prefixLength = 1
	}

	words := strings.Fields(name)
	switch len(words) {
	case 0:
		return fallbackPrefix
	case 1:
		word := []rune(words[0])
		if len(word) > prefixLength {
			word = word[:prefixLength]
		}
		return strings.ToUpper(string(word))
	}

	var b strings.Builder
	for _, word := range words[:min(len(words), prefixLength)] {
		r, _ := utf8.DecodeRuneInString(word)
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}
