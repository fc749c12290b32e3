// Package nlp implements the note classification pipeline: text
// normalization, TF-IDF vectorization and a linear decision function.
// A Model is loaded once and is safe for concurrent read-only use.
package nlp

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// asciiPunctuation is the locale-independent punctuation set removed by Normalize.
const asciiPunctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

func isASCIIPunct(r rune) bool {
	return r < 0x80 && strings.ContainsRune(asciiPunctuation, r)
}

func newlineToSpace(r rune) rune {
	if r == '\n' || r == '\r' {
		return ' '
	}
	return r
}

// Normalize cleans a clinical note: line breaks become spaces, text is
// lowercased, ASCII punctuation is removed and whitespace runs collapse to a
// single space. It is total and idempotent; whitespace- or punctuation-only
// input yields "".
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	// Casers keep internal state, so the chain is built per call.
	chain := transform.Chain(
		runes.Map(newlineToSpace),
		cases.Lower(language.Und),
		runes.Remove(runes.Predicate(isASCIIPunct)),
	)

	cleaned, _, err := transform.String(chain, text)
	if err != nil {
		cleaned = strings.Map(func(r rune) rune {
			if isASCIIPunct(r) {
				return -1
			}
			return newlineToSpace(r)
		}, strings.ToLower(text))
	}

	return strings.Join(strings.Fields(cleaned), " ")
}
