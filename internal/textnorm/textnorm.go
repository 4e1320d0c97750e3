// Package textnorm provides the text folding used by every matcher in the
// intake engine.
//
// Conversational input arrives with inconsistent casing and inconsistent
// diacritics ("Roșii", "rosii", "ROSII" all mean the same color), so every
// comparison against the catalog vocabulary goes through Fold first.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// romanianFolds maps the Romanian letters that survive NFD mark stripping
// in some input encodings (precomposed forms typed with the legacy cedilla
// codepoints) to their base letters.
var romanianFolds = strings.NewReplacer(
	"ă", "a",
	"â", "a",
	"î", "i",
	"ș", "s",
	"ş", "s", // legacy cedilla form
	"ț", "t",
	"ţ", "t", // legacy cedilla form
)

// Fold lowercases s, decomposes it to NFD, strips combining marks, and
// folds the Romanian letters ă/â→a, î→i, ș→s, ț→t.
//
// Fold is a total function: it accepts any string and never fails.
// The empty string folds to the empty string.
func Fold(s string) string {
	if s == "" {
		return ""
	}

	lower := strings.ToLower(s)
	decomposed := norm.NFD.String(lower)

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue // combining mark
		}
		b.WriteRune(r)
	}

	return romanianFolds.Replace(b.String())
}

// Equal reports whether two strings are the same token under Fold.
// Used for case/diacritic-insensitive color comparison.
func Equal(a, b string) bool {
	return Fold(a) == Fold(b)
}
