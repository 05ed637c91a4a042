// Package normalize folds author and title text into plain lower-case
// ASCII letters for key derivation.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Letters with no canonical decomposition to a base Latin letter.
var latinFold = strings.NewReplacer(
	"ß", "ss", "ø", "o", "Ø", "o", "ł", "l", "Ł", "l",
	"æ", "ae", "Æ", "ae", "œ", "oe", "Œ", "oe",
	"đ", "d", "Đ", "d", "ð", "d", "Ð", "d", "þ", "th", "Þ", "th",
	"ı", "i", "ħ", "h", "Ħ", "h",
)

var (
	// TeX macros that stand for letters rather than accents.
	texLetter = regexp.MustCompile(`\\(ss|ae|AE|oe|OE|aa|AA|o|O|l|L|i|j)\b`)
	// Any other control word, e.g. the accent commands \v \c \H or \textsc.
	texCommand = regexp.MustCompile(`\\[A-Za-z]+`)
)

// Text maps s to its base Latin letters, drops every character outside
// [a-z] and returns the result lower-cased. TeX accent escapes are removed
// first, so `Schr{\"o}dinger` and `Schrödinger` fold to the same string.
// Text is total and idempotent.
func Text(s string) string {
	s = texLetter.ReplaceAllString(s, "$1")
	s = texCommand.ReplaceAllString(s, "")
	if folded, _, err := transform.String(stripMarks, s); err == nil {
		s = folded
	}
	s = strings.ToLower(latinFold.Replace(s))

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= 'a' && c <= 'z' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Checksum folds the normalized form of s left to right as
// (acc + code point) mod modulus, starting from 0.
func Checksum(s string, modulus int) int {
	if modulus <= 0 {
		return 0
	}
	acc := 0
	for _, r := range Text(s) {
		acc = (acc + int(r)) % modulus
	}
	return acc
}
