// Package textnorm folds bilingual (Greek/English) report text and normalises
// the measurement units that appear in breast MRI reports.
package textnorm

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var decimalCommaRe = regexp.MustCompile(`(\d),(\d)`)

// Fold removes diacritics, lowercases and maps final sigma to σ so that
// Greek patterns can be written once without accent or sigma variants.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = strings.ToLower(out)
	return strings.ReplaceAll(out, "ς", "σ")
}

// NormalizeDecimal turns Greek decimal commas ("1,5") into dots.
func NormalizeDecimal(s string) string {
	return decimalCommaRe.ReplaceAllString(s, "$1.$2")
}

// ParseNumber parses a decimal that may use a comma separator.
func ParseNumber(s string) (float64, error) {
	return strconv.ParseFloat(NormalizeDecimal(strings.TrimSpace(s)), 64)
}

var romanValues = map[string]int{
	"i": 1, "ii": 2, "iii": 3, "iv": 4, "v": 5, "vi": 6,
}

// RomanToInt maps I..VI (or a plain digit 0..6) to its integer value. Greek
// capital iota is accepted in place of the Latin I, which is common in
// reports typed on a Greek keyboard.
func RomanToInt(s string) (int, bool) {
	s = strings.TrimSpace(Fold(s))
	s = strings.ReplaceAll(s, "ι", "i")
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > 6 {
			return 0, false
		}
		return n, true
	}
	n, ok := romanValues[s]
	return n, ok
}

// IsWordRune reports whether r continues a word in either script.
func IsWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
