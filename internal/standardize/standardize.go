// Package standardize canonicalizes name and address text for comparison.
package standardize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	punct      = regexp.MustCompile(`[.,;:!?'"()\[\]{}#&/\\]+`)
	extraDash  = regexp.MustCompile(`-{2,}`)
	multiSpace = regexp.MustCompile(`\s{2,}`)

	entitySuffix = regexp.MustCompile(
		`(?i)\s*,?\s*(LLC|L\.?L\.?C\.?|INC\.?|INCORPORATED|CORP\.?|CORPORATION|` +
			`CO\.?|COMPANY|LTD\.?|LIMITED|INTL\.?|L\.?P\.?|LLP|L\.?L\.?P\.?)\s*\.?\s*$`)
)

// foldDiacritics maps accented letters to their base form so that
// "CAFÉ" and "CAFE" standardize identically.
var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Standardize returns the canonical comparable form of raw text:
// diacritics folded, uppercased, punctuation stripped, whitespace
// collapsed to single spaces, trimmed. It is pure, total, and
// idempotent; empty input maps to empty output.
func Standardize(raw string) string {
	if folded, _, err := transform.String(foldDiacritics, raw); err == nil {
		raw = folded
	}
	s := strings.ToUpper(raw)
	s = punct.ReplaceAllString(s, " ")
	s = extraDash.ReplaceAllString(s, "-")
	s = multiSpace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// NameKey returns the comparison key for a company name: standardized
// text with trailing legal entity designators (LLC, INC, CORP, ...)
// removed. Stripping repeats until stable so stacked designators like
// "X HOLDINGS INC LLC" reduce fully, keeping NameKey idempotent.
func NameKey(raw string) string {
	s := Standardize(raw)
	for {
		trimmed := strings.TrimSpace(entitySuffix.ReplaceAllString(s, ""))
		if trimmed == s {
			return s
		}
		s = trimmed
	}
}
