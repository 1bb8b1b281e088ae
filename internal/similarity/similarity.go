// Package similarity scores name and address likeness between records
// on a 0-100 scale.
package similarity

import (
	"sort"
	"strings"

	"github.com/agext/levenshtein"

	"github.com/sells-group/linkage-cli/internal/model"
)

// Ratio returns a normalized edit-distance similarity in [0,100].
// An empty string on either side scores 0 so that two blank fields
// never count as a perfect match.
func Ratio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return levenshtein.Similarity(a, b, nil) * 100
}

// TokenSortRatio compares two strings with their tokens sorted, so
// "MAIN ST 123" and "123 MAIN ST" score 100.
func TokenSortRatio(a, b string) float64 {
	return Ratio(sortTokens(a), sortTokens(b))
}

func sortTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// Scorer combines name and address similarity into an overall score
// using fixed configured weights.
type Scorer struct {
	NameWeight    float64
	AddressWeight float64
}

// NewScorer creates a Scorer with the given weights.
func NewScorer(nameWeight, addressWeight float64) Scorer {
	return Scorer{NameWeight: nameWeight, AddressWeight: addressWeight}
}

// Score computes the similarity pair for two records. Symmetric:
// Score(a, b) == Score(b, a).
func (s Scorer) Score(a, b *model.GeocodedRecord) model.SimilarityPair {
	name := TokenSortRatio(a.NameNorm, b.NameNorm)
	addr := TokenSortRatio(a.AddressNorm, b.AddressNorm)
	return model.SimilarityPair{
		NameScore:    name,
		AddressScore: addr,
		OverallScore: (name*s.NameWeight + addr*s.AddressWeight) / (s.NameWeight + s.AddressWeight),
	}
}
