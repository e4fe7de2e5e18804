package engine

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// Similarity computes a ratio in [0, 1] between successive corrected texts;
// 1 means identical. The metric is pluggable because edit distance and
// token overlap behave differently on long prose, and which economizer fits
// depends on the document.
type Similarity interface {
	Ratio(a, b string) float64
	Name() string
}

// LevenshteinSimilarity is the default strategy: 1 - dist/maxLen, computed
// on runes.
type LevenshteinSimilarity struct{}

// Name returns the strategy identifier.
func (LevenshteinSimilarity) Name() string { return "levenshtein" }

// Ratio returns the normalized edit-distance similarity of a and b.
func (LevenshteinSimilarity) Ratio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 1.0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(longest)
}

// TokenOverlapSimilarity is a cheaper alternative: Jaccard overlap of the
// whitespace-delimited token sets.
type TokenOverlapSimilarity struct{}

// Name returns the strategy identifier.
func (TokenOverlapSimilarity) Name() string { return "token-overlap" }

// Ratio returns the Jaccard similarity of the token sets of a and b.
func (TokenOverlapSimilarity) Ratio(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}

	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		set[tok] = true
	}
	return set
}

// SimilarityByName resolves a strategy identifier; unknown names fall back
// to levenshtein.
func SimilarityByName(name string) Similarity {
	if name == "token-overlap" {
		return TokenOverlapSimilarity{}
	}
	return LevenshteinSimilarity{}
}
