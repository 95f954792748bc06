package fuzzy

import (
	"sort"
	"strings"
)

const (
	exactBonus  = 1.0
	prefixBonus = 0.5
	wordBonus   = 0.25
)

// Match is one ranked candidate; Index points into the slice given to Rank.
type Match struct {
	Index int
	Score float64
}

// Score rates how well candidate answers query. Exact matches beat prefix
// matches, which beat whole-word containment; the remainder is similarity.
func (n *Normalizer) Score(query, candidate string) float64 {
	q := n.basicNormalize(query)
	c := n.basicNormalize(candidate)
	if q == "" || c == "" {
		return 0
	}

	score := n.CalculateSimilarity(q, c)
	switch {
	case q == c:
		score += exactBonus
	case strings.HasPrefix(c, q):
		score += prefixBonus
	case containsWord(c, q):
		score += wordBonus
	}
	return score
}

func containsWord(text, word string) bool {
	return strings.Contains(" "+text+" ", " "+word+" ")
}

// Rank orders candidates by Score against query, best first. Equal scores
// keep their input order.
func (n *Normalizer) Rank(query string, candidates []string) []Match {
	matches := make([]Match, len(candidates))
	for i, c := range candidates {
		matches[i] = Match{Index: i, Score: n.Score(query, c)}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}
