package recommend

import (
	"math"
	"sort"

	"spotyfusion/internal/core"
)

const (
	maxScore  = 100
	minScore  = 1
	decayRate = 0.05
)

// ScoredResult is a ranked candidate. Score reflects the rank, not the
// absolute distance.
type ScoredResult struct {
	Track    core.Track `json:"track"`
	Features Features   `json:"features"`
	Distance float64    `json:"distance"`
	Score    int        `json:"score"`
}

// DecayScore maps a 0-based rank to round(100·e^(-0.05·rank)), at least 1.
func DecayScore(rank int) int {
	score := int(math.Round(maxScore * math.Exp(-decayRate*float64(rank))))
	return max(minScore, score)
}

// Rank sorts candidates by distance to target, ties keeping input order, and
// scores the first limit of them. A non-positive limit means the default.
func Rank(candidates []EnrichedCandidate, target Features, limit int) []ScoredResult {
	if limit <= 0 {
		limit = core.DefaultRecommendationLimit
	}
	if len(candidates) == 0 {
		return []ScoredResult{}
	}

	results := make([]ScoredResult, len(candidates))
	for i, c := range candidates {
		results[i] = ScoredResult{
			Track:    c.Track,
			Features: c.Features,
			Distance: c.Features.Distance(target),
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})

	if len(results) > limit {
		results = results[:limit]
	}
	for i := range results {
		results[i].Score = DecayScore(i)
	}
	return results
}
