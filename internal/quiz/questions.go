package quiz

import (
	"fmt"
	"math/rand/v2"

	"spotyfusion/internal/core"
)

const (
	// ChoicesPerQuestion includes the correct track
	ChoicesPerQuestion = 4
	// MinTracks is the smallest pool a game can be built from
	MinTracks = ChoicesPerQuestion
)

// Question pairs the track being played with the shuffled answer choices.
type Question struct {
	Correct core.Track
	Choices []core.Track
}

// BuildQuestions shuffles the pool and turns its first count tracks into
// questions, so no track is asked twice. Each question gets three distinct
// wrong choices drawn from the rest of the pool. Duplicate ids and
// unplayable tracks are dropped first.
func BuildQuestions(tracks []core.Track, count int, rng *rand.Rand) ([]Question, error) {
	pool := uniquePlayable(tracks)
	if len(pool) < MinTracks {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrNotEnoughTracks, len(pool), MinTracks)
	}

	shuffle(pool, rng)

	n := min(count, len(pool))
	questions := make([]Question, 0, n)
	for i := range n {
		correct := pool[i]

		others := make([]core.Track, 0, len(pool)-1)
		for j, t := range pool {
			if j != i {
				others = append(others, t)
			}
		}
		wrong := sample(others, ChoicesPerQuestion-1, rng)

		choices := append([]core.Track{correct}, wrong...)
		shuffle(choices, rng)

		questions = append(questions, Question{Correct: correct, Choices: choices})
	}
	return questions, nil
}

// shuffle is an in-place Fisher–Yates shuffle.
func shuffle(tracks []core.Track, rng *rand.Rand) {
	for i := len(tracks) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		tracks[i], tracks[j] = tracks[j], tracks[i]
	}
}

// sample draws k tracks without replacement. It reorders tracks.
func sample(tracks []core.Track, k int, rng *rand.Rand) []core.Track {
	k = min(k, len(tracks))
	for i := range k {
		j := i + rng.IntN(len(tracks)-i)
		tracks[i], tracks[j] = tracks[j], tracks[i]
	}
	out := make([]core.Track, k)
	copy(out, tracks[:k])
	return out
}

func uniquePlayable(tracks []core.Track) []core.Track {
	seen := make(map[string]struct{}, len(tracks))
	out := make([]core.Track, 0, len(tracks))
	for _, t := range tracks {
		if t.ID == "" || !t.IsPlayable() {
			continue
		}
		if _, ok := seen[t.ID]; ok {
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out
}

func (q Question) hasChoice(trackID string) bool {
	for _, c := range q.Choices {
		if c.ID == trackID {
			return true
		}
	}
	return false
}
