package recommend

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var ErrInvalidTargets = errors.New("target features must lie in [0,1]")

// Features is a danceability, energy and valence profile. Candidate features
// are estimates derived from genre tags, not measured audio data.
type Features struct {
	Danceability float64 `json:"danceability"`
	Energy       float64 `json:"energy"`
	Valence      float64 `json:"valence"`
}

// DefaultFeatures is used when no genre tag matches the table.
var DefaultFeatures = Features{Danceability: 0.5, Energy: 0.5, Valence: 0.5}

// Distance is the Euclidean distance between f and o.
func (f Features) Distance(o Features) float64 {
	dd := f.Danceability - o.Danceability
	de := f.Energy - o.Energy
	dv := f.Valence - o.Valence
	return math.Sqrt(dd*dd + de*de + dv*dv)
}

func (f Features) Validate() error {
	dims := []struct {
		name  string
		value float64
	}{
		{"danceability", f.Danceability},
		{"energy", f.Energy},
		{"valence", f.Valence},
	}
	for _, d := range dims {
		if math.IsNaN(d.value) || d.value < 0 || d.value > 1 {
			return fmt.Errorf("%w: %s=%v", ErrInvalidTargets, d.name, d.value)
		}
	}
	return nil
}

type GenreEntry struct {
	Key      string
	Features Features
}

// GenreTable maps genre keywords to feature profiles. Order matters: a tag
// takes the first entry whose key it contains.
type GenreTable []GenreEntry

// DefaultGenreTable returns the built-in table. "indie rock" resolves to rock
// because rock is declared before indie.
func DefaultGenreTable() GenreTable {
	return GenreTable{
		{"techno", Features{0.8, 0.9, 0.5}},
		{"house", Features{0.8, 0.8, 0.7}},
		{"edm", Features{0.7, 0.9, 0.6}},
		{"dubstep", Features{0.6, 0.9, 0.4}},
		{"hip-hop", Features{0.8, 0.6, 0.6}},
		{"rap", Features{0.8, 0.7, 0.5}},
		{"trap", Features{0.7, 0.8, 0.3}},
		{"pop", Features{0.7, 0.7, 0.7}},
		{"rock", Features{0.4, 0.8, 0.5}},
		{"metal", Features{0.3, 0.95, 0.2}},
		{"punk", Features{0.5, 0.9, 0.4}},
		{"indie", Features{0.6, 0.5, 0.6}},
		{"folk", Features{0.4, 0.3, 0.5}},
		{"acoustic", Features{0.4, 0.2, 0.5}},
		{"classical", Features{0.1, 0.2, 0.3}},
		{"jazz", Features{0.6, 0.4, 0.6}},
		{"ambient", Features{0.2, 0.1, 0.2}},
		{"latin", Features{0.8, 0.7, 0.8}},
		{"reggaeton", Features{0.9, 0.7, 0.8}},
	}
}

// Match returns the first entry whose key is a substring of tag.
func (t GenreTable) Match(tag string) (GenreEntry, bool) {
	tag = strings.ToLower(tag)
	for _, entry := range t {
		if strings.Contains(tag, entry.Key) {
			return entry, true
		}
	}
	return GenreEntry{}, false
}

// Estimate averages the profiles matched by genres, or returns
// DefaultFeatures when nothing matches.
func (t GenreTable) Estimate(genres []string) Features {
	var sum Features
	matches := 0
	for _, genre := range genres {
		entry, ok := t.Match(genre)
		if !ok {
			continue
		}
		sum.Danceability += entry.Features.Danceability
		sum.Energy += entry.Features.Energy
		sum.Valence += entry.Features.Valence
		matches++
	}

	if matches == 0 {
		return DefaultFeatures
	}
	n := float64(matches)
	return Features{
		Danceability: sum.Danceability / n,
		Energy:       sum.Energy / n,
		Valence:      sum.Valence / n,
	}
}

// Keys lists the table keys in declared order; they double as genre suggestions.
func (t GenreTable) Keys() []string {
	keys := make([]string, len(t))
	for i, entry := range t {
		keys[i] = entry.Key
	}
	return keys
}
