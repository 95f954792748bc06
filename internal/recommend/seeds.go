package recommend

import (
	"errors"
	"fmt"

	"spotyfusion/pkg/text"
)

// MaxSeeds is the most seeds a generation accepts.
const MaxSeeds = 5

type SeedKind string

const (
	SeedArtist SeedKind = "artist"
	SeedTrack  SeedKind = "track"
	SeedGenre  SeedKind = "genre"
)

var (
	ErrSeedLimit     = errors.New("seed limit reached")
	ErrDuplicateSeed = errors.New("seed already selected")
	ErrInvalidSeed   = errors.New("invalid seed")
)

// Seed is a user-chosen artist, track or genre. For genres ID is the
// normalized genre name.
type Seed struct {
	Kind SeedKind `json:"kind"`
	ID   string   `json:"id"`
	Name string   `json:"name"`
}

func (s Seed) valid() bool {
	switch s.Kind {
	case SeedArtist, SeedTrack, SeedGenre:
		return s.ID != ""
	}
	return false
}

// genreName is what goes into the genre: search filter.
func (s Seed) genreName() string {
	if s.Name != "" {
		return text.NormalizeGenre(s.Name)
	}
	return s.ID
}

// SeedSet is an ordered collection of at most MaxSeeds seeds, unique by id.
type SeedSet struct {
	seeds []Seed
}

func NewSeedSet(seeds ...Seed) (*SeedSet, error) {
	set := &SeedSet{}
	for _, s := range seeds {
		if err := set.Add(s); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func (s *SeedSet) Add(seed Seed) error {
	if !seed.valid() {
		return fmt.Errorf("%w: kind %q id %q", ErrInvalidSeed, seed.Kind, seed.ID)
	}
	if len(s.seeds) >= MaxSeeds {
		return ErrSeedLimit
	}
	for _, existing := range s.seeds {
		if existing.ID == seed.ID {
			return fmt.Errorf("%w: %s", ErrDuplicateSeed, seed.ID)
		}
	}
	s.seeds = append(s.seeds, seed)
	return nil
}

// Remove drops the seed with id and reports whether it was present.
func (s *SeedSet) Remove(id string) bool {
	for i, existing := range s.seeds {
		if existing.ID == id {
			s.seeds = append(s.seeds[:i], s.seeds[i+1:]...)
			return true
		}
	}
	return false
}

func (s *SeedSet) Len() int {
	return len(s.seeds)
}

func (s *SeedSet) Seeds() []Seed {
	out := make([]Seed, len(s.seeds))
	copy(out, s.seeds)
	return out
}

func (s *SeedSet) GenreNames() []string {
	var out []string
	for _, seed := range s.seeds {
		if seed.Kind == SeedGenre {
			out = append(out, seed.genreName())
		}
	}
	return out
}

func (s *SeedSet) ArtistIDs() []string {
	var out []string
	for _, seed := range s.seeds {
		if seed.Kind == SeedArtist {
			out = append(out, seed.ID)
		}
	}
	return out
}

// ParseSeed builds a seed from a Spotify artist or track reference, or from
// genre:<name>. The display name is left empty.
func ParseSeed(raw string) (Seed, error) {
	ref, err := text.NewParser().Parse(raw)
	if err != nil {
		return Seed{}, fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}

	switch ref.Kind {
	case text.KindArtist:
		return Seed{Kind: SeedArtist, ID: ref.ID}, nil
	case text.KindTrack:
		return Seed{Kind: SeedTrack, ID: ref.ID}, nil
	case text.KindGenre:
		return Seed{Kind: SeedGenre, ID: ref.ID, Name: ref.ID}, nil
	default:
		return Seed{}, fmt.Errorf("%w: %s references cannot seed recommendations", ErrInvalidSeed, ref.Kind)
	}
}
