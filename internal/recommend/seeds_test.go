package recommend

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"spotyfusion/internal/core"
)

func TestSeedSet(t *testing.T) {
	set, err := NewSeedSet(
		Seed{Kind: SeedGenre, ID: "rock", Name: "Rock"},
		Seed{Kind: SeedArtist, ID: "a1", Name: "One"},
	)
	if err != nil {
		t.Fatalf("NewSeedSet failed: %v", err)
	}

	if err := set.Add(Seed{Kind: SeedArtist, ID: "a1"}); !errors.Is(err, ErrDuplicateSeed) {
		t.Errorf("expected ErrDuplicateSeed, got %v", err)
	}
	if err := set.Add(Seed{Kind: SeedArtist}); !errors.Is(err, ErrInvalidSeed) {
		t.Errorf("expected ErrInvalidSeed, got %v", err)
	}

	for _, id := range []string{"a2", "a3", "t1"} {
		kind := SeedArtist
		if id == "t1" {
			kind = SeedTrack
		}
		if err := set.Add(Seed{Kind: kind, ID: id}); err != nil {
			t.Fatalf("Add(%s) failed: %v", id, err)
		}
	}
	if err := set.Add(Seed{Kind: SeedArtist, ID: "a4"}); !errors.Is(err, ErrSeedLimit) {
		t.Errorf("expected ErrSeedLimit, got %v", err)
	}
	if set.Len() != MaxSeeds {
		t.Errorf("expected %d seeds, got %d", MaxSeeds, set.Len())
	}

	if got := set.ArtistIDs(); len(got) != 3 || got[0] != "a1" || got[2] != "a3" {
		t.Errorf("ArtistIDs = %v", got)
	}
	if got := set.GenreNames(); len(got) != 1 || got[0] != "rock" {
		t.Errorf("GenreNames = %v", got)
	}

	if !set.Remove("a2") || set.Remove("missing") {
		t.Error("Remove reported wrong presence")
	}
	if err := set.Add(Seed{Kind: SeedArtist, ID: "a4"}); err != nil {
		t.Errorf("Add after Remove failed: %v", err)
	}
	if got := set.Seeds(); got[len(got)-1].ID != "a4" {
		t.Errorf("new seed should be last, got %v", got)
	}
}

func TestParseSeed(t *testing.T) {
	tests := []struct {
		input   string
		want    Seed
		wantErr bool
	}{
		{"spotify:artist:0TnOYISbd1XYRBk9myaseg", Seed{Kind: SeedArtist, ID: "0TnOYISbd1XYRBk9myaseg"}, false},
		{"https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC", Seed{Kind: SeedTrack, ID: "4uLU6hMCjMI75M1A2tKUQC"}, false},
		{"genre:Hip-Hop", Seed{Kind: SeedGenre, ID: "hip-hop", Name: "hip-hop"}, false},
		{"spotify:playlist:37i9dQZF1DXcBWIGoYBM5M", Seed{}, true},
		{"daft punk", Seed{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSeed(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSeed error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrInvalidSeed) {
				t.Errorf("expected ErrInvalidSeed, got %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseSeed = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSeedSearcher_Search(t *testing.T) {
	catalog := newMockCatalog()
	catalog.foundArtists = []core.Artist{
		{ID: "tribute", Name: "Rock Tribute Band"},
		{ID: "exact", Name: "Rock"},
	}
	catalog.search["rock"] = []core.Track{{ID: "song", Name: "We Will Rock You - Remastered"}}

	s := NewSeedSearcher(catalog, DefaultGenreTable(), zap.NewNop())
	seeds, err := s.Search(context.Background(), "rock", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(seeds) != 4 {
		t.Fatalf("expected 4 seeds, got %+v", seeds)
	}
	// the genre key comes before the artist of the same name on equal score
	if seeds[0].Kind != SeedGenre || seeds[0].ID != "rock" {
		t.Errorf("expected genre seed first, got %+v", seeds[0])
	}
	if seeds[1].ID != "exact" {
		t.Errorf("expected exact artist second, got %+v", seeds[1])
	}
}

func TestSeedSearcher_ReferenceQuery(t *testing.T) {
	catalog := newMockCatalog()
	s := NewSeedSearcher(catalog, DefaultGenreTable(), zap.NewNop())

	seeds, err := s.Search(context.Background(), "spotify:artist:0TnOYISbd1XYRBk9myaseg", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(seeds) != 1 || seeds[0].Kind != SeedArtist {
		t.Errorf("expected the parsed artist, got %+v", seeds)
	}
	if len(catalog.searchCalls) != 0 {
		t.Error("reference queries should not hit search")
	}
}

func TestSeedSearcher_BothSearchesFail(t *testing.T) {
	catalog := newMockCatalog()
	catalog.searchErr = errUpstream
	s := NewSeedSearcher(catalog, DefaultGenreTable(), zap.NewNop())

	if _, err := s.Search(context.Background(), "anything", 5); !errors.Is(err, errUpstream) {
		t.Errorf("expected upstream error, got %v", err)
	}
}
