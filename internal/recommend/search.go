package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"spotyfusion/internal/core"
	"spotyfusion/pkg/fuzzy"
)

const (
	// DefaultSearchLimit is the per-kind page size of a seed search
	DefaultSearchLimit = 5
	genreMatchScore    = 0.75
)

// SeedSearcher finds artist, track and genre seeds for free text.
type SeedSearcher struct {
	catalog    core.CatalogClient
	table      GenreTable
	normalizer *fuzzy.Normalizer
	logger     *zap.Logger
}

func NewSeedSearcher(catalog core.CatalogClient, table GenreTable, logger *zap.Logger) *SeedSearcher {
	return &SeedSearcher{
		catalog:    catalog,
		table:      table,
		normalizer: fuzzy.NewNormalizer(),
		logger:     logger.Named("seeds"),
	}
}

// Search returns seeds ranked by how well their names match query. A query
// that is itself a Spotify reference or genre:<name> returns that seed alone.
func (s *SeedSearcher) Search(ctx context.Context, query string, limit int) ([]Seed, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Seed{}, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	if seed, err := ParseSeed(query); err == nil {
		return []Seed{seed}, nil
	}

	var (
		g         errgroup.Group
		artists   []core.Artist
		tracks    []core.Track
		artistErr error
		trackErr  error
	)
	g.Go(func() error {
		artists, artistErr = s.catalog.SearchArtists(ctx, query, limit)
		return nil
	})
	g.Go(func() error {
		tracks, trackErr = s.catalog.SearchTracks(ctx, query, limit)
		return nil
	})
	_ = g.Wait()

	if artistErr != nil && trackErr != nil {
		return nil, fmt.Errorf("seed search failed: %w", errors.Join(artistErr, trackErr))
	}
	if artistErr != nil {
		s.logger.Warn("Artist search failed", zap.Error(artistErr))
	}
	if trackErr != nil {
		s.logger.Warn("Track search failed", zap.Error(trackErr))
	}

	var candidates []Seed
	for _, key := range s.table.Keys() {
		if strings.Contains(key, strings.ToLower(query)) || s.normalizer.Score(query, key) >= genreMatchScore {
			candidates = append(candidates, Seed{Kind: SeedGenre, ID: key, Name: key})
		}
	}
	for _, a := range artists {
		candidates = append(candidates, Seed{Kind: SeedArtist, ID: a.ID, Name: a.Name})
	}
	for _, t := range tracks {
		candidates = append(candidates, Seed{Kind: SeedTrack, ID: t.ID, Name: t.Name})
	}

	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.Name
		if c.Kind == SeedTrack {
			names[i] = s.normalizer.NormalizeTitle(c.Name)
		}
	}

	ranked := s.normalizer.Rank(query, names)
	out := make([]Seed, 0, min(len(ranked), limit))
	for _, m := range ranked {
		if len(out) == limit {
			break
		}
		out = append(out, candidates[m.Index])
	}
	return out, nil
}
