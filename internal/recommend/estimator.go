package recommend

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"spotyfusion/internal/core"
	"spotyfusion/internal/spotify"
)

// EnrichedCandidate is a candidate track with its estimated features.
type EnrichedCandidate struct {
	Track    core.Track `json:"track"`
	Features Features   `json:"features"`
}

// Estimator resolves the primary artist's genres for each candidate and turns
// them into estimated features through a GenreTable.
type Estimator struct {
	catalog core.CatalogClient
	table   GenreTable
	genres  *lru.Cache[string, []string]
	logger  *zap.Logger
}

func NewEstimator(catalog core.CatalogClient, table GenreTable, cacheSize int, logger *zap.Logger) (*Estimator, error) {
	if cacheSize <= 0 {
		cacheSize = core.DefaultArtistCacheSize
	}
	if table == nil {
		table = DefaultGenreTable()
	}

	cache, err := lru.New[string, []string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create artist genre cache: %w", err)
	}

	return &Estimator{
		catalog: catalog,
		table:   table,
		genres:  cache,
		logger:  logger.Named("estimator"),
	}, nil
}

func (e *Estimator) Table() GenreTable {
	return e.table
}

// Enrich estimates features for every track. Tracks whose artist could not be
// resolved get DefaultFeatures; the input order is kept.
func (e *Estimator) Enrich(ctx context.Context, tracks []core.Track) []EnrichedCandidate {
	if len(tracks) == 0 {
		return nil
	}

	var artistIDs []string
	seen := make(map[string]struct{})
	for _, t := range tracks {
		id := t.PrimaryArtistID()
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		artistIDs = append(artistIDs, id)
	}

	genres := e.resolveGenres(ctx, artistIDs)

	out := make([]EnrichedCandidate, len(tracks))
	for i, t := range tracks {
		out[i] = EnrichedCandidate{
			Track:    t,
			Features: e.table.Estimate(genres[t.PrimaryArtistID()]),
		}
	}
	return out
}

// resolveGenres looks artists up in the cache and fetches the rest in
// sequential chunks. A failed chunk is logged and left unresolved.
func (e *Estimator) resolveGenres(ctx context.Context, artistIDs []string) map[string][]string {
	genres := make(map[string][]string, len(artistIDs))

	var missing []string
	for _, id := range artistIDs {
		if g, ok := e.genres.Get(id); ok {
			genres[id] = g
			continue
		}
		missing = append(missing, id)
	}

	for start := 0; start < len(missing); start += spotify.MaxArtistsPerRequest {
		end := min(start+spotify.MaxArtistsPerRequest, len(missing))
		chunk := missing[start:end]

		artists, err := e.catalog.Artists(ctx, chunk)
		if err != nil {
			e.logger.Warn("Artist lookup failed, using default features",
				zap.Int("chunkSize", len(chunk)),
				zap.Error(err))
			continue
		}

		for _, a := range artists {
			genres[a.ID] = a.Genres
			e.genres.Add(a.ID, a.Genres)
		}
	}

	e.logger.Debug("Artist genres resolved",
		zap.Int("artists", len(artistIDs)),
		zap.Int("fetched", len(missing)))
	return genres
}
