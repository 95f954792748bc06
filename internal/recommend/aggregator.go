package recommend

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"spotyfusion/internal/core"
)

// Aggregator collects candidate tracks from genre search and seed artists'
// top tracks.
type Aggregator struct {
	catalog    core.CatalogClient
	genreLimit int
	logger     *zap.Logger
}

func NewAggregator(catalog core.CatalogClient, genreLimit int, logger *zap.Logger) *Aggregator {
	if genreLimit <= 0 {
		genreLimit = core.DefaultGenreSearchLimit
	}
	return &Aggregator{
		catalog:    catalog,
		genreLimit: genreLimit,
		logger:     logger.Named("aggregator"),
	}
}

// GenreQuery builds the disjunctive search filter for genres.
func GenreQuery(genres []string) string {
	parts := make([]string, 0, len(genres))
	for _, g := range genres {
		if g = strings.TrimSpace(g); g != "" {
			parts = append(parts, "genre:"+g)
		}
	}
	return strings.Join(parts, " OR ")
}

// Collect runs both sources concurrently and merges them by track id. Genre
// results come first, then artist results in seed order; the first occurrence
// of an id keeps its position. Source failures are logged and skipped, so an
// empty result is not an error.
func (a *Aggregator) Collect(ctx context.Context, genres, artistIDs []string, market string) []core.Track {
	var (
		g            errgroup.Group
		genreTracks  []core.Track
		artistTracks = make([][]core.Track, len(artistIDs))
	)

	if query := GenreQuery(genres); query != "" {
		g.Go(func() error {
			genreTracks = a.searchGenres(ctx, query)
			return nil
		})
	}

	for i, id := range artistIDs {
		g.Go(func() error {
			artistTracks[i] = a.artistTopTracks(ctx, id, market)
			return nil
		})
	}

	_ = g.Wait()

	merged := newCandidateSet()
	merged.addAll(genreTracks)
	for _, tracks := range artistTracks {
		merged.addAll(tracks)
	}

	a.logger.Debug("Candidates collected",
		zap.Int("genreSeeds", len(genres)),
		zap.Int("artistSeeds", len(artistIDs)),
		zap.Int("candidates", merged.len()))

	return merged.tracks
}

func (a *Aggregator) searchGenres(ctx context.Context, query string) []core.Track {
	tracks, err := a.catalog.SearchTracks(ctx, query, a.genreLimit)
	if err != nil {
		a.logger.Warn("Genre search failed", zap.String("query", query), zap.Error(err))
		return nil
	}
	return playable(tracks)
}

func (a *Aggregator) artistTopTracks(ctx context.Context, artistID, market string) []core.Track {
	tracks, err := a.catalog.ArtistTopTracks(ctx, artistID, market)
	if err != nil {
		a.logger.Warn("Artist top tracks failed", zap.String("artistID", artistID), zap.Error(err))
		return nil
	}
	return playable(tracks)
}

func playable(tracks []core.Track) []core.Track {
	out := tracks[:0:0]
	for _, t := range tracks {
		if t.IsPlayable() {
			out = append(out, t)
		}
	}
	return out
}

// candidateSet keeps insertion order and drops repeated ids.
type candidateSet struct {
	seen   map[string]struct{}
	tracks []core.Track
}

func newCandidateSet() *candidateSet {
	return &candidateSet{seen: make(map[string]struct{})}
}

func (s *candidateSet) addAll(tracks []core.Track) {
	for _, t := range tracks {
		if t.ID == "" {
			continue
		}
		if _, ok := s.seen[t.ID]; ok {
			continue
		}
		s.seen[t.ID] = struct{}{}
		s.tracks = append(s.tracks, t)
	}
}

func (s *candidateSet) len() int {
	return len(s.tracks)
}
