// Package recommend generates scored track recommendations from user seeds and
// a target feature profile, and exports them as playlists.
package recommend

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"spotyfusion/internal/core"
	"spotyfusion/internal/metrics"
)

// Request describes one generation.
type Request struct {
	Seeds   []Seed   `json:"seeds"`
	Targets Features `json:"targets"`
	Limit   int      `json:"limit,omitempty"`
	Market  string   `json:"market,omitempty"`
}

// Recommender runs the collect, estimate and rank pipeline.
type Recommender struct {
	aggregator   *Aggregator
	estimator    *Estimator
	defaultLimit int
	market       string
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

func NewRecommender(
	catalog core.CatalogClient,
	config *core.RecommendConfig,
	market string,
	m *metrics.Metrics,
	logger *zap.Logger,
) (*Recommender, error) {
	estimator, err := NewEstimator(catalog, DefaultGenreTable(), config.ArtistCacheSize, logger)
	if err != nil {
		return nil, err
	}
	if market == "" {
		market = core.DefaultMarket
	}

	return &Recommender{
		aggregator:   NewAggregator(catalog, config.GenreSearchLimit, logger),
		estimator:    estimator,
		defaultLimit: config.DefaultLimit,
		market:       market,
		metrics:      m,
		logger:       logger.Named("recommend"),
	}, nil
}

func (r *Recommender) Table() GenreTable {
	return r.estimator.Table()
}

// Recommend returns at most Limit scored tracks, best first. No seeds or no
// candidates yield an empty list without touching the API for the empty seed
// kinds. Track seeds do not contribute candidates.
func (r *Recommender) Recommend(ctx context.Context, req Request) ([]ScoredResult, error) {
	start := time.Now()
	defer func() { r.metrics.RecordRecommendation(time.Since(start)) }()

	seeds, err := NewSeedSet(req.Seeds...)
	if err != nil {
		return nil, err
	}
	if err := req.Targets.Validate(); err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = r.defaultLimit
	}
	market := req.Market
	if market == "" {
		market = r.market
	}

	candidates := r.aggregator.Collect(ctx, seeds.GenreNames(), seeds.ArtistIDs(), market)
	r.metrics.RecordCandidates("collected", len(candidates))
	if len(candidates) == 0 {
		r.logger.Info("No candidates found", zap.Int("seeds", seeds.Len()))
		return []ScoredResult{}, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("recommendation canceled: %w", err)
	}

	enriched := r.estimator.Enrich(ctx, candidates)
	results := Rank(enriched, req.Targets, limit)
	r.metrics.RecordCandidates("ranked", len(results))

	r.logger.Info("Recommendations generated",
		zap.Int("seeds", seeds.Len()),
		zap.Int("candidates", len(candidates)),
		zap.Int("results", len(results)),
		zap.Duration("elapsed", time.Since(start)))

	return results, nil
}
