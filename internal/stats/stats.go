// Package stats serves the listening statistics of the signed-in user.
package stats

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"spotyfusion/internal/core"
)

const (
	DefaultTopLimit      = 10
	DefaultRecentLimit   = 5
	DefaultPlaylistLimit = 50
	maxLimit             = 50
)

var ErrInvalidTimeRange = errors.New("invalid time range")

// Overview is everything the statistics page shows at once.
type Overview struct {
	Profile    *core.UserProfile     `json:"profile"`
	TopArtists []core.Artist         `json:"topArtists"`
	TopTracks  []core.Track          `json:"topTracks"`
	Recent     []core.RecentlyPlayed `json:"recent"`
}

type Service struct {
	catalog core.CatalogClient
	logger  *zap.Logger
}

func NewService(catalog core.CatalogClient, logger *zap.Logger) *Service {
	return &Service{
		catalog: catalog,
		logger:  logger.Named("stats"),
	}
}

func (s *Service) Profile(ctx context.Context) (*core.UserProfile, error) {
	profile, err := s.catalog.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return profile, nil
}

// TopArtists defaults to the medium term range and ten artists.
func (s *Service) TopArtists(ctx context.Context, timeRange core.TimeRange, limit int) ([]core.Artist, error) {
	timeRange, err := resolveRange(timeRange)
	if err != nil {
		return nil, err
	}
	artists, err := s.catalog.TopArtists(ctx, timeRange, clamp(limit, DefaultTopLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to get top artists: %w", err)
	}
	return artists, nil
}

// TopTracks defaults to the medium term range and ten tracks.
func (s *Service) TopTracks(ctx context.Context, timeRange core.TimeRange, limit int) ([]core.Track, error) {
	timeRange, err := resolveRange(timeRange)
	if err != nil {
		return nil, err
	}
	tracks, err := s.catalog.TopTracks(ctx, timeRange, clamp(limit, DefaultTopLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to get top tracks: %w", err)
	}
	return tracks, nil
}

func (s *Service) Recent(ctx context.Context, limit int) ([]core.RecentlyPlayed, error) {
	items, err := s.catalog.RecentlyPlayed(ctx, clamp(limit, DefaultRecentLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to get recently played: %w", err)
	}
	return items, nil
}

func (s *Service) Playlists(ctx context.Context, limit int) ([]core.Playlist, error) {
	playlists, err := s.catalog.UserPlaylists(ctx, clamp(limit, DefaultPlaylistLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to get playlists: %w", err)
	}
	return playlists, nil
}

// Overview loads the profile and the default lists concurrently. Only a
// profile failure is fatal; a failed list is logged and left empty.
func (s *Service) Overview(ctx context.Context, timeRange core.TimeRange) (*Overview, error) {
	timeRange, err := resolveRange(timeRange)
	if err != nil {
		return nil, err
	}

	out := &Overview{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		profile, err := s.Profile(gctx)
		if err != nil {
			return err
		}
		out.Profile = profile
		return nil
	})
	g.Go(func() error {
		artists, err := s.TopArtists(gctx, timeRange, DefaultTopLimit)
		if err != nil {
			s.logger.Warn("Top artists unavailable", zap.Error(err))
			return nil
		}
		out.TopArtists = artists
		return nil
	})
	g.Go(func() error {
		tracks, err := s.TopTracks(gctx, timeRange, DefaultTopLimit)
		if err != nil {
			s.logger.Warn("Top tracks unavailable", zap.Error(err))
			return nil
		}
		out.TopTracks = tracks
		return nil
	})
	g.Go(func() error {
		recent, err := s.Recent(gctx, DefaultRecentLimit)
		if err != nil {
			s.logger.Warn("Recently played unavailable", zap.Error(err))
			return nil
		}
		out.Recent = recent
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ParseTimeRange maps the query value to a time range; empty means medium.
func ParseTimeRange(raw string) (core.TimeRange, error) {
	return resolveRange(core.TimeRange(raw))
}

func resolveRange(r core.TimeRange) (core.TimeRange, error) {
	if r == "" {
		return core.TimeRangeMedium, nil
	}
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidTimeRange, r)
	}
	return r, nil
}

func clamp(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return min(limit, maxLimit)
}
