package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"spotyfusion/internal/core"
	"spotyfusion/internal/metrics"
	"spotyfusion/internal/spotify"
	"spotyfusion/internal/store"
	"spotyfusion/pkg/text"
)

const (
	trackURIPrefix = "spotify:track:"
	dedupFalsePos  = 0.001
	minDedupSize   = 1000
)

var ErrNothingToExport = errors.New("no tracks to export")

// Exporter writes recommendation results to playlists.
type Exporter struct {
	catalog core.CatalogClient
	parser  *text.Parser
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

func NewExporter(catalog core.CatalogClient, m *metrics.Metrics, logger *zap.Logger) *Exporter {
	return &Exporter{
		catalog: catalog,
		parser:  text.NewParser(),
		metrics: m,
		logger:  logger.Named("export"),
		now:     time.Now,
	}
}

// URIs lists the play URIs of results in order.
func URIs(results []ScoredResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Track.PlayURI()
	}
	return out
}

// SaveAsPlaylist creates a playlist for the current user and fills it with
// tracks, which may be ids, URIs or links. Empty name and description get
// dated defaults.
func (e *Exporter) SaveAsPlaylist(ctx context.Context, name, description string, public bool, tracks []string) (*core.Playlist, error) {
	uris, err := e.normalize(tracks)
	if err != nil {
		return nil, err
	}
	if len(uris) == 0 {
		return nil, ErrNothingToExport
	}

	user, err := e.catalog.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get user profile: %w", err)
	}

	if strings.TrimSpace(name) == "" {
		name = "SpotyFusion Recommendations - " + e.now().Format(time.DateOnly)
	}
	if description == "" {
		description = fmt.Sprintf("Generated playlist with %d recommendations based on your preferences.", len(uris))
	}

	playlist, err := e.catalog.CreatePlaylist(ctx, user.ID, name, description, public)
	if err != nil {
		return nil, fmt.Errorf("failed to create playlist: %w", err)
	}

	if err := e.addInChunks(ctx, playlist.ID, uris); err != nil {
		return playlist, err
	}
	playlist.TrackCount = len(uris)

	e.metrics.RecordExport("create")
	e.logger.Info("Playlist created",
		zap.String("playlistID", playlist.ID),
		zap.Int("tracks", len(uris)))
	return playlist, nil
}

// AppendToPlaylist adds the tracks not already in the playlist and returns how
// many were added.
func (e *Exporter) AppendToPlaylist(ctx context.Context, playlistID string, tracks []string) (int, error) {
	uris, err := e.normalize(tracks)
	if err != nil {
		return 0, err
	}
	if len(uris) == 0 {
		return 0, ErrNothingToExport
	}

	existing, err := e.catalog.PlaylistTracks(ctx, playlistID, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to load playlist items: %w", err)
	}

	dedup := store.NewDedupStore(max(minDedupSize, len(existing)+len(uris)), dedupFalsePos)
	existingIDs := make([]string, 0, len(existing))
	for _, t := range existing {
		existingIDs = append(existingIDs, t.ID)
	}
	dedup.Load(existingIDs)

	ids := make([]string, len(uris))
	for i, uri := range uris {
		ids[i] = strings.TrimPrefix(uri, trackURIPrefix)
	}
	fresh := dedup.Filter(ids)
	if len(fresh) == 0 {
		e.logger.Debug("Nothing new to append", zap.String("playlistID", playlistID))
		return 0, nil
	}

	freshURIs := make([]string, len(fresh))
	for i, id := range fresh {
		freshURIs[i] = trackURIPrefix + id
	}
	if err := e.addInChunks(ctx, playlistID, freshURIs); err != nil {
		return 0, err
	}

	e.metrics.RecordExport("append")
	e.logger.Info("Tracks appended",
		zap.String("playlistID", playlistID),
		zap.Int("added", len(fresh)),
		zap.Int("skipped", len(uris)-len(fresh)))
	return len(fresh), nil
}

func (e *Exporter) addInChunks(ctx context.Context, playlistID string, uris []string) error {
	for start := 0; start < len(uris); start += spotify.MaxTracksPerAdd {
		end := min(start+spotify.MaxTracksPerAdd, len(uris))
		if err := e.catalog.AddTracksToPlaylist(ctx, playlistID, uris[start:end]); err != nil {
			return fmt.Errorf("failed to add tracks %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// normalize turns ids, URIs and links into unique track URIs, keeping order.
func (e *Exporter) normalize(tracks []string) ([]string, error) {
	seen := make(map[string]struct{}, len(tracks))
	uris := make([]string, 0, len(tracks))
	for _, t := range tracks {
		uri, err := e.parser.TrackURI(t)
		if err != nil {
			return nil, fmt.Errorf("invalid track %q: %w", t, err)
		}
		if _, ok := seen[uri]; ok {
			continue
		}
		seen[uri] = struct{}{}
		uris = append(uris, uri)
	}
	return uris, nil
}
