package recommend

import (
	"context"
	"errors"
	"sync"

	"spotyfusion/internal/core"
)

// mockCatalog serves canned catalog data and records calls.
type mockCatalog struct {
	mu sync.Mutex

	search       map[string][]core.Track
	searchErr    error
	topTracks    map[string][]core.Track
	topTracksErr map[string]error
	artists      map[string]core.Artist
	artistsErr   error
	foundArtists []core.Artist
	playlist     []core.Track
	user         *core.UserProfile

	searchCalls    []string
	topTrackCalls  []string
	artistsCalls   [][]string
	created        []string
	added          [][]string
	searchedLimits []int
}

func newMockCatalog() *mockCatalog {
	return &mockCatalog{
		search:       make(map[string][]core.Track),
		topTracks:    make(map[string][]core.Track),
		topTracksErr: make(map[string]error),
		artists:      make(map[string]core.Artist),
		user:         &core.UserProfile{ID: "user-1", Product: "premium"},
	}
}

func (m *mockCatalog) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.searchCalls) + len(m.topTrackCalls) + len(m.artistsCalls)
}

func (m *mockCatalog) CurrentUser(_ context.Context) (*core.UserProfile, error) {
	return m.user, nil
}

func (m *mockCatalog) TopArtists(_ context.Context, _ core.TimeRange, _ int) ([]core.Artist, error) {
	return nil, nil
}

func (m *mockCatalog) TopTracks(_ context.Context, _ core.TimeRange, _ int) ([]core.Track, error) {
	return nil, nil
}

func (m *mockCatalog) RecentlyPlayed(_ context.Context, _ int) ([]core.RecentlyPlayed, error) {
	return nil, nil
}

func (m *mockCatalog) UserPlaylists(_ context.Context, _ int) ([]core.Playlist, error) {
	return nil, nil
}

func (m *mockCatalog) PlaylistTracks(_ context.Context, _ string, _ int) ([]core.Track, error) {
	return m.playlist, nil
}

func (m *mockCatalog) SearchTracks(_ context.Context, query string, limit int) ([]core.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchCalls = append(m.searchCalls, query)
	m.searchedLimits = append(m.searchedLimits, limit)
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.search[query], nil
}

func (m *mockCatalog) SearchArtists(_ context.Context, _ string, _ int) ([]core.Artist, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.foundArtists, nil
}

func (m *mockCatalog) Artists(_ context.Context, ids []string) ([]core.Artist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.artistsCalls = append(m.artistsCalls, append([]string(nil), ids...))
	if m.artistsErr != nil {
		return nil, m.artistsErr
	}
	var out []core.Artist
	for _, id := range ids {
		if a, ok := m.artists[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockCatalog) ArtistTopTracks(_ context.Context, artistID, _ string) ([]core.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topTrackCalls = append(m.topTrackCalls, artistID)
	if err := m.topTracksErr[artistID]; err != nil {
		return nil, err
	}
	return m.topTracks[artistID], nil
}

func (m *mockCatalog) CreatePlaylist(_ context.Context, userID, name, _ string, _ bool) (*core.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, name)
	return &core.Playlist{ID: "pl-new", Name: name, Owner: userID}, nil
}

func (m *mockCatalog) AddTracksToPlaylist(_ context.Context, _ string, uris []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.added = append(m.added, append([]string(nil), uris...))
	return nil
}

var errUpstream = errors.New("upstream failure")

func track(id, artistID string) core.Track {
	return core.Track{
		ID:      id,
		URI:     "spotify:track:" + id,
		Name:    "Track " + id,
		Artists: []core.ArtistRef{{ID: artistID, Name: "Artist " + artistID}},
	}
}

func unplayable(t core.Track) core.Track {
	f := false
	t.Playable = &f
	return t
}

var _ core.CatalogClient = (*mockCatalog)(nil)
