package core

import (
	"context"
	"time"
)

type TimeRange string

const (
	// TimeRangeShort covers roughly the last four weeks
	TimeRangeShort TimeRange = "short_term"
	// TimeRangeMedium covers roughly the last six months
	TimeRangeMedium TimeRange = "medium_term"
	// TimeRangeLong covers several years of listening
	TimeRangeLong TimeRange = "long_term"
)

// Valid reports whether the time range is one the Web API accepts.
func (r TimeRange) Valid() bool {
	switch r {
	case TimeRangeShort, TimeRangeMedium, TimeRangeLong:
		return true
	}
	return false
}

type ArtistRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Track struct {
	ID       string        `json:"id"`
	URI      string        `json:"uri"`
	Name     string        `json:"name"`
	Artists  []ArtistRef   `json:"artists"`
	Album    string        `json:"album"`
	ImageURL string        `json:"imageUrl,omitempty"`
	Duration time.Duration `json:"duration"`
	// Playable is nil when the API did not say; only an explicit false excludes a track.
	Playable *bool `json:"playable,omitempty"`
}

// PrimaryArtistID returns the id of the first credited artist, or "".
func (t Track) PrimaryArtistID() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0].ID
}

// IsPlayable treats a missing playability flag as playable.
func (t Track) IsPlayable() bool {
	return t.Playable == nil || *t.Playable
}

// PlayURI returns the track URI, deriving it from the id when the API left it out.
func (t Track) PlayURI() string {
	if t.URI != "" {
		return t.URI
	}
	return "spotify:track:" + t.ID
}

type Artist struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Genres     []string `json:"genres"`
	Popularity int      `json:"popularity"`
	ImageURL   string   `json:"imageUrl,omitempty"`
}

type Playlist struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Owner      string `json:"owner"`
	TrackCount int    `json:"trackCount"`
	ImageURL   string `json:"imageUrl,omitempty"`
}

type UserProfile struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Product     string `json:"product"`
	Country     string `json:"country"`
	Followers   int    `json:"followers"`
}

// IsPremium reports whether the account can stream through the playback SDK.
func (u UserProfile) IsPremium() bool {
	return u.Product == "premium"
}

type RecentlyPlayed struct {
	Track    Track     `json:"track"`
	PlayedAt time.Time `json:"playedAt"`
}

type Device struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Active bool   `json:"active"`
}

// CredentialProvider hands out bearer tokens for the Web API.
type CredentialProvider interface {
	// Token returns the current access token, refreshing it when none is stored.
	Token(ctx context.Context) (string, error)
	// Refresh forces a refresh and returns the new access token.
	Refresh(ctx context.Context) (string, error)
}

// CatalogClient is the read and playlist-write side of the Web API.
type CatalogClient interface {
	CurrentUser(ctx context.Context) (*UserProfile, error)
	TopArtists(ctx context.Context, timeRange TimeRange, limit int) ([]Artist, error)
	TopTracks(ctx context.Context, timeRange TimeRange, limit int) ([]Track, error)
	RecentlyPlayed(ctx context.Context, limit int) ([]RecentlyPlayed, error)
	UserPlaylists(ctx context.Context, limit int) ([]Playlist, error)
	PlaylistTracks(ctx context.Context, playlistID string, limit int) ([]Track, error)
	SearchTracks(ctx context.Context, query string, limit int) ([]Track, error)
	SearchArtists(ctx context.Context, query string, limit int) ([]Artist, error)
	Artists(ctx context.Context, ids []string) ([]Artist, error)
	ArtistTopTracks(ctx context.Context, artistID, market string) ([]Track, error)
	CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (*Playlist, error)
	AddTracksToPlaylist(ctx context.Context, playlistID string, uris []string) error
}

// PlayerAPI is the bearer-token player side of the Web API. Every call reports the
// raw HTTP status so callers can react to 401/403/404 themselves.
type PlayerAPI interface {
	Devices(ctx context.Context, token string) ([]Device, int, error)
	TransferPlayback(ctx context.Context, token, deviceID string, play bool) (int, error)
	Play(ctx context.Context, token, deviceID string, uris []string, positionMs int) (int, error)
	Pause(ctx context.Context, token, deviceID string) (int, error)
}
