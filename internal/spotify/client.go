// Package spotify provides Spotify Web API integration: catalog reads and
// playlist writes through zmb3/spotify, player commands through a small
// bearer-token REST helper.
package spotify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/zmb3/spotify/v2"
	"go.uber.org/zap"

	"spotyfusion/internal/core"
)

const (
	// MaxArtistsPerRequest is the id limit of GET /artists
	MaxArtistsPerRequest = 50
	// MaxPlaylistItemsPage is the page size used when listing playlist items
	MaxPlaylistItemsPage = 100
	// MaxTracksPerAdd is the URI limit of POST /playlists/{id}/tracks
	MaxTracksPerAdd = 100
	// MaxPageLimit is the largest limit the paging endpoints accept
	MaxPageLimit = 50
)

type Client struct {
	config *core.SpotifyConfig
	logger *zap.Logger
	client *spotify.Client
}

// NewClient builds a catalog client whose requests carry credentials from creds.
func NewClient(config *core.SpotifyConfig, creds core.CredentialProvider, logger *zap.Logger) *Client {
	httpClient := &http.Client{
		Transport: NewAuthTransport(creds, http.DefaultTransport, logger),
		Timeout:   30 * time.Second,
	}
	return NewClientWithHTTP(config, httpClient, logger)
}

// NewClientWithHTTP builds a catalog client on an already authorized HTTP client.
func NewClientWithHTTP(config *core.SpotifyConfig, httpClient *http.Client, logger *zap.Logger) *Client {
	opts := []spotify.ClientOption{}
	if config.APIBaseURL != "" {
		opts = append(opts, spotify.WithBaseURL(strings.TrimSuffix(config.APIBaseURL, "/")+"/"))
	}

	return &Client{
		config: config,
		logger: logger.Named("spotify"),
		client: spotify.New(httpClient, opts...),
	}
}

func (c *Client) CurrentUser(ctx context.Context) (*core.UserProfile, error) {
	user, err := c.client.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}

	return &core.UserProfile{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Product:     user.Product,
		Country:     user.Country,
		Followers:   int(user.Followers.Count), //nolint:gosec // follower counts fit in int
	}, nil
}

func (c *Client) TopArtists(ctx context.Context, timeRange core.TimeRange, limit int) ([]core.Artist, error) {
	page, err := c.client.CurrentUsersTopArtists(ctx,
		spotify.Timerange(spotify.Range(timeRange)), spotify.Limit(clampLimit(limit)))
	if err != nil {
		return nil, fmt.Errorf("failed to get top artists: %w", err)
	}

	artists := make([]core.Artist, 0, len(page.Artists))
	for i := range page.Artists {
		artists = append(artists, convertArtist(&page.Artists[i]))
	}
	return artists, nil
}

func (c *Client) TopTracks(ctx context.Context, timeRange core.TimeRange, limit int) ([]core.Track, error) {
	page, err := c.client.CurrentUsersTopTracks(ctx,
		spotify.Timerange(spotify.Range(timeRange)), spotify.Limit(clampLimit(limit)))
	if err != nil {
		return nil, fmt.Errorf("failed to get top tracks: %w", err)
	}
	return convertFullTracks(page.Tracks), nil
}

func (c *Client) RecentlyPlayed(ctx context.Context, limit int) ([]core.RecentlyPlayed, error) {
	items, err := c.client.PlayerRecentlyPlayedOpt(ctx, &spotify.RecentlyPlayedOptions{Limit: clampLimit(limit)})
	if err != nil {
		return nil, fmt.Errorf("failed to get recently played: %w", err)
	}

	played := make([]core.RecentlyPlayed, 0, len(items))
	for i := range items {
		played = append(played, core.RecentlyPlayed{
			Track:    convertSimpleTrack(&items[i].Track),
			PlayedAt: items[i].PlayedAt,
		})
	}
	return played, nil
}

func (c *Client) UserPlaylists(ctx context.Context, limit int) ([]core.Playlist, error) {
	page, err := c.client.CurrentUsersPlaylists(ctx, spotify.Limit(clampLimit(limit)))
	if err != nil {
		return nil, fmt.Errorf("failed to get playlists: %w", err)
	}

	playlists := make([]core.Playlist, 0, len(page.Playlists))
	for i := range page.Playlists {
		p := &page.Playlists[i]
		playlist := core.Playlist{
			ID:         string(p.ID),
			Name:       p.Name,
			Owner:      p.Owner.DisplayName,
			TrackCount: int(p.Tracks.Total), //nolint:gosec // playlist sizes fit in int
		}
		if len(p.Images) > 0 {
			playlist.ImageURL = p.Images[0].URL
		}
		playlists = append(playlists, playlist)
	}
	return playlists, nil
}

// PlaylistTracks pages through a playlist. A non-positive limit reads all of it.
// Episodes and removed items are skipped.
func (c *Client) PlaylistTracks(ctx context.Context, playlistID string, limit int) ([]core.Track, error) {
	var tracks []core.Track
	offset := 0

	for {
		items, err := c.client.GetPlaylistItems(ctx, spotify.ID(playlistID),
			spotify.Limit(MaxPlaylistItemsPage), spotify.Offset(offset))
		if err != nil {
			return nil, fmt.Errorf("failed to get playlist items: %w", err)
		}

		for i := range items.Items {
			if t := items.Items[i].Track.Track; t != nil && t.ID != "" {
				tracks = append(tracks, convertFullTrack(t))
				if limit > 0 && len(tracks) >= limit {
					return tracks, nil
				}
			}
		}

		if len(items.Items) < MaxPlaylistItemsPage {
			break
		}
		offset += MaxPlaylistItemsPage
	}

	c.logger.Debug("Retrieved playlist tracks",
		zap.String("playlistID", playlistID),
		zap.Int("count", len(tracks)))
	return tracks, nil
}

func (c *Client) SearchTracks(ctx context.Context, query string, limit int) ([]core.Track, error) {
	results, err := c.client.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(clampLimit(limit)))
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	if results.Tracks == nil {
		return nil, nil
	}
	return convertFullTracks(results.Tracks.Tracks), nil
}

func (c *Client) SearchArtists(ctx context.Context, query string, limit int) ([]core.Artist, error) {
	results, err := c.client.Search(ctx, query, spotify.SearchTypeArtist, spotify.Limit(clampLimit(limit)))
	if err != nil {
		return nil, fmt.Errorf("artist search failed: %w", err)
	}
	if results.Artists == nil {
		return nil, nil
	}

	artists := make([]core.Artist, 0, len(results.Artists.Artists))
	for i := range results.Artists.Artists {
		artists = append(artists, convertArtist(&results.Artists.Artists[i]))
	}
	return artists, nil
}

// Artists fetches full artist objects. Callers chunk ids to MaxArtistsPerRequest.
func (c *Client) Artists(ctx context.Context, ids []string) ([]core.Artist, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > MaxArtistsPerRequest {
		return nil, fmt.Errorf("too many artist ids: %d > %d", len(ids), MaxArtistsPerRequest)
	}

	spotifyIDs := make([]spotify.ID, len(ids))
	for i, id := range ids {
		spotifyIDs[i] = spotify.ID(id)
	}

	full, err := c.client.GetArtists(ctx, spotifyIDs...)
	if err != nil {
		return nil, fmt.Errorf("failed to get artists: %w", err)
	}

	artists := make([]core.Artist, 0, len(full))
	for _, a := range full {
		if a == nil {
			continue
		}
		artists = append(artists, convertArtist(a))
	}
	return artists, nil
}

func (c *Client) ArtistTopTracks(ctx context.Context, artistID, market string) ([]core.Track, error) {
	if market == "" {
		market = c.config.Market
	}
	if market == "" {
		market = core.DefaultMarket
	}

	tracks, err := c.client.GetArtistsTopTracks(ctx, spotify.ID(artistID), market)
	if err != nil {
		return nil, fmt.Errorf("failed to get top tracks for artist %s: %w", artistID, err)
	}
	return convertFullTracks(tracks), nil
}

func (c *Client) CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (*core.Playlist, error) {
	playlist, err := c.client.CreatePlaylistForUser(ctx, userID, name, description, public, false)
	if err != nil {
		return nil, fmt.Errorf("failed to create playlist: %w", err)
	}

	c.logger.Info("Playlist created",
		zap.String("playlistID", string(playlist.ID)),
		zap.String("name", playlist.Name))

	return &core.Playlist{
		ID:    string(playlist.ID),
		Name:  playlist.Name,
		Owner: playlist.Owner.DisplayName,
	}, nil
}

// AddTracksToPlaylist appends tracks given as URIs or bare ids.
func (c *Client) AddTracksToPlaylist(ctx context.Context, playlistID string, uris []string) error {
	if len(uris) == 0 {
		return nil
	}
	if len(uris) > MaxTracksPerAdd {
		return fmt.Errorf("too many tracks in one add: %d > %d", len(uris), MaxTracksPerAdd)
	}

	ids := make([]spotify.ID, len(uris))
	for i, uri := range uris {
		ids[i] = spotify.ID(strings.TrimPrefix(uri, "spotify:track:"))
	}

	if _, err := c.client.AddTracksToPlaylist(ctx, spotify.ID(playlistID), ids...); err != nil {
		return fmt.Errorf("failed to add tracks to playlist: %w", err)
	}

	c.logger.Info("Tracks added to playlist",
		zap.String("playlistID", playlistID),
		zap.Int("count", len(ids)))
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > MaxPageLimit {
		return MaxPageLimit
	}
	return limit
}

func convertArtist(a *spotify.FullArtist) core.Artist {
	artist := core.Artist{
		ID:         string(a.ID),
		Name:       a.Name,
		Genres:     a.Genres,
		Popularity: int(a.Popularity),
	}
	if len(a.Images) > 0 {
		artist.ImageURL = a.Images[0].URL
	}
	return artist
}

func convertFullTracks(tracks []spotify.FullTrack) []core.Track {
	out := make([]core.Track, 0, len(tracks))
	for i := range tracks {
		out = append(out, convertFullTrack(&tracks[i]))
	}
	return out
}

func convertFullTrack(track *spotify.FullTrack) core.Track {
	t := convertSimpleTrack(&track.SimpleTrack)
	t.Album = track.Album.Name
	if len(track.Album.Images) > 0 {
		t.ImageURL = track.Album.Images[0].URL
	}
	t.Playable = track.IsPlayable
	return t
}

func convertSimpleTrack(track *spotify.SimpleTrack) core.Track {
	artists := make([]core.ArtistRef, 0, len(track.Artists))
	for _, a := range track.Artists {
		artists = append(artists, core.ArtistRef{ID: string(a.ID), Name: a.Name})
	}

	return core.Track{
		ID:       string(track.ID),
		URI:      string(track.URI),
		Name:     track.Name,
		Artists:  artists,
		Duration: time.Duration(track.Duration) * time.Millisecond,
	}
}
