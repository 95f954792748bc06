// Package auth supplies bearer credentials for the Spotify Web API out of the
// token store, refreshing them through the OAuth2 token endpoint.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"spotyfusion/internal/core"
	"spotyfusion/internal/store"
)

// ErrNoRefreshToken is returned when a refresh is needed but the store has no refresh token.
var ErrNoRefreshToken = errors.New("no refresh token stored")

// Scopes are the permissions requested at login. Streaming and playback
// control are needed by the player; the rest by stats and playlist export.
var Scopes = []string{
	spotifyauth.ScopeStreaming,
	spotifyauth.ScopeUserReadEmail,
	spotifyauth.ScopeUserReadPrivate,
	spotifyauth.ScopeUserTopRead,
	spotifyauth.ScopeUserReadRecentlyPlayed,
	spotifyauth.ScopeUserReadPlaybackState,
	spotifyauth.ScopeUserModifyPlaybackState,
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopePlaylistModifyPublic,
	spotifyauth.ScopePlaylistModifyPrivate,
}

// Provider implements core.CredentialProvider over a token store.
type Provider struct {
	store  store.TokenStore
	oauth  *oauth2.Config
	logger *zap.Logger

	// refreshMu collapses concurrent refreshes into one token request.
	refreshMu sync.Mutex
}

func NewProvider(config *core.SpotifyConfig, tokens store.TokenStore, logger *zap.Logger) *Provider {
	return &Provider{
		store: tokens,
		oauth: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Scopes:       Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  spotifyauth.AuthURL,
				TokenURL: spotifyauth.TokenURL,
			},
		},
		logger: logger.Named("auth"),
	}
}

// WithTokenURL points refreshes at another token endpoint.
func (p *Provider) WithTokenURL(tokenURL string) *Provider {
	p.oauth.Endpoint.TokenURL = tokenURL
	return p
}

// Token returns the stored access token, refreshing when none is stored.
func (p *Provider) Token(ctx context.Context) (string, error) {
	token, err := p.store.Get(ctx, store.KeyAccessToken)
	if err == nil {
		return token, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("failed to read access token: %w", err)
	}

	p.logger.Debug("No access token stored, refreshing")
	return p.Refresh(ctx)
}

// Refresh exchanges the stored refresh token for a new access token and
// persists both. Spotify may rotate the refresh token.
func (p *Provider) Refresh(ctx context.Context) (string, error) {
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	refresh, err := p.store.Get(ctx, store.KeyRefreshToken)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrNoRefreshToken
	}
	if err != nil {
		return "", fmt.Errorf("failed to read refresh token: %w", err)
	}

	token, err := p.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refresh}).Token()
	if err != nil {
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}

	if err := p.Save(ctx, token); err != nil {
		return "", err
	}

	p.logger.Info("Access token refreshed", zap.Time("expiry", token.Expiry))
	return token.AccessToken, nil
}

// Save stores an access token and, when present, its refresh token.
func (p *Provider) Save(ctx context.Context, token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("empty token")
	}
	if err := p.store.Set(ctx, store.KeyAccessToken, token.AccessToken); err != nil {
		return fmt.Errorf("failed to save access token: %w", err)
	}
	if token.RefreshToken != "" {
		if err := p.store.Set(ctx, store.KeyRefreshToken, token.RefreshToken); err != nil {
			return fmt.Errorf("failed to save refresh token: %w", err)
		}
	}
	return nil
}

// Clear forgets both tokens.
func (p *Provider) Clear(ctx context.Context) error {
	if err := p.store.Delete(ctx, store.KeyAccessToken); err != nil {
		return err
	}
	return p.store.Delete(ctx, store.KeyRefreshToken)
}

// AuthURL returns the consent page URL for a login.
func (p *Provider) AuthURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

// Exchange trades an authorization code for tokens and stores them.
func (p *Provider) Exchange(ctx context.Context, code string) error {
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange code for token: %w", err)
	}
	return p.Save(ctx, token)
}
