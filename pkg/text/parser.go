// Package text parses user-supplied Spotify references: URIs, open.spotify.com
// links and genre tags.
package text

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	// MinPartsForURI is the number of colon separated parts of "spotify:kind:id"
	MinPartsForURI = 3
	// GenrePrefix marks a genre reference
	GenrePrefix = "genre:"
)

type Kind string

const (
	KindTrack    Kind = "track"
	KindArtist   Kind = "artist"
	KindAlbum    Kind = "album"
	KindPlaylist Kind = "playlist"
	KindGenre    Kind = "genre"
)

var (
	ErrEmptyReference   = errors.New("empty reference")
	ErrInvalidReference = errors.New("not a spotify reference")

	idRegex         = regexp.MustCompile(`^[A-Za-z0-9]{1,64}$`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
	genreRegex      = regexp.MustCompile(`[^a-z0-9&\- ]+`)

	spotifyDomains = map[string]bool{
		"open.spotify.com": true,
		"play.spotify.com": true,
		"spotify.com":      true,
	}

	knownKinds = map[string]Kind{
		"track":    KindTrack,
		"artist":   KindArtist,
		"album":    KindAlbum,
		"playlist": KindPlaylist,
	}
)

// Reference is a parsed pointer to a catalog object or a genre.
type Reference struct {
	Kind Kind
	ID   string
}

// URI renders the reference in spotify:kind:id form. Genres render as genre:name.
func (r Reference) URI() string {
	if r.Kind == KindGenre {
		return GenrePrefix + r.ID
	}
	return fmt.Sprintf("spotify:%s:%s", r.Kind, r.ID)
}

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// Parse accepts spotify:kind:id URIs, open.spotify.com links (with or without
// a locale segment such as /intl-fr/) and genre:name tags.
func (p *Parser) Parse(raw string) (Reference, error) {
	s := p.normalizeText(raw)
	if s == "" {
		return Reference{}, ErrEmptyReference
	}

	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, GenrePrefix):
		genre := NormalizeGenre(s[len(GenrePrefix):])
		if genre == "" {
			return Reference{}, fmt.Errorf("%w: empty genre", ErrInvalidReference)
		}
		return Reference{Kind: KindGenre, ID: genre}, nil

	case strings.HasPrefix(lower, "spotify:"):
		return p.parseURI(s)

	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return p.parseURL(s)
	}

	return Reference{}, fmt.Errorf("%w: %q", ErrInvalidReference, s)
}

func (p *Parser) parseURI(s string) (Reference, error) {
	parts := strings.Split(s, ":")
	if len(parts) < MinPartsForURI {
		return Reference{}, fmt.Errorf("%w: %q", ErrInvalidReference, s)
	}

	// spotify:user:<name>:playlist:<id> is the legacy playlist form
	kindPart, id := parts[1], parts[2]
	if kindPart == "user" && len(parts) >= 5 {
		kindPart, id = parts[3], parts[4]
	}

	return p.build(kindPart, id)
}

func (p *Parser) parseURL(s string) (Reference, error) {
	u, err := url.Parse(s)
	if err != nil {
		return Reference{}, fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if !spotifyDomains[host] {
		return Reference{}, fmt.Errorf("%w: host %q", ErrInvalidReference, host)
	}

	pathParts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, part := range pathParts {
		if _, ok := knownKinds[part]; ok && i+1 < len(pathParts) {
			return p.build(part, pathParts[i+1])
		}
	}

	return Reference{}, fmt.Errorf("%w: path %q", ErrInvalidReference, u.Path)
}

func (p *Parser) build(kindPart, id string) (Reference, error) {
	kind, ok := knownKinds[strings.ToLower(kindPart)]
	if !ok {
		return Reference{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidReference, kindPart)
	}
	if idx := strings.IndexAny(id, "?#"); idx != -1 {
		id = id[:idx]
	}
	if !idRegex.MatchString(id) {
		return Reference{}, fmt.Errorf("%w: bad id %q", ErrInvalidReference, id)
	}
	return Reference{Kind: kind, ID: id}, nil
}

func (p *Parser) normalizeText(s string) string {
	s = norm.NFKC.String(s)
	s = strings.TrimSpace(s)
	return strings.TrimRight(s, ".,!?;")
}

// NormalizeGenre lowercases a genre name and collapses whitespace, keeping the
// characters Spotify genre tags use ("hip-hop", "r&b", "drum and bass").
func NormalizeGenre(s string) string {
	s = norm.NFKC.String(s)
	s = strings.ToLower(strings.TrimSpace(s))
	s = genreRegex.ReplaceAllString(s, "")
	s = whitespaceRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// TrackURI turns a bare id or any track reference into spotify:track:id.
func (p *Parser) TrackURI(s string) (string, error) {
	s = p.normalizeText(s)
	if idRegex.MatchString(s) {
		return "spotify:track:" + s, nil
	}
	ref, err := p.Parse(s)
	if err != nil {
		return "", err
	}
	if ref.Kind != KindTrack {
		return "", fmt.Errorf("%w: expected track, got %s", ErrInvalidReference, ref.Kind)
	}
	return ref.URI(), nil
}
