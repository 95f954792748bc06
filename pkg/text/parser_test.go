package text

import (
	"errors"
	"testing"
)

// runStringTransformationTest is a helper to run tests for string transformation functions.
func runStringTransformationTest(t *testing.T, testName string,
	transformFunc func(string) string, testCases []struct {
		name     string
		input    string
		expected string
	}) {
	t.Helper()
	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			result := transformFunc(tt.input)
			if result != tt.expected {
				t.Errorf("%s() = %q, want %q", testName, result, tt.expected)
			}
		})
	}
}

func TestParser_Parse(t *testing.T) {
	parser := NewParser()

	tests := []struct {
		name     string
		input    string
		expected Reference
	}{
		{
			"Artist URI",
			"spotify:artist:0TnOYISbd1XYRBk9myaseg",
			Reference{Kind: KindArtist, ID: "0TnOYISbd1XYRBk9myaseg"},
		},
		{
			"Track URI",
			"spotify:track:4uLU6hMCjMI75M1A2tKUQC",
			Reference{Kind: KindTrack, ID: "4uLU6hMCjMI75M1A2tKUQC"},
		},
		{
			"Legacy user playlist URI",
			"spotify:user:someone:playlist:37i9dQZF1DXcBWIGoYBM5M",
			Reference{Kind: KindPlaylist, ID: "37i9dQZF1DXcBWIGoYBM5M"},
		},
		{
			"Track link with tracking params",
			"https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC?si=abc123&utm_source=copy",
			Reference{Kind: KindTrack, ID: "4uLU6hMCjMI75M1A2tKUQC"},
		},
		{
			"Localized artist link",
			"https://open.spotify.com/intl-fr/artist/0TnOYISbd1XYRBk9myaseg",
			Reference{Kind: KindArtist, ID: "0TnOYISbd1XYRBk9myaseg"},
		},
		{
			"Playlist link with trailing punctuation",
			"  https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M.  ",
			Reference{Kind: KindPlaylist, ID: "37i9dQZF1DXcBWIGoYBM5M"},
		},
		{
			"Genre tag",
			"genre:Hip-Hop",
			Reference{Kind: KindGenre, ID: "hip-hop"},
		},
		{
			"Genre tag with spaces",
			"GENRE:  Drum   and Bass ",
			Reference{Kind: KindGenre, ID: "drum and bass"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parser.Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParser_ParseInvalid(t *testing.T) {
	parser := NewParser()

	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"Empty", "   ", ErrEmptyReference},
		{"Free text", "some song name", ErrInvalidReference},
		{"Other host", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", ErrInvalidReference},
		{"Unknown kind", "spotify:show:4rOoJ6Egrf8K2IrywzwOMk", ErrInvalidReference},
		{"Short URI", "spotify:track", ErrInvalidReference},
		{"Bad id", "spotify:track:not-an-id!", ErrInvalidReference},
		{"Empty genre", "genre:   ", ErrInvalidReference},
		{"Spotify link without id", "https://open.spotify.com/track/", ErrInvalidReference},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parser.Parse(tt.input); !errors.Is(err, tt.wantErr) {
				t.Errorf("Parse(%q) error = %v, want %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestReference_URI(t *testing.T) {
	tests := []struct {
		ref      Reference
		expected string
	}{
		{Reference{Kind: KindTrack, ID: "abc"}, "spotify:track:abc"},
		{Reference{Kind: KindArtist, ID: "def"}, "spotify:artist:def"},
		{Reference{Kind: KindGenre, ID: "rock"}, "genre:rock"},
	}

	for _, tt := range tests {
		if got := tt.ref.URI(); got != tt.expected {
			t.Errorf("URI() = %q, want %q", got, tt.expected)
		}
	}
}

func TestNormalizeGenre(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Lowercase", "ROCK", "rock"},
		{"Keeps hyphen", "Hip-Hop", "hip-hop"},
		{"Keeps ampersand", "R&B", "r&b"},
		{"Collapses whitespace", "  deep   house ", "deep house"},
		{"Drops punctuation", "k-pop!!", "k-pop"},
		{"Fullwidth letters", "ｊａｚｚ", "jazz"},
	}

	runStringTransformationTest(t, "NormalizeGenre", NormalizeGenre, tests)
}

func TestParser_TrackURI(t *testing.T) {
	parser := NewParser()

	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{"Bare id", "4uLU6hMCjMI75M1A2tKUQC", "spotify:track:4uLU6hMCjMI75M1A2tKUQC", false},
		{"URI", "spotify:track:4uLU6hMCjMI75M1A2tKUQC", "spotify:track:4uLU6hMCjMI75M1A2tKUQC", false},
		{"Link", "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC", "spotify:track:4uLU6hMCjMI75M1A2tKUQC", false},
		{"Artist is rejected", "spotify:artist:0TnOYISbd1XYRBk9myaseg", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parser.TrackURI(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("TrackURI(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.expected {
				t.Errorf("TrackURI(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
