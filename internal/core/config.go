package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"spotyfusion/internal/i18n"
)

const (
	// DefaultMarket is the market used for artist top tracks when none is given
	DefaultMarket = "FR"
	// DefaultRecommendationLimit is the number of scored results returned by default
	DefaultRecommendationLimit = 20
	// DefaultGenreSearchLimit is the page size of the genre search query
	DefaultGenreSearchLimit = 50
	// DefaultArtistCacheSize bounds the artist genre cache
	DefaultArtistCacheSize = 2048

	// DefaultSDKTimeoutSecs bounds the wait for the playback runtime
	DefaultSDKTimeoutSecs = 10
	// DefaultReadyTimeoutSecs bounds the wait for the device ready event
	DefaultReadyTimeoutSecs = 15
	// DefaultVisibilityAttempts is how often the device list is polled after ready
	DefaultVisibilityAttempts = 20
	// DefaultVisibilityIntervalMs is the delay between device list polls
	DefaultVisibilityIntervalMs = 500
	// DefaultTransferSettleMs is the pause after a successful transfer
	DefaultTransferSettleMs = 500
	// DefaultPlayRetryDelayMs is the pause before the retried play command
	DefaultPlayRetryDelayMs = 1000
	// DefaultStartPositionMs is where playback starts inside a track
	DefaultStartPositionMs = 10000
	// DefaultRetryStartPositionMs is the offset of the play retried after a 404
	DefaultRetryStartPositionMs = 30000
	// DefaultDeviceName is the name the playback device registers with
	DefaultDeviceName = "SpotyFusion Blind Test"
	// DefaultDeviceVolume is the initial volume of the playback device
	DefaultDeviceVolume = 0.8

	// DefaultQuizQuestions is the number of questions per game
	DefaultQuizQuestions = 10
	// DefaultQuizTimePerQuestionSecs is the answer budget per question
	DefaultQuizTimePerQuestionSecs = 30
	// DefaultQuizBasePoints is awarded for every correct answer
	DefaultQuizBasePoints = 3
	// DefaultQuizAdvanceDelayMs is the pause between two questions
	DefaultQuizAdvanceDelayMs = 1500
	// DefaultQuizMinPlaylistTracks filters playlists offered for a game
	DefaultQuizMinPlaylistTracks = 10

	// DefaultFloodLimitPerMinute limits recommendation requests per client
	DefaultFloodLimitPerMinute = 12
	// DefaultExportLimitPerMinute limits playlist exports per client
	DefaultExportLimitPerMinute = 4
)

const maxPort = 65535

// StoreBackends lists the accepted values of StoreConfig.Backend.
var StoreBackends = []string{"memory", "file", "sqlite", "postgres", "redis"}

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Spotify   SpotifyConfig
	Store     StoreConfig
	Player    PlayerConfig
	Quiz      QuizConfig
	Recommend RecommendConfig
	Server    ServerConfig
	Log       LogConfig
	App       AppConfig
}

type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	APIBaseURL   string
	Market       string
}

// StoreConfig selects the token store backend: memory, file, sqlite, postgres or redis.
type StoreConfig struct {
	Backend       string
	Path          string
	DSN           string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

type PlayerConfig struct {
	DeviceName         string
	Volume             float64
	SDKTimeout         time.Duration
	ReadyTimeout       time.Duration
	VisibilityAttempts int
	VisibilityInterval time.Duration
	TransferSettle     time.Duration
	PlayRetryDelay     time.Duration
	StartPositionMs    int

	// RetryStartPositionMs applies to the play retried on a stale device
	RetryStartPositionMs int
}

type QuizConfig struct {
	Questions         int
	TimePerQuestion   time.Duration
	BasePoints        int
	AdvanceDelay      time.Duration
	MinPlaylistTracks int
}

type RecommendConfig struct {
	DefaultLimit     int
	GenreSearchLimit int
	ArtistCacheSize  int
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type AppConfig struct {
	Language            string
	FloodLimitPerMinute  int
	ExportLimitPerMinute int
}

func DefaultConfig() *Config {
	return &Config{
		Spotify: SpotifyConfig{
			RedirectURL: "http://127.0.0.1:8080/callback",
			APIBaseURL:  "https://api.spotify.com/v1",
			Market:      DefaultMarket,
		},
		Store: StoreConfig{
			Backend: "file",
			Path:    "./spotyfusion_tokens.json",
		},
		Player: PlayerConfig{
			DeviceName:         DefaultDeviceName,
			Volume:             DefaultDeviceVolume,
			SDKTimeout:         DefaultSDKTimeoutSecs * time.Second,
			ReadyTimeout:       DefaultReadyTimeoutSecs * time.Second,
			VisibilityAttempts: DefaultVisibilityAttempts,
			VisibilityInterval: DefaultVisibilityIntervalMs * time.Millisecond,
			TransferSettle:     DefaultTransferSettleMs * time.Millisecond,
			PlayRetryDelay:     DefaultPlayRetryDelayMs * time.Millisecond,
			StartPositionMs:    DefaultStartPositionMs,

			RetryStartPositionMs: DefaultRetryStartPositionMs,
		},
		Quiz: QuizConfig{
			Questions:         DefaultQuizQuestions,
			TimePerQuestion:   DefaultQuizTimePerQuestionSecs * time.Second,
			BasePoints:        DefaultQuizBasePoints,
			AdvanceDelay:      DefaultQuizAdvanceDelayMs * time.Millisecond,
			MinPlaylistTracks: DefaultQuizMinPlaylistTracks,
		},
		Recommend: RecommendConfig{
			DefaultLimit:     DefaultRecommendationLimit,
			GenreSearchLimit: DefaultGenreSearchLimit,
			ArtistCacheSize:  DefaultArtistCacheSize,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		App: AppConfig{
			Language:             i18n.DefaultLanguage,
			FloodLimitPerMinute:  DefaultFloodLimitPerMinute,
			ExportLimitPerMinute: DefaultExportLimitPerMinute,
		},
	}
}

// Validate checks the settings a run cannot start without.
func (c *Config) Validate() error {
	if c.Spotify.ClientID == "" {
		return fmt.Errorf("%w: spotify client ID is required", ErrInvalidConfig)
	}
	if err := c.Store.validate(); err != nil {
		return err
	}
	if c.Player.SDKTimeout <= 0 || c.Player.ReadyTimeout <= 0 {
		return fmt.Errorf("%w: player timeouts must be positive", ErrInvalidConfig)
	}
	if c.Player.VisibilityAttempts <= 0 {
		return fmt.Errorf("%w: player visibility attempts must be positive", ErrInvalidConfig)
	}
	if c.Player.Volume < 0 || c.Player.Volume > 1 {
		return fmt.Errorf("%w: player volume must be between 0 and 1", ErrInvalidConfig)
	}
	if c.Quiz.Questions <= 0 || c.Quiz.TimePerQuestion <= 0 {
		return fmt.Errorf("%w: quiz needs at least one question and a positive time budget", ErrInvalidConfig)
	}
	if c.Recommend.DefaultLimit <= 0 || c.Recommend.ArtistCacheSize <= 0 {
		return fmt.Errorf("%w: recommendation limit and cache size must be positive", ErrInvalidConfig)
	}
	if c.Server.Port <= 0 || c.Server.Port > maxPort {
		return fmt.Errorf("%w: server port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if !i18n.IsSupported(c.App.Language) {
		return fmt.Errorf("%w: unsupported language %q", ErrInvalidConfig, c.App.Language)
	}
	return nil
}

func (s StoreConfig) validate() error {
	backend := strings.ToLower(strings.TrimSpace(s.Backend))
	switch backend {
	case "", "memory":
	case "file", "sqlite", "sqlite3":
		if s.Path == "" && s.DSN == "" {
			return fmt.Errorf("%w: store path is required for backend %s", ErrInvalidConfig, s.Backend)
		}
	case "postgres", "postgresql":
		if s.DSN == "" {
			return fmt.Errorf("%w: store DSN is required for backend postgres", ErrInvalidConfig)
		}
	case "redis":
		if s.RedisAddr == "" {
			return fmt.Errorf("%w: redis address is required for backend redis", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store backend %q", ErrInvalidConfig, s.Backend)
	}
	return nil
}
