// Package http exposes health, metrics, the player bridge and the JSON API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"spotyfusion/internal/core"
	"spotyfusion/internal/flood"
	"spotyfusion/internal/metrics"
	"spotyfusion/internal/player"
	"spotyfusion/internal/quiz"
	"spotyfusion/internal/recommend"
	"spotyfusion/internal/stats"
)

const (
	serviceName     = "spotyfusion"
	shutdownTimeout = 10 * time.Second
	playerPagePath  = "/player"
	playerWSPath    = "/player/ws"
)

type PlayerControl interface {
	Status() player.Status
	Reconnect(ctx context.Context) bool
	Pause(ctx context.Context)
}

// Bridge hosts the page running the playback SDK.
type Bridge interface {
	HandleWebSocket(w http.ResponseWriter, r *http.Request)
	HandlePage(wsPath string) http.HandlerFunc
	Connected() bool
}

type Recommender interface {
	Recommend(ctx context.Context, req recommend.Request) ([]recommend.ScoredResult, error)
}

type Exporter interface {
	SaveAsPlaylist(ctx context.Context, name, description string, public bool, tracks []string) (*core.Playlist, error)
	AppendToPlaylist(ctx context.Context, playlistID string, tracks []string) (int, error)
}

type SeedSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]recommend.Seed, error)
}

type Stats interface {
	Profile(ctx context.Context) (*core.UserProfile, error)
	TopArtists(ctx context.Context, timeRange core.TimeRange, limit int) ([]core.Artist, error)
	TopTracks(ctx context.Context, timeRange core.TimeRange, limit int) ([]core.Track, error)
	Recent(ctx context.Context, limit int) ([]core.RecentlyPlayed, error)
	Playlists(ctx context.Context, limit int) ([]core.Playlist, error)
	Overview(ctx context.Context, timeRange core.TimeRange) (*stats.Overview, error)
}

type Quiz interface {
	Playlists(ctx context.Context) ([]core.Playlist, error)
	Start(ctx context.Context, playlistID string) (*quiz.Session, error)
	Get(id string) (*quiz.Session, error)
	Answer(id, trackID string) (quiz.AnswerResult, error)
	Reset(id string) error
}

// Authenticator runs the authorization code login.
type Authenticator interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) error
}

// Services are the handlers' collaborators. A nil service leaves its routes
// unregistered.
type Services struct {
	Player      PlayerControl
	Bridge      Bridge
	Recommender Recommender
	Exporter    Exporter
	Seeds       SeedSearcher
	Stats       Stats
	Quiz        Quiz
	Auth        Authenticator
	Floodgate   *flood.Floodgate
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	Language    string
}

type Server struct {
	config *core.ServerConfig
	logger *zap.Logger
	server *http.Server
}

func NewServer(config *core.ServerConfig, services *Services, logger *zap.Logger) *Server {
	logger = logger.Named("http")
	mux := setupRoutes(services, logger)

	return &Server{
		config: config,
		logger: logger,
		server: createHTTPServer(config, mux),
	}
}

func createHTTPServer(config *core.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
}

func setupRoutes(services *Services, logger *zap.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", statusHandler(`{"status":"ok","service":"`+serviceName+`"}`))
	mux.HandleFunc("GET /readyz", statusHandler(`{"status":"ready","service":"`+serviceName+`"}`))

	gatherer := services.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	if services.Bridge != nil {
		mux.HandleFunc("GET "+playerPagePath, services.Bridge.HandlePage(playerWSPath))
		mux.HandleFunc("GET "+playerWSPath, services.Bridge.HandleWebSocket)
	}

	newAPI(services, logger).register(mux)

	mux.HandleFunc("GET /{$}", homeHandler(logger))

	return mux
}

func statusHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	}
}

func homeHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(homePage)); err != nil {
			logger.Debug("Failed to write home page", zap.Error(err))
		}
	}
}

const homePage = `<!DOCTYPE html>
<html>
<head>
    <title>SpotyFusion</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; }
        .endpoint { margin: 10px 0; }
        .endpoint a { text-decoration: none; color: #1db954; }
    </style>
</head>
<body>
    <h1>SpotyFusion</h1>
    <p>Statistics, blind test and recommendations for Spotify.</p>

    <h2>Endpoints</h2>
    <div class="endpoint"><a href="/player">Player</a> - keep open to play the blind test</div>
    <div class="endpoint"><a href="/login">Login</a> - connect your Spotify account</div>
    <div class="endpoint"><a href="/metrics">Metrics</a> - Prometheus metrics</div>
    <div class="endpoint"><a href="/healthz">Health</a> - health check</div>
    <div class="endpoint"><a href="/readyz">Ready</a> - readiness check</div>
</body>
</html>`

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		zap.String("addr", s.server.Addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown HTTP server gracefully", zap.Error(err))
		}
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

// Handler exposes the routes for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}
