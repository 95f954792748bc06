// Package main provides the SpotyFusion CLI application entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"spotyfusion/internal/auth"
	"spotyfusion/internal/bridge"
	"spotyfusion/internal/core"
	"spotyfusion/internal/flood"
	httpserver "spotyfusion/internal/http"
	"spotyfusion/internal/i18n"
	"spotyfusion/internal/metrics"
	"spotyfusion/internal/player"
	"spotyfusion/internal/quiz"
	"spotyfusion/internal/recommend"
	"spotyfusion/internal/spotify"
	"spotyfusion/internal/stats"
	"spotyfusion/internal/store"
)

const (
	defaultServerHost = "0.0.0.0"
	envPrefix         = "SPOTYFUSION"
	version           = "1.0.0"
)

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "spotyfusion",
	Short: "SpotyFusion - Spotify stats, blind test and recommendations",
	Long: `SpotyFusion serves listening statistics, a blind-test quiz played through a
browser playback device, and genre-based track recommendations for a Spotify account.`,
	RunE: runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server (default)",
	RunE:  runServe,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is .env)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "json", "log format (json, text)")
	flags.String("spotify-client-id", "", "Spotify client ID")
	flags.String("spotify-client-secret", "", "Spotify client secret")
	flags.String("spotify-redirect-url", "", "OAuth callback URL (default derived from server host and port)")
	flags.String("spotify-api-base-url", "https://api.spotify.com/v1", "Spotify Web API base URL")
	flags.String("spotify-market", core.DefaultMarket, "Market used for artist top tracks")
	flags.String("store-backend", "file",
		fmt.Sprintf("Token store backend (%s)", strings.Join(core.StoreBackends, ", ")))
	flags.String("store-path", "./spotyfusion_tokens.json", "Token file or SQLite database path")
	flags.String("store-dsn", "", "Database DSN for the postgres or sqlite backend")
	flags.String("store-redis-addr", "localhost:6379", "Redis address for the redis backend")
	flags.String("store-redis-password", "", "Redis password")
	flags.Int("store-redis-db", 0, "Redis database number")
	flags.String("player-device-name", core.DefaultDeviceName, "Name of the browser playback device")
	flags.Float64("player-volume", core.DefaultDeviceVolume, "Initial device volume (0-1)")
	flags.Int("player-sdk-timeout-secs", core.DefaultSDKTimeoutSecs, "Wait for the playback SDK in seconds")
	flags.Int("player-ready-timeout-secs", core.DefaultReadyTimeoutSecs, "Wait for the device ready event in seconds")
	flags.Int("player-start-position-ms", core.DefaultStartPositionMs, "Playback start offset inside a track")
	flags.Int("player-retry-start-position-ms", core.DefaultRetryStartPositionMs,
		"Start offset of the play retried after the device went stale")
	flags.Int("quiz-questions", core.DefaultQuizQuestions, "Questions per blind test")
	flags.Int("quiz-time-per-question-secs", core.DefaultQuizTimePerQuestionSecs, "Answer time per question in seconds")
	flags.Int("quiz-base-points", core.DefaultQuizBasePoints, "Points for a correct answer before the time bonus")
	flags.Int("quiz-min-playlist-tracks", core.DefaultQuizMinPlaylistTracks, "Smallest playlist offered for a blind test")
	flags.Int("recommend-limit", core.DefaultRecommendationLimit, "Default number of recommendations")
	flags.Int("recommend-genre-search-limit", core.DefaultGenreSearchLimit, "Page size of the genre search")
	flags.Int("recommend-artist-cache-size", core.DefaultArtistCacheSize, "Artist genre cache size")
	flags.String("server-host", defaultServerHost, "HTTP server host")
	flags.Int("server-port", 8080, "HTTP server port")
	supportedLangs := strings.Join(i18n.GetSupportedLanguages(), ", ")
	flags.String("language", i18n.DefaultLanguage, fmt.Sprintf("Default language (%s)", supportedLangs))
	flags.Int("flood-limit-per-minute", core.DefaultFloodLimitPerMinute, "Maximum recommendation requests per client per minute")
	flags.Int("export-limit-per-minute", core.DefaultExportLimitPerMinute, "Maximum playlist exports per client per minute")
	flags.Bool("generate-env-example", false, "Generate .env.example file from current configuration and exit")

	if err := viper.BindPFlags(flags); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}

	rootCmd.AddCommand(serveCmd, newRecommendCmd(), loginCmd, logoutCmd)
}

func initConfig() {
	envFile := ".env"
	if cfgFile != "" {
		envFile = cfgFile
	}

	if err := gotenv.Load(envFile); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		}
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	config = buildConfig()
	logger = buildLogger(config.Log.Level, config.Log.Format)
}

func buildConfig() *core.Config {
	cfg := core.DefaultConfig()

	configureServer(cfg)
	configureSpotify(cfg)
	configureStore(cfg)
	configurePlayer(cfg)
	configureQuiz(cfg)
	configureRecommend(cfg)
	configureApp(cfg)

	return cfg
}

func configureServer(cfg *core.Config) {
	cfg.Server.Host = viper.GetString("server-host")
	if cfg.Server.Host == "" {
		cfg.Server.Host = defaultServerHost
	}
	cfg.Server.Port = viper.GetInt("server-port")
	cfg.Log.Level = viper.GetString("log-level")
	cfg.Log.Format = viper.GetString("log-format")
}

func configureSpotify(cfg *core.Config) {
	cfg.Spotify.ClientID = viper.GetString("spotify-client-id")
	cfg.Spotify.ClientSecret = viper.GetString("spotify-client-secret")
	cfg.Spotify.APIBaseURL = viper.GetString("spotify-api-base-url")
	cfg.Spotify.Market = strings.ToUpper(viper.GetString("spotify-market"))
	cfg.Spotify.RedirectURL = viper.GetString("spotify-redirect-url")

	if cfg.Spotify.RedirectURL == "" {
		serverHost := cfg.Server.Host
		if serverHost == defaultServerHost {
			serverHost = "127.0.0.1"
		}
		cfg.Spotify.RedirectURL = fmt.Sprintf("http://%s:%d/callback", serverHost, cfg.Server.Port)
	}
}

func configureStore(cfg *core.Config) {
	cfg.Store.Backend = viper.GetString("store-backend")
	cfg.Store.Path = viper.GetString("store-path")
	cfg.Store.DSN = viper.GetString("store-dsn")
	cfg.Store.RedisAddr = viper.GetString("store-redis-addr")
	cfg.Store.RedisPassword = viper.GetString("store-redis-password")
	cfg.Store.RedisDB = viper.GetInt("store-redis-db")
}

func configurePlayer(cfg *core.Config) {
	cfg.Player.DeviceName = viper.GetString("player-device-name")
	cfg.Player.Volume = viper.GetFloat64("player-volume")
	cfg.Player.SDKTimeout = seconds(viper.GetInt("player-sdk-timeout-secs"))
	cfg.Player.ReadyTimeout = seconds(viper.GetInt("player-ready-timeout-secs"))
	cfg.Player.StartPositionMs = viper.GetInt("player-start-position-ms")
	cfg.Player.RetryStartPositionMs = viper.GetInt("player-retry-start-position-ms")
}

func configureQuiz(cfg *core.Config) {
	cfg.Quiz.Questions = viper.GetInt("quiz-questions")
	cfg.Quiz.TimePerQuestion = seconds(viper.GetInt("quiz-time-per-question-secs"))
	cfg.Quiz.BasePoints = viper.GetInt("quiz-base-points")
	cfg.Quiz.MinPlaylistTracks = viper.GetInt("quiz-min-playlist-tracks")
}

func configureRecommend(cfg *core.Config) {
	cfg.Recommend.DefaultLimit = viper.GetInt("recommend-limit")
	cfg.Recommend.GenreSearchLimit = viper.GetInt("recommend-genre-search-limit")
	cfg.Recommend.ArtistCacheSize = viper.GetInt("recommend-artist-cache-size")
}

func configureApp(cfg *core.Config) {
	cfg.App.Language = viper.GetString("language")
	if cfg.App.Language == "" {
		cfg.App.Language = i18n.DefaultLanguage
	}
	if !i18n.IsSupported(cfg.App.Language) {
		fmt.Fprintf(os.Stderr, "Warning: Unsupported language '%s', falling back to '%s'. Supported languages: %s\n",
			cfg.App.Language, i18n.DefaultLanguage, strings.Join(i18n.GetSupportedLanguages(), ", "))
		cfg.App.Language = i18n.DefaultLanguage
	}

	cfg.App.FloodLimitPerMinute = viper.GetInt("flood-limit-per-minute")
	if cfg.App.FloodLimitPerMinute <= 0 {
		cfg.App.FloodLimitPerMinute = core.DefaultFloodLimitPerMinute
	}
	cfg.App.ExportLimitPerMinute = viper.GetInt("export-limit-per-minute")
	if cfg.App.ExportLimitPerMinute <= 0 {
		cfg.App.ExportLimitPerMinute = core.DefaultExportLimitPerMinute
	}
}

func buildLogger(level, format string) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	if strings.EqualFold(format, "text") {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	builtLogger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build logger: %v", err))
	}

	return builtLogger
}

func runServe(cmd *cobra.Command, _ []string) error {
	if viper.GetBool("generate-env-example") {
		return generateEnvExample(cmd)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting SpotyFusion",
		zap.String("version", version),
		zap.String("store", config.Store.Backend),
		zap.String("language", config.App.Language))

	if err := config.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	svcs, err := initializeServices(ctx)
	if err != nil {
		return err
	}

	return runServices(ctx, svcs)
}

type services struct {
	tokens     store.TokenStore
	player     *player.Manager
	quiz       *quiz.Service
	floodgate  *flood.Floodgate
	httpServer *httpserver.Server
}

// backend is the part of the wiring shared by every subcommand.
type backend struct {
	tokens  store.TokenStore
	auth    *auth.Provider
	catalog *spotify.Client
}

func openBackend(ctx context.Context) (*backend, error) {
	tokens, err := store.Open(ctx, &config.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open token store: %w", err)
	}

	provider := auth.NewProvider(&config.Spotify, tokens, logger)
	return &backend{
		tokens:  tokens,
		auth:    provider,
		catalog: spotify.NewClient(&config.Spotify, provider, logger),
	}, nil
}

func initializeServices(ctx context.Context) (*services, error) {
	b, err := openBackend(ctx)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	hub := bridge.NewHub(logger)
	playerAPI := spotify.NewPlayerREST(config.Spotify.APIBaseURL, nil, logger)
	manager := player.NewManager(&config.Player, b.auth, playerAPI, hub, logger, m,
		i18n.NewLocalizer(config.App.Language))

	recommender, err := recommend.NewRecommender(b.catalog, &config.Recommend, config.Spotify.Market, m, logger)
	if err != nil {
		_ = b.tokens.Close()
		return nil, fmt.Errorf("failed to create recommender: %w", err)
	}

	quizService := quiz.NewService(b.catalog, manager, &config.Quiz, nil, nil, m, logger)
	floodgate := flood.New(config.App.FloodLimitPerMinute).
		WithScopeLimit(httpserver.ScopeExport, config.App.ExportLimitPerMinute)

	httpServer := httpserver.NewServer(&config.Server, &httpserver.Services{
		Player:      manager,
		Bridge:      hub,
		Recommender: recommender,
		Exporter:    recommend.NewExporter(b.catalog, m, logger),
		Seeds:       recommend.NewSeedSearcher(b.catalog, recommender.Table(), logger),
		Stats:       stats.NewService(b.catalog, logger),
		Quiz:        quizService,
		Auth:        b.auth,
		Floodgate:   floodgate,
		Metrics:     m,
		Gatherer:    registry,
		Language:    config.App.Language,
	}, logger)

	return &services{
		tokens:     b.tokens,
		player:     manager,
		quiz:       quizService,
		floodgate:  floodgate,
		httpServer: httpServer,
	}, nil
}

func runServices(ctx context.Context, svcs *services) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return svcs.httpServer.Start(gCtx)
	})

	// The device needs the player page open; a failed first attempt is
	// retried through the reconnect endpoint.
	g.Go(func() error {
		if !svcs.player.Connect(gCtx) {
			logger.Warn("Initial player connect failed, open the player page and reconnect",
				zap.Error(svcs.player.Err()))
		}
		return nil
	})

	logger.Info("SpotyFusion started successfully",
		zap.String("http_addr", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)))

	err := g.Wait()
	shutdown(svcs)

	if err != nil {
		logger.Error("SpotyFusion stopped with error", zap.Error(err))
		return err
	}

	logger.Info("SpotyFusion stopped gracefully")
	return nil
}

func shutdown(svcs *services) {
	svcs.quiz.Close()
	svcs.player.Disconnect()
	svcs.floodgate.Stop()
	if err := svcs.tokens.Close(); err != nil {
		logger.Debug("Failed to close token store", zap.Error(err))
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
