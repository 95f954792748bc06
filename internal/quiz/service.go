package quiz

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"spotyfusion/internal/core"
	"spotyfusion/internal/metrics"
)

// playlistPageLimit is how many of the user's playlists are offered for a game.
const playlistPageLimit = 50

// Service owns the games in memory. The playback device is shared, so
// starting a game abandons the one still running.
type Service struct {
	catalog core.CatalogClient
	player  Player
	config  *core.QuizConfig
	clock   Clock
	metrics *metrics.Metrics
	logger  *zap.Logger

	rngMu sync.Mutex
	rng   *rand.Rand

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewService creates a Service. A nil rng is seeded randomly and a nil clock
// uses the time package.
func NewService(
	catalog core.CatalogClient,
	player Player,
	config *core.QuizConfig,
	clock Clock,
	rng *rand.Rand,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Service {
	if clock == nil {
		clock = RealClock()
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Service{
		catalog:  catalog,
		player:   player,
		config:   config,
		clock:    clock,
		rng:      rng,
		metrics:  m,
		logger:   logger.Named("quiz"),
		sessions: make(map[string]*Session),
	}
}

// Playlists returns the user's playlists that are large enough for a game.
func (s *Service) Playlists(ctx context.Context) ([]core.Playlist, error) {
	all, err := s.catalog.UserPlaylists(ctx, playlistPageLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}

	out := make([]core.Playlist, 0, len(all))
	for _, p := range all {
		if p.TrackCount >= s.config.MinPlaylistTracks {
			out = append(out, p)
		}
	}
	return out, nil
}

// Start builds a game from playlistID and plays its first question.
func (s *Service) Start(ctx context.Context, playlistID string) (*Session, error) {
	if !s.player.IsReady() {
		return nil, ErrPlayerNotReady
	}

	tracks, err := s.catalog.PlaylistTracks(ctx, playlistID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load playlist %s: %w", playlistID, err)
	}
	if len(tracks) == 0 {
		return nil, ErrNoPlaylistTracks
	}

	s.rngMu.Lock()
	questions, err := BuildQuestions(tracks, s.config.Questions, s.rng)
	s.rngMu.Unlock()
	if err != nil {
		return nil, err
	}

	// The game outlives the request that started it.
	gameCtx := context.WithoutCancel(ctx)
	s.player.Activate(gameCtx)

	session := newSession(gameCtx, uuid.NewString(), playlistID, questions,
		s.config, s.player, s.clock, s.metrics, s.logger)
	session.onFinish = func(*Session) { s.updateGauge() }

	s.mu.Lock()
	previous := s.sessions
	s.sessions = map[string]*Session{session.ID(): session}
	s.mu.Unlock()

	for _, p := range previous {
		p.Abandon()
	}

	s.logger.Info("Quiz started",
		zap.String("sessionID", session.ID()),
		zap.String("playlistID", playlistID),
		zap.Int("questions", len(questions)))

	session.start()
	s.updateGauge()
	return session, nil
}

func (s *Service) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Answer submits trackID for the current question of game id.
func (s *Service) Answer(id, trackID string) (AnswerResult, error) {
	session, err := s.Get(id)
	if err != nil {
		return AnswerResult{}, err
	}
	return session.Answer(trackID)
}

// Reset abandons game id and forgets it.
func (s *Service) Reset(id string) error {
	s.mu.Lock()
	session, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	session.Abandon()
	s.updateGauge()
	return nil
}

// Close abandons every running game.
func (s *Service) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, session := range sessions {
		session.Abandon()
	}
	s.updateGauge()
}

func (s *Service) updateGauge() {
	s.mu.Lock()
	active := 0
	for _, session := range s.sessions {
		if session.Phase() == PhasePlaying {
			active++
		}
	}
	s.mu.Unlock()
	s.metrics.SetActiveQuizzes(active)
}
