// Package quiz runs blind test games: a track plays, the player picks its
// title among four choices before the timer runs out.
package quiz

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"spotyfusion/internal/core"
	"spotyfusion/internal/metrics"
)

var (
	ErrNotEnoughTracks  = errors.New("not enough tracks for a game")
	ErrPlayerNotReady   = errors.New("player not ready")
	ErrSessionNotFound  = errors.New("quiz session not found")
	ErrNotPlaying       = errors.New("quiz is not in progress")
	ErrAlreadyAnswered  = errors.New("question already answered")
	ErrInvalidChoice    = errors.New("track is not one of the choices")
	ErrNoPlaylistTracks = errors.New("playlist has no tracks")
)

// Player is the part of the playback manager a game drives.
type Player interface {
	Play(ctx context.Context, uri string) bool
	Pause(ctx context.Context)
	Activate(ctx context.Context)
	IsReady() bool
}

type Phase string

const (
	PhasePlaying   Phase = "playing"
	PhaseResults   Phase = "results"
	PhaseAbandoned Phase = "abandoned"
)

// PlayedTrack is one line of the results screen.
type PlayedTrack struct {
	Track      core.Track `json:"track"`
	WasCorrect bool       `json:"wasCorrect"`
}

// AnswerResult reports how a question was resolved.
type AnswerResult struct {
	Correct        bool   `json:"correct"`
	TimedOut       bool   `json:"timedOut"`
	CorrectTrackID string `json:"correctTrackId"`
	Points         int    `json:"points"`
	Score          int    `json:"score"`
}

// View is a read-only snapshot of a session.
type View struct {
	ID              string        `json:"id"`
	PlaylistID      string        `json:"playlistId"`
	Phase           Phase         `json:"phase"`
	QuestionIndex   int           `json:"questionIndex"`
	TotalQuestions  int           `json:"totalQuestions"`
	Score           int           `json:"score"`
	TimeLeft        int           `json:"timeLeft"`
	Answered        bool          `json:"answered"`
	Choices         []core.Track  `json:"choices,omitempty"`
	SelectedTrackID string        `json:"selectedTrackId,omitempty"`
	CorrectTrackID  string        `json:"correctTrackId,omitempty"`
	History         []PlayedTrack `json:"history"`
}

// Session is one game. Every question is resolved exactly once, by an answer
// or by its timer; answered is the guard both paths race for.
type Session struct {
	id         string
	playlistID string
	config     *core.QuizConfig
	player     Player
	clock      Clock
	metrics    *metrics.Metrics
	logger     *zap.Logger
	ctx        context.Context
	onFinish   func(*Session)

	answered atomic.Bool

	mu        sync.Mutex
	questions []Question
	index     int
	score     int
	phase     Phase
	history   []PlayedTrack
	deadline  time.Time
	timer     Timer
	advance   Timer
	selected  string
}

func newSession(
	ctx context.Context,
	id, playlistID string,
	questions []Question,
	config *core.QuizConfig,
	player Player,
	clock Clock,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Session {
	return &Session{
		id:         id,
		playlistID: playlistID,
		config:     config,
		player:     player,
		clock:      clock,
		metrics:    m,
		logger:     logger.With(zap.String("sessionID", id)),
		ctx:        ctx,
		questions:  questions,
		phase:      PhasePlaying,
	}
}

func (s *Session) ID() string {
	return s.id
}

// start plays the first question.
func (s *Session) start() {
	s.mu.Lock()
	uri := s.beginQuestionLocked(0)
	s.mu.Unlock()

	s.play(uri)
}

// beginQuestionLocked arms the timer of question index and returns its URI.
func (s *Session) beginQuestionLocked(index int) string {
	s.index = index
	s.selected = ""
	s.answered.Store(false)
	s.deadline = s.clock.Now().Add(s.config.TimePerQuestion)
	s.timer = s.clock.AfterFunc(s.config.TimePerQuestion, func() {
		s.expire(index)
	})
	return s.questions[index].Correct.PlayURI()
}

func (s *Session) play(uri string) {
	if !s.player.Play(s.ctx, uri) {
		s.logger.Warn("Failed to play question track", zap.String("uri", uri))
	}
}

// Answer resolves the current question with trackID.
func (s *Session) Answer(trackID string) (AnswerResult, error) {
	s.mu.Lock()
	if s.phase != PhasePlaying {
		s.mu.Unlock()
		return AnswerResult{}, ErrNotPlaying
	}
	if !s.questions[s.index].hasChoice(trackID) {
		s.mu.Unlock()
		return AnswerResult{}, ErrInvalidChoice
	}
	index := s.index
	result, ok := s.resolveLocked(index, trackID)
	s.mu.Unlock()

	if !ok {
		return AnswerResult{}, ErrAlreadyAnswered
	}
	s.afterResolve(index, result)
	return result, nil
}

// expire is the timer path; it resolves question index as unanswered.
func (s *Session) expire(index int) {
	s.mu.Lock()
	if s.phase != PhasePlaying || s.index != index {
		s.mu.Unlock()
		return
	}
	result, ok := s.resolveLocked(index, "")
	s.mu.Unlock()

	if ok {
		s.afterResolve(index, result)
	}
}

// resolveLocked scores question index once. It reports false when the
// question was already resolved.
func (s *Session) resolveLocked(index int, trackID string) (AnswerResult, bool) {
	if !s.answered.CompareAndSwap(false, true) {
		return AnswerResult{}, false
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	q := s.questions[index]
	result := AnswerResult{
		Correct:        trackID != "" && trackID == q.Correct.ID,
		TimedOut:       trackID == "",
		CorrectTrackID: q.Correct.ID,
	}
	if result.Correct {
		result.Points = s.config.BasePoints + s.remainingLocked()/3
		s.score += result.Points
	}
	result.Score = s.score

	s.selected = trackID
	s.history = append(s.history, PlayedTrack{Track: q.Correct, WasCorrect: result.Correct})
	return result, true
}

// remainingLocked is the whole seconds left on the current question.
func (s *Session) remainingLocked() int {
	left := s.deadline.Sub(s.clock.Now())
	if left <= 0 {
		return 0
	}
	secs := int(math.Ceil(left.Seconds()))
	return min(secs, int(s.config.TimePerQuestion/time.Second))
}

// afterResolve pauses playback, then schedules the next question. The delay
// starts once the pause has returned so a slow pause cannot silence the next
// track.
func (s *Session) afterResolve(index int, result AnswerResult) {
	outcome := "wrong"
	switch {
	case result.TimedOut:
		outcome = "timeout"
	case result.Correct:
		outcome = "correct"
	}
	s.metrics.RecordQuizAnswer(outcome)
	s.logger.Debug("Question resolved",
		zap.String("outcome", outcome),
		zap.Int("points", result.Points),
		zap.Int("score", result.Score))

	s.player.Pause(s.ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhasePlaying || s.index != index || s.advance != nil {
		return
	}
	s.advance = s.clock.AfterFunc(s.config.AdvanceDelay, func() {
		s.next(index)
	})
}

// next moves past question index, or ends the game after the last one.
func (s *Session) next(index int) {
	s.mu.Lock()
	if s.phase != PhasePlaying || s.index != index {
		s.mu.Unlock()
		return
	}
	s.advance = nil

	if index+1 < len(s.questions) {
		uri := s.beginQuestionLocked(index + 1)
		s.mu.Unlock()
		s.play(uri)
		return
	}

	s.phase = PhaseResults
	score := s.score
	onFinish := s.onFinish
	s.mu.Unlock()

	s.player.Pause(s.ctx)
	s.logger.Info("Quiz finished", zap.Int("score", score))
	if onFinish != nil {
		onFinish(s)
	}
}

// Abandon stops timers and pauses playback. It is a no-op once the game is
// over.
func (s *Session) Abandon() {
	s.mu.Lock()
	if s.phase != PhasePlaying {
		s.mu.Unlock()
		return
	}
	s.phase = PhaseAbandoned
	s.stopTimersLocked()
	s.mu.Unlock()

	s.player.Pause(s.ctx)
	s.logger.Info("Quiz abandoned")
}

func (s *Session) stopTimersLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.advance != nil {
		s.advance.Stop()
		s.advance = nil
	}
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		ID:             s.id,
		PlaylistID:     s.playlistID,
		Phase:          s.phase,
		QuestionIndex:  s.index,
		TotalQuestions: len(s.questions),
		Score:          s.score,
		Answered:       s.answered.Load(),
		History:        append([]PlayedTrack{}, s.history...),
	}

	if s.phase == PhasePlaying {
		q := s.questions[s.index]
		v.Choices = append([]core.Track(nil), q.Choices...)
		if v.Answered {
			v.SelectedTrackID = s.selected
			v.CorrectTrackID = q.Correct.ID
		} else {
			v.TimeLeft = s.remainingLocked()
		}
	}
	return v
}
