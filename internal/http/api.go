package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"spotyfusion/internal/core"
	"spotyfusion/internal/i18n"
	"spotyfusion/internal/player"
	"spotyfusion/internal/quiz"
	"spotyfusion/internal/recommend"
	"spotyfusion/internal/stats"
	"spotyfusion/pkg/text"
)

const (
	maxBodyBytes    = 1 << 20
	stateCookieName = "spotyfusion_state"
	stateCookieTTL  = 10 * time.Minute
)

// Floodgate scopes of the rate-limited routes.
const (
	ScopeRecommend = "recommend"
	ScopeExport    = "export"
)

type api struct {
	services *Services
	language string
	logger   *zap.Logger
}

func newAPI(services *Services, logger *zap.Logger) *api {
	language := services.Language
	if !i18n.IsSupported(language) {
		language = i18n.DefaultLanguage
	}
	return &api{
		services: services,
		language: language,
		logger:   logger,
	}
}

func (a *api) register(mux *http.ServeMux) {
	s := a.services

	if s.Player != nil {
		mux.HandleFunc("GET /api/player", a.playerStatus)
		mux.HandleFunc("POST /api/player/reconnect", a.playerReconnect)
		mux.HandleFunc("POST /api/player/pause", a.playerPause)
	}
	if s.Recommender != nil {
		mux.HandleFunc("POST /api/recommendations", a.limited(ScopeRecommend, a.recommend))
	}
	if s.Exporter != nil {
		mux.HandleFunc("POST /api/recommendations/playlist", a.limited(ScopeExport, a.exportPlaylist))
	}
	if s.Seeds != nil {
		mux.HandleFunc("GET /api/seeds/search", a.searchSeeds)
	}
	if s.Stats != nil {
		mux.HandleFunc("GET /api/stats/overview", a.statsOverview)
		mux.HandleFunc("GET /api/stats/profile", a.statsProfile)
		mux.HandleFunc("GET /api/stats/top-artists", a.statsTopArtists)
		mux.HandleFunc("GET /api/stats/top-tracks", a.statsTopTracks)
		mux.HandleFunc("GET /api/stats/recent", a.statsRecent)
		mux.HandleFunc("GET /api/stats/playlists", a.statsPlaylists)
	}
	if s.Quiz != nil {
		mux.HandleFunc("GET /api/quiz/playlists", a.quizPlaylists)
		mux.HandleFunc("POST /api/quiz", a.quizStart)
		mux.HandleFunc("GET /api/quiz/{id}", a.quizGet)
		mux.HandleFunc("POST /api/quiz/{id}/answer", a.quizAnswer)
		mux.HandleFunc("DELETE /api/quiz/{id}", a.quizReset)
	}
	if s.Auth != nil {
		mux.HandleFunc("GET /login", a.login)
		mux.HandleFunc("GET /callback", a.callback)
	}
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// localizer follows ?lang= first, then Accept-Language.
func (a *api) localizer(r *http.Request) *i18n.Localizer {
	if lang := r.URL.Query().Get("lang"); i18n.IsSupported(lang) {
		return i18n.NewLocalizer(lang)
	}
	return i18n.NewLocalizer(i18n.Negotiate(r.Header.Get("Accept-Language"), a.language))
}

// fail answers with a localized message for key.
func (a *api) fail(w http.ResponseWriter, r *http.Request, status int, key string, args ...any) {
	if status >= http.StatusInternalServerError {
		a.services.Metrics.RecordError("http", key)
	}
	writeJSON(w, status, errorBody{Error: a.localizer(r).T(key, args...), Code: key})
}

func (a *api) upstream(w http.ResponseWriter, r *http.Request, err error) {
	a.logger.Warn("Upstream call failed",
		zap.String("path", r.URL.Path),
		zap.Error(err))
	a.fail(w, r, http.StatusBadGateway, "error.upstream")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("malformed body: %w", err)
	}
	return nil
}

// clientID keys rate limiting on the remote host.
func clientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// limited applies the floodgate to next. Without a floodgate it is a no-op.
func (a *api) limited(scope string, next http.HandlerFunc) http.HandlerFunc {
	fg := a.services.Floodgate
	if fg == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ok, wait := fg.Allow(scope, clientID(r))
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			a.fail(w, r, http.StatusTooManyRequests, "error.recommend.rate_limited")
			return
		}
		next(w, r)
	}
}

func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return n
}

func (a *api) playerStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.playerView())
}

type playerView struct {
	Status          player.Status `json:"status"`
	BridgeConnected bool          `json:"bridgeConnected"`
}

func (a *api) playerView() playerView {
	v := playerView{Status: a.services.Player.Status()}
	if a.services.Bridge != nil {
		v.BridgeConnected = a.services.Bridge.Connected()
	}
	return v
}

func (a *api) playerReconnect(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	if !a.services.Player.Reconnect(r.Context()) {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, a.playerView())
}

func (a *api) playerPause(w http.ResponseWriter, r *http.Request) {
	a.services.Player.Pause(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

type recommendResponse struct {
	Results []recommend.ScoredResult `json:"results"`
	Count   int                      `json:"count"`
	Message string                   `json:"message,omitempty"`
}

func (a *api) recommend(w http.ResponseWriter, r *http.Request) {
	var req recommend.Request
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, http.StatusBadRequest, "error.request.invalid", err.Error())
		return
	}

	results, err := a.services.Recommender.Recommend(r.Context(), req)
	switch {
	case errors.Is(err, recommend.ErrInvalidSeed),
		errors.Is(err, recommend.ErrSeedLimit),
		errors.Is(err, recommend.ErrDuplicateSeed),
		errors.Is(err, recommend.ErrInvalidTargets):
		a.fail(w, r, http.StatusBadRequest, "error.request.invalid", err.Error())
		return
	case err != nil:
		a.upstream(w, r, err)
		return
	}

	resp := recommendResponse{Results: results, Count: len(results)}
	if len(results) == 0 {
		resp.Message = a.localizer(r).T("error.recommend.no_candidates")
	}
	writeJSON(w, http.StatusOK, resp)
}

type exportRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Public      bool     `json:"public"`
	PlaylistID  string   `json:"playlistId"`
	TrackIDs    []string `json:"trackIds"`
}

type exportResponse struct {
	PlaylistID string `json:"playlistId"`
	Name       string `json:"name,omitempty"`
	Added      int    `json:"added"`
}

func (a *api) exportPlaylist(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, http.StatusBadRequest, "error.request.invalid", err.Error())
		return
	}

	var (
		resp exportResponse
		err  error
	)
	if req.PlaylistID != "" {
		resp.PlaylistID = req.PlaylistID
		resp.Added, err = a.services.Exporter.AppendToPlaylist(r.Context(), req.PlaylistID, req.TrackIDs)
	} else {
		var playlist *core.Playlist
		playlist, err = a.services.Exporter.SaveAsPlaylist(r.Context(), req.Name, req.Description, req.Public, req.TrackIDs)
		if err == nil {
			resp = exportResponse{PlaylistID: playlist.ID, Name: playlist.Name, Added: playlist.TrackCount}
		}
	}

	switch {
	case errors.Is(err, recommend.ErrNothingToExport):
		a.fail(w, r, http.StatusBadRequest, "error.export.nothing")
	case errors.Is(err, text.ErrInvalidReference), errors.Is(err, text.ErrEmptyReference):
		a.fail(w, r, http.StatusBadRequest, "error.request.invalid", err.Error())
	case err != nil:
		a.upstream(w, r, err)
	case req.PlaylistID != "":
		writeJSON(w, http.StatusOK, resp)
	default:
		writeJSON(w, http.StatusCreated, resp)
	}
}

func (a *api) searchSeeds(w http.ResponseWriter, r *http.Request) {
	seeds, err := a.services.Seeds.Search(r.Context(), r.URL.Query().Get("q"), queryInt(r, "limit"))
	if err != nil {
		a.upstream(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, seeds)
}

// timeRange reads ?range= and answers 400 itself when it is unknown.
func (a *api) timeRange(w http.ResponseWriter, r *http.Request) (core.TimeRange, bool) {
	tr, err := stats.ParseTimeRange(r.URL.Query().Get("range"))
	if err != nil {
		a.fail(w, r, http.StatusBadRequest, "error.stats.invalid_range")
		return "", false
	}
	return tr, true
}

func respond[T any](a *api, w http.ResponseWriter, r *http.Request, v T, err error) {
	if err != nil {
		a.upstream(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *api) statsOverview(w http.ResponseWriter, r *http.Request) {
	tr, ok := a.timeRange(w, r)
	if !ok {
		return
	}
	overview, err := a.services.Stats.Overview(r.Context(), tr)
	respond(a, w, r, overview, err)
}

func (a *api) statsProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := a.services.Stats.Profile(r.Context())
	respond(a, w, r, profile, err)
}

func (a *api) statsTopArtists(w http.ResponseWriter, r *http.Request) {
	tr, ok := a.timeRange(w, r)
	if !ok {
		return
	}
	artists, err := a.services.Stats.TopArtists(r.Context(), tr, queryInt(r, "limit"))
	respond(a, w, r, artists, err)
}

func (a *api) statsTopTracks(w http.ResponseWriter, r *http.Request) {
	tr, ok := a.timeRange(w, r)
	if !ok {
		return
	}
	tracks, err := a.services.Stats.TopTracks(r.Context(), tr, queryInt(r, "limit"))
	respond(a, w, r, tracks, err)
}

type recentItem struct {
	core.RecentlyPlayed
	PlayedAgo string `json:"playedAgo"`
}

func (a *api) statsRecent(w http.ResponseWriter, r *http.Request) {
	recent, err := a.services.Stats.Recent(r.Context(), queryInt(r, "limit"))
	if err != nil {
		a.upstream(w, r, err)
		return
	}

	loc := a.localizer(r)
	items := make([]recentItem, len(recent))
	for i, played := range recent {
		items[i] = recentItem{RecentlyPlayed: played, PlayedAgo: loc.Ago(time.Since(played.PlayedAt))}
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *api) statsPlaylists(w http.ResponseWriter, r *http.Request) {
	playlists, err := a.services.Stats.Playlists(r.Context(), queryInt(r, "limit"))
	respond(a, w, r, playlists, err)
}

func (a *api) quizPlaylists(w http.ResponseWriter, r *http.Request) {
	playlists, err := a.services.Quiz.Playlists(r.Context())
	respond(a, w, r, playlists, err)
}

// quizError maps game errors to a status and message key.
func (a *api) quizError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, quiz.ErrPlayerNotReady):
		a.fail(w, r, http.StatusConflict, "error.quiz.player_not_ready")
	case errors.Is(err, quiz.ErrNotEnoughTracks), errors.Is(err, quiz.ErrNoPlaylistTracks):
		a.fail(w, r, http.StatusUnprocessableEntity, "error.quiz.not_enough_tracks")
	case errors.Is(err, quiz.ErrSessionNotFound):
		a.fail(w, r, http.StatusNotFound, "error.quiz.not_found")
	case errors.Is(err, quiz.ErrNotPlaying):
		a.fail(w, r, http.StatusConflict, "error.quiz.not_playing")
	case errors.Is(err, quiz.ErrAlreadyAnswered):
		a.fail(w, r, http.StatusConflict, "error.quiz.already_answered")
	case errors.Is(err, quiz.ErrInvalidChoice):
		a.fail(w, r, http.StatusBadRequest, "error.quiz.invalid_choice")
	default:
		a.upstream(w, r, err)
	}
}

type quizStartRequest struct {
	PlaylistID string `json:"playlistId"`
}

func (a *api) quizStart(w http.ResponseWriter, r *http.Request) {
	var req quizStartRequest
	if err := decodeJSON(w, r, &req); err != nil || req.PlaylistID == "" {
		a.fail(w, r, http.StatusBadRequest, "error.request.invalid", "playlistId")
		return
	}

	session, err := a.services.Quiz.Start(r.Context(), req.PlaylistID)
	if err != nil {
		a.quizError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a.quizView(r, session))
}

func (a *api) quizGet(w http.ResponseWriter, r *http.Request) {
	session, err := a.services.Quiz.Get(r.PathValue("id"))
	if err != nil {
		a.quizError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.quizView(r, session))
}

type quizViewBody struct {
	quiz.View
	ScoreLabel string `json:"scoreLabel"`
}

func (a *api) quizView(r *http.Request, session *quiz.Session) quizViewBody {
	view := session.View()
	return quizViewBody{View: view, ScoreLabel: a.localizer(r).Points(view.Score)}
}

type quizAnswerRequest struct {
	TrackID string `json:"trackId"`
}

func (a *api) quizAnswer(w http.ResponseWriter, r *http.Request) {
	var req quizAnswerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, http.StatusBadRequest, "error.request.invalid", err.Error())
		return
	}

	result, err := a.services.Quiz.Answer(r.PathValue("id"), req.TrackID)
	if err != nil {
		a.quizError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *api) quizReset(w http.ResponseWriter, r *http.Request) {
	if err := a.services.Quiz.Reset(r.PathValue("id")); err != nil {
		a.quizError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) login(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   int(stateCookieTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, a.services.Auth.AuthURL(state), http.StatusFound)
}

func (a *api) callback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(stateCookieName)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		a.fail(w, r, http.StatusBadRequest, "error.auth.state")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Path: "/", MaxAge: -1})

	code := r.URL.Query().Get("code")
	if code == "" {
		a.fail(w, r, http.StatusBadRequest, "error.auth.exchange")
		return
	}
	if err := a.services.Auth.Exchange(r.Context(), code); err != nil {
		a.logger.Warn("Token exchange failed", zap.Error(err))
		a.fail(w, r, http.StatusBadGateway, "error.auth.exchange")
		return
	}

	a.logger.Info("Spotify login completed")
	http.Redirect(w, r, "/", http.StatusFound)
}
