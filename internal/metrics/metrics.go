// Package metrics defines the Prometheus collectors of the service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "spotyfusion"

// Metrics groups all collectors. A nil *Metrics is valid and records nothing,
// so components can be built without a registry in tests.
type Metrics struct {
	ConnectsTotal        *prometheus.CounterVec
	PlaybackCommands     *prometheus.CounterVec
	SDKEventsTotal       *prometheus.CounterVec
	RecommendDuration    prometheus.Histogram
	CandidatesTotal      *prometheus.HistogramVec
	QuizAnswersTotal     *prometheus.CounterVec
	ActiveQuizzes        prometheus.Gauge
	ErrorsTotal          *prometheus.CounterVec
	PlaylistExportsTotal *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "player_connects_total",
				Help:      "Playback device connect attempts by result",
			},
			[]string{"result"},
		),
		PlaybackCommands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "player_commands_total",
				Help:      "Playback commands issued by command and result",
			},
			[]string{"command", "result"},
		),
		SDKEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "player_sdk_events_total",
				Help:      "Events received from the playback SDK",
			},
			[]string{"event"},
		),
		RecommendDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "recommendation_duration_seconds",
				Help:      "Time spent generating a recommendation list",
				Buckets:   prometheus.DefBuckets,
			},
		),
		CandidatesTotal: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "recommendation_candidates",
				Help:      "Candidate pool size per recommendation stage",
				Buckets:   []float64{0, 10, 25, 50, 100, 200, 400},
			},
			[]string{"stage"},
		),
		QuizAnswersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quiz_answers_total",
				Help:      "Blind test answers by outcome",
			},
			[]string{"outcome"},
		),
		ActiveQuizzes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "quiz_active_sessions",
				Help:      "Blind test sessions currently held in memory",
			},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors",
			},
			[]string{"component", "type"},
		),
		PlaylistExportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "playlist_exports_total",
				Help:      "Recommendation lists saved to Spotify by mode",
			},
			[]string{"mode"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.ConnectsTotal,
			m.PlaybackCommands,
			m.SDKEventsTotal,
			m.RecommendDuration,
			m.CandidatesTotal,
			m.QuizAnswersTotal,
			m.ActiveQuizzes,
			m.ErrorsTotal,
			m.PlaylistExportsTotal,
		)
	}
	return m
}

func (m *Metrics) RecordConnect(result string) {
	if m == nil {
		return
	}
	m.ConnectsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordCommand(command, result string) {
	if m == nil {
		return
	}
	m.PlaybackCommands.WithLabelValues(command, result).Inc()
}

func (m *Metrics) RecordSDKEvent(event string) {
	if m == nil {
		return
	}
	m.SDKEventsTotal.WithLabelValues(event).Inc()
}

func (m *Metrics) RecordRecommendation(duration time.Duration) {
	if m == nil {
		return
	}
	m.RecommendDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordCandidates(stage string, count int) {
	if m == nil {
		return
	}
	m.CandidatesTotal.WithLabelValues(stage).Observe(float64(count))
}

func (m *Metrics) RecordQuizAnswer(outcome string) {
	if m == nil {
		return
	}
	m.QuizAnswersTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetActiveQuizzes(count int) {
	if m == nil {
		return
	}
	m.ActiveQuizzes.Set(float64(count))
}

func (m *Metrics) RecordError(component, errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

func (m *Metrics) RecordExport(mode string) {
	if m == nil {
		return
	}
	m.PlaylistExportsTotal.WithLabelValues(mode).Inc()
}
