package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"spotyfusion/internal/i18n"
)

func TestFlagToEnvVar(t *testing.T) {
	tests := []struct {
		flag string
		want string
	}{
		{"log-level", "SPOTYFUSION_LOG_LEVEL"},
		{"spotify-client-id", "SPOTYFUSION_SPOTIFY_CLIENT_ID"},
		{"quiz-time-per-question-secs", "SPOTYFUSION_QUIZ_TIME_PER_QUESTION_SECS"},
	}

	for _, tt := range tests {
		if got := flagToEnvVar(tt.flag); got != tt.want {
			t.Errorf("flagToEnvVar(%q) = %q, want %q", tt.flag, got, tt.want)
		}
	}
}

func TestGenerateEnvExampleContent(t *testing.T) {
	content := generateEnvExampleContent(rootCmd)

	for _, want := range []string{
		"SPOTYFUSION_SPOTIFY_CLIENT_ID=",
		"SPOTYFUSION_STORE_BACKEND=file",
		"SPOTYFUSION_QUIZ_QUESTIONS=10",
		"SPOTYFUSION_SERVER_PORT=8080",
		"SPOTYFUSION_LANGUAGE=en",
		"# BLIND TEST",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("Expected .env.example to contain %q", want)
		}
	}

	if strings.Contains(content, "SPOTYFUSION_GENERATE_ENV_EXAMPLE") {
		t.Error("Expected the generator flag to be left out")
	}
	if strings.Count(content, "SPOTYFUSION_SERVER_PORT=") != 1 {
		t.Error("Expected every flag to appear exactly once")
	}
}

func TestBuildConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	t.Cleanup(func() {
		_ = viper.BindPFlags(rootCmd.PersistentFlags())
	})

	viper.Reset()
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		t.Fatalf("Failed to bind flags: %v", err)
	}
	viper.Set("server-port", 9090)
	viper.Set("language", "klingon")
	viper.Set("quiz-time-per-question-secs", 20)
	viper.Set("spotify-market", "de")

	cfg := buildConfig()

	if cfg.Spotify.RedirectURL != "http://127.0.0.1:9090/callback" {
		t.Errorf("Expected redirect URL derived from the server port, got %s", cfg.Spotify.RedirectURL)
	}
	if cfg.App.Language != i18n.DefaultLanguage {
		t.Errorf("Expected unsupported language to fall back to %s, got %s", i18n.DefaultLanguage, cfg.App.Language)
	}
	if cfg.Quiz.TimePerQuestion.Seconds() != 20 {
		t.Errorf("Expected 20s per question, got %v", cfg.Quiz.TimePerQuestion)
	}
	if cfg.Spotify.Market != "DE" {
		t.Errorf("Expected upper-cased market, got %s", cfg.Spotify.Market)
	}
	if cfg.Quiz.AdvanceDelay <= 0 {
		t.Error("Expected the advance delay default to survive flag parsing")
	}
}

func TestBuildLogger(t *testing.T) {
	tests := []struct {
		level, format string
		debug         bool
	}{
		{"debug", "json", true},
		{"info", "text", false},
		{"bogus", "", false},
	}

	for _, tt := range tests {
		l := buildLogger(tt.level, tt.format)
		if got := l.Core().Enabled(zapcore.DebugLevel); got != tt.debug {
			t.Errorf("buildLogger(%q, %q) debug enabled = %v, want %v", tt.level, tt.format, got, tt.debug)
		}
	}
}

type stubAuth struct {
	err   error
	calls int
}

func (s *stubAuth) AuthURL(state string) string { return "https://accounts.example/authorize?state=" + state }

func (s *stubAuth) Exchange(context.Context, string) error {
	s.calls++
	return s.err
}

func TestLoginWaiter(t *testing.T) {
	stub := &stubAuth{err: errors.New("bad code")}
	waiter := &loginWaiter{Authenticator: stub, done: make(chan struct{})}

	if err := waiter.Exchange(context.Background(), "code"); err == nil {
		t.Fatal("Expected the exchange error to pass through")
	}
	select {
	case <-waiter.done:
		t.Fatal("A failed exchange must not complete the login")
	default:
	}

	stub.err = nil
	for range 2 {
		if err := waiter.Exchange(context.Background(), "code"); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}
	select {
	case <-waiter.done:
	default:
		t.Fatal("Expected the login to complete")
	}
	if stub.calls != 3 {
		t.Errorf("Expected 3 exchanges, got %d", stub.calls)
	}
}
