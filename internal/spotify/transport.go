package spotify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"spotyfusion/internal/core"
)

const (
	defaultMaxRetries = 3
	defaultBackoff    = 500 * time.Millisecond
)

// AuthTransport signs each request with the current bearer credential. A 401
// triggers one credential refresh and one replay; 429 and 5xx answers and
// transport errors are retried with exponential backoff or Retry-After.
type AuthTransport struct {
	creds       core.CredentialProvider
	base        http.RoundTripper
	logger      *zap.Logger
	maxRetries  int
	baseBackoff time.Duration
}

func NewAuthTransport(creds core.CredentialProvider, base http.RoundTripper, logger *zap.Logger) *AuthTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &AuthTransport{
		creds:       creds,
		base:        base,
		logger:      logger.Named("transport"),
		maxRetries:  defaultMaxRetries,
		baseBackoff: defaultBackoff,
	}
}

// WithBackoff overrides the retry policy.
func (t *AuthTransport) WithBackoff(maxRetries int, base time.Duration) *AuthTransport {
	t.maxRetries = maxRetries
	t.baseBackoff = base
	return t
}

func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	getBody, err := bufferBody(req)
	if err != nil {
		return nil, err
	}

	token, err := t.creds.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("no credential: %w", err)
	}

	maxRetries := t.maxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	refreshed := false
	for attempt := 0; ; {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("request canceled: %w", err)
		}

		r := req.Clone(ctx)
		if getBody != nil {
			body, err := getBody()
			if err != nil {
				return nil, fmt.Errorf("reset request body: %w", err)
			}
			r.Body = body
		}
		r.Header.Set("Authorization", "Bearer "+token)

		resp, err := t.base.RoundTrip(r)

		if err == nil && resp.StatusCode == http.StatusUnauthorized && !refreshed {
			drain(resp)
			refreshed = true
			t.logger.Debug("Unauthorized, refreshing credential", zap.String("path", req.URL.Path))
			token, err = t.creds.Refresh(ctx)
			if err != nil {
				return nil, fmt.Errorf("credential refresh failed: %w", err)
			}
			continue
		}

		retryAfter, retry := shouldRetry(ctx, resp, err)
		attempt++
		if !retry || attempt >= maxRetries {
			return resp, err
		}

		if err != nil {
			t.logger.Warn("Retrying after transport error",
				zap.Int("attempt", attempt),
				zap.Int("maxRetries", maxRetries),
				zap.Error(err))
		} else {
			t.logger.Warn("Retrying after status",
				zap.Int("attempt", attempt),
				zap.Int("maxRetries", maxRetries),
				zap.Int("status", resp.StatusCode))
			drain(resp)
		}

		backoff := t.baseBackoff * time.Duration(1<<(attempt-1))
		if retryAfter > 0 {
			backoff = retryAfter
		}
		if err := sleepWithContext(ctx, backoff); err != nil {
			return nil, err
		}
	}
}

func bufferBody(req *http.Request) (func() (io.ReadCloser, error), error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	if req.GetBody != nil {
		return req.GetBody, nil
	}

	data, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	_ = req.Body.Close()
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}, nil
}

func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

func shouldRetry(ctx context.Context, resp *http.Response, err error) (time.Duration, bool) {
	if err != nil {
		return 0, ctx.Err() == nil
	}
	if resp == nil {
		return 0, false
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return parseRetryAfter(resp), true
	}

	return 0, false
}

func parseRetryAfter(resp *http.Response) time.Duration {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if when, err := http.ParseTime(retryAfter); err == nil {
		if until := time.Until(when); until > 0 {
			return until
		}
	}

	return 0
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
