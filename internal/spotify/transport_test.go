package spotify

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestAuthTransport_RefreshesOnceOn401(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		body, _ := io.ReadAll(r.Body)
		if string(body) != "payload" {
			t.Errorf("body not replayed, got %q", body)
		}
		if r.Header.Get("Authorization") != "Bearer new" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	creds := &staticCreds{token: "old", refreshed: "new"}
	client := &http.Client{Transport: NewAuthTransport(creds, nil, zap.NewNop())}

	resp, err := client.Post(srv.URL, "text/plain", strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 after refresh, got %d", resp.StatusCode)
	}
	if creds.refreshes != 1 || calls != 2 {
		t.Errorf("expected 1 refresh and 2 calls, got %d and %d", creds.refreshes, calls)
	}
}

func TestAuthTransport_SecondUnauthorizedIsReturned(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	creds := &staticCreds{token: "old", refreshed: "still-bad"}
	client := &http.Client{Transport: NewAuthTransport(creds, nil, zap.NewNop())}

	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized || calls != 2 || creds.refreshes != 1 {
		t.Errorf("status=%d calls=%d refreshes=%d", resp.StatusCode, calls, creds.refreshes)
	}
}

func TestAuthTransport_RetriesTooManyRequests(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	transport := NewAuthTransport(&staticCreds{token: "t"}, nil, zap.NewNop()).WithBackoff(3, time.Millisecond)
	resp, err := (&http.Client{Transport: transport}).Get(srv.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK || calls != 3 {
		t.Errorf("status=%d calls=%d", resp.StatusCode, calls)
	}
}

func TestAuthTransport_GivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	transport := NewAuthTransport(&staticCreds{token: "t"}, nil, zap.NewNop()).WithBackoff(2, time.Millisecond)
	resp, err := (&http.Client{Transport: transport}).Get(srv.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadGateway || calls != 2 {
		t.Errorf("status=%d calls=%d", resp.StatusCode, calls)
	}
}

func TestParseRetryAfter(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	if d := parseRetryAfter(resp); d != 0 {
		t.Errorf("empty header should be 0, got %v", d)
	}
	resp.Header.Set("Retry-After", "2")
	if d := parseRetryAfter(resp); d != 2*time.Second {
		t.Errorf("expected 2s, got %v", d)
	}
	resp.Header.Set("Retry-After", "soon")
	if d := parseRetryAfter(resp); d != 0 {
		t.Errorf("garbage header should be 0, got %v", d)
	}
}
