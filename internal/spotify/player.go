package spotify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"spotyfusion/internal/core"
)

// PlayerREST issues player commands with an explicit bearer token and hands
// the raw status back. Retry and recovery policy lives with the caller.
type PlayerREST struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewPlayerREST(baseURL string, httpClient *http.Client, logger *zap.Logger) *PlayerREST {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &PlayerREST{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger.Named("player-api"),
	}
}

type deviceList struct {
	Devices []struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Type     string `json:"type"`
		IsActive bool   `json:"is_active"`
	} `json:"devices"`
}

func (p *PlayerREST) Devices(ctx context.Context, token string) ([]core.Device, int, error) {
	resp, err := p.do(ctx, http.MethodGet, "/me/player/devices", nil, token, nil)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode, nil
	}

	var list deviceList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to decode devices: %w", err)
	}

	devices := make([]core.Device, 0, len(list.Devices))
	for _, d := range list.Devices {
		devices = append(devices, core.Device{ID: d.ID, Name: d.Name, Type: d.Type, Active: d.IsActive})
	}
	return devices, resp.StatusCode, nil
}

func (p *PlayerREST) TransferPlayback(ctx context.Context, token, deviceID string, play bool) (int, error) {
	body := map[string]interface{}{
		"device_ids": []string{deviceID},
		"play":       play,
	}
	return p.status(ctx, http.MethodPut, "/me/player", nil, token, body)
}

func (p *PlayerREST) Play(ctx context.Context, token, deviceID string, uris []string, positionMs int) (int, error) {
	body := map[string]interface{}{
		"uris":        uris,
		"position_ms": positionMs,
	}
	return p.status(ctx, http.MethodPut, "/me/player/play", deviceQuery(deviceID), token, body)
}

func (p *PlayerREST) Pause(ctx context.Context, token, deviceID string) (int, error) {
	return p.status(ctx, http.MethodPut, "/me/player/pause", deviceQuery(deviceID), token, nil)
}

func deviceQuery(deviceID string) url.Values {
	if deviceID == "" {
		return nil
	}
	return url.Values{"device_id": []string{deviceID}}
}

func (p *PlayerREST) status(ctx context.Context, method, path string, query url.Values, token string, body interface{}) (int, error) {
	resp, err := p.do(ctx, method, path, query, token, body)
	if err != nil {
		return 0, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	p.logger.Debug("Player command",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode))
	return resp.StatusCode, nil
}

func (p *PlayerREST) do(ctx context.Context, method, path string, query url.Values, token string, body interface{}) (*http.Response, error) {
	target := p.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	// #nosec G107 -- URL built from the configured API base
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("player request %s %s failed: %w", method, path, err)
	}
	return resp, nil
}
