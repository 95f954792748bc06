package player

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"spotyfusion/internal/core"
	"spotyfusion/internal/i18n"
)

// mockCreds hands out a fixed token and counts refreshes.
type mockCreds struct {
	mu        sync.Mutex
	token     string
	refreshed string
	err       error
	refreshes int
}

func (c *mockCreds) Token(_ context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, c.err
}

func (c *mockCreds) Refresh(_ context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshes++
	if c.refreshed == "" {
		return "", errors.New("no refresh token")
	}
	c.token = c.refreshed
	return c.token, nil
}

type apiCall struct {
	method   string
	token    string
	deviceID string
}

// mockAPI answers from per-method status queues; an empty queue answers 204.
type mockAPI struct {
	mu       sync.Mutex
	calls    []apiCall
	transfer []int
	play     []int
	pause    []int
	offsets  []int
	netErr   error
	visible  func(attempt int) []core.Device
	devCalls int
}

func pop(q *[]int) int {
	if len(*q) == 0 {
		return http.StatusNoContent
	}
	s := (*q)[0]
	*q = (*q)[1:]
	return s
}

func (a *mockAPI) record(method, token, deviceID string) {
	a.calls = append(a.calls, apiCall{method: method, token: token, deviceID: deviceID})
}

func (a *mockAPI) Devices(_ context.Context, token string) ([]core.Device, int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.devCalls++
	a.record("devices", token, "")
	if a.visible == nil {
		return nil, http.StatusOK, nil
	}
	return a.visible(a.devCalls), http.StatusOK, nil
}

func (a *mockAPI) TransferPlayback(_ context.Context, token, deviceID string, _ bool) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.record("transfer", token, deviceID)
	if a.netErr != nil {
		return 0, a.netErr
	}
	return pop(&a.transfer), nil
}

func (a *mockAPI) Play(_ context.Context, token, deviceID string, _ []string, positionMs int) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.record("play", token, deviceID)
	a.offsets = append(a.offsets, positionMs)
	return pop(&a.play), nil
}

func (a *mockAPI) Pause(_ context.Context, token, deviceID string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.record("pause", token, deviceID)
	return pop(&a.pause), nil
}

func (a *mockAPI) count(method string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, c := range a.calls {
		if c.method == method {
			n++
		}
	}
	return n
}

func (a *mockAPI) callsOf(method string) []apiCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []apiCall
	for _, c := range a.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

// mockDevice emits events scripted by the test when Connect is called.
type mockDevice struct {
	mu           sync.Mutex
	handlers     map[Event][]Handler
	onConnect    func(d *mockDevice)
	connectOK    bool
	disconnected bool
	pauseErr     error
	pauses       int
	activations  int
}

func newMockDevice(onConnect func(d *mockDevice)) *mockDevice {
	return &mockDevice{handlers: make(map[Event][]Handler), onConnect: onConnect, connectOK: true}
}

func (d *mockDevice) On(event Event, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[event] = append(d.handlers[event], h)
}

func (d *mockDevice) emit(event Event, p EventPayload) {
	d.mu.Lock()
	hs := append([]Handler(nil), d.handlers[event]...)
	d.mu.Unlock()
	for _, h := range hs {
		h(p)
	}
}

func (d *mockDevice) Connect(_ context.Context) (bool, error) {
	if d.onConnect != nil {
		d.onConnect(d)
	}
	return d.connectOK, nil
}

func (d *mockDevice) Disconnect() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disconnected = true
}

func (d *mockDevice) isDisconnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.disconnected
}

func (d *mockDevice) Pause(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pauses++
	return d.pauseErr
}

func (d *mockDevice) Activate(_ context.Context) error {
	d.activations++
	return nil
}

// mockRuntime builds devices through newDevice and counts them.
type mockRuntime struct {
	mu          sync.Mutex
	unavailable bool
	newDevice   func(n int) *mockDevice
	devices     []*mockDevice
}

func (r *mockRuntime) WaitAvailable(ctx context.Context) error {
	if r.unavailable {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (r *mockRuntime) NewDevice(_ context.Context, _ DeviceOptions) (Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.newDevice(len(r.devices) + 1)
	r.devices = append(r.devices, d)
	return d, nil
}

func (r *mockRuntime) created() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.devices)
}

// readyDevice emits ready with a numbered device id.
func readyDevice(n int) *mockDevice {
	return newMockDevice(func(d *mockDevice) {
		go d.emit(EventReady, EventPayload{DeviceID: fmt.Sprintf("dev-%d", n)})
	})
}

func testConfig() *core.PlayerConfig {
	return &core.PlayerConfig{
		DeviceName:         core.DefaultDeviceName,
		Volume:             core.DefaultDeviceVolume,
		SDKTimeout:         50 * time.Millisecond,
		ReadyTimeout:       100 * time.Millisecond,
		VisibilityAttempts: 3,
		VisibilityInterval: time.Millisecond,
		TransferSettle:     time.Millisecond,
		PlayRetryDelay:     time.Millisecond,
		StartPositionMs:    core.DefaultStartPositionMs,

		RetryStartPositionMs: core.DefaultRetryStartPositionMs,
	}
}

func newTestManager(creds *mockCreds, api *mockAPI, rt *mockRuntime) *Manager {
	return NewManager(testConfig(), creds, api, rt, zap.NewNop(), nil, i18n.NewLocalizer(i18n.DefaultLanguage))
}

func TestManager_ConnectSuccess(t *testing.T) {
	api := &mockAPI{visible: func(attempt int) []core.Device {
		if attempt < 2 {
			return nil
		}
		return []core.Device{{ID: "dev-1"}}
	}}
	rt := &mockRuntime{newDevice: readyDevice}
	m := newTestManager(&mockCreds{token: "tok"}, api, rt)

	if !m.Connect(context.Background()) {
		t.Fatalf("Connect failed: %v", m.Err())
	}

	st := m.Status()
	if st.State != "ready" || !st.IsReady || st.DeviceID != "dev-1" || st.Error != "" {
		t.Errorf("unexpected status %+v", st)
	}
	if got := api.count("devices"); got != 2 {
		t.Errorf("expected visibility polling to stop after 2 calls, got %d", got)
	}
}

func TestManager_ConnectProceedsWhenNeverVisible(t *testing.T) {
	api := &mockAPI{}
	rt := &mockRuntime{newDevice: readyDevice}
	m := newTestManager(&mockCreds{token: "tok"}, api, rt)

	if !m.Connect(context.Background()) {
		t.Fatalf("Connect should proceed after visibility attempts run out: %v", m.Err())
	}
	if got := api.count("devices"); got != 3 {
		t.Errorf("expected exactly 3 visibility attempts, got %d", got)
	}
}

func TestManager_ReadyTimeout(t *testing.T) {
	rt := &mockRuntime{newDevice: func(int) *mockDevice { return newMockDevice(nil) }}
	m := newTestManager(&mockCreds{token: "tok"}, &mockAPI{}, rt)

	if m.Connect(context.Background()) {
		t.Fatal("Connect should fail without a ready event")
	}
	if m.State() != StateDisconnected {
		t.Errorf("expected Disconnected, got %s", m.State())
	}
	if !errors.Is(m.Err(), ErrReadyTimeout) {
		t.Errorf("expected ErrReadyTimeout, got %v", m.Err())
	}
	if !rt.devices[0].isDisconnected() {
		t.Error("timed out device should be disconnected")
	}
	if m.Status().Error != "The Spotify player did not become ready in time." {
		t.Errorf("unexpected message %q", m.Status().Error)
	}
}

func TestManager_ConnectFailures(t *testing.T) {
	tests := []struct {
		name    string
		creds   *mockCreds
		runtime *mockRuntime
		wantErr error
	}{
		{
			name:    "no credential",
			creds:   &mockCreds{err: errors.New("logged out")},
			runtime: &mockRuntime{newDevice: readyDevice},
			wantErr: ErrNoCredential,
		},
		{
			name:    "sdk never loads",
			creds:   &mockCreds{token: "tok"},
			runtime: &mockRuntime{unavailable: true, newDevice: readyDevice},
			wantErr: ErrSDKUnavailable,
		},
		{
			name:  "connect reports false",
			creds: &mockCreds{token: "tok"},
			runtime: &mockRuntime{newDevice: func(int) *mockDevice {
				d := newMockDevice(nil)
				d.connectOK = false
				return d
			}},
			wantErr: ErrConnectFailed,
		},
		{
			name:  "account error rejects handshake",
			creds: &mockCreds{token: "tok"},
			runtime: &mockRuntime{newDevice: func(int) *mockDevice {
				return newMockDevice(func(d *mockDevice) {
					d.emit(EventAccountError, EventPayload{Message: "free tier"})
				})
			}},
			wantErr: ErrPremiumRequired,
		},
		{
			name:  "authentication error rejects handshake",
			creds: &mockCreds{token: "tok"},
			runtime: &mockRuntime{newDevice: func(int) *mockDevice {
				return newMockDevice(func(d *mockDevice) {
					d.emit(EventAuthenticationError, EventPayload{Message: "Invalid token scopes."})
				})
			}},
			wantErr: ErrAuthentication,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(tt.creds, &mockAPI{}, tt.runtime)
			start := time.Now()

			if m.Connect(context.Background()) {
				t.Fatal("Connect should fail")
			}
			if !errors.Is(m.Err(), tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, m.Err())
			}
			if m.State() != StateDisconnected {
				t.Errorf("expected Disconnected, got %s", m.State())
			}
			if errors.Is(tt.wantErr, ErrPremiumRequired) && time.Since(start) > 90*time.Millisecond {
				t.Error("account error should not wait for the ready timeout")
			}
		})
	}
}

func TestManager_AuthenticationMessageIsDistinct(t *testing.T) {
	rt := &mockRuntime{newDevice: func(int) *mockDevice {
		return newMockDevice(func(d *mockDevice) {
			d.emit(EventAuthenticationError, EventPayload{Message: "Invalid token scopes."})
		})
	}}
	m := NewManager(testConfig(), &mockCreds{token: "tok"}, &mockAPI{}, rt, zap.NewNop(), nil,
		i18n.NewLocalizer(i18n.FrenchMessages))

	m.Connect(context.Background())

	want := "Erreur auth: Invalid token scopes.. Veuillez vous déconnecter et reconnecter."
	if got := m.Status().Error; got != want {
		t.Errorf("Status().Error = %q, want %q", got, want)
	}
}

func TestManager_ConcurrentConnectCollapses(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	rt := &mockRuntime{newDevice: func(n int) *mockDevice {
		return newMockDevice(func(d *mockDevice) {
			close(entered)
			<-release
			go d.emit(EventReady, EventPayload{DeviceID: fmt.Sprintf("dev-%d", n)})
		})
	}}
	m := newTestManager(&mockCreds{token: "tok"}, &mockAPI{}, rt)

	result := make(chan bool)
	go func() { result <- m.Connect(context.Background()) }()

	<-entered
	if m.Connect(context.Background()) {
		t.Error("second concurrent Connect should return false")
	}
	close(release)

	if !<-result {
		t.Errorf("first Connect should succeed: %v", m.Err())
	}
	if rt.created() != 1 {
		t.Errorf("expected one device, got %d", rt.created())
	}
}

func TestManager_ReconnectDisconnectsPreviousDevice(t *testing.T) {
	rt := &mockRuntime{newDevice: readyDevice}
	m := newTestManager(&mockCreds{token: "tok"}, &mockAPI{}, rt)

	m.Connect(context.Background())
	m.Reconnect(context.Background())

	if !rt.devices[0].isDisconnected() {
		t.Error("first device should be disconnected on reconnect")
	}
	if m.DeviceID() != "dev-2" {
		t.Errorf("expected dev-2, got %s", m.DeviceID())
	}

	// events from the superseded session are ignored
	paused := false
	rt.devices[0].emit(EventPlayerStateChanged, EventPayload{Paused: &paused})
	rt.devices[0].emit(EventNotReady, EventPayload{})
	if m.State() != StateReady || m.Status().IsPlaying {
		t.Errorf("stale events changed state to %s", m.State())
	}
}

func TestManager_PlayRequiresDevice(t *testing.T) {
	m := newTestManager(&mockCreds{token: "tok"}, &mockAPI{}, &mockRuntime{newDevice: readyDevice})

	if err := m.PlayTrackAt(context.Background(), "spotify:track:x"); !errors.Is(err, ErrNotReady) {
		t.Errorf("expected ErrNotReady, got %v", err)
	}
	if m.Play(context.Background(), "spotify:track:x") {
		t.Error("Play should fail")
	}
	if m.Status().Error != "Player not ready: no device ID." {
		t.Errorf("unexpected error %q", m.Status().Error)
	}
}

func connectedManager(t *testing.T, api *mockAPI, creds *mockCreds) (*Manager, *mockRuntime) {
	t.Helper()
	rt := &mockRuntime{newDevice: readyDevice}
	m := newTestManager(creds, api, rt)
	if !m.Connect(context.Background()) {
		t.Fatalf("setup connect failed: %v", m.Err())
	}
	return m, rt
}

func TestManager_PlaySuccess(t *testing.T) {
	api := &mockAPI{}
	m, _ := connectedManager(t, api, &mockCreds{token: "tok"})

	if err := m.PlayTrackAt(context.Background(), "spotify:track:x"); err != nil {
		t.Fatalf("PlayTrackAt failed: %v", err)
	}
	if api.count("transfer") != 1 || api.count("play") != 1 {
		t.Errorf("expected one transfer and one play, got %v", api.calls)
	}
	if plays := api.callsOf("play"); plays[0].deviceID != "dev-1" {
		t.Errorf("play should target dev-1, got %s", plays[0].deviceID)
	}
	if st := m.Status(); st.State != "playing" || !st.IsPlaying {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestManager_TransferNotFoundReconnectsOnce(t *testing.T) {
	api := &mockAPI{transfer: []int{http.StatusNotFound, http.StatusNoContent}}
	m, rt := connectedManager(t, api, &mockCreds{token: "tok"})

	if err := m.PlayTrackAt(context.Background(), "spotify:track:x"); err != nil {
		t.Fatalf("PlayTrackAt failed: %v", err)
	}
	if rt.created() != 2 {
		t.Errorf("expected exactly one reconnect, got %d devices", rt.created())
	}
	transfers := api.callsOf("transfer")
	if len(transfers) != 2 || transfers[1].deviceID != "dev-2" {
		t.Errorf("expected retried transfer against dev-2, got %+v", transfers)
	}
	if plays := api.callsOf("play"); len(plays) != 1 || plays[0].deviceID != "dev-2" {
		t.Errorf("expected play on dev-2, got %+v", plays)
	}
}

func TestManager_TransferNotFoundTwiceFails(t *testing.T) {
	api := &mockAPI{transfer: []int{http.StatusNotFound, http.StatusNotFound}}
	m, rt := connectedManager(t, api, &mockCreds{token: "tok"})

	err := m.PlayTrackAt(context.Background(), "spotify:track:x")
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	if rt.created() != 2 || api.count("transfer") != 2 || api.count("play") != 0 {
		t.Errorf("devices=%d transfers=%d plays=%d", rt.created(), api.count("transfer"), api.count("play"))
	}
}

func TestManager_TransferNotFoundReconnectFails(t *testing.T) {
	api := &mockAPI{transfer: []int{http.StatusNotFound}}
	rt := &mockRuntime{newDevice: func(n int) *mockDevice {
		if n == 1 {
			return readyDevice(n)
		}
		return newMockDevice(nil)
	}}
	m := newTestManager(&mockCreds{token: "tok"}, api, rt)
	if !m.Connect(context.Background()) {
		t.Fatal("setup connect failed")
	}

	if err := m.PlayTrackAt(context.Background(), "spotify:track:x"); !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	if api.count("transfer") != 1 {
		t.Errorf("no transfer retry expected after failed reconnect, got %d", api.count("transfer"))
	}
}

func TestManager_PlayNotFoundRetriesOnce(t *testing.T) {
	tests := []struct {
		name    string
		play    []int
		wantErr error
		status  int
	}{
		{name: "retry succeeds", play: []int{http.StatusNotFound, http.StatusNoContent}},
		{name: "retry fails", play: []int{http.StatusNotFound, http.StatusNotFound}, status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &mockAPI{play: tt.play}
			m, _ := connectedManager(t, api, &mockCreds{token: "tok"})

			err := m.PlayTrackAt(context.Background(), "spotify:track:x")
			if tt.status == 0 && err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if tt.status != 0 {
				var pe *PlaybackError
				if !errors.As(err, &pe) || pe.Status != tt.status {
					t.Fatalf("expected PlaybackError{%d}, got %v", tt.status, err)
				}
			}
			if api.count("play") != 2 || api.count("transfer") != 2 {
				t.Errorf("expected 2 plays and 2 transfers, got %d and %d", api.count("play"), api.count("transfer"))
			}
			want := []int{core.DefaultStartPositionMs, core.DefaultRetryStartPositionMs}
			if !slices.Equal(api.offsets, want) {
				t.Errorf("play offsets = %v, want %v", api.offsets, want)
			}
		})
	}
}

func TestManager_PlayErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		api     *mockAPI
		check   func(error) bool
		message string
	}{
		{
			name:    "forbidden",
			api:     &mockAPI{play: []int{http.StatusForbidden, http.StatusForbidden}},
			check:   func(err error) bool { return errors.Is(err, ErrPremiumRequired) },
			message: "A Spotify Premium account is required for streaming.",
		},
		{
			name: "server error",
			api:  &mockAPI{play: []int{http.StatusBadGateway, http.StatusBadGateway}},
			check: func(err error) bool {
				var pe *PlaybackError
				return errors.As(err, &pe) && pe.Status == http.StatusBadGateway
			},
			message: "Playback error: 502",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := connectedManager(t, tt.api, &mockCreds{token: "tok"})

			if err := m.PlayTrackAt(context.Background(), "spotify:track:x"); !tt.check(err) {
				t.Errorf("unexpected error %v", err)
			}
			if m.Play(context.Background(), "spotify:track:x") {
				t.Error("Play should report false")
			}
			if got := m.Status().Error; got != tt.message {
				t.Errorf("Status().Error = %q, want %q", got, tt.message)
			}
		})
	}
}

func TestManager_PlayNetworkError(t *testing.T) {
	api := &mockAPI{}
	m, _ := connectedManager(t, api, &mockCreds{token: "tok"})
	api.netErr = errors.New("connection reset")

	if err := m.PlayTrackAt(context.Background(), "spotify:track:x"); !errors.Is(err, ErrNetwork) {
		t.Errorf("expected ErrNetwork, got %v", err)
	}
}

func TestManager_UnauthorizedRefreshesOnce(t *testing.T) {
	api := &mockAPI{transfer: []int{http.StatusUnauthorized, http.StatusNoContent}}
	creds := &mockCreds{token: "old", refreshed: "new"}
	m, _ := connectedManager(t, api, creds)

	if err := m.PlayTrackAt(context.Background(), "spotify:track:x"); err != nil {
		t.Fatalf("PlayTrackAt failed: %v", err)
	}
	if creds.refreshes != 1 {
		t.Errorf("expected one refresh, got %d", creds.refreshes)
	}
	transfers := api.callsOf("transfer")
	if len(transfers) != 2 || transfers[1].token != "new" {
		t.Errorf("expected transfer replayed with new token, got %+v", transfers)
	}
	if plays := api.callsOf("play"); plays[0].token != "new" {
		t.Errorf("play should use the refreshed token, got %s", plays[0].token)
	}
}

func TestManager_SuccessfulReconnectClearsStickyError(t *testing.T) {
	api := &mockAPI{play: []int{http.StatusForbidden}}
	m, _ := connectedManager(t, api, &mockCreds{token: "tok"})

	m.Play(context.Background(), "spotify:track:x")
	if m.Err() == nil {
		t.Fatal("expected sticky error")
	}
	if !m.Reconnect(context.Background()) {
		t.Fatal("reconnect failed")
	}
	if m.Err() != nil || m.Status().Error != "" {
		t.Errorf("sticky error should clear, got %v", m.Err())
	}
}

func TestManager_PauseFallsBackToWebAPI(t *testing.T) {
	api := &mockAPI{}
	m, rt := connectedManager(t, api, &mockCreds{token: "tok"})
	_ = m.PlayTrackAt(context.Background(), "spotify:track:x")

	rt.devices[0].pauseErr = errors.New("sdk gone")
	m.Pause(context.Background())

	if rt.devices[0].pauses != 1 || api.count("pause") != 1 {
		t.Errorf("expected sdk pause then api pause, got %d and %d", rt.devices[0].pauses, api.count("pause"))
	}
	if st := m.Status(); st.IsPlaying || st.State != "paused" {
		t.Errorf("unexpected status after pause %+v", st)
	}
}

func TestManager_PlayerStateEvents(t *testing.T) {
	m, rt := connectedManager(t, &mockAPI{}, &mockCreds{token: "tok"})
	dev := rt.devices[0]

	playing := false
	dev.emit(EventPlayerStateChanged, EventPayload{Paused: &playing})
	if !m.Status().IsPlaying || m.State() != StatePlaying {
		t.Errorf("expected playing, got %+v", m.Status())
	}

	dev.emit(EventNotReady, EventPayload{DeviceID: "dev-1"})
	if m.IsReady() || m.State() != StateNotReady {
		t.Errorf("expected not ready, got %s", m.State())
	}

	dev.emit(EventPlaybackError, EventPayload{Message: "glitch"})
	if m.Err() != nil {
		t.Error("playback errors must not become sticky")
	}
}

func TestManager_DisconnectAndActivate(t *testing.T) {
	m, rt := connectedManager(t, &mockAPI{}, &mockCreds{token: "tok"})

	m.Activate(context.Background())
	if rt.devices[0].activations != 1 {
		t.Error("Activate should reach the device")
	}

	m.Disconnect()
	if m.State() != StateDisconnected || m.DeviceID() != "" || !rt.devices[0].isDisconnected() {
		t.Errorf("unexpected state after Disconnect: %+v", m.Status())
	}

	// no device, no panic
	m.Pause(context.Background())
	m.Activate(context.Background())
}

func TestReadyLatch_SettlesOnce(t *testing.T) {
	l := newReadyLatch()
	l.resolve("a")
	l.resolve("b")
	l.reject(errors.New("late"))

	id, err := l.wait(context.Background(), time.Second)
	if id != "a" || err != nil {
		t.Errorf("wait() = %q, %v", id, err)
	}
}
