package player

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"spotyfusion/internal/core"
	"spotyfusion/internal/i18n"
	"spotyfusion/internal/metrics"
)

// Manager keeps exactly one playback device session alive and issues playback
// commands against it. All state is owned here; callers only read Status.
type Manager struct {
	config  *core.PlayerConfig
	creds   core.CredentialProvider
	api     core.PlayerAPI
	runtime Runtime
	logger  *zap.Logger
	metrics *metrics.Metrics
	loc     *i18n.Localizer

	// connecting collapses concurrent connect attempts into one.
	connecting atomic.Bool

	mu         sync.RWMutex
	state      State
	device     Device
	deviceID   string
	generation uint64
	playing    bool
	lastErr    error
	errGen     uint64
}

func NewManager(
	config *core.PlayerConfig,
	creds core.CredentialProvider,
	api core.PlayerAPI,
	runtime Runtime,
	logger *zap.Logger,
	m *metrics.Metrics,
	loc *i18n.Localizer,
) *Manager {
	if loc == nil {
		loc = i18n.NewLocalizer(i18n.DefaultLanguage)
	}
	return &Manager{
		config:  config,
		creds:   creds,
		api:     api,
		runtime: runtime,
		logger:  logger.Named("player"),
		metrics: m,
		loc:     loc,
		state:   StateIdle,
	}
}

// Connect runs the full connect protocol. It returns false when another
// connect is already in flight or when any step failed; the failure is kept
// as the sticky error.
func (m *Manager) Connect(ctx context.Context) bool {
	if !m.connecting.CompareAndSwap(false, true) {
		m.logger.Debug("Connect already in flight")
		return false
	}
	defer m.connecting.Store(false)

	start := time.Now()
	gen, err := m.connect(ctx)
	m.metrics.RecordConnect(Reason(err))

	if err != nil {
		m.fail(gen, err)
		m.logger.Warn("Player connect failed",
			zap.String("reason", Reason(err)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return false
	}

	m.logger.Info("Player ready",
		zap.String("deviceID", m.DeviceID()),
		zap.Duration("elapsed", time.Since(start)))
	return true
}

// Reconnect tears down the current session and connects a new one.
func (m *Manager) Reconnect(ctx context.Context) bool {
	return m.Connect(ctx)
}

// EnsureConnected connects only when no usable session exists.
func (m *Manager) EnsureConnected(ctx context.Context) bool {
	if m.IsReady() {
		return true
	}
	return m.Connect(ctx)
}

func (m *Manager) connect(ctx context.Context) (uint64, error) {
	gen, old := m.begin()
	if old != nil {
		old.Disconnect()
	}

	token, err := m.creds.Token(ctx)
	if err != nil || token == "" {
		return gen, fmt.Errorf("%w: %v", ErrNoCredential, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, m.config.SDKTimeout)
	err = m.runtime.WaitAvailable(waitCtx)
	cancel()
	if err != nil {
		return gen, fmt.Errorf("%w: %v", ErrSDKUnavailable, err)
	}

	device, err := m.runtime.NewDevice(ctx, DeviceOptions{
		Name:   m.config.DeviceName,
		Volume: m.config.Volume,
		Token:  m.creds.Token,
	})
	if err != nil {
		return gen, fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}

	latch := newReadyLatch()
	m.register(gen, device, latch)

	if !m.adopt(gen, device) {
		device.Disconnect()
		return gen, fmt.Errorf("%w: superseded", ErrConnectFailed)
	}
	m.setState(gen, StateAwaitingReady)

	connected, err := device.Connect(ctx)
	if err != nil || !connected {
		return gen, fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}

	deviceID, err := latch.wait(ctx, m.config.ReadyTimeout)
	if err != nil {
		return gen, err
	}

	if token, err := m.creds.Token(ctx); err == nil && token != "" {
		if !m.waitVisible(ctx, token, deviceID) {
			m.logger.Warn("Device not visible in device list, proceeding anyway",
				zap.String("deviceID", deviceID))
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation {
		return gen, fmt.Errorf("%w: superseded", ErrConnectFailed)
	}
	m.deviceID = deviceID
	m.state = StateReady
	m.playing = false
	m.lastErr = nil
	return gen, nil
}

// begin starts a new generation and detaches the previous device.
func (m *Manager) begin() (uint64, Device) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.generation++
	old := m.device
	m.device = nil
	m.deviceID = ""
	m.playing = false
	m.state = StateConnecting
	return m.generation, old
}

func (m *Manager) adopt(gen uint64, device Device) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation {
		return false
	}
	m.device = device
	return true
}

func (m *Manager) register(gen uint64, device Device, latch *readyLatch) {
	device.On(EventReady, func(p EventPayload) {
		m.metrics.RecordSDKEvent(string(EventReady))
		if !m.current(gen) {
			return
		}
		latch.resolve(p.DeviceID)
	})

	fatal := func(event Event, kind error) Handler {
		return func(p EventPayload) {
			m.metrics.RecordSDKEvent(string(event))
			if !m.current(gen) {
				return
			}
			sdkErr := &SDKError{Kind: kind, Message: p.Message}
			m.logger.Warn("Player SDK error",
				zap.String("event", string(event)),
				zap.String("message", p.Message))
			m.setError(gen, sdkErr)
			latch.reject(sdkErr)
		}
	}
	device.On(EventInitializationError, fatal(EventInitializationError, ErrInitialization))
	device.On(EventAuthenticationError, fatal(EventAuthenticationError, ErrAuthentication))
	device.On(EventAccountError, fatal(EventAccountError, ErrPremiumRequired))

	device.On(EventPlaybackError, func(p EventPayload) {
		m.metrics.RecordSDKEvent(string(EventPlaybackError))
		m.logger.Debug("Player playback error", zap.String("message", p.Message))
	})

	device.On(EventNotReady, func(p EventPayload) {
		m.metrics.RecordSDKEvent(string(EventNotReady))
		m.mu.Lock()
		defer m.mu.Unlock()
		if gen != m.generation {
			return
		}
		if m.state.usable() {
			m.state = StateNotReady
		}
		m.logger.Info("Player went offline", zap.String("deviceID", p.DeviceID))
	})

	device.On(EventPlayerStateChanged, func(p EventPayload) {
		m.metrics.RecordSDKEvent(string(EventPlayerStateChanged))
		if p.Paused == nil {
			return
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		if gen != m.generation {
			return
		}
		m.playing = !*p.Paused
		if m.state.usable() || m.state == StateNotReady {
			if m.playing {
				m.state = StatePlaying
			} else {
				m.state = StatePaused
			}
		}
	})
}

// waitVisible polls the device list until deviceID shows up or attempts run out.
func (m *Manager) waitVisible(ctx context.Context, token, deviceID string) bool {
	attempts := m.config.VisibilityAttempts
	for attempt := 1; attempt <= attempts; attempt++ {
		var devices []core.Device
		status, err := m.authorized(ctx, &token, func(t string) (int, error) {
			var s int
			var e error
			devices, s, e = m.api.Devices(ctx, t)
			return s, e
		})
		if err == nil && isSuccess(status) {
			for _, d := range devices {
				if d.ID == deviceID {
					m.logger.Debug("Device visible",
						zap.String("deviceID", deviceID),
						zap.Int("attempt", attempt))
					return true
				}
			}
		}

		if attempt < attempts {
			if sleepWithContext(ctx, m.config.VisibilityInterval) != nil {
				return false
			}
		}
	}
	return false
}

func (m *Manager) current(gen uint64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return gen == m.generation
}

func (m *Manager) setState(gen uint64, state State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen == m.generation {
		m.state = state
	}
}

func (m *Manager) setError(gen uint64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen == m.generation {
		m.lastErr = err
		m.errGen = gen
	}
}

// fail moves the session identified by gen to Disconnected and records err.
func (m *Manager) fail(gen uint64, err error) {
	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return
	}
	device := m.device
	m.device = nil
	m.deviceID = ""
	m.playing = false
	m.state = StateDisconnected
	// an SDK error raised during this attempt is more precise than err
	var sdkErr *SDKError
	if m.errGen != gen || !errors.As(m.lastErr, &sdkErr) {
		m.lastErr = err
		m.errGen = gen
	}
	m.mu.Unlock()

	if device != nil {
		device.Disconnect()
	}
}

// Disconnect drops the current session.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.generation++
	device := m.device
	m.device = nil
	m.deviceID = ""
	m.playing = false
	m.state = StateDisconnected
	m.mu.Unlock()

	if device != nil {
		device.Disconnect()
	}
	m.logger.Info("Player disconnected")
}

// Play starts uri on the managed device. Failures are kept as the sticky error.
func (m *Manager) Play(ctx context.Context, uri string) bool {
	err := m.PlayTrackAt(ctx, uri)
	m.metrics.RecordCommand("play", Reason(err))
	if err != nil {
		m.mu.Lock()
		m.lastErr = err
		m.mu.Unlock()
		m.logger.Warn("Play failed",
			zap.String("uri", uri),
			zap.String("reason", Reason(err)),
			zap.Error(err))
		return false
	}
	return true
}

// PlayTrackAt transfers playback to the managed device and plays uri from the
// configured start offset. A stale device triggers one reconnect; the play
// call itself is retried at most once.
func (m *Manager) PlayTrackAt(ctx context.Context, uri string) error {
	deviceID := m.DeviceID()
	if deviceID == "" {
		return ErrNotReady
	}

	token, err := m.creds.Token(ctx)
	if err != nil || token == "" {
		return fmt.Errorf("%w: %v", ErrNoCredential, err)
	}

	transfer := func(id string) (int, error) {
		return m.authorized(ctx, &token, func(t string) (int, error) {
			return m.api.TransferPlayback(ctx, t, id, false)
		})
	}
	play := func(id string, positionMs int) (int, error) {
		return m.authorized(ctx, &token, func(t string) (int, error) {
			return m.api.Play(ctx, t, id, []string{uri}, positionMs)
		})
	}

	status, err := transfer(deviceID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	switch {
	case isSuccess(status):
		if err := sleepWithContext(ctx, m.config.TransferSettle); err != nil {
			return err
		}
	case status == http.StatusNotFound:
		m.logger.Info("Device stale on transfer, reconnecting", zap.String("deviceID", deviceID))
		if !m.Connect(ctx) || m.DeviceID() == "" {
			return ErrTransferFailed
		}
		deviceID = m.DeviceID()

		// the reconnect may have refreshed the credential
		if fresh, err := m.creds.Token(ctx); err == nil && fresh != "" {
			token = fresh
		}

		status, err = transfer(deviceID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrNetwork, err)
		}
		if !isSuccess(status) {
			return fmt.Errorf("%w: status %d", ErrTransferFailed, status)
		}
		if err := sleepWithContext(ctx, m.config.TransferSettle); err != nil {
			return err
		}
	default:
		m.logger.Debug("Transfer answered unexpected status, trying play anyway",
			zap.Int("status", status))
	}

	status, err = play(deviceID, m.config.StartPositionMs)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	if status == http.StatusNotFound {
		m.logger.Info("Play answered not found, retrying once", zap.String("deviceID", deviceID))
		if _, err := transfer(deviceID); err != nil {
			return fmt.Errorf("%w: %v", ErrNetwork, err)
		}
		if err := sleepWithContext(ctx, m.config.PlayRetryDelay); err != nil {
			return err
		}
		status, err = play(deviceID, m.config.RetryStartPositionMs)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrNetwork, err)
		}
	}

	switch {
	case isSuccess(status):
		m.markPlaying(deviceID)
		return nil
	case status == http.StatusForbidden:
		return ErrPremiumRequired
	default:
		return &PlaybackError{Status: status}
	}
}

func (m *Manager) markPlaying(deviceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deviceID != deviceID {
		return
	}
	m.playing = true
	m.state = StatePlaying
}

// Pause pauses through the SDK and falls back to the Web API. Errors are
// logged only.
func (m *Manager) Pause(ctx context.Context) {
	m.mu.RLock()
	device := m.device
	deviceID := m.deviceID
	m.mu.RUnlock()

	if device == nil {
		return
	}

	err := device.Pause(ctx)
	if err != nil && deviceID != "" {
		m.logger.Debug("SDK pause failed, using Web API", zap.Error(err))
		if token, terr := m.creds.Token(ctx); terr == nil {
			status, perr := m.authorized(ctx, &token, func(t string) (int, error) {
				return m.api.Pause(ctx, t, deviceID)
			})
			err = perr
			if perr == nil && !isSuccess(status) {
				err = &PlaybackError{Status: status}
			}
		}
	}
	m.metrics.RecordCommand("pause", Reason(err))

	m.mu.Lock()
	if m.deviceID == deviceID {
		m.playing = false
		if m.state == StatePlaying {
			m.state = StatePaused
		}
	}
	m.mu.Unlock()
}

// Activate unlocks audio output on the device. Errors are logged only.
func (m *Manager) Activate(ctx context.Context) {
	m.mu.RLock()
	device := m.device
	m.mu.RUnlock()

	if device == nil {
		return
	}
	if err := device.Activate(ctx); err != nil {
		m.logger.Debug("Activate failed", zap.Error(err))
	}
}

// authorized runs call and, on a 401, refreshes the credential once and
// replays it with the new token.
func (m *Manager) authorized(ctx context.Context, token *string, call func(string) (int, error)) (int, error) {
	status, err := call(*token)
	if err != nil || status != http.StatusUnauthorized {
		return status, err
	}

	fresh, rerr := m.creds.Refresh(ctx)
	if rerr != nil || fresh == "" {
		m.logger.Warn("Credential refresh after 401 failed", zap.Error(rerr))
		return status, nil
	}
	*token = fresh
	return call(fresh)
}

func (m *Manager) DeviceID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.deviceID
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) IsReady() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.deviceID != "" && m.state.usable()
}

// Err returns the sticky error, nil after a successful connect.
func (m *Manager) Err() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Status{
		State:     m.state.String(),
		IsReady:   m.deviceID != "" && m.state.usable(),
		IsPlaying: m.playing,
		DeviceID:  m.deviceID,
		Error:     Message(m.lastErr, m.loc),
	}
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
