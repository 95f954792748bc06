// Package player owns the lifecycle of the single playback device session:
// creation, the ready handshake, visibility polling, playback commands and
// reconnection.
package player

import "context"

// Event names emitted by the playback runtime.
type Event string

const (
	EventReady               Event = "ready"
	EventNotReady            Event = "not_ready"
	EventInitializationError Event = "initialization_error"
	EventAuthenticationError Event = "authentication_error"
	EventAccountError        Event = "account_error"
	EventPlaybackError       Event = "playback_error"
	EventPlayerStateChanged  Event = "player_state_changed"
)

// EventPayload carries the fields of any runtime event; each event fills the
// ones it knows about.
type EventPayload struct {
	DeviceID   string `json:"device_id,omitempty"`
	Message    string `json:"message,omitempty"`
	Paused     *bool  `json:"paused,omitempty"`
	PositionMs int    `json:"position,omitempty"`
	TrackURI   string `json:"track_uri,omitempty"`
}

type Handler func(EventPayload)

// TokenFunc hands a bearer credential to the runtime whenever it asks for one.
type TokenFunc func(ctx context.Context) (string, error)

type DeviceOptions struct {
	Name   string
	Volume float64
	Token  TokenFunc
}

// Runtime is the external playback SDK host.
type Runtime interface {
	// WaitAvailable blocks until the SDK can create devices or ctx ends.
	WaitAvailable(ctx context.Context) error
	NewDevice(ctx context.Context, opts DeviceOptions) (Device, error)
}

// Device is one SDK player instance. Handlers registered with On may be
// called from any goroutine.
type Device interface {
	On(event Event, handler Handler)
	Connect(ctx context.Context) (bool, error)
	Disconnect()
	Pause(ctx context.Context) error
	Activate(ctx context.Context) error
}
