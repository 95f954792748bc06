package player

import (
	"context"
	"errors"
	"fmt"

	"spotyfusion/internal/i18n"
)

var (
	ErrNoCredential    = errors.New("no credential available")
	ErrSDKUnavailable  = errors.New("playback sdk unavailable")
	ErrReadyTimeout    = errors.New("device ready timeout")
	ErrConnectFailed   = errors.New("device connect failed")
	ErrTransferFailed  = errors.New("playback transfer failed")
	ErrPremiumRequired = errors.New("premium account required")
	ErrNetwork         = errors.New("network error")
	ErrNotReady        = errors.New("player not ready")
	ErrInitialization  = errors.New("player initialization failed")
	ErrAuthentication  = errors.New("player authentication failed")
)

// PlaybackError is a non-success answer of the play endpoint.
type PlaybackError struct {
	Status int
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("playback failed with status %d", e.Status)
}

// SDKError is a fatal runtime event. Kind is one of ErrInitialization,
// ErrAuthentication or ErrPremiumRequired.
type SDKError struct {
	Kind    error
	Message string
}

func (e *SDKError) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *SDKError) Unwrap() error { return e.Kind }

// Reason maps an error to a short label for metrics and logs.
func Reason(err error) string {
	var pe *PlaybackError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &pe):
		return fmt.Sprintf("status_%d", pe.Status)
	case errors.Is(err, ErrNoCredential):
		return "no_credential"
	case errors.Is(err, ErrSDKUnavailable):
		return "sdk_unavailable"
	case errors.Is(err, ErrReadyTimeout):
		return "ready_timeout"
	case errors.Is(err, ErrConnectFailed):
		return "connect_failed"
	case errors.Is(err, ErrTransferFailed):
		return "transfer_failed"
	case errors.Is(err, ErrPremiumRequired):
		return "premium_required"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrNotReady):
		return "not_ready"
	case errors.Is(err, ErrInitialization):
		return "initialization"
	case errors.Is(err, ErrAuthentication):
		return "authentication"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

// Message renders err as user-facing text.
func Message(err error, loc *i18n.Localizer) string {
	if err == nil {
		return ""
	}

	var pe *PlaybackError
	if errors.As(err, &pe) {
		return loc.T("error.player.playback", pe.Status)
	}

	var se *SDKError
	if errors.As(err, &se) {
		switch {
		case errors.Is(se.Kind, ErrInitialization):
			return loc.T("error.player.initialization", se.Message)
		case errors.Is(se.Kind, ErrAuthentication):
			return loc.T("error.player.authentication", se.Message)
		case errors.Is(se.Kind, ErrPremiumRequired):
			return loc.T("error.player.premium_required")
		}
	}

	switch {
	case errors.Is(err, ErrNoCredential):
		return loc.T("error.player.no_credential")
	case errors.Is(err, ErrSDKUnavailable):
		return loc.T("error.player.sdk_unavailable")
	case errors.Is(err, ErrReadyTimeout):
		return loc.T("error.player.ready_timeout")
	case errors.Is(err, ErrConnectFailed):
		return loc.T("error.player.connect_failed")
	case errors.Is(err, ErrTransferFailed):
		return loc.T("error.player.transfer_failed")
	case errors.Is(err, ErrPremiumRequired):
		return loc.T("error.player.premium_required")
	case errors.Is(err, ErrNetwork):
		return loc.T("error.player.network")
	case errors.Is(err, ErrNotReady):
		return loc.T("error.player.not_ready")
	default:
		return loc.T("error.generic")
	}
}
