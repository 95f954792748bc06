package player

import (
	"context"
	"sync"
	"time"
)

// readyLatch settles once, with either a device id or an error. Later
// resolve or reject calls are ignored.
type readyLatch struct {
	once     sync.Once
	done     chan struct{}
	deviceID string
	err      error
}

func newReadyLatch() *readyLatch {
	return &readyLatch{done: make(chan struct{})}
}

func (l *readyLatch) resolve(deviceID string) {
	l.once.Do(func() {
		l.deviceID = deviceID
		close(l.done)
	})
}

func (l *readyLatch) reject(err error) {
	l.once.Do(func() {
		l.err = err
		close(l.done)
	})
}

func (l *readyLatch) wait(ctx context.Context, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-l.done:
		return l.deviceID, l.err
	case <-timer.C:
		l.reject(ErrReadyTimeout)
		<-l.done
		return l.deviceID, l.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
