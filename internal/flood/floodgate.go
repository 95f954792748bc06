// Package flood rate limits API clients with a sliding one-minute window.
package flood

import (
	"sync"
	"time"
)

const (
	// windowDuration is the span a client's requests are counted over
	windowDuration = 60 * time.Second
	// sweepInterval is how often idle windows are dropped
	sweepInterval = 10 * time.Minute
	// idleTimeout is how long a window survives without requests
	idleTimeout = 10 * time.Minute
)

// Floodgate counts requests per scope and client. A scope is a route group
// such as "recommend"; each scope may carry its own limit.
type Floodgate struct {
	defaultLimit int
	scopeLimits  map[string]int
	now          func() time.Time

	mu      sync.Mutex
	windows map[windowKey]*window

	stopOnce sync.Once
	stop     chan struct{}
}

type windowKey struct {
	scope  string
	client string
}

type window struct {
	hits     []time.Time
	lastSeen time.Time
}

// prune drops the hits at or before since.
func (w *window) prune(since time.Time) {
	kept := w.hits[:0]
	for _, hit := range w.hits {
		if hit.After(since) {
			kept = append(kept, hit)
		}
	}
	w.hits = kept
}

// New creates a Floodgate allowing limitPerMinute requests per client in
// every scope without an override. A non-positive limit blocks everything.
func New(limitPerMinute int) *Floodgate {
	fg := &Floodgate{
		defaultLimit: limitPerMinute,
		scopeLimits:  make(map[string]int),
		now:          time.Now,
		windows:      make(map[windowKey]*window),
		stop:         make(chan struct{}),
	}

	go fg.sweepLoop()

	return fg
}

// WithScopeLimit overrides the limit of one scope. Call it before serving.
func (fg *Floodgate) WithScopeLimit(scope string, limitPerMinute int) *Floodgate {
	fg.scopeLimits[scope] = limitPerMinute
	return fg
}

// Limit returns the per-minute limit applied to scope.
func (fg *Floodgate) Limit(scope string) int {
	if limit, ok := fg.scopeLimits[scope]; ok {
		return limit
	}
	return fg.defaultLimit
}

// Stop ends the background sweep. It is safe to call more than once.
func (fg *Floodgate) Stop() {
	fg.stopOnce.Do(func() { close(fg.stop) })
}

// Allow records a request of client in scope. A refused request is not
// counted; the returned duration is how long until a slot frees up.
func (fg *Floodgate) Allow(scope, client string) (bool, time.Duration) {
	limit := fg.Limit(scope)
	now := fg.now()

	fg.mu.Lock()
	defer fg.mu.Unlock()

	key := windowKey{scope: scope, client: client}
	w, ok := fg.windows[key]
	if !ok {
		w = &window{hits: make([]time.Time, 0, max(limit, 0)+1)}
		fg.windows[key] = w
	}
	w.lastSeen = now
	w.prune(now.Add(-windowDuration))

	switch {
	case limit <= 0:
		return false, windowDuration
	case len(w.hits) >= limit:
		return false, w.hits[0].Add(windowDuration).Sub(now)
	}

	w.hits = append(w.hits, now)
	return true, 0
}

func (fg *Floodgate) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fg.sweep()
		case <-fg.stop:
			return
		}
	}
}

func (fg *Floodgate) sweep() {
	cutoff := fg.now().Add(-idleTimeout)

	fg.mu.Lock()
	defer fg.mu.Unlock()

	for key, w := range fg.windows {
		if w.lastSeen.Before(cutoff) {
			delete(fg.windows, key)
		}
	}
}

// Stats is a snapshot for monitoring.
type Stats struct {
	ActiveClients  int            `json:"activeClients"`
	ClientsByScope map[string]int `json:"clientsByScope"`
	LimitPerMinute int            `json:"limitPerMinute"`
	WindowSeconds  int            `json:"windowSeconds"`
}

func (fg *Floodgate) GetStats() Stats {
	fg.mu.Lock()
	defer fg.mu.Unlock()

	byScope := make(map[string]int)
	for key := range fg.windows {
		byScope[key.scope]++
	}
	return Stats{
		ActiveClients:  len(fg.windows),
		ClientsByScope: byScope,
		LimitPerMinute: fg.defaultLimit,
		WindowSeconds:  int(windowDuration.Seconds()),
	}
}
