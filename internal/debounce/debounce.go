// Package debounce drops events that arrive too soon after the last
// accepted one.
package debounce

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Gate accepts at most one event per window. Rejected events do not extend
// the window. A zero window accepts everything.
type Gate struct {
	window time.Duration
	now    func() time.Time

	mu  sync.Mutex
	lim *rate.Limiter
}

type Option func(*Gate)

// WithClock overrides time.Now; tests use it to step time by hand.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

func New(window time.Duration, opts ...Option) *Gate {
	g := &Gate{window: window, now: time.Now}
	for _, o := range opts {
		o(g)
	}
	g.lim = g.newLimiter()
	return g
}

func (g *Gate) newLimiter() *rate.Limiter {
	if g.window <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(g.window), 1)
}

func (g *Gate) Window() time.Duration { return g.window }

// Allow reports whether an event arriving now is accepted.
func (g *Gate) Allow() bool { return g.AllowAt(g.now()) }

func (g *Gate) AllowAt(t time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lim.AllowN(t, 1)
}

// Reset forgets the last accepted event.
func (g *Gate) Reset() {
	g.mu.Lock()
	g.lim = g.newLimiter()
	g.mu.Unlock()
}
