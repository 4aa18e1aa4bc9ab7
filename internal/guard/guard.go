// Package guard tracks unsaved manual edits and decides whether a background
// reload may replace a locally edited collection.
package guard

import (
	"sync"
	"time"

	"github.com/sells-group/costing-cli/internal/clock"
	"github.com/sells-group/costing-cli/internal/model"
)

// DefaultWindow is how long a manual edit blocks background reloads.
const DefaultWindow = 10 * time.Second

// Option configures a Guard.
type Option func(*Guard)

// WithWindow overrides the dirty window.
func WithWindow(d time.Duration) Option {
	return func(g *Guard) {
		if d > 0 {
			g.window = d
		}
	}
}

// WithClock sets the time source.
func WithClock(c clock.Clock) Option {
	return func(g *Guard) {
		g.clock = c
	}
}

// Guard holds the dirty flags of one editor's collections. Each open recipe
// gets its own Guard; nothing is shared between recipes.
type Guard struct {
	mu     sync.Mutex
	clock  clock.Clock
	window time.Duration
	flags  map[model.Collection]model.DirtyFlag
}

// New creates a Guard with every collection clean.
func New(opts ...Option) *Guard {
	g := &Guard{
		clock:  clock.Real{},
		window: DefaultWindow,
		flags:  make(map[model.Collection]model.DirtyFlag),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// MarkDirty records a local mutation of the collection at the current time.
func (g *Guard) MarkDirty(c model.Collection) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.flags[c] = model.DirtyFlag{HasManualChange: true, LastChangeAt: g.clock.Now()}
}

// AllowReload reports whether a background reload may replace the
// collection. It is rejected while the collection is dirty and the last
// change is younger than the window.
func (g *Guard) AllowReload(c model.Collection) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	f, ok := g.flags[c]
	if !ok || !f.HasManualChange {
		return true
	}
	return g.clock.Now().Sub(f.LastChangeAt) >= g.window
}

// Flag returns the current flag of the collection.
func (g *Guard) Flag(c model.Collection) model.DirtyFlag {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.flags[c]
}

// Reset marks every collection clean. Only a switch to another recipe
// resets; reloads and saves never do.
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	clear(g.flags)
}

// Window returns the configured dirty window.
func (g *Guard) Window() time.Duration {
	return g.window
}
