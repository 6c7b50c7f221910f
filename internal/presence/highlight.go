package presence

import (
	"sync"
	"time"

	"github.com/WatchBeam/clock"

	"github.com/bnema/presence-board/internal/roster"
)

// highlighter marks members changed by another client and wakes consumers
// once the marks have run out. Poll diffs and changes picked up while
// writing both go through it.
type highlighter struct {
	store    *roster.Store
	hub      *hub
	clk      clock.Clock
	duration time.Duration

	mu      sync.Mutex
	stopped bool
	quit    chan struct{}
	timers  sync.WaitGroup
}

func newHighlighter(store *roster.Store, h *hub, clk clock.Clock, d time.Duration) *highlighter {
	return &highlighter{
		store:    store,
		hub:      h,
		clk:      clk,
		duration: d,
		quit:     make(chan struct{}),
	}
}

// mark highlights members for the configured duration and schedules an
// UpdateHighlightExpired for when it ends.
func (hl *highlighter) mark(members roster.MemberSet) {
	if len(members) == 0 {
		return
	}

	hl.mu.Lock()
	defer hl.mu.Unlock()
	if hl.stopped {
		return
	}

	hl.store.MarkRemote(members, hl.clk.Now().Add(hl.duration))
	// The timer is armed before returning so a clock advanced right after
	// mark still fires it.
	timer := hl.clk.NewTimer(hl.duration)
	hl.timers.Add(1)
	go hl.expire(timer)
}

func (hl *highlighter) expire(timer clock.Timer) {
	defer hl.timers.Done()
	defer timer.Stop()

	select {
	case <-hl.quit:
		return
	case <-timer.Chan():
	}
	if hl.store.ExpireHighlights(hl.clk.Now()) > 0 {
		hl.hub.emit(Update{Reason: UpdateHighlightExpired})
	}
}

func (hl *highlighter) stop() {
	hl.mu.Lock()
	if hl.stopped {
		hl.mu.Unlock()
		return
	}
	hl.stopped = true
	close(hl.quit)
	hl.mu.Unlock()
	hl.timers.Wait()
}
