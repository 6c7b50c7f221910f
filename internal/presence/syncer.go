package presence

import (
	"context"
	"sync"
	"time"

	"github.com/WatchBeam/clock"

	"github.com/bnema/presence-board/internal/logger"
	"github.com/bnema/presence-board/internal/roster"
)

// Syncer polls the remote roster on a fixed interval and folds the result
// into the store. It never overlaps its own polls and skips a tick entirely
// while the coordinator has work outstanding.
type Syncer struct {
	store    *roster.Store
	remote   Remote
	auth     Authenticator
	coord    *Coordinator
	hub      *hub
	marks    *highlighter
	clk      clock.Clock
	interval time.Duration

	// polling serialises Run's ticks with Refresh and Load.
	polling sync.Mutex

	mu     sync.Mutex
	loaded bool
}

// Run polls immediately, then on every tick until ctx is cancelled.
func (s *Syncer) Run(ctx context.Context) {
	logger.Debug("starting roster sync loop", "session", s.hub.id, "interval", s.interval)

	ticker := s.clk.NewTicker(s.interval)
	defer ticker.Stop()

	_ = s.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Debug("roster sync loop stopped", "session", s.hub.id)
			return
		case <-ticker.Chan():
			_ = s.Poll(ctx)
		}
	}
}

// Poll performs one synchronization step and returns its outcome. Skipped
// ticks return nil. A Poll started while another is reading waits for it.
func (s *Syncer) Poll(ctx context.Context) error {
	s.polling.Lock()
	defer s.polling.Unlock()
	return s.poll(ctx)
}

// Load returns once the roster has been read successfully. It only reads
// when no earlier poll, including one still running, has loaded it.
func (s *Syncer) Load(ctx context.Context) error {
	s.polling.Lock()
	defer s.polling.Unlock()
	if s.isLoaded() {
		return nil
	}
	return s.poll(ctx)
}

func (s *Syncer) isLoaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

func (s *Syncer) poll(ctx context.Context) error {
	if n := s.coord.InFlight(); n > 0 {
		logger.Debug("skipping poll, write in flight", "session", s.hub.id, "in_flight", n)
		return nil
	}
	seq := s.coord.seq()

	token, err := s.auth.Token(ctx)
	if err == nil {
		var state roster.State
		state, err = s.remote.Read(ctx, token)
		if err == nil {
			s.apply(ctx, state, seq)
			return nil
		}
	} else {
		err = roster.NewRemoteError(roster.KindNotAuthorized, "token", err.Error()).WithCause(err)
	}

	if ctx.Err() != nil || s.hub.isClosed() {
		return err
	}
	s.fail(ctx, err)
	return err
}

func (s *Syncer) apply(ctx context.Context, state roster.State, seq uint64) {
	if ctx.Err() != nil || s.hub.isClosed() {
		return
	}
	// A local change that started while this read was in flight wins; the
	// next tick picks up whatever the write produced. The sequence is
	// checked under the store lock so a local edit lands either before the
	// check or on top of the replaced state.
	if s.coord.InFlight() > 0 {
		logger.Debug("discarding stale poll result", "session", s.hub.id)
		return
	}
	changed, ok := s.store.ReplaceIf(state, func() bool { return s.coord.seq() == seq })
	if !ok {
		logger.Debug("discarding stale poll result", "session", s.hub.id)
		return
	}

	s.mu.Lock()
	first := !s.loaded
	s.loaded = true
	s.mu.Unlock()

	now := s.clk.Now()
	s.hub.update(func(st *Status) {
		st.Phase = PhaseReady
		st.LastError = nil
		st.NeedsReauth = false
		st.LastSync = now
	})

	if first {
		logger.Info("roster loaded", "session", s.hub.id, "members", len(state))
		s.hub.emit(Update{Reason: UpdateLoaded})
		return
	}
	if len(changed) == 0 {
		return
	}

	logger.Info("roster changed remotely", "session", s.hub.id, "members", changed.Sorted())
	s.marks.mark(changed)
	s.hub.emit(Update{Reason: UpdateRemote, Changed: changed})
}

func (s *Syncer) fail(ctx context.Context, err error) {
	s.hub.update(func(st *Status) { st.LastError = err })

	if roster.IsNotAuthorized(err) {
		logger.Warn("roster poll not authorized", "session", s.hub.id, "error", err)
		s.hub.reauthenticate(ctx)
	} else {
		logger.Warn("roster poll failed", "session", s.hub.id, "error", err)
	}
	s.hub.emit(Update{Reason: UpdateError, Err: err})
}
