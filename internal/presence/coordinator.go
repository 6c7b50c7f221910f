package presence

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/WatchBeam/clock"
	"github.com/cenkalti/backoff/v4"

	"github.com/bnema/presence-board/internal/logger"
	"github.com/bnema/presence-board/internal/roster"
)

// Coordinator makes local edits durable with read-merge-write: the change is
// shown immediately, the latest remote roster is re-read, only the edited
// field is overlaid on it and the whole range is written back. Two clients
// writing between one read and the following write can still lose an update;
// without a version token on the backend that window is accepted.
type Coordinator struct {
	store    *roster.Store
	remote   Remote
	auth     Authenticator
	hub      *hub
	marks    *highlighter
	clk      clock.Clock
	debounce time.Duration
	retry    func() backoff.BackOff

	inflight atomic.Int64
	writes   atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending map[roster.Member]*pendingEdit
	timers  sync.WaitGroup
	errs    chan error
}

type pendingEdit struct {
	comment string
	cancel  chan struct{}
}

const errorBuffer = 16

// InFlight counts writes currently running plus comment edits waiting for
// their quiet period. The sync loop skips its tick while this is non-zero.
func (c *Coordinator) InFlight() int {
	c.mu.Lock()
	pending := len(c.pending)
	c.mu.Unlock()
	return int(c.inflight.Load()) + pending
}

func (c *Coordinator) seq() uint64 {
	return c.writes.Load()
}

// Errors delivers failures of debounced comment writes, which have no caller
// waiting on them.
func (c *Coordinator) Errors() <-chan error {
	return c.errs
}

// Toggle flips the presence flag of member and writes it immediately.
func (c *Coordinator) Toggle(ctx context.Context, member roster.Member) error {
	if !c.store.Has(member) {
		return roster.ErrUnknownMember
	}
	return c.SetPresent(ctx, member, !c.store.Snapshot()[member].Present)
}

// SetPresent sets the presence flag of member and writes it immediately.
func (c *Coordinator) SetPresent(ctx context.Context, member roster.Member, present bool) error {
	if c.hub.isClosed() {
		return ErrClosed
	}
	patch := roster.PresencePatch(present)
	if err := c.applyLocal(member, patch); err != nil {
		return err
	}
	return c.commit(ctx, member, patch)
}

// EditComment shows the new comment at once and schedules the write for
// when member has been quiet for the debounce period. A later edit for the
// same member replaces the scheduled one.
func (c *Coordinator) EditComment(member roster.Member, comment string) error {
	if c.hub.isClosed() {
		return ErrClosed
	}
	if err := c.applyLocal(member, roster.CommentPatch(comment)); err != nil {
		return err
	}

	edit := &pendingEdit{comment: comment, cancel: make(chan struct{})}

	c.mu.Lock()
	if prev, ok := c.pending[member]; ok {
		close(prev.cancel)
	}
	c.pending[member] = edit
	c.timers.Add(1)
	c.mu.Unlock()

	// Armed here rather than in the goroutine so the quiet period starts at
	// the edit.
	timer := c.clk.NewTimer(c.debounce)
	go c.waitQuiet(member, edit, timer)
	return nil
}

func (c *Coordinator) waitQuiet(member roster.Member, edit *pendingEdit, timer clock.Timer) {
	defer c.timers.Done()
	defer timer.Stop()

	select {
	case <-edit.cancel:
		return
	case <-c.ctx.Done():
		return
	case <-timer.Chan():
	}

	if !c.take(member, edit) {
		return
	}
	if err := c.commit(c.ctx, member, roster.CommentPatch(edit.comment)); err != nil {
		c.report(err)
	}
}

// take removes edit from the pending set if it is still the latest one for
// member. Exactly one of the timer and Flush wins.
func (c *Coordinator) take(member roster.Member, edit *pendingEdit) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending[member] != edit {
		return false
	}
	delete(c.pending, member)
	return true
}

// Flush writes every pending comment edit now instead of waiting for its
// quiet period.
func (c *Coordinator) Flush(ctx context.Context) error {
	c.mu.Lock()
	edits := c.pending
	c.pending = make(map[roster.Member]*pendingEdit)
	for _, edit := range edits {
		close(edit.cancel)
	}
	c.mu.Unlock()

	var errs []error
	for member, edit := range edits {
		if err := c.commit(ctx, member, roster.CommentPatch(edit.comment)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Coordinator) applyLocal(member roster.Member, patch roster.Patch) error {
	c.writes.Add(1)
	if _, err := c.store.ApplyLocal(member, patch); err != nil {
		return err
	}
	c.hub.emit(Update{Reason: UpdateLocal, Changed: roster.MemberSet{member: {}}})
	return nil
}

func (c *Coordinator) commit(ctx context.Context, member roster.Member, patch roster.Patch) error {
	c.inflight.Add(1)
	defer c.inflight.Add(-1)
	c.writes.Add(1)

	logger.Debug("saving roster change", "session", c.hub.id, "member", member, "field", patch.Field())

	token, err := c.auth.Token(ctx)
	if err != nil {
		err = roster.NewRemoteError(roster.KindNotAuthorized, "token", err.Error()).WithCause(err)
		return c.rollback(ctx, "", nil, member, patch, err)
	}

	base, err := c.remote.Read(ctx, token)
	if err != nil {
		return c.rollback(ctx, token, nil, member, patch, err)
	}

	merged := base.Complete(c.store.Members())
	merged[member] = patch.Apply(merged[member])

	if err := c.remote.Write(ctx, merged, token); err != nil {
		return c.rollback(ctx, token, base, member, patch, err)
	}

	if c.hub.isClosed() {
		return nil
	}

	changed := c.store.Replace(merged)
	c.reapplyPending()

	others := roster.MemberSet{}
	for m := range changed {
		if m != member {
			others[m] = struct{}{}
		}
	}
	c.marks.mark(others)
	now := c.clk.Now()
	c.hub.update(func(st *Status) {
		st.LastError = nil
		st.LastSync = now
	})
	c.hub.emit(Update{Reason: UpdateWritten, Changed: changed})

	logger.Info("roster change saved", "session", c.hub.id, "member", member, "field", patch.Field())
	return nil
}

// rollback replaces the optimistic local value with the remote truth. The
// fresh re-read is retried with backoff; if it still fails the base read of
// this cycle is used, and failing that the last confirmed state.
func (c *Coordinator) rollback(ctx context.Context, token string, base roster.State, member roster.Member, patch roster.Patch, cause error) error {
	werr := &WriteError{
		Member: member,
		Field:  patch.Field(),
		Kind:   roster.KindOf(cause),
		Err:    cause,
	}
	logger.Warn("roster change failed, rolling back", "session", c.hub.id, "member", member, "field", patch.Field(), "error", cause)

	var fresh roster.State
	if token != "" {
		op := func() error {
			state, err := c.remote.Read(ctx, token)
			if err != nil {
				if roster.IsNotAuthorized(err) || roster.IsNotFound(err) {
					return backoff.Permanent(err)
				}
				return err
			}
			fresh = state
			return nil
		}
		if err := backoff.Retry(op, backoff.WithContext(c.retry(), ctx)); err != nil {
			logger.Warn("rollback re-read failed", "session", c.hub.id, "error", err)
		}
	}
	if fresh == nil {
		fresh = base
	}
	if fresh == nil {
		fresh = c.store.Confirmed()
	}

	if c.hub.isClosed() {
		return werr
	}
	changed := c.store.Replace(fresh)
	c.reapplyPending()
	c.hub.emit(Update{Reason: UpdateRolledBack, Changed: changed, Err: werr})
	c.hub.update(func(st *Status) { st.LastError = werr })
	if werr.NeedsReauth() {
		c.hub.reauthenticate(ctx)
	}
	return werr
}

// reapplyPending keeps comments that are still being typed visible after the
// store was replaced with remote data.
func (c *Coordinator) reapplyPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for member, edit := range c.pending {
		_, _ = c.store.ApplyLocal(member, roster.CommentPatch(edit.comment))
	}
}

func (c *Coordinator) report(err error) {
	select {
	case c.errs <- err:
	default:
		logger.Error("dropping roster write error", "session", c.hub.id, "error", err)
	}
}

// close waits for debounced writes that already started, giving up when ctx
// ends, and then cancels whatever is left.
func (c *Coordinator) close(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		c.timers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	c.cancel()
}

func defaultRetry() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return backoff.WithMaxRetries(b, 2)
}
