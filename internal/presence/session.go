// Package presence keeps a local presence roster in step with the shared
// remote one. A Session owns a polling loop and a write coordinator over a
// single roster store.
package presence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/WatchBeam/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/bnema/presence-board/internal/logger"
	"github.com/bnema/presence-board/internal/roster"
)

// Remote is the document backend holding the shared roster.
type Remote interface {
	Read(ctx context.Context, token string) (roster.State, error)
	Write(ctx context.Context, state roster.State, token string) error
}

// Authenticator supplies bearer tokens and is told when the backend rejected
// one. Reauthenticate should try a silent refresh and return an error when
// the user has to sign in again.
type Authenticator interface {
	Token(ctx context.Context) (string, error)
	Reauthenticate(ctx context.Context) error
}

const (
	DefaultPollInterval      = 5 * time.Second
	DefaultHighlightDuration = 1500 * time.Millisecond
	DefaultDebounce          = time.Second
)

// Options tunes a Session. Zero values fall back to the defaults above and
// to the real clock.
type Options struct {
	Members           []roster.Member
	PollInterval      time.Duration
	HighlightDuration time.Duration
	Debounce          time.Duration
	Clock             clock.Clock
	RetryBackOff      func() backoff.BackOff
}

func (o *Options) setDefaults() {
	if len(o.Members) == 0 {
		o.Members = roster.DefaultMembers
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.HighlightDuration <= 0 {
		o.HighlightDuration = DefaultHighlightDuration
	}
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	if o.Clock == nil {
		o.Clock = clock.C
	}
	if o.RetryBackOff == nil {
		o.RetryBackOff = defaultRetry
	}
}

// Session is one running view of the shared roster.
type Session struct {
	id     string
	store  *roster.Store
	hub    *hub
	marks  *highlighter
	syncer *Syncer
	coord  *Coordinator
	clk    clock.Clock

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewSession builds a session and starts its polling loop. Call Close to stop it.
func NewSession(remote Remote, auth Authenticator, opts Options) (*Session, error) {
	s, err := newSession(remote, auth, opts)
	if err != nil {
		return nil, err
	}
	s.start()
	return s, nil
}

func newSession(remote Remote, auth Authenticator, opts Options) (*Session, error) {
	if remote == nil {
		return nil, fmt.Errorf("remote roster is required")
	}
	if auth == nil {
		return nil, fmt.Errorf("authenticator is required")
	}
	opts.setDefaults()
	if err := roster.ValidateMembers(opts.Members); err != nil {
		return nil, fmt.Errorf("invalid roster: %w", err)
	}

	id := uuid.NewString()
	store := roster.NewStore(opts.Members)
	h := newHub(id, auth)
	marks := newHighlighter(store, h, opts.Clock, opts.HighlightDuration)

	coordCtx, coordCancel := context.WithCancel(context.Background())
	coord := &Coordinator{
		store:    store,
		remote:   remote,
		auth:     auth,
		hub:      h,
		marks:    marks,
		clk:      opts.Clock,
		debounce: opts.Debounce,
		retry:    opts.RetryBackOff,
		ctx:      coordCtx,
		cancel:   coordCancel,
		pending:  make(map[roster.Member]*pendingEdit),
		errs:     make(chan error, errorBuffer),
	}

	syncer := &Syncer{
		store:    store,
		remote:   remote,
		auth:     auth,
		coord:    coord,
		hub:      h,
		marks:    marks,
		clk:      opts.Clock,
		interval: opts.PollInterval,
	}

	return &Session{
		id:     id,
		store:  store,
		hub:    h,
		marks:  marks,
		syncer: syncer,
		coord:  coord,
		clk:    opts.Clock,
		done:   make(chan struct{}),
	}, nil
}

func (s *Session) start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go func() {
		defer close(s.done)
		s.syncer.Run(ctx)
	}()
}

// ID identifies this client instance in logs.
func (s *Session) ID() string { return s.id }

// Members returns the roster in display order.
func (s *Session) Members() []roster.Member { return s.store.Members() }

// Snapshot returns the current roster, including unsaved local edits.
func (s *Session) Snapshot() roster.State { return s.store.Snapshot() }

// Highlighted returns the members recently changed by another client.
func (s *Session) Highlighted() roster.MemberSet { return s.store.Highlighted(s.clk.Now()) }

// Status returns the load phase and the most recent error.
func (s *Session) Status() Status { return s.hub.snapshot() }

// Updates is signalled after every change worth redrawing. It is closed by Close.
func (s *Session) Updates() <-chan Update { return s.hub.updates }

// Errors delivers failures of debounced comment writes.
func (s *Session) Errors() <-chan error { return s.coord.Errors() }

// Coordinator exposes the mutation entry points.
func (s *Session) Coordinator() *Coordinator { return s.coord }

func (s *Session) Toggle(ctx context.Context, member roster.Member) error {
	return s.coord.Toggle(ctx, member)
}

func (s *Session) SetPresent(ctx context.Context, member roster.Member, present bool) error {
	return s.coord.SetPresent(ctx, member, present)
}

func (s *Session) EditComment(member roster.Member, comment string) error {
	return s.coord.EditComment(member, comment)
}

// Refresh polls now instead of waiting for the next tick. It waits for a
// poll that is already reading rather than overlapping it.
func (s *Session) Refresh(ctx context.Context) error {
	return s.syncer.Poll(ctx)
}

// Load waits for the first successful read of the roster, reading again
// only if the loop's first poll failed.
func (s *Session) Load(ctx context.Context) error {
	return s.syncer.Load(ctx)
}

// Close stops the loop, writes any comment still waiting for its quiet
// period and discards results that arrive afterwards.
func (s *Session) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
			<-s.done
		}
		err = s.coord.Flush(ctx)
		s.hub.close()
		s.coord.close(ctx)
		s.marks.stop()
		logger.Debug("session closed", "session", s.id)
	})
	return err
}
