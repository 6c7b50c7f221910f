package presence

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/WatchBeam/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"

	"github.com/bnema/presence-board/internal/roster"
)

// fakeRemote is an in-memory roster document shared by "other clients".
type fakeRemote struct {
	mu       sync.Mutex
	state    roster.State
	reads    int
	writes   int
	written  []roster.State
	readErr  error
	writeErr error
	onRead   func()
}

func newFakeRemote(members []roster.Member) *fakeRemote {
	return &fakeRemote{state: roster.NewState(members)}
}

func (f *fakeRemote) Read(_ context.Context, _ string) (roster.State, error) {
	f.mu.Lock()
	hook := f.onRead
	f.onRead = nil
	f.reads++
	err := f.readErr
	state := f.state.Clone()
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (f *fakeRemote) Write(_ context.Context, state roster.State, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	if f.writeErr != nil {
		return f.writeErr
	}
	f.state = state.Clone()
	f.written = append(f.written, state.Clone())
	return nil
}

// set simulates another client editing the document directly.
func (f *fakeRemote) set(m roster.Member, st roster.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state[m] = st
}

func (f *fakeRemote) counts() (reads, writes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads, f.writes
}

func (f *fakeRemote) lastWritten() roster.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.written) == 0 {
		return nil
	}
	return f.written[len(f.written)-1]
}

func (f *fakeRemote) setErrors(read, write error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readErr = read
	f.writeErr = write
}

// gatedRemote holds every Read until the test releases it and records how
// many reads were running at once.
type gatedRemote struct {
	*fakeRemote
	entered chan struct{}
	release chan struct{}

	active    atomic.Int32
	maxActive atomic.Int32
}

func newGatedRemote(members []roster.Member) *gatedRemote {
	return &gatedRemote{
		fakeRemote: newFakeRemote(members),
		entered:    make(chan struct{}, 4),
		release:    make(chan struct{}),
	}
}

func (g *gatedRemote) Read(ctx context.Context, token string) (roster.State, error) {
	n := g.active.Add(1)
	defer g.active.Add(-1)
	for {
		peak := g.maxActive.Load()
		if n <= peak || g.maxActive.CompareAndSwap(peak, n) {
			break
		}
	}

	g.entered <- struct{}{}
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.fakeRemote.Read(ctx, token)
}

// waitRead blocks until a Read has reached the gate.
func (g *gatedRemote) waitRead(t *testing.T) {
	t.Helper()
	select {
	case <-g.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a roster read")
	}
}

type fakeAuth struct {
	mu        sync.Mutex
	token     string
	tokenErr  error
	reauthErr error
	reauths   int
}

func (a *fakeAuth) Token(context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.tokenErr != nil {
		return "", a.tokenErr
	}
	return a.token, nil
}

func (a *fakeAuth) Reauthenticate(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reauths++
	return a.reauthErr
}

func (a *fakeAuth) reauthCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reauths
}

var errUnauthorized = roster.NewRemoteError(roster.KindNotAuthorized, "read", "Request had invalid authentication credentials.").WithStatus(401)

var errBackend = roster.NewRemoteError(roster.KindTransport, "write", "The caller does not have permission").WithStatus(403)

var errNoToken = errors.New("no token cached")

type harness struct {
	session *Session
	remote  *fakeRemote
	auth    *fakeAuth
	advance func(time.Duration)
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mockClock := clock.NewMockClock()
	remote := newFakeRemote(roster.DefaultMembers)
	auth := &fakeAuth{token: "token"}

	s, err := newSession(remote, auth, Options{
		Clock:        mockClock,
		RetryBackOff: func() backoff.BackOff { return &backoff.StopBackOff{} },
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })

	return &harness{
		session: s,
		remote:  remote,
		auth:    auth,
		advance: func(d time.Duration) { mockClock.AddTime(d) },
	}
}

// waitFor drains updates until one with the given reason arrives.
func (h *harness) waitFor(t *testing.T, reason UpdateReason) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case u := <-h.session.Updates():
			if u.Reason == reason {
				return
			}
		case <-timeout:
			t.Fatalf("expected a %s update", reason)
		}
	}
}

func (h *harness) poll(t *testing.T) error {
	t.Helper()
	return h.session.syncer.Poll(context.Background())
}
