package presence

import (
	"context"
	"sync"
	"time"

	"github.com/bnema/presence-board/internal/logger"
	"github.com/bnema/presence-board/internal/roster"
)

// Phase is the coarse lifecycle of a session as shown to the user.
type Phase int

const (
	PhaseLoading Phase = iota
	PhaseReady
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Status is the user-visible health of the session.
type Status struct {
	Phase       Phase
	LastError   error
	NeedsReauth bool
	LastSync    time.Time
}

// UpdateReason says why the roster view may have changed.
type UpdateReason int

const (
	UpdateLoaded UpdateReason = iota
	UpdateRemote
	UpdateLocal
	UpdateWritten
	UpdateRolledBack
	UpdateHighlightExpired
	UpdateError
)

func (r UpdateReason) String() string {
	switch r {
	case UpdateLoaded:
		return "loaded"
	case UpdateRemote:
		return "remote"
	case UpdateLocal:
		return "local"
	case UpdateWritten:
		return "written"
	case UpdateRolledBack:
		return "rolled_back"
	case UpdateHighlightExpired:
		return "highlight_expired"
	case UpdateError:
		return "error"
	default:
		return "unknown"
	}
}

// Update is delivered to consumers whenever the snapshot, the highlight set
// or the status changed. Consumers re-read what they need from the session.
type Update struct {
	Reason  UpdateReason
	Changed roster.MemberSet
	Err     error
}

const updateBuffer = 64

// hub owns the status and the update channel shared by the loop and the
// coordinator. Once closed, every result is dropped.
type hub struct {
	id      string
	mu      sync.Mutex
	status  Status
	closed  bool
	updates chan Update
	auth    Authenticator
}

func newHub(id string, auth Authenticator) *hub {
	return &hub{
		id:      id,
		updates: make(chan Update, updateBuffer),
		auth:    auth,
	}
}

func (h *hub) emit(u Update) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	select {
	case h.updates <- u:
	default:
		logger.Warn("dropping roster update, consumer is not keeping up", "session", h.id, "reason", u.Reason.String())
	}
}

func (h *hub) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *hub) snapshot() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

func (h *hub) update(fn func(*Status)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	fn(&h.status)
}

// reauthenticate forwards a NotAuthorized outcome to the auth collaborator,
// once per call, and records whether the user still has to act.
func (h *hub) reauthenticate(ctx context.Context) {
	err := h.auth.Reauthenticate(ctx)
	if err != nil {
		logger.Warn("silent re-authentication failed", "session", h.id, "error", err)
	}
	h.update(func(s *Status) { s.NeedsReauth = err != nil })
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	h.status.Phase = PhaseClosed
	close(h.updates)
}
