package roster

import (
	"sync"
	"time"
)

// Store is the single authoritative in-memory roster for a session. It also
// tracks which members were recently changed by someone else so the display
// can highlight them for a short while.
type Store struct {
	mu         sync.RWMutex
	members    []Member
	state      State
	confirmed  State
	highlights map[Member]time.Time
}

// NewStore creates a store with every member at its default status.
func NewStore(members []Member) *Store {
	return &Store{
		members:    append([]Member(nil), members...),
		state:      NewState(members),
		confirmed:  NewState(members),
		highlights: make(map[Member]time.Time),
	}
}

// Members returns the roster in display order.
func (s *Store) Members() []Member {
	return append([]Member(nil), s.members...)
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Replace stores next as the current state and returns the members whose
// status differs from what was stored before.
func (s *Store) Replace(next State) MemberSet {
	next = next.Complete(s.members)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaceLocked(next)
}

// ReplaceIf is Replace guarded by ok. ok runs with the store locked, so a
// local change is either seen by ok or applied after the replace; it must
// not call back into the store.
func (s *Store) ReplaceIf(next State, ok func() bool) (MemberSet, bool) {
	next = next.Complete(s.members)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !ok() {
		return nil, false
	}
	return s.replaceLocked(next), true
}

func (s *Store) replaceLocked(next State) MemberSet {
	changed := s.state.Diff(next)
	s.state = next
	s.confirmed = next.Clone()
	return changed
}

// Confirmed returns the last state passed to Replace, without any local
// changes applied since.
func (s *Store) Confirmed() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.confirmed.Clone()
}

// ApplyLocal applies an optimistic local change and returns the new state.
func (s *Store) ApplyLocal(member Member, patch Patch) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.state[member]
	if !ok {
		return nil, ErrUnknownMember
	}
	s.state[member] = patch.Apply(st)
	return s.state.Clone(), nil
}

// Has reports whether member belongs to the roster.
func (s *Store) Has(member Member) bool {
	for _, m := range s.members {
		if m == member {
			return true
		}
	}
	return false
}

// MarkRemote flags members as changed by another client until the given time.
func (s *Store) MarkRemote(members MemberSet, until time.Time) {
	if len(members) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for m := range members {
		s.highlights[m] = until
	}
}

// Highlighted returns the members whose highlight is still active at now.
func (s *Store) Highlighted(now time.Time) MemberSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := MemberSet{}
	for m, until := range s.highlights {
		if now.Before(until) {
			out[m] = struct{}{}
		}
	}
	return out
}

// ExpireHighlights drops highlights that ended at or before now and reports
// how many were removed.
func (s *Store) ExpireHighlights(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for m, until := range s.highlights {
		if !now.Before(until) {
			delete(s.highlights, m)
			n++
		}
	}
	return n
}
