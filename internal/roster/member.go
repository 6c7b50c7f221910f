// Package roster holds the presence roster model: the fixed member list, the
// per-member status, the two-row wire codec and the in-memory store.
package roster

import (
	"fmt"
	"sort"
)

// Member identifies one person on the roster by display name.
type Member string

// DefaultMembers is the roster used when the config does not override it.
var DefaultMembers = []Member{"田中", "萩谷", "越川", "佐藤", "野中", "菅澤"}

// Status is the presence flag and free-text comment of a single member.
type Status struct {
	Present bool   `json:"present"`
	Comment string `json:"comment"`
}

// State maps every roster member to its status.
type State map[Member]Status

// MemberSet is an unordered set of members, used for diffs and highlights.
type MemberSet map[Member]struct{}

// NewState returns a state with every member set to absent with no comment.
func NewState(members []Member) State {
	s := make(State, len(members))
	for _, m := range members {
		s[m] = Status{}
	}
	return s
}

// Clone returns an independent copy of the state.
func (s State) Clone() State {
	out := make(State, len(s))
	for m, st := range s {
		out[m] = st
	}
	return out
}

// Complete returns a copy holding exactly the given members; missing entries
// are filled with defaults and unknown members are dropped.
func (s State) Complete(members []Member) State {
	out := make(State, len(members))
	for _, m := range members {
		out[m] = s[m]
	}
	return out
}

// Diff returns the members whose presence or comment differs between s and next.
func (s State) Diff(next State) MemberSet {
	changed := MemberSet{}
	for m, st := range next {
		if prev, ok := s[m]; !ok || prev != st {
			changed[m] = struct{}{}
		}
	}
	for m := range s {
		if _, ok := next[m]; !ok {
			changed[m] = struct{}{}
		}
	}
	return changed
}

// Has reports whether m is in the set.
func (ms MemberSet) Has(m Member) bool {
	_, ok := ms[m]
	return ok
}

// Sorted returns the members of the set in a stable order.
func (ms MemberSet) Sorted() []Member {
	out := make([]Member, 0, len(ms))
	for m := range ms {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Patch is a single-field change requested by the local user. Exactly one of
// Present or Comment is expected to be set.
type Patch struct {
	Present *bool
	Comment *string
}

// PresencePatch builds a patch that only changes the presence flag.
func PresencePatch(present bool) Patch {
	return Patch{Present: &present}
}

// CommentPatch builds a patch that only changes the comment.
func CommentPatch(comment string) Patch {
	return Patch{Comment: &comment}
}

// Apply overlays the patched field on st and returns the result.
func (p Patch) Apply(st Status) Status {
	if p.Present != nil {
		st.Present = *p.Present
	}
	if p.Comment != nil {
		st.Comment = *p.Comment
	}
	return st
}

// Field names the patched field for logs and errors.
func (p Patch) Field() string {
	switch {
	case p.Present != nil && p.Comment != nil:
		return "present+comment"
	case p.Present != nil:
		return "present"
	case p.Comment != nil:
		return "comment"
	default:
		return "none"
	}
}

// ValidateMembers rejects an empty roster or duplicate names.
func ValidateMembers(members []Member) error {
	if len(members) == 0 {
		return fmt.Errorf("roster has no members")
	}
	seen := make(map[Member]bool, len(members))
	for _, m := range members {
		if m == "" {
			return fmt.Errorf("roster contains an empty member name")
		}
		if seen[m] {
			return fmt.Errorf("duplicate member %q", m)
		}
		seen[m] = true
	}
	return nil
}
