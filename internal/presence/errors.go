package presence

import (
	"errors"
	"fmt"

	"github.com/bnema/presence-board/internal/roster"
)

var ErrClosed = errors.New("session closed")

// WriteError reports a user change that could not be saved. The local roster
// has already been rolled back when it is returned.
type WriteError struct {
	Member roster.Member
	Field  string
	Kind   roster.ErrorKind
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("saving %s for %s failed (%s): %v", e.Field, e.Member, e.Kind, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// NeedsReauth reports whether the failure calls for signing in again.
func (e *WriteError) NeedsReauth() bool {
	return e.Kind == roster.KindNotAuthorized
}
