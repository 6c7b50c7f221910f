package roster

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures of the remote document backend.
type ErrorKind int

const (
	KindTransport ErrorKind = iota
	KindNotAuthorized
	KindNotFound
	KindMalformed
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindNotAuthorized:
		return "not_authorized"
	case KindNotFound:
		return "not_found"
	case KindMalformed:
		return "malformed_data"
	default:
		return "unknown"
	}
}

// Sentinels matched by RemoteError.Is, so callers can use errors.Is.
var (
	ErrNotAuthorized = errors.New("not authorized")
	ErrNotFound      = errors.New("document not found")
	ErrMalformed     = errors.New("malformed remote data")
	ErrUnknownMember = errors.New("unknown member")
)

// RemoteError is returned by the remote document adapter.
type RemoteError struct {
	Kind       ErrorKind
	Operation  string
	StatusCode int
	Message    string
	Err        error
}

func NewRemoteError(kind ErrorKind, operation, message string) *RemoteError {
	return &RemoteError{
		Kind:      kind,
		Operation: operation,
		Message:   message,
	}
}

func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote %s failed (%s, HTTP %d): %s", e.Operation, e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("remote %s failed (%s): %s", e.Operation, e.Kind, e.Message)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

func (e *RemoteError) WithCause(err error) *RemoteError {
	e.Err = err
	return e
}

func (e *RemoteError) WithStatus(code int) *RemoteError {
	e.StatusCode = code
	return e
}

func (e *RemoteError) Is(target error) bool {
	switch target {
	case ErrNotAuthorized:
		return e.Kind == KindNotAuthorized
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrMalformed:
		return e.Kind == KindMalformed
	}
	return false
}

// IsNotAuthorized reports whether err means the credential was rejected.
func IsNotAuthorized(err error) bool {
	return errors.Is(err, ErrNotAuthorized)
}

// IsNotFound reports whether err means the document or range does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// KindOf extracts the failure kind, defaulting to transport for foreign errors.
func KindOf(err error) ErrorKind {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindTransport
}
