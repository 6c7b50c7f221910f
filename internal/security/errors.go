package security

import (
	"fmt"
	"strings"
)

// TokenError reports a failure handling the stored OAuth token: loading or
// saving the sealed token file, refreshing it, or clearing it on logout.
// Err carries auth.ErrInteractiveRequired when only a new sign-in helps.
type TokenError struct {
	Operation string
	Message   string
	Err       error
}

func NewTokenError(operation, message string) *TokenError {
	return &TokenError{Operation: operation, Message: message}
}

func (e *TokenError) Error() string {
	return describe("sheets token", e.Operation, e.Message, e.Err)
}

func (e *TokenError) Unwrap() error { return e.Err }

func (e *TokenError) WithCause(err error) *TokenError {
	e.Err = err
	return e
}

// CryptoError reports a failure sealing or opening data with the
// machine-bound key, such as a token file copied from another host.
type CryptoError struct {
	Operation string
	Message   string
	Err       error
}

func NewCryptoError(operation, message string) *CryptoError {
	return &CryptoError{Operation: operation, Message: message}
}

func (e *CryptoError) Error() string {
	return describe("token vault", e.Operation, e.Message, e.Err)
}

func (e *CryptoError) Unwrap() error { return e.Err }

func (e *CryptoError) WithCause(err error) *CryptoError {
	e.Err = err
	return e
}

// ConfigError names the config.toml key that failed validation. Field is the
// dotted key, e.g. roster.range.
type ConfigError struct {
	Field   string
	Value   string
	Message string
	Err     error
}

func NewConfigError(field, value, message string) *ConfigError {
	return &ConfigError{Field: field, Value: value, Message: message}
}

func (e *ConfigError) Error() string {
	key := e.Field
	if e.Value != "" {
		key = fmt.Sprintf("%s = %q", e.Field, e.Value)
	}
	return fmt.Sprintf("config.toml: %s: %s", key, e.Message)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func (e *ConfigError) WithCause(err error) *ConfigError {
	e.Err = err
	return e
}

// describe renders "<subject> <op>: <message>: <cause>". The cause is left
// out when the message already ends with it, which happens when callers pass
// err.Error() as the message.
func describe(subject, op, msg string, cause error) string {
	s := fmt.Sprintf("%s %s: %s", subject, strings.ReplaceAll(op, "_", " "), msg)
	if cause == nil || strings.HasSuffix(msg, cause.Error()) {
		return s
	}
	return s + ": " + cause.Error()
}
