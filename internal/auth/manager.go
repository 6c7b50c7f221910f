// Package auth manages the Google OAuth token shared by the calendar and
// roster clients: device-flow sign-in, encrypted storage and refresh.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/oauth2"

	"github.com/bnema/presence-board/internal/logger"
	"github.com/bnema/presence-board/internal/security"
)

// ErrInteractiveRequired means no usable refresh token exists and the user
// has to run the device flow again.
var ErrInteractiveRequired = errors.New("interactive sign-in required")

// Manager hands out access tokens. It satisfies presence.Authenticator.
type Manager struct {
	tokenPath  string
	vault      *security.Vault
	oauth      *oauth2.Config
	httpClient *http.Client
	retry      func() backoff.BackOff
	now        func() time.Time

	mu    sync.Mutex
	token *oauth2.Token
}

// Option customises a Manager.
type Option func(*Manager)

// WithEndpoint overrides the OAuth endpoints.
func WithEndpoint(ep oauth2.Endpoint) Option {
	return func(m *Manager) { m.oauth.Endpoint = ep }
}

// WithHTTPClient sets the client used for token requests.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.httpClient = c }
}

// WithRetry sets the backoff policy for transient refresh failures.
func WithRetry(fn func() backoff.BackOff) Option {
	return func(m *Manager) { m.retry = fn }
}

// NewManager creates a manager storing its token under cacheDir.
func NewManager(cacheDir string, secrets *ClientSecrets, opts ...Option) (*Manager, error) {
	if err := os.MkdirAll(cacheDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	vault, err := security.NewVault(cacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token encryption: %w", err)
	}

	m := &Manager{
		tokenPath: filepath.Join(cacheDir, tokenFile),
		vault:     vault,
		oauth: &oauth2.Config{
			ClientID:     secrets.Installed.ClientID,
			ClientSecret: secrets.Installed.ClientSecret,
			Endpoint:     GoogleEndpoint,
			Scopes:       Scopes,
		},
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry:      defaultRetry,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func defaultRetry() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	return backoff.WithMaxRetries(b, 3)
}

func (m *Manager) ctx(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
}

// Token returns a valid access token, refreshing it when it has expired.
func (m *Manager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tok, err := m.cached()
	if err != nil {
		return "", err
	}
	if tok.Valid() {
		return tok.AccessToken, nil
	}

	tok, err = m.refreshLocked(ctx, tok)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// Reauthenticate is called when the backend rejected the current token. It
// forces a refresh; if that is impossible the user has to sign in again.
func (m *Manager) Reauthenticate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tok, err := m.cached()
	if err != nil {
		return err
	}
	_, err = m.refreshLocked(ctx, tok)
	return err
}

// TokenSource adapts the manager for Google API clients.
func (m *Manager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &managerSource{ctx: ctx, m: m}
}

// Client returns an HTTP client authorizing requests with the managed token.
func (m *Manager) Client(ctx context.Context) *http.Client {
	return oauth2.NewClient(m.ctx(ctx), m.TokenSource(ctx))
}

type managerSource struct {
	ctx context.Context
	m   *Manager
}

func (s *managerSource) Token() (*oauth2.Token, error) {
	access, err := s.m.Token(s.ctx)
	if err != nil {
		return nil, err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return &oauth2.Token{AccessToken: access, TokenType: "Bearer", Expiry: s.m.token.Expiry}, nil
}

// cached returns the in-memory token, loading it from disk the first time.
func (m *Manager) cached() (*oauth2.Token, error) {
	if m.token != nil {
		return m.token, nil
	}
	var tok oauth2.Token
	if err := m.vault.OpenFile(m.tokenPath, &tok); err != nil {
		if os.IsNotExist(err) {
			return nil, security.NewTokenError("load", "no stored token").WithCause(ErrInteractiveRequired)
		}
		return nil, security.NewTokenError("load", "stored token unreadable").WithCause(err)
	}
	m.token = &tok
	return m.token, nil
}

func (m *Manager) refreshLocked(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error) {
	if tok.RefreshToken == "" {
		return nil, security.NewTokenError("refresh", "no refresh token available").WithCause(ErrInteractiveRequired)
	}

	// Drop the access token so the source always goes to the token endpoint.
	stale := &oauth2.Token{RefreshToken: tok.RefreshToken, Expiry: m.now().Add(-time.Minute)}

	var fresh *oauth2.Token
	op := func() error {
		t, err := m.oauth.TokenSource(m.ctx(ctx), stale).Token()
		if err != nil {
			if rejected(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		fresh = t
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(m.retry(), ctx)); err != nil {
		logger.Warn("token refresh failed", "error", err)
		if rejected(err) {
			return nil, security.NewTokenError("refresh", "refresh token rejected").WithCause(errors.Join(ErrInteractiveRequired, err))
		}
		return nil, security.NewTokenError("refresh", "token endpoint unavailable").WithCause(err)
	}

	if fresh.RefreshToken == "" {
		fresh.RefreshToken = tok.RefreshToken
	}
	if err := m.storeLocked(fresh); err != nil {
		logger.Error("failed to save refreshed token", "error", err)
	}
	logger.Info("access token refreshed", "expiry", fresh.Expiry.Format(time.RFC3339))
	return fresh, nil
}

// rejected reports a 4xx answer from the token endpoint, which retrying
// cannot fix.
func rejected(err error) bool {
	var re *oauth2.RetrieveError
	return errors.As(err, &re) && re.Response != nil && re.Response.StatusCode < 500
}

// Save stores tok as the current token.
func (m *Manager) Save(tok *oauth2.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.storeLocked(tok)
}

func (m *Manager) storeLocked(tok *oauth2.Token) error {
	m.token = tok
	if err := m.vault.SealFile(m.tokenPath, tok); err != nil {
		return security.NewTokenError("save", "failed to write token file").WithCause(err)
	}
	return nil
}

// ClearLocalToken removes the stored authentication token
func (m *Manager) ClearLocalToken() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = nil
	if err := os.Remove(m.tokenPath); err != nil && !os.IsNotExist(err) {
		return security.NewTokenError("clear", "failed to remove token file").WithCause(err)
	}
	return nil
}

// TokenStatus describes the stored credential for the status command.
type TokenStatus struct {
	Present         bool
	Valid           bool
	HasRefreshToken bool
	Expiry          time.Time
}

func (m *Manager) Status() TokenStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, err := m.cached()
	if err != nil {
		return TokenStatus{}
	}
	return TokenStatus{
		Present:         true,
		Valid:           tok.Valid(),
		HasRefreshToken: tok.RefreshToken != "",
		Expiry:          tok.Expiry,
	}
}

// HasValidToken checks if a valid token exists
func (m *Manager) HasValidToken() bool {
	return m.Status().Valid
}

// NeedsInteractive reports whether err can only be solved by signing in again.
func NeedsInteractive(err error) bool {
	return errors.Is(err, ErrInteractiveRequired)
}
