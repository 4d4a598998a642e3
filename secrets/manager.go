package secrets

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Issuer hands out a freshly generated key after successful authentication. The Registry is the
// server side; a holder reaches it over the gate's authenticated secrets endpoint.
type Issuer interface {
	Issue(ctx context.Context, userID string) (Key, error)
}

// Manager is the pass holder's side of the secret lifecycle: it holds at most one Session and
// guarantees the previous one is destroyed whenever a new one is issued or the user logs out.
type Manager struct {
	issuer Issuer
	logger zerolog.Logger

	mu      sync.Mutex
	current *Session
}

type ManagerOption func(*Manager)

func WithManagerLogger(l zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = l
	}
}

func NewManager(issuer Issuer, options ...ManagerOption) *Manager {
	m := &Manager{
		issuer: issuer,
		logger: log.Logger,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// Issue obtains a new secret for userID and makes it the current session. Any previous session is
// destroyed first, even when issuance fails.
func (m *Manager) Issue(ctx context.Context, userID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.destroyLocked()

	key, err := m.issuer.Issue(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "Manager.Issue")
	}
	defer Zero(key.Secret)

	if len(key.Secret) == 0 {
		return nil, errors.Wrap(ErrSecretUnavailable, "Manager.Issue empty secret")
	}

	m.current = NewSession(key)
	m.logger.Info().Str("session_id", m.current.ID()).Str("user_id", userID).Int("version", key.Version).Msg("secret issued")
	return m.current, nil
}

// Current returns the active session, or ErrSecretUnavailable when the user is logged out.
func (m *Manager) Current() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.current.Active() {
		return nil, ErrSecretUnavailable
	}
	return m.current, nil
}

// Destroy ends the current session (logout).
func (m *Manager) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.destroyLocked()
}

// Scoped issues a session, runs fn with it and destroys the session on every exit path, including
// a panic inside fn.
func (m *Manager) Scoped(ctx context.Context, userID string, fn func(*Session) error) error {
	session, err := m.Issue(ctx, userID)
	if err != nil {
		return err
	}
	defer m.Destroy()
	return fn(session)
}

func (m *Manager) destroyLocked() {
	if m.current == nil {
		return
	}
	m.current.Destroy()
	m.logger.Info().Str("session_id", m.current.ID()).Str("user_id", m.current.UserID()).Msg("secret destroyed")
	m.current = nil
}
