package secrets

import (
	"sync"

	"github.com/google/uuid"
)

// Session owns the identity secret of one authenticated user on the pass holder's device. It is
// the only holder of the secret bytes; Destroy zeroes them and every later read fails with
// ErrSecretUnavailable. Sessions live in memory only, so a restart forces re-issuance.
type Session struct {
	id      string
	userID  string
	version int

	mu     sync.RWMutex
	secret []byte
}

// NewSession copies the key's secret into a new session.
func NewSession(key Key) *Session {
	return &Session{
		id:      uuid.New().String(),
		userID:  key.UserID,
		version: key.Version,
		secret:  append([]byte(nil), key.Secret...),
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) UserID() string {
	return s.userID
}

func (s *Session) Version() int {
	return s.version
}

// Secret returns a copy of the secret. Callers should Zero the copy when done with it.
func (s *Session) Secret() ([]byte, error) {
	if s == nil {
		return nil, ErrSecretUnavailable
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.secret) == 0 {
		return nil, ErrSecretUnavailable
	}
	return append([]byte(nil), s.secret...), nil
}

// Active reports whether the session still holds a secret.
func (s *Session) Active() bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.secret) > 0
}

// Destroy zeroes and drops the secret. It is safe to call more than once.
func (s *Session) Destroy() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	Zero(s.secret)
	s.secret = nil
}
