package secretrepofake

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jrsteele09/go-gate-pass/secrets"
)

var _ secrets.Repo = (*FakeSecretRepo)(nil)

// FakeSecretRepo keeps secrets in process memory. Every read and write copies the secret bytes so
// callers can zero their copies freely.
type FakeSecretRepo struct {
	keys map[string]map[int]secrets.Key // user ID -> version -> key
	lock sync.RWMutex
}

func NewFakeSecretRepo() *FakeSecretRepo {
	return &FakeSecretRepo{
		keys: make(map[string]map[int]secrets.Key),
	}
}

func (r *FakeSecretRepo) Put(_ context.Context, key secrets.Key) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	versions, ok := r.keys[key.UserID]
	if !ok {
		versions = make(map[int]secrets.Key)
		r.keys[key.UserID] = versions
	}
	if _, exists := versions[key.Version]; exists {
		return fmt.Errorf("secret version %d already exists for user %s", key.Version, key.UserID)
	}
	versions[key.Version] = key.Clone()
	return nil
}

func (r *FakeSecretRepo) Keys(_ context.Context, userID string) ([]secrets.Key, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	versions, ok := r.keys[userID]
	if !ok || len(versions) == 0 {
		return nil, secrets.ErrNotFound
	}

	keys := make([]secrets.Key, 0, len(versions))
	for _, k := range versions {
		keys = append(keys, k.Clone())
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].Version < keys[j].Version
	})
	return keys, nil
}

func (r *FakeSecretRepo) Retire(_ context.Context, userID string, version int, at time.Time) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	k, ok := r.keys[userID][version]
	if !ok {
		return secrets.ErrNotFound
	}
	k.RetiredAt = at
	r.keys[userID][version] = k
	return nil
}

func (r *FakeSecretRepo) Delete(_ context.Context, userID string, version int) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	k, ok := r.keys[userID][version]
	if !ok {
		return secrets.ErrNotFound
	}
	secrets.Zero(k.Secret)
	delete(r.keys[userID], version)
	if len(r.keys[userID]) == 0 {
		delete(r.keys, userID)
	}
	return nil
}

func (r *FakeSecretRepo) DeleteAll(_ context.Context, userID string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	for _, k := range r.keys[userID] {
		secrets.Zero(k.Secret)
	}
	delete(r.keys, userID)
	return nil
}

// Seed stores a key as-is, bypassing version checks. Intended for tests that need fixed secrets.
func (r *FakeSecretRepo) Seed(key secrets.Key) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.keys[key.UserID] == nil {
		r.keys[key.UserID] = make(map[int]secrets.Key)
	}
	r.keys[key.UserID][key.Version] = key.Clone()
}
