package sessionkit

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/workhive/sessionkit/store"
)

// tokenManager is a dumb holder of the opaque bearer credential. It has no
// opinion on why a token is invalid; validity is established by the engine
// attempting an authenticated call. The in-memory copy is authoritative and
// the store holds a mirror for durability across restarts.
type tokenManager struct {
	mu    sync.RWMutex
	token string

	store store.Store
	key   string
}

func newTokenManager(st store.Store, key string) *tokenManager {
	return &tokenManager{store: st, key: key}
}

// Current returns the credential and whether one is held.
func (m *tokenManager) Current() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, m.token != ""
}

// Set installs the credential for all future outbound authenticated calls and
// mirrors it to the store. A store failure does not unset the in-memory copy;
// the error is returned so the caller can log it.
func (m *tokenManager) Set(ctx context.Context, token string) error {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	return m.store.Set(ctx, m.key, token)
}

// Clear removes the credential from memory and store. It does not trigger
// navigation or notices; that is the engine's job.
func (m *tokenManager) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()
	return m.store.Remove(ctx, m.key)
}

// load restores a mirrored credential from the store into memory. Absence is
// not an error.
func (m *tokenManager) load(ctx context.Context) error {
	v, ok, err := m.store.Get(ctx, m.key)
	if err != nil {
		return err
	}
	if !ok || v == "" {
		return nil
	}
	m.mu.Lock()
	m.token = v
	m.mu.Unlock()
	return nil
}

// tokenExpired reports whether a credential that happens to be a JWT carries
// an exp claim in the past. The credential is opaque to this client, so no
// signature verification is attempted and non-JWT tokens are never considered
// locally expired; the server remains the authority either way.
func tokenExpired(raw string, now time.Time) bool {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(now)
}
