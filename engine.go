package sessionkit

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/workhive/sessionkit/apiclient"
	"github.com/workhive/sessionkit/store"
)

// Engine is the session facade: the one surface callers use for login,
// logout, refresh, registration, role changes, and onboarding progress. It
// composes the token manager, the normalizer, the verification state machine,
// and the next-step resolver, and it is the sole writer of the persisted
// token, user, and progress keys.
//
// Lifecycle: Build -> Initialize -> ready -> Close.
type Engine struct {
	config Config
	log    zerolog.Logger
	sink   NoticeSink

	store    store.Store
	tokens   *tokenManager
	progress *progressTracker
	api      *apiclient.Client

	mu          sync.RWMutex
	user        *User
	initialized bool
	closed      bool
	noticeSent  bool

	stopRefresh chan struct{}
	refreshDone chan struct{}
}

// Initialize restores persisted state and validates it against the identity
// API. With a stored token it attempts the canonical-user fetch: an invalid
// token tears the session down; a transient network failure falls back to the
// last persisted user snapshot optimistically rather than forcing a logout.
// Initialize also starts the background refresh when enabled. Calling it
// twice is a no-op.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	if e.initialized {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	if err := e.tokens.load(ctx); err != nil {
		// Store unavailable at startup: proceed as first-run.
		e.log.Warn().Err(err).Msg("token restore failed; starting logged out")
	}

	token, ok := e.tokens.Current()
	switch {
	case !ok:
		// No credential. A lingering user snapshot is stale by definition.
		_ = e.store.Remove(ctx, e.config.Session.UserKey)
	case tokenExpired(token, time.Now()):
		e.teardown(ctx, "token expired locally", true)
	default:
		e.validateStartupSession(ctx)
	}

	e.mu.Lock()
	e.initialized = true
	startRefresh := e.config.Refresh.Enabled
	if startRefresh {
		e.stopRefresh = make(chan struct{})
		e.refreshDone = make(chan struct{})
	}
	e.mu.Unlock()

	if startRefresh {
		go e.refreshLoop()
	}

	e.log.Debug().Msg("engine initialized")
	return nil
}

// validateStartupSession fetches the canonical user for a restored token.
// Token present but user absent in the store is not an error: it simply means
// the snapshot must come from the API.
func (e *Engine) validateStartupSession(ctx context.Context) {
	raw, err := e.api.Me(ctx)
	switch {
	case err == nil:
		var payload ServerUserPayload
		if jsonErr := json.Unmarshal(raw, &payload); jsonErr != nil {
			e.log.Warn().Err(jsonErr).Msg("malformed user payload at startup; keeping persisted snapshot")
			e.restoreSnapshot(ctx)
			return
		}
		user := Normalize(payload)
		e.persistUser(ctx, &user)
		e.setUser(&user)
	case errors.Is(err, apiclient.ErrUnauthorized):
		e.teardown(ctx, "token rejected at startup", true)
	default:
		// Transient failure: availability over freshness.
		e.log.Warn().Err(err).Msg("startup validation unavailable; using persisted snapshot")
		e.restoreSnapshot(ctx)
	}
}

// restoreSnapshot loads the persisted user, dropping the key when the JSON is
// corrupt. Absence leaves the engine authenticated but snapshotless; the
// background refresh keeps retrying the fetch.
func (e *Engine) restoreSnapshot(ctx context.Context) {
	raw, ok, err := e.store.Get(ctx, e.config.Session.UserKey)
	if err != nil || !ok {
		return
	}
	var user User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		e.log.Warn().Err(err).Msg("dropping corrupt persisted user snapshot")
		_ = e.store.Remove(ctx, e.config.Session.UserKey)
		return
	}
	e.setUser(&user)
}

// Close stops the background refresh and makes the engine unusable. It does
// not clear the session: a closed engine leaves persisted state for the next
// run.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	stop := e.stopRefresh
	done := e.refreshDone
	e.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}

// CurrentUser returns a point-in-time copy of the canonical user, or nil when
// logged out.
func (e *Engine) CurrentUser() *User {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.user.Clone()
}

// IsAuthenticated reports whether a credential is held.
func (e *Engine) IsAuthenticated() bool {
	_, ok := e.tokens.Current()
	return ok
}

// CurrentToken returns the bearer credential and whether one is held.
func (e *Engine) CurrentToken() (string, bool) {
	return e.tokens.Current()
}

// Initialized reports whether Initialize has completed. Route guards must not
// render protected content before this is true.
func (e *Engine) Initialized() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.initialized
}

// RequiredStep applies [Resolve] to the current snapshot.
func (e *Engine) RequiredStep() RequiredStep {
	if !e.IsAuthenticated() {
		return RequireLogin
	}
	return Resolve(e.CurrentUser())
}

func (e *Engine) ready() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrEngineClosed
	}
	if !e.initialized {
		return ErrEngineNotReady
	}
	return nil
}

func (e *Engine) setUser(u *User) {
	e.mu.Lock()
	e.user = u
	e.mu.Unlock()
}

// persistUser mirrors the snapshot to the store. A store failure costs
// durability, not correctness, so it is logged and swallowed.
func (e *Engine) persistUser(ctx context.Context, u *User) {
	raw, err := json.Marshal(u)
	if err != nil {
		e.log.Warn().Err(err).Msg("user snapshot marshal failed")
		return
	}
	if err := e.store.Set(ctx, e.config.Session.UserKey, string(raw)); err != nil {
		e.log.Warn().Err(err).Msg("user snapshot persist failed")
	}
}

// teardown clears token, user, and onboarding progress unconditionally and
// best-effort. When notify is set, a session-expired notice is emitted at
// most once per session so the user sees a single message, not one per failed
// call.
func (e *Engine) teardown(ctx context.Context, reason string, notify bool) {
	e.mu.Lock()
	userID := ""
	if e.user != nil {
		userID = e.user.ID
	}
	e.user = nil
	sendNotice := notify && !e.noticeSent
	if sendNotice {
		e.noticeSent = true
	}
	e.mu.Unlock()

	if err := e.tokens.Clear(ctx); err != nil {
		e.log.Warn().Err(err).Msg("token clear failed during teardown")
	}
	if err := e.store.Remove(ctx, e.config.Session.UserKey); err != nil {
		e.log.Warn().Err(err).Msg("user clear failed during teardown")
	}
	if err := e.progress.Skip(ctx); err != nil {
		e.log.Warn().Err(err).Msg("progress clear failed during teardown")
	}

	e.log.Debug().Str("reason", reason).Msg("session torn down")
	if sendNotice {
		e.sink.Emit(ctx, NoticeEvent{
			Timestamp: time.Now().UTC(),
			Type:      NoticeSessionExpired,
			UserID:    userID,
			Reason:    reason,
		})
	}
}

// refreshLoop re-fetches the canonical user on a fixed interval to catch
// asynchronous server-side status changes, e.g. a verifier approving KYC. A
// failed refresh never overwrites the last good snapshot.
func (e *Engine) refreshLoop() {
	defer close(e.refreshDone)

	ticker := time.NewTicker(e.config.Refresh.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopRefresh:
			return
		case <-ticker.C:
			if !e.IsAuthenticated() {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), e.config.API.Timeout)
			if _, err := e.RefreshUser(ctx); err != nil && !errors.Is(err, ErrTokenInvalid) {
				e.log.Debug().Err(err).Msg("background refresh failed; snapshot untouched")
			}
			cancel()
		}
	}
}
