package sessionkit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/workhive/sessionkit/apiclient"
)

// LoginMode selects how Login authenticates.
type LoginMode string

const (
	// LoginModePassword exchanges identifier+password for a token.
	LoginModePassword LoginMode = "password"
	// LoginModeOAuth treats secret as a provider-issued token and completes
	// the session the same way an OAuth handshake does.
	LoginModeOAuth LoginMode = "oauth"
)

// Login authenticates and establishes the session: exchange credentials for a
// token, install the token, fetch and normalize the canonical user, persist,
// and return the snapshot. A rejected exchange surfaces
// [ErrInvalidCredentials] and mutates no state.
func (e *Engine) Login(ctx context.Context, identifier string, mode LoginMode, secret string) (*User, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	switch mode {
	case LoginModeOAuth:
		return e.LoginWithToken(ctx, secret)
	case LoginModePassword, "":
	default:
		return nil, ErrInvalidCredentials
	}

	token, err := e.api.Login(ctx, identifier, secret)
	if err != nil {
		return nil, mapLoginError(err)
	}
	return e.completeLogin(ctx, token, nil, NoticeLogin)
}

// LoginWithToken completes a session from an already-issued credential, the
// shared tail of password login, OAuth handshakes, and registration.
func (e *Engine) LoginWithToken(ctx context.Context, token string) (*User, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if token == "" {
		return nil, ErrInvalidCredentials
	}
	return e.completeLogin(ctx, token, nil, NoticeLogin)
}

// RegisterInput is the account-creation request.
type RegisterInput struct {
	Name         string
	Email        string
	Username     string
	Password     string
	ReferralCode string
}

// Register creates an account and establishes the session from the issued
// token, reusing the registration response's user payload when present.
func (e *Engine) Register(ctx context.Context, input RegisterInput) (*User, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	token, rawUser, err := e.api.Register(ctx, apiclient.RegisterInput{
		Name:         input.Name,
		Email:        input.Email,
		Username:     input.Username,
		Password:     input.Password,
		ReferralCode: input.ReferralCode,
		ClientNonce:  uuid.NewString(),
	})
	if err != nil {
		var status *apiclient.StatusError
		if errors.As(err, &status) && status.Status == 409 {
			return nil, ErrAccountExists
		}
		return nil, mapLoginError(err)
	}
	return e.completeLogin(ctx, token, rawUser, NoticeRegistered)
}

// Logout clears token, user, and verification progress unconditionally and
// best-effort: individual clear failures are logged, never surfaced, and
// never abort the remaining clears.
func (e *Engine) Logout(ctx context.Context) {
	if e == nil {
		return
	}
	e.mu.Lock()
	userID := ""
	if e.user != nil {
		userID = e.user.ID
	}
	e.user = nil
	e.noticeSent = false
	e.mu.Unlock()

	if err := e.tokens.Clear(ctx); err != nil {
		e.log.Warn().Err(err).Msg("token clear failed during logout")
	}
	if err := e.store.Remove(ctx, e.config.Session.UserKey); err != nil {
		e.log.Warn().Err(err).Msg("user clear failed during logout")
	}
	if err := e.progress.Skip(ctx); err != nil {
		e.log.Warn().Err(err).Msg("progress clear failed during logout")
	}

	e.sink.Emit(ctx, NoticeEvent{
		Timestamp: time.Now().UTC(),
		Type:      NoticeLogout,
		UserID:    userID,
	})
}

// completeLogin is the ordered completion sequence: install the token FIRST,
// then fetch the canonical user (an unauthenticated fetch must fail fast, not
// proceed with a stale identity), normalize, persist, expose.
func (e *Engine) completeLogin(ctx context.Context, token string, rawUser json.RawMessage, notice NoticeType) (*User, error) {
	if err := e.tokens.Set(ctx, token); err != nil {
		// The in-memory credential is installed; a failed mirror only costs
		// durability across restarts.
		e.log.Warn().Err(err).Msg("token mirror failed")
	}

	if rawUser == nil {
		fetched, err := e.api.Me(ctx)
		if err != nil {
			// Net effect of a failed completion is "stays logged out".
			_ = e.tokens.Clear(ctx)
			if errors.Is(err, apiclient.ErrUnauthorized) {
				return nil, ErrInvalidCredentials
			}
			return nil, mapLoginError(err)
		}
		rawUser = fetched
	}

	var payload ServerUserPayload
	if err := json.Unmarshal(rawUser, &payload); err != nil {
		_ = e.tokens.Clear(ctx)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	user := Normalize(payload)
	e.persistUser(ctx, &user)

	e.mu.Lock()
	e.user = &user
	e.noticeSent = false
	e.mu.Unlock()

	e.sink.Emit(ctx, NoticeEvent{
		Timestamp: time.Now().UTC(),
		Type:      notice,
		UserID:    user.ID,
	})
	e.log.Debug().Str("user", user.ID).Msg("session established")
	return user.Clone(), nil
}

// mapLoginError translates wire errors into the caller-facing taxonomy for
// unauthenticated (login-context) calls.
func mapLoginError(err error) error {
	switch {
	case errors.Is(err, apiclient.ErrUnauthorized):
		return ErrInvalidCredentials
	case errors.Is(err, apiclient.ErrUnavailable):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	default:
		return err
	}
}
