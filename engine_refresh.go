package sessionkit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/workhive/sessionkit/apiclient"
)

// RefreshUser re-fetches and re-normalizes the canonical user. On success the
// snapshot is replaced and, when the user is now fully verified, lingering
// onboarding progress is deleted. On a transient failure the last good
// snapshot is left untouched and [ErrUnavailable] is returned. A 401 tears
// the whole session down and returns [ErrTokenInvalid].
func (e *Engine) RefreshUser(ctx context.Context) (*User, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if !e.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}

	raw, err := e.api.Me(ctx)
	if err != nil {
		return nil, e.mapAuthedError(ctx, err)
	}

	var payload ServerUserPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		// A malformed body must not replace the snapshot.
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	user := Normalize(payload)
	e.persistUser(ctx, &user)
	e.setUser(&user)

	if fullyVerified(&user) {
		if err := e.progress.Skip(ctx); err != nil {
			e.log.Warn().Err(err).Msg("stale progress cleanup failed")
		}
	}
	return user.Clone(), nil
}

// UpdateRole issues the role change and re-normalizes the result. When an
// onboarding run is active the role step is recorded as completed.
func (e *Engine) UpdateRole(ctx context.Context, role Role) (*User, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if !role.Assigned() || parseRole(string(role)) != role {
		return nil, ErrRoleInvalid
	}
	if !e.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}

	raw, err := e.api.UpdateRole(ctx, string(role))
	if err != nil {
		return nil, e.mapAuthedError(ctx, err)
	}

	var user *User
	if len(raw) > 0 {
		var payload ServerUserPayload
		if err := json.Unmarshal(raw, &payload); err == nil {
			normalized := Normalize(payload)
			user = &normalized
		}
	}
	if user == nil {
		// Server replied without a body; fetch the authoritative record.
		refreshed, err := e.RefreshUser(ctx)
		if err != nil {
			return nil, err
		}
		user = refreshed
	} else {
		e.persistUser(ctx, user)
		e.setUser(user)
	}

	if e.progress.Active(ctx) {
		if _, err := e.progress.CompleteStep(ctx, StepRole, map[string]any{"role": string(role)}); err != nil {
			e.log.Warn().Err(err).Msg("role step completion failed")
		}
	}
	return user.Clone(), nil
}

// StartVerification begins a fresh onboarding run at the terms step.
func (e *Engine) StartVerification(ctx context.Context) (VerificationProgress, error) {
	if err := e.ready(); err != nil {
		return VerificationProgress{}, err
	}
	return e.progress.Start(ctx)
}

// CompleteVerificationStep records a step as done, merges its payload, and
// advances the cursor.
func (e *Engine) CompleteVerificationStep(ctx context.Context, step StepID, data map[string]any) (VerificationProgress, error) {
	if err := e.ready(); err != nil {
		return VerificationProgress{}, err
	}
	return e.progress.CompleteStep(ctx, step, data)
}

// Progress returns the persisted onboarding progress, or a fresh default when
// none exists. Never nil-equivalent.
func (e *Engine) Progress(ctx context.Context) VerificationProgress {
	return e.progress.Current(ctx)
}

// SkipVerification deletes the persisted onboarding progress. The user record
// is not mutated.
func (e *Engine) SkipVerification(ctx context.Context) error {
	if err := e.ready(); err != nil {
		return err
	}
	return e.progress.Skip(ctx)
}

// mapAuthedError translates wire errors on authenticated calls: a 401 means
// the token died, which triggers the single global teardown.
func (e *Engine) mapAuthedError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, apiclient.ErrUnauthorized):
		e.teardown(ctx, "token rejected", true)
		return ErrTokenInvalid
	case errors.Is(err, apiclient.ErrNoToken):
		return ErrNotAuthenticated
	case errors.Is(err, apiclient.ErrUnavailable):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	default:
		return err
	}
}
