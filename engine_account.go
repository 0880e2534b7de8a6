package sessionkit

import (
	"context"
	"errors"

	"github.com/workhive/sessionkit/apiclient"
)

// VerifyEmail confirms an email-verification token. When a session is active
// the snapshot is refreshed afterwards so the email_verified flag flips
// without waiting for the background refresh; that refresh is best-effort.
func (e *Engine) VerifyEmail(ctx context.Context, token string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.api.VerifyEmail(ctx, token); err != nil {
		return mapVerificationError(err)
	}
	if e.IsAuthenticated() {
		if _, err := e.RefreshUser(ctx); err != nil {
			e.log.Debug().Err(err).Msg("post-verification refresh failed")
		}
	}
	return nil
}

// ResendVerification requests a fresh verification email for the address.
func (e *Engine) ResendVerification(ctx context.Context, email string) error {
	if err := e.ready(); err != nil {
		return err
	}
	return mapVerificationError(e.api.ResendVerification(ctx, email))
}

// ForgotPassword starts a password reset. The API responds identically for
// known and unknown addresses, so no account-existence signal leaks here.
func (e *Engine) ForgotPassword(ctx context.Context, email string) error {
	if err := e.ready(); err != nil {
		return err
	}
	err := e.api.ForgotPassword(ctx, email)
	if errors.Is(err, apiclient.ErrUnavailable) {
		return mapLoginError(err)
	}
	return err
}

// ResetPassword completes a password reset with the emailed token.
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.api.ResetPassword(ctx, token, newPassword); err != nil {
		var status *apiclient.StatusError
		if errors.As(err, &status) && status.Status >= 400 && status.Status < 500 {
			return ErrResetInvalid
		}
		return mapLoginError(err)
	}
	return nil
}

func mapVerificationError(err error) error {
	if err == nil {
		return nil
	}
	var status *apiclient.StatusError
	if errors.As(err, &status) && status.Status >= 400 && status.Status < 500 {
		return ErrVerificationInvalid
	}
	return mapLoginError(err)
}
