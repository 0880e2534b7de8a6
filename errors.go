package sessionkit

import "errors"

var (
	// ErrInvalidCredentials is returned when a login or registration is rejected
	// by the identity API. No local state is mutated.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTokenInvalid is returned when any authenticated call reports the bearer
	// credential as expired or revoked. The engine has already torn the session
	// down by the time a caller sees it.
	ErrTokenInvalid = errors.New("session token invalid or expired")
	// ErrNotAuthenticated is returned by operations that require a logged-in session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrEngineNotReady is returned when an operation runs before Initialize.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrEngineClosed is returned after Close.
	ErrEngineClosed = errors.New("engine closed")
	// ErrAccountExists is returned when registration collides with an existing account.
	ErrAccountExists = errors.New("account already exists")
	// ErrRoleInvalid is returned when a role change names an unknown role.
	ErrRoleInvalid = errors.New("invalid role")
	// ErrStepInvalid is returned when step completion names an unknown or terminal step.
	ErrStepInvalid = errors.New("invalid onboarding step")
	// ErrVerificationInvalid is returned when an email-verification token is rejected.
	ErrVerificationInvalid = errors.New("email verification token invalid")
	// ErrResetInvalid is returned when a password-reset token is rejected.
	ErrResetInvalid = errors.New("password reset token invalid")
	// ErrUnavailable is returned when the identity API cannot be reached. The
	// last good local snapshot is left untouched.
	ErrUnavailable = errors.New("identity api unavailable")

	// ErrHandshakeProcessing is returned by Cancel while a handshake credential
	// is being resolved; cancelling at that point would leave the token manager
	// in an indeterminate state.
	ErrHandshakeProcessing = errors.New("handshake is processing")
	// ErrHandshakeClosed is returned when a handshake is used after cancellation
	// or completion.
	ErrHandshakeClosed = errors.New("handshake closed")
	// ErrHandshakeConsumed is returned when a redirect landing is consumed twice.
	ErrHandshakeConsumed = errors.New("handshake redirect already consumed")
	// ErrHandshakeFailed is returned when the provider reported an error without
	// a specific reason.
	ErrHandshakeFailed = errors.New("handshake failed")
)
