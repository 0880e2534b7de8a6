// Package guard decides whether protected content may be rendered for the
// current session state. The decision is exposed both as a pure function for
// non-HTTP UIs and as net/http middleware.
package guard

import (
	"context"
	"net/http"

	sessionkit "github.com/workhive/sessionkit"
)

// Decision is the outcome of evaluating a protected route.
type Decision uint8

const (
	// Pending means initialization has not finished; render a loading state.
	// Protected content must never be rendered before the engine is ready.
	Pending Decision = iota
	// RedirectLogin means no authenticated user exists.
	RedirectLogin
	// Allow means protected content may render.
	Allow
)

func (d Decision) String() string {
	switch d {
	case Pending:
		return "pending"
	case RedirectLogin:
		return "redirect-login"
	case Allow:
		return "allow"
	default:
		return "unknown"
	}
}

// State is the point-in-time session snapshot a guard evaluates.
type State struct {
	Initialized   bool
	Authenticated bool
	User          *sessionkit.User
}

// Evaluate applies the gating order: readiness first, then authentication.
func Evaluate(s State) Decision {
	if !s.Initialized {
		return Pending
	}
	if !s.Authenticated || s.User == nil {
		return RedirectLogin
	}
	return Allow
}

// Session is the engine surface the guard reads. *sessionkit.Engine satisfies it.
type Session interface {
	Initialized() bool
	IsAuthenticated() bool
	CurrentUser() *sessionkit.User
}

// Snapshot captures the session into a State.
func Snapshot(s Session) State {
	return State{
		Initialized:   s.Initialized(),
		Authenticated: s.IsAuthenticated(),
		User:          s.CurrentUser(),
	}
}

type userContextKey struct{}

// UserFromContext returns the user attached by [Middleware].
func UserFromContext(ctx context.Context) (*sessionkit.User, bool) {
	u, ok := ctx.Value(userContextKey{}).(*sessionkit.User)
	return u, ok
}

// Middleware gates an http.Handler on the session: pending initialization
// answers 503 with Retry-After, an unauthenticated session redirects to
// loginURL, and an allowed request carries the user in its context.
func Middleware(session Session, loginURL string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := Snapshot(session)
			switch Evaluate(state) {
			case Pending:
				w.Header().Set("Retry-After", "1")
				http.Error(w, "session initializing", http.StatusServiceUnavailable)
			case RedirectLogin:
				http.Redirect(w, r, loginURL, http.StatusFound)
			case Allow:
				ctx := context.WithValue(r.Context(), userContextKey{}, state.User)
				next.ServeHTTP(w, r.WithContext(ctx))
			}
		})
	}
}
