package sessionkit

import (
	"context"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HandshakeStatus is the lifecycle state of an external-login handshake.
type HandshakeStatus uint8

const (
	// HandshakeWaiting means the child window is open and no credential has arrived.
	HandshakeWaiting HandshakeStatus = iota
	// HandshakeProcessing means a credential arrived and is being exchanged;
	// cancellation is refused in this state.
	HandshakeProcessing
	// HandshakeSuccess means the session is established.
	HandshakeSuccess
	// HandshakeError means the provider or the exchange failed.
	HandshakeError
	// HandshakeClosed means the handshake was cancelled or disposed.
	HandshakeClosed
)

func (s HandshakeStatus) String() string {
	switch s {
	case HandshakeWaiting:
		return "waiting"
	case HandshakeProcessing:
		return "processing"
	case HandshakeSuccess:
		return "success"
	case HandshakeError:
		return "error"
	case HandshakeClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ChildWindow is the handle to the external authentication window. The
// handshake owns it and releases it on completion or cancel.
type ChildWindow interface {
	Close() error
}

// Message is a cross-window message delivered to a handshake. Type is
// "success" with a Token, or "error" with a Reason.
type Message struct {
	Origin string
	Type   string
	Token  string
	Reason string
}

// Message type values.
const (
	MessageSuccess = "success"
	MessageError   = "error"
)

type tokenExchanger interface {
	LoginWithToken(ctx context.Context, token string) (*User, error)
}

// Handshake coordinates one external login: child-window messages or a
// redirect landing, same-origin filtering, and reconciliation of the issued
// credential into the engine. Create one with [Engine.BeginOAuth].
type Handshake struct {
	// ID distinguishes concurrent handshakes in logs and callbacks.
	ID string

	mu       sync.Mutex
	status   HandshakeStatus
	origin   string
	window   ChildWindow
	engine   tokenExchanger
	log      zerolog.Logger
	err      error
	user     *User
	consumed bool
	done     chan struct{}
}

// BeginOAuth opens a handshake in the waiting state. window may be nil for
// redirect-based flows.
func (e *Engine) BeginOAuth(window ChildWindow) *Handshake {
	id := uuid.NewString()
	return &Handshake{
		ID:     id,
		status: HandshakeWaiting,
		origin: e.config.OAuth.AllowedOrigin,
		window: window,
		engine: e,
		log:    e.log.With().Str("handshake", id).Logger(),
		done:   make(chan struct{}),
	}
}

// Status returns the current state.
func (h *Handshake) Status() HandshakeStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Err returns the failure after the handshake reached the error state.
func (h *Handshake) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// User returns the established user after success.
func (h *Handshake) User() *User {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.user.Clone()
}

// Done is closed when the handshake reaches success, error, or closed.
func (h *Handshake) Done() <-chan struct{} {
	return h.done
}

// Deliver feeds a cross-window message into the handshake. Messages from any
// origin other than the configured one are discarded silently. Messages
// arriving outside the waiting state are ignored.
func (h *Handshake) Deliver(ctx context.Context, msg Message) {
	h.mu.Lock()
	if msg.Origin != h.origin {
		h.mu.Unlock()
		h.log.Debug().Str("origin", msg.Origin).Msg("discarding foreign-origin handshake message")
		return
	}
	if h.status != HandshakeWaiting {
		h.mu.Unlock()
		return
	}

	switch msg.Type {
	case MessageError:
		h.err = ErrHandshakeFailed
		if msg.Reason != "" {
			h.err = &ProviderError{Reason: msg.Reason}
		}
		h.finishLocked(HandshakeError)
		h.mu.Unlock()
	case MessageSuccess:
		h.status = HandshakeProcessing
		h.mu.Unlock()
		h.resolve(ctx, msg.Token)
	default:
		h.mu.Unlock()
	}
}

// ConsumeRedirect completes a redirect-based flow from the landing URL,
// reading the token or error query parameter exactly once. A landing from a
// foreign origin is discarded silently and not consumed.
func (h *Handshake) ConsumeRedirect(ctx context.Context, landing *url.URL) (*User, error) {
	h.mu.Lock()
	if landing == nil || landing.Scheme+"://"+landing.Host != h.origin {
		h.mu.Unlock()
		h.log.Debug().Msg("discarding foreign-origin handshake landing")
		return nil, nil
	}
	if h.consumed {
		h.mu.Unlock()
		return nil, ErrHandshakeConsumed
	}
	if h.status != HandshakeWaiting {
		h.mu.Unlock()
		return nil, ErrHandshakeClosed
	}
	h.consumed = true

	query := landing.Query()
	if reason := query.Get("error"); reason != "" {
		h.err = &ProviderError{Reason: reason}
		h.finishLocked(HandshakeError)
		h.mu.Unlock()
		return nil, h.err
	}
	token := query.Get("token")
	if token == "" {
		h.err = ErrHandshakeFailed
		h.finishLocked(HandshakeError)
		h.mu.Unlock()
		return nil, h.err
	}

	h.status = HandshakeProcessing
	h.mu.Unlock()

	h.resolve(ctx, token)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status == HandshakeSuccess {
		return h.user.Clone(), nil
	}
	return nil, h.err
}

// Cancel closes the child window and disposes the handshake regardless of
// state, except mid-processing: a credential being reconciled must finish
// resolving first so the token manager is never left indeterminate.
func (h *Handshake) Cancel() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.status == HandshakeProcessing {
		return ErrHandshakeProcessing
	}
	if h.status == HandshakeClosed {
		return nil
	}
	h.finishLocked(HandshakeClosed)
	return nil
}

// resolve exchanges the provider-issued credential through the engine's login
// routine. Called without the lock held; processing state blocks Cancel.
func (h *Handshake) resolve(ctx context.Context, token string) {
	user, err := h.engine.LoginWithToken(ctx, token)

	h.mu.Lock()
	defer h.mu.Unlock()
	if err != nil {
		h.err = err
		h.finishLocked(HandshakeError)
		return
	}
	h.user = user
	h.finishLocked(HandshakeSuccess)
}

// finishLocked moves to a terminal state, releases the window handle, and
// closes the done channel. Caller holds the lock.
func (h *Handshake) finishLocked(status HandshakeStatus) {
	h.status = status
	if h.window != nil {
		_ = h.window.Close()
		h.window = nil
	}
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

// ProviderError carries the provider's error reason.
type ProviderError struct {
	Reason string
}

func (e *ProviderError) Error() string {
	return "handshake failed: " + e.Reason
}
