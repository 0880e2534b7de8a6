package sessionkit

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const testOrigin = "https://app.workhive.example"

type fakeExchanger struct {
	mu     sync.Mutex
	calls  int
	gate   chan struct{}
	user   *User
	err    error
	tokens []string
}

func (f *fakeExchanger) LoginWithToken(_ context.Context, token string) (*User, error) {
	f.mu.Lock()
	f.calls++
	f.tokens = append(f.tokens, token)
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return f.user, f.err
}

type fakeWindow struct {
	mu     sync.Mutex
	closed bool
}

func (w *fakeWindow) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWindow) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func newTestHandshake(engine tokenExchanger, window ChildWindow) *Handshake {
	return &Handshake{
		ID:     "hs-test",
		status: HandshakeWaiting,
		origin: testOrigin,
		window: window,
		engine: engine,
		log:    zerolog.Nop(),
		done:   make(chan struct{}),
	}
}

func TestHandshakeForeignOriginIgnored(t *testing.T) {
	ex := &fakeExchanger{user: &User{ID: "u1"}}
	h := newTestHandshake(ex, nil)

	h.Deliver(context.Background(), Message{
		Origin: "https://evil.example",
		Type:   MessageSuccess,
		Token:  "stolen",
	})

	if got := h.Status(); got != HandshakeWaiting {
		t.Fatalf("status = %v, want waiting after foreign-origin message", got)
	}
	if ex.calls != 0 {
		t.Fatal("foreign-origin message must never reach the login routine")
	}
}

func TestHandshakeSuccessMessage(t *testing.T) {
	ex := &fakeExchanger{user: &User{ID: "u1"}}
	win := &fakeWindow{}
	h := newTestHandshake(ex, win)

	h.Deliver(context.Background(), Message{Origin: testOrigin, Type: MessageSuccess, Token: "tok-1"})

	if got := h.Status(); got != HandshakeSuccess {
		t.Fatalf("status = %v, want success", got)
	}
	if u := h.User(); u == nil || u.ID != "u1" {
		t.Fatalf("User = %+v, want u1", u)
	}
	if len(ex.tokens) != 1 || ex.tokens[0] != "tok-1" {
		t.Fatalf("login received tokens %v, want [tok-1]", ex.tokens)
	}
	if !win.Closed() {
		t.Fatal("window must be released on completion")
	}
	select {
	case <-h.Done():
	default:
		t.Fatal("Done must be closed after completion")
	}
}

func TestHandshakeErrorMessage(t *testing.T) {
	ex := &fakeExchanger{}
	win := &fakeWindow{}
	h := newTestHandshake(ex, win)

	h.Deliver(context.Background(), Message{Origin: testOrigin, Type: MessageError, Reason: "access_denied"})

	if got := h.Status(); got != HandshakeError {
		t.Fatalf("status = %v, want error", got)
	}
	var provider *ProviderError
	if !errors.As(h.Err(), &provider) || provider.Reason != "access_denied" {
		t.Fatalf("Err = %v, want ProviderError(access_denied)", h.Err())
	}
	if ex.calls != 0 {
		t.Fatal("error message must not reach the login routine")
	}
	if !win.Closed() {
		t.Fatal("window must be released on error")
	}
}

func TestHandshakeExchangeFailure(t *testing.T) {
	ex := &fakeExchanger{err: ErrInvalidCredentials}
	h := newTestHandshake(ex, nil)

	h.Deliver(context.Background(), Message{Origin: testOrigin, Type: MessageSuccess, Token: "bad"})

	if got := h.Status(); got != HandshakeError {
		t.Fatalf("status = %v, want error", got)
	}
	if !errors.Is(h.Err(), ErrInvalidCredentials) {
		t.Fatalf("Err = %v, want ErrInvalidCredentials", h.Err())
	}
}

func TestHandshakeCancelRefusedWhileProcessing(t *testing.T) {
	ex := &fakeExchanger{user: &User{ID: "u1"}, gate: make(chan struct{})}
	h := newTestHandshake(ex, &fakeWindow{})

	go h.Deliver(context.Background(), Message{Origin: testOrigin, Type: MessageSuccess, Token: "tok"})

	deadline := time.After(2 * time.Second)
	for h.Status() != HandshakeProcessing {
		select {
		case <-deadline:
			t.Fatal("handshake never reached processing")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if err := h.Cancel(); !errors.Is(err, ErrHandshakeProcessing) {
		t.Fatalf("Cancel mid-processing = %v, want ErrHandshakeProcessing", err)
	}

	close(ex.gate)
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("handshake never finished")
	}
	if got := h.Status(); got != HandshakeSuccess {
		t.Fatalf("status = %v, want success after resolution", got)
	}
}

func TestHandshakeCancelWhileWaiting(t *testing.T) {
	win := &fakeWindow{}
	h := newTestHandshake(&fakeExchanger{}, win)

	if err := h.Cancel(); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if got := h.Status(); got != HandshakeClosed {
		t.Fatalf("status = %v, want closed", got)
	}
	if !win.Closed() {
		t.Fatal("window must be released on cancel")
	}

	// Messages after cancellation are ignored.
	h.Deliver(context.Background(), Message{Origin: testOrigin, Type: MessageSuccess, Token: "late"})
	if got := h.Status(); got != HandshakeClosed {
		t.Fatalf("status = %v, want closed after late message", got)
	}

	// A second cancel is a no-op.
	if err := h.Cancel(); err != nil {
		t.Fatalf("repeat Cancel failed: %v", err)
	}
}

func TestHandshakeRedirectConsumedOnce(t *testing.T) {
	ex := &fakeExchanger{user: &User{ID: "u1"}}
	h := newTestHandshake(ex, nil)

	landing, _ := url.Parse(testOrigin + "/oauth/landing?token=tok-9")
	user, err := h.ConsumeRedirect(context.Background(), landing)
	if err != nil {
		t.Fatalf("ConsumeRedirect failed: %v", err)
	}
	if user == nil || user.ID != "u1" {
		t.Fatalf("user = %+v, want u1", user)
	}

	if _, err := h.ConsumeRedirect(context.Background(), landing); !errors.Is(err, ErrHandshakeConsumed) {
		t.Fatalf("second consume = %v, want ErrHandshakeConsumed", err)
	}
	if ex.calls != 1 {
		t.Fatalf("login ran %d times, want exactly once", ex.calls)
	}
}

func TestHandshakeRedirectForeignOriginIgnored(t *testing.T) {
	ex := &fakeExchanger{}
	h := newTestHandshake(ex, nil)

	landing, _ := url.Parse("https://evil.example/oauth/landing?token=stolen")
	user, err := h.ConsumeRedirect(context.Background(), landing)
	if user != nil || err != nil {
		t.Fatalf("foreign landing = (%v, %v), want silent discard", user, err)
	}
	if got := h.Status(); got != HandshakeWaiting {
		t.Fatalf("status = %v, want waiting", got)
	}

	// The real landing still works afterwards: nothing was consumed.
	ex.user = &User{ID: "u1"}
	real, _ := url.Parse(testOrigin + "/oauth/landing?token=tok")
	if _, err := h.ConsumeRedirect(context.Background(), real); err != nil {
		t.Fatalf("genuine landing after foreign one failed: %v", err)
	}
}

func TestHandshakeRedirectError(t *testing.T) {
	h := newTestHandshake(&fakeExchanger{}, nil)

	landing, _ := url.Parse(testOrigin + "/oauth/landing?error=access_denied")
	_, err := h.ConsumeRedirect(context.Background(), landing)

	var provider *ProviderError
	if !errors.As(err, &provider) || provider.Reason != "access_denied" {
		t.Fatalf("err = %v, want ProviderError(access_denied)", err)
	}
	if got := h.Status(); got != HandshakeError {
		t.Fatalf("status = %v, want error", got)
	}
}
