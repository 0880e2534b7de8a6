package sessionkit

import (
	"context"
	"time"
)

// NoticeType classifies a session lifecycle event.
type NoticeType string

const (
	// NoticeLogin fires after a completed login (password, OAuth, or registration).
	NoticeLogin NoticeType = "login"
	// NoticeLogout fires after an explicit logout.
	NoticeLogout NoticeType = "logout"
	// NoticeSessionExpired fires at most once per teardown when an invalid or
	// expired token forced the session down. Callers surface it to the user.
	NoticeSessionExpired NoticeType = "session_expired"
	// NoticeRegistered fires after a completed registration.
	NoticeRegistered NoticeType = "registered"
)

// NoticeEvent is delivered to the configured [NoticeSink].
type NoticeEvent struct {
	Timestamp time.Time  `json:"timestamp"`
	Type      NoticeType `json:"type"`
	UserID    string     `json:"user_id,omitempty"`
	Reason    string     `json:"reason,omitempty"`
}

// NoticeSink receives session lifecycle events. Implementations must not
// block for long; the engine emits synchronously.
type NoticeSink interface {
	Emit(ctx context.Context, event NoticeEvent)
}

// NoOpSink discards all events. It is the default sink.
type NoOpSink struct{}

// Emit discards the event.
func (NoOpSink) Emit(context.Context, NoticeEvent) {}

// ChannelSink buffers events on a channel for consumption by a UI loop.
type ChannelSink struct {
	events chan NoticeEvent
}

// NewChannelSink returns a sink with the given buffer (minimum 1).
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan NoticeEvent, buffer)}
}

// Emit queues the event, dropping it if the caller's context ends first.
func (s *ChannelSink) Emit(ctx context.Context, event NoticeEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// Events exposes the receive side of the sink.
func (s *ChannelSink) Events() <-chan NoticeEvent {
	return s.events
}
