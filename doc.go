// Package sessionkit implements the client-resident session and progressive-verification
// engine for the Workhive labor marketplace: bearer-credential lifecycle, normalization
// of server user payloads into one canonical [User], a persisted multi-step onboarding
// state machine, a pure next-step resolver, and an OAuth handshake coordinator, all
// composed behind [Engine].
//
// The package is a client SDK, not an authority: it never verifies, signs, or mints
// credentials. Validity of a token is established by attempting an authenticated call
// against the remote identity API.
//
// # Architecture boundaries
//
// sessionkit is the public surface. It exposes [Engine], [Builder], [Config], the
// canonical [User] model, and the pure functions [Normalize] and [Resolve]. Durable
// key/value persistence lives in the store sub-package; outbound HTTP lives in
// apiclient; route gating lives in guard.
//
// # What this package must NOT do
//
//   - Re-derive onboarding gating anywhere but [Resolve] (it is the single source of
//     truth; duplicating it is how UI and engine disagree).
//   - Let a partial persisted state (token present, user absent) be treated as
//     fatal; it always means "re-validate against the API".
//   - Surface recovered failures (stale snapshots, corrupt persisted JSON, foreign-origin
//     handshake messages) to callers.
//
// # Concurrency contract
//
// Engine methods are safe for concurrent use after [Builder.Build]. The Engine is the
// only writer of the token, user, and verificationProgress store keys; readers receive
// point-in-time snapshots, never live references.
package sessionkit
