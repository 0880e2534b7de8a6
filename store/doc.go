// Package store provides the durable key/value contract the session engine
// persists its token, user snapshot, and onboarding progress through, with
// in-memory, file-backed, and Redis-backed implementations.
//
// # Architecture boundaries
//
// This package owns durability only. It does NOT interpret the values it
// stores: serialization, corruption handling, and key ownership belong to the
// engine. There are no cross-key transactions; callers must tolerate partial
// state.
//
// # What this package must NOT do
//
//   - Import the sessionkit root package (no upward imports).
//   - Validate or parse stored values.
//   - Cache reads across calls (every Get reflects the backend at call time).
package store
