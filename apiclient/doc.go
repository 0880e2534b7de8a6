// Package apiclient is the outbound HTTP client for the remote identity API.
// Every authenticated call carries the current bearer credential from a
// TokenSource; any 401 response maps uniformly to [ErrUnauthorized] regardless
// of endpoint.
//
// # Architecture boundaries
//
// This package owns wire concerns only: request building, bearer injection,
// status mapping, JSON codec. It returns raw user payload bytes and leaves
// normalization, persistence, and gating to the engine.
//
// # What this package must NOT do
//
//   - Import the sessionkit root package (no upward imports).
//   - Retry, cache, or impose local timeouts beyond the configured transport
//     timeout; a stalled call fails via the transport and the engine treats
//     that as recoverable.
//   - Interpret user payload fields.
package apiclient
