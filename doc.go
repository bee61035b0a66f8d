// Package costscope is the Go client SDK for the CostScope cloud-cost
// platform. It owns the authentication session lifecycle: the access/refresh
// credential pair, race-free credential renewal, durable session
// persistence, and the exactly-once "session expired" notification.
//
// The package is designed for concurrent callers: Engine methods are safe to
// call from multiple goroutines after initialization through
// [Builder.Build]. Any number of in-flight requests may discover an expired
// access credential at once; all of their Renew calls collapse into a single
// network exchange, and a terminal rejection produces exactly one expiry
// notification and redirect.
//
// # Architecture boundaries
//
// costscope is the public surface. It exposes [Engine], [Builder], [Config],
// and value types. Flow orchestration and audit dispatch live under
// internal/ and are never exported. The session, storage, notify, token, and
// api packages are the reusable building blocks the engine wires together.
//
// # What this package must NOT do
//
//   - Render UI or decide routes. Expiry messaging and navigation go through
//     the notify listener slots and [notify.Navigator].
//   - Retry requests. The request layer above calls [Engine.Renew] on an
//     authorization failure and retries its own request once.
//   - Persist the terminal renewal-failure flag or the in-flight handle;
//     both are per-process state.
package costscope
