// Package middleware exposes HTTP client adapters built on top of the
// costscope Engine.
//
// [Transport] is an http.RoundTripper that attaches the current access
// credential to outgoing requests, renews proactively when the credential is
// inside the expiry window, and retries exactly once after a 401 that a
// renewal was able to cure.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement credential logic itself — renewal decisions and single-flight
// are delegated to Engine.Renew.
//
// # What this package must NOT do
//
//   - Parse or store credentials directly (delegates to Engine).
//   - Retry more than once per request.
//   - Touch requests that already carry an Authorization header.
package middleware
