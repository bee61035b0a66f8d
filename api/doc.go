// Package api is the wire client for the CostScope auth endpoints.
//
// It covers login, registration, credential renewal, logout, and the
// principal/organization lookups. Failure classification is the one piece of
// behavior the session core depends on: a 401 from any of these endpoints is
// an authorization failure ([Error.Unauthorized]), everything else (5xx,
// transport errors, timeouts) is transient.
//
// The client issues plain JSON over HTTP and stays free of retry logic;
// deciding when to renew and retry belongs to the request layer above it.
package api
