package middleware

import (
	"fmt"
	"io"
	"net/http"

	costscope "github.com/costscope/costscope-go"
)

// Transport decorates an http.RoundTripper with bearer injection and
// renew-and-retry on 401. Safe for concurrent use.
type Transport struct {
	engine *costscope.Engine
	base   http.RoundTripper
}

// NewTransport wraps base with credential handling. base may be nil;
// http.DefaultTransport is used then.
func NewTransport(engine *costscope.Engine, base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{engine: engine, base: base}
}

// Client returns an http.Client using the transport.
func (t *Transport) Client() *http.Client {
	return &http.Client{Transport: t}
}

// RoundTrip attaches the current access credential and retries once when the
// backend answers 401 and a renewal produced a fresh credential. Requests
// that already carry an Authorization header pass through untouched.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.engine == nil || req.Header.Get("Authorization") != "" {
		return t.base.RoundTrip(req)
	}

	if t.engine.NeedsRenewal() {
		// Best effort. A failure here still lets the original credential
		// make the attempt; the 401 path below handles the rest.
		_, _ = t.engine.Renew(req.Context())
	}

	resp, err := t.roundTripWith(req, t.engine.AccessCredential())
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || !t.canReplay(req) {
		return resp, nil
	}

	// Drain before closing so the connection goes back to the pool for the
	// retry instead of being torn down.
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	access, renewErr := t.engine.Renew(req.Context())
	if renewErr != nil {
		return nil, fmt.Errorf("middleware: renewal after 401 failed: %w", renewErr)
	}
	return t.roundTripWith(req, access)
}

func (t *Transport) roundTripWith(req *http.Request, access string) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
	}
	if access != "" {
		clone.Header.Set("Authorization", "Bearer "+access)
	}
	return t.base.RoundTrip(clone)
}

// canReplay reports whether the request body can be reissued.
func (t *Transport) canReplay(req *http.Request) bool {
	return req.Body == nil || req.GetBody != nil
}
