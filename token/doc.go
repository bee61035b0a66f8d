// Package token inspects access credentials client-side.
//
// The backend signs its tokens; this client holds no verification key and
// never trusts claims for authorization decisions. Parsing here is strictly
// advisory: it reads the expiry so the request layer can renew proactively
// instead of waiting for a 401, and surfaces identity hints for display.
package token
