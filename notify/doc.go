// Package notify delivers the "session expired" message and the redirect to
// the login entry point, each exactly once per expiry episode.
//
// Registration is deliberately a single-subscriber slot per listener kind,
// not an event bus: exactly one UI surface is active at a time, and the last
// registration wins. The redirect runs deferred rather than on the caller's
// stack, and a verification pass forces navigation through [Navigator] if
// the registered listener silently failed to move the application.
package notify
