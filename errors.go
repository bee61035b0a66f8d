package costscope

import "errors"

var (
	// ErrNoRefreshCredential is returned by Renew when there is nothing to
	// renew. The caller should treat the session as not authenticated.
	ErrNoRefreshCredential = errors.New("no refresh credential")
	// ErrRenewalExhausted is returned by Renew after a prior terminal
	// failure; no network call is made until a fresh login.
	ErrRenewalExhausted = errors.New("renewal exhausted")
	// ErrRenewalRejected marks a terminal renewal failure: the renewal
	// endpoint refused the refresh credential.
	ErrRenewalRejected = errors.New("refresh credential rejected")
	// ErrRenewalTransient marks a retryable renewal failure (network or
	// server error).
	ErrRenewalTransient = errors.New("transient renewal failure")
	// ErrNotAuthenticated is returned by operations that need a session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrActivationPending is returned by Login while the tenant awaits
	// approval, and reported by Register results.
	ErrActivationPending = errors.New("account pending activation")
	// ErrMissingInput is returned when a required login or registration
	// field is empty.
	ErrMissingInput = errors.New("missing required input")
	// ErrEngineNotReady is returned when the engine was not built through
	// Builder.Build.
	ErrEngineNotReady = errors.New("engine not initialized")
)
