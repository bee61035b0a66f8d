package flows

import (
	"context"
	"errors"
	"sync"
)

// RenewFailureKind classifies renewal failures for root-level mapping.
type RenewFailureKind int

const (
	RenewFailureNone RenewFailureKind = iota
	// RenewFailureNoCredential: nothing to renew.
	RenewFailureNoCredential
	// RenewFailureExhausted: a prior terminal failure is still active; the
	// call short-circuited without a network exchange.
	RenewFailureExhausted
	// RenewFailureRejected: the renewal endpoint refused the refresh
	// credential. Terminal until the next login.
	RenewFailureRejected
	// RenewFailureTransient: network or server error; retryable.
	RenewFailureTransient
)

// RenewResult carries the issued pair or failure metadata. Attached marks
// callers that joined an exchange already in flight.
type RenewResult struct {
	Failure  RenewFailureKind
	Err      error
	Access   string
	Refresh  string
	Attached bool
}

// RenewDeps captures renewal flow dependencies.
type RenewDeps struct {
	RefreshCredential func() string
	RenewalExhausted  func() bool
	Exchange          func(ctx context.Context, refreshCredential string) (access, refresh string, err error)
	IsUnauthorized    func(error) bool
	ApplyRenewal      func(access, refresh string)
	MarkExhausted     func()
	Logout            func()
	NotifyExpired     func()
	RetainOnTransient bool
	ErrNoCredential   error
	ErrExhausted      error
}

// errRenewalDetached surfaces when a logout released the in-flight handle
// while the exchange was still running; its outcome is discarded.
var errRenewalDetached = errors.New("renewal superseded by logout")

type renewCall struct {
	done   chan struct{}
	result RenewResult
}

// RenewCoordinator collapses concurrent renewal attempts into a single
// exchange. The in-flight handle is published under the mutex before the
// exchange suspends, so two callers can never both win — the no-double-
// exchange property holds under real parallelism, not just cooperative
// scheduling.
type RenewCoordinator struct {
	mu       sync.Mutex
	inflight *renewCall
	deps     RenewDeps
}

func NewRenewCoordinator(deps RenewDeps) *RenewCoordinator {
	return &RenewCoordinator{deps: deps}
}

// Renew performs or joins a credential renewal.
//
// Precondition checks run inside the critical section, in contract order:
// attach to an in-flight exchange if one exists, then fail fast on an active
// terminal failure (before the credential check, so a cleared-by-logout
// session still reports exhaustion rather than a missing credential), then
// fail fast when there is nothing to renew.
func (c *RenewCoordinator) Renew(ctx context.Context) RenewResult {
	c.mu.Lock()
	if call := c.inflight; call != nil {
		c.mu.Unlock()
		select {
		case <-call.done:
			result := call.result
			result.Attached = true
			return result
		case <-ctx.Done():
			return RenewResult{Failure: RenewFailureTransient, Err: ctx.Err(), Attached: true}
		}
	}

	if c.deps.RenewalExhausted() {
		c.mu.Unlock()
		return RenewResult{Failure: RenewFailureExhausted, Err: c.deps.ErrExhausted}
	}

	refresh := c.deps.RefreshCredential()
	if refresh == "" {
		c.mu.Unlock()
		return RenewResult{Failure: RenewFailureNoCredential, Err: c.deps.ErrNoCredential}
	}

	call := &renewCall{done: make(chan struct{})}
	c.inflight = call
	c.mu.Unlock()

	call.result = c.exchange(ctx, call, refresh)
	close(call.done)
	return call.result
}

func (c *RenewCoordinator) exchange(ctx context.Context, call *renewCall, refresh string) RenewResult {
	access, next, err := c.deps.Exchange(ctx, refresh)

	c.mu.Lock()
	attached := c.inflight == call
	if attached {
		c.inflight = nil
	}
	c.mu.Unlock()

	if !attached {
		// A logout detached this exchange; complete and discard.
		return RenewResult{Failure: RenewFailureTransient, Err: errRenewalDetached}
	}

	if err == nil {
		c.deps.ApplyRenewal(access, next)
		return RenewResult{Access: access, Refresh: next}
	}

	if c.deps.IsUnauthorized(err) {
		c.deps.MarkExhausted()
		c.deps.Logout()
		c.deps.NotifyExpired()
		return RenewResult{Failure: RenewFailureRejected, Err: err}
	}

	// Conservative policy: a transient failure still clears the session
	// unless the embedder opted into retaining it for a later retry.
	if !c.deps.RetainOnTransient {
		c.deps.Logout()
	}
	return RenewResult{Failure: RenewFailureTransient, Err: err}
}

// Detach releases the coordinator's reference to any in-flight exchange.
// The underlying network call is not cancelled; its outcome is discarded.
func (c *RenewCoordinator) Detach() {
	c.mu.Lock()
	c.inflight = nil
	c.mu.Unlock()
}

// InFlight reports whether an exchange is currently executing.
func (c *RenewCoordinator) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight != nil
}
