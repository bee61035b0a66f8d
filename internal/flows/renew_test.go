package flows

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var (
	errNoCredential = errors.New("no refresh credential")
	errExhausted    = errors.New("renewal exhausted")
	errRejected     = errors.New("401 rejected")
	errNetwork      = errors.New("connection refused")
)

// renewHarness wires a coordinator to an in-memory session double.
type renewHarness struct {
	mu        sync.Mutex
	refresh   string
	access    string
	exhausted bool

	exchanges    atomic.Int64
	notified     atomic.Int64
	logouts      atomic.Int64
	exchangeFunc func(ctx context.Context, refresh string) (string, string, error)
	gate         chan struct{}
}

func newRenewHarness(refresh string) *renewHarness {
	return &renewHarness{refresh: refresh}
}

func (h *renewHarness) deps(retainOnTransient bool) RenewDeps {
	return RenewDeps{
		RefreshCredential: func() string {
			h.mu.Lock()
			defer h.mu.Unlock()
			return h.refresh
		},
		RenewalExhausted: func() bool {
			h.mu.Lock()
			defer h.mu.Unlock()
			return h.exhausted
		},
		Exchange: func(ctx context.Context, refresh string) (string, string, error) {
			h.exchanges.Add(1)
			if h.gate != nil {
				<-h.gate
			}
			return h.exchangeFunc(ctx, refresh)
		},
		IsUnauthorized: func(err error) bool { return errors.Is(err, errRejected) },
		ApplyRenewal: func(access, refresh string) {
			h.mu.Lock()
			h.access = access
			h.refresh = refresh
			h.mu.Unlock()
		},
		MarkExhausted: func() {
			h.mu.Lock()
			h.exhausted = true
			h.mu.Unlock()
		},
		Logout: func() {
			h.logouts.Add(1)
			h.mu.Lock()
			h.access = ""
			h.refresh = ""
			h.mu.Unlock()
		},
		NotifyExpired:     func() { h.notified.Add(1) },
		RetainOnTransient: retainOnTransient,
		ErrNoCredential:   errNoCredential,
		ErrExhausted:      errExhausted,
	}
}

func TestRenewSuccess(t *testing.T) {
	h := newRenewHarness("r1")
	h.exchangeFunc = func(_ context.Context, refresh string) (string, string, error) {
		if refresh != "r1" {
			t.Errorf("exchange got refresh %q", refresh)
		}
		return "a2", "r2", nil
	}
	c := NewRenewCoordinator(h.deps(false))

	res := c.Renew(context.Background())
	if res.Failure != RenewFailureNone || res.Attached {
		t.Fatalf("result = %+v", res)
	}
	if res.Access != "a2" || res.Refresh != "r2" {
		t.Fatalf("pair = %q/%q", res.Access, res.Refresh)
	}
	if h.refresh != "r2" {
		t.Fatal("rotated pair not applied to the session")
	}
}

func TestRenewConcurrentCallersSingleExchange(t *testing.T) {
	h := newRenewHarness("r1")
	h.gate = make(chan struct{})
	h.exchangeFunc = func(context.Context, string) (string, string, error) {
		return "a2", "r2", nil
	}
	c := NewRenewCoordinator(h.deps(false))

	const callers = 16
	results := make(chan RenewResult, callers)
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			results <- c.Renew(context.Background())
		}()
	}

	// Let the losers attach before the winner finishes.
	for c.InFlight() == false {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond)
	close(h.gate)
	wg.Wait()
	close(results)

	if got := h.exchanges.Load(); got != 1 {
		t.Fatalf("exchanges = %d, want 1", got)
	}
	attached := 0
	for res := range results {
		if res.Failure != RenewFailureNone {
			t.Fatalf("result = %+v", res)
		}
		if res.Access != "a2" {
			t.Fatalf("caller saw access %q", res.Access)
		}
		if res.Attached {
			attached++
		}
	}
	if attached != callers-1 {
		t.Fatalf("attached = %d, want %d", attached, callers-1)
	}
}

func TestRenewRejectedIsTerminal(t *testing.T) {
	h := newRenewHarness("r-dead")
	h.exchangeFunc = func(context.Context, string) (string, string, error) {
		return "", "", errRejected
	}
	c := NewRenewCoordinator(h.deps(false))

	res := c.Renew(context.Background())
	if res.Failure != RenewFailureRejected {
		t.Fatalf("result = %+v", res)
	}
	if h.logouts.Load() != 1 || h.notified.Load() != 1 {
		t.Fatalf("logouts=%d notified=%d", h.logouts.Load(), h.notified.Load())
	}
	if !h.exhausted {
		t.Fatal("terminal failure must set the exhausted flag")
	}

	// Subsequent renewals short-circuit without a network call. The
	// exhausted check runs before the credential check, so the cleared
	// session still reports exhaustion.
	res = c.Renew(context.Background())
	if res.Failure != RenewFailureExhausted || !errors.Is(res.Err, errExhausted) {
		t.Fatalf("result = %+v", res)
	}
	if got := h.exchanges.Load(); got != 1 {
		t.Fatalf("exchanges = %d, want 1", got)
	}
}

func TestRenewConcurrentRejectionNotifiesOnce(t *testing.T) {
	h := newRenewHarness("r-dead")
	h.gate = make(chan struct{})
	h.exchangeFunc = func(context.Context, string) (string, string, error) {
		return "", "", errRejected
	}
	c := NewRenewCoordinator(h.deps(false))

	const callers = 5
	var wg sync.WaitGroup
	wg.Add(callers)
	results := make(chan RenewResult, callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			results <- c.Renew(context.Background())
		}()
	}
	for c.InFlight() == false {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond)
	close(h.gate)
	wg.Wait()
	close(results)

	for res := range results {
		if res.Failure != RenewFailureRejected {
			t.Fatalf("result = %+v", res)
		}
	}
	if got := h.exchanges.Load(); got != 1 {
		t.Fatalf("exchanges = %d, want 1", got)
	}
	if got := h.notified.Load(); got != 1 {
		t.Fatalf("notified = %d, want 1", got)
	}
}

func TestRenewNoCredential(t *testing.T) {
	h := newRenewHarness("")
	h.exchangeFunc = func(context.Context, string) (string, string, error) {
		t.Fatal("exchange must not run without a credential")
		return "", "", nil
	}
	c := NewRenewCoordinator(h.deps(false))

	res := c.Renew(context.Background())
	if res.Failure != RenewFailureNoCredential || !errors.Is(res.Err, errNoCredential) {
		t.Fatalf("result = %+v", res)
	}
}

func TestRenewTransientClearsByDefault(t *testing.T) {
	h := newRenewHarness("r1")
	h.exchangeFunc = func(context.Context, string) (string, string, error) {
		return "", "", errNetwork
	}
	c := NewRenewCoordinator(h.deps(false))

	res := c.Renew(context.Background())
	if res.Failure != RenewFailureTransient || !errors.Is(res.Err, errNetwork) {
		t.Fatalf("result = %+v", res)
	}
	if h.logouts.Load() != 1 {
		t.Fatal("default policy clears the session on transient failure")
	}
	if h.exhausted {
		t.Fatal("transient failure must not set the terminal flag")
	}
	if h.notified.Load() != 0 {
		t.Fatal("transient failure must not fire the expiry notification")
	}
}

func TestRenewTransientRetained(t *testing.T) {
	h := newRenewHarness("r1")
	h.exchangeFunc = func(context.Context, string) (string, string, error) {
		return "", "", errNetwork
	}
	c := NewRenewCoordinator(h.deps(true))

	res := c.Renew(context.Background())
	if res.Failure != RenewFailureTransient {
		t.Fatalf("result = %+v", res)
	}
	if h.logouts.Load() != 0 {
		t.Fatal("retain policy must keep the session")
	}
	if h.refresh != "r1" {
		t.Fatal("refresh credential should survive for a retry")
	}
}

func TestDetachDiscardsOutcome(t *testing.T) {
	h := newRenewHarness("r1")
	h.gate = make(chan struct{})
	h.exchangeFunc = func(context.Context, string) (string, string, error) {
		return "a2", "r2", nil
	}
	c := NewRenewCoordinator(h.deps(false))

	done := make(chan RenewResult, 1)
	go func() { done <- c.Renew(context.Background()) }()
	for c.InFlight() == false {
		time.Sleep(time.Millisecond)
	}

	// Logout while the exchange is suspended.
	c.Detach()
	h.mu.Lock()
	h.access, h.refresh = "", ""
	h.mu.Unlock()

	close(h.gate)
	res := <-done
	if res.Failure != RenewFailureTransient {
		t.Fatalf("result = %+v", res)
	}
	if h.access != "" || h.refresh != "" {
		t.Fatal("detached exchange must not write into the session")
	}
}

func TestAttachedCallerContextCancel(t *testing.T) {
	h := newRenewHarness("r1")
	h.gate = make(chan struct{})
	h.exchangeFunc = func(context.Context, string) (string, string, error) {
		return "a2", "r2", nil
	}
	c := NewRenewCoordinator(h.deps(false))

	winner := make(chan RenewResult, 1)
	go func() { winner <- c.Renew(context.Background()) }()
	for c.InFlight() == false {
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := c.Renew(ctx)
	if !res.Attached || res.Failure != RenewFailureTransient || !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("result = %+v", res)
	}

	close(h.gate)
	if res := <-winner; res.Failure != RenewFailureNone {
		t.Fatalf("winner = %+v", res)
	}
}
