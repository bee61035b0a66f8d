package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// MessageListener receives the human-facing expiry message.
type MessageListener func(message string)

// RedirectListener is asked to navigate to the login entry point.
type RedirectListener func(path string)

// Navigator abstracts the application's location so the notifier can verify
// that a redirect actually happened and force one when it did not. The
// embedding UI supplies the implementation.
type Navigator interface {
	// Location returns the current application path.
	Location() string
	// ForceNavigate performs a hard navigation to path.
	ForceNavigate(path string)
}

// Config controls the expiry notification behavior.
type Config struct {
	// LoginPath is the login entry point the redirect targets.
	LoginPath string
	// RedirectDelay defers the redirect listener off the caller's stack.
	RedirectDelay time.Duration
	// VerifyDelay is how long after the redirect the notifier waits before
	// checking the location and falling back to a hard navigation.
	VerifyDelay time.Duration
}

type episode struct {
	id    string
	once  sync.Once
	fired bool
}

// Notifier coordinates the exactly-once expiry notification. All methods are
// safe for concurrent use, including NotifyExpired with no listeners
// registered.
type Notifier struct {
	cfg Config
	nav Navigator

	mu       sync.Mutex
	message  MessageListener
	redirect RedirectListener
	current  *episode
}

// New creates a Notifier. nav may be nil; the fallback check is skipped
// without one.
func New(cfg Config, nav Navigator) *Notifier {
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	return &Notifier{cfg: cfg, nav: nav}
}

// RegisterMessageListener installs fn as the single message listener.
// A nil fn clears the slot.
func (n *Notifier) RegisterMessageListener(fn MessageListener) {
	n.mu.Lock()
	n.message = fn
	n.mu.Unlock()
}

// ClearMessageListener removes the message listener.
func (n *Notifier) ClearMessageListener() {
	n.RegisterMessageListener(nil)
}

// RegisterRedirectListener installs fn as the single redirect listener.
// A nil fn clears the slot.
func (n *Notifier) RegisterRedirectListener(fn RedirectListener) {
	n.mu.Lock()
	n.redirect = fn
	n.mu.Unlock()
}

// ClearRedirectListener removes the redirect listener.
func (n *Notifier) ClearRedirectListener() {
	n.RegisterRedirectListener(nil)
}

// Arm starts a new expiry episode. Called on login (and on restore of an
// authenticated session) so that a later expiry may notify again.
func (n *Notifier) Arm() string {
	ep := &episode{id: uuid.NewString()}
	n.mu.Lock()
	n.current = ep
	n.mu.Unlock()
	return ep.id
}

// NotifyExpired fires the message listener and schedules the redirect, at
// most once per episode no matter how many concurrent callers discover the
// same expired session. It returns the episode ID and whether this call won
// the episode.
func (n *Notifier) NotifyExpired(message string) (string, bool) {
	n.mu.Lock()
	if n.current == nil {
		n.current = &episode{id: uuid.NewString()}
	}
	ep := n.current
	msgFn := n.message
	redirectFn := n.redirect
	n.mu.Unlock()

	won := false
	ep.once.Do(func() {
		won = true
		ep.fired = true
		if msgFn != nil {
			msgFn(message)
		}
		n.scheduleRedirect(redirectFn)
	})
	return ep.id, won
}

// scheduleRedirect defers the redirect listener off the caller's stack and
// arranges the fallback verification.
func (n *Notifier) scheduleRedirect(redirectFn RedirectListener) {
	path := n.cfg.LoginPath
	time.AfterFunc(n.cfg.RedirectDelay, func() {
		if redirectFn != nil {
			redirectFn(path)
		}
		if n.nav == nil {
			return
		}
		time.AfterFunc(n.cfg.VerifyDelay, func() {
			if n.nav.Location() != path {
				n.nav.ForceNavigate(path)
			}
		})
	})
}
