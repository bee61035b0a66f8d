package costscope

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/costscope/costscope-go/api"
	internalaudit "github.com/costscope/costscope-go/internal/audit"
	"github.com/costscope/costscope-go/internal/flows"
	"github.com/costscope/costscope-go/notify"
	"github.com/costscope/costscope-go/session"
	"github.com/costscope/costscope-go/token"
)

// Engine is the session lifecycle manager. Construct one with [Builder];
// all methods are safe for concurrent use.
type Engine struct {
	cfg       Config
	apiClient AuthAPI
	sessions  *session.Store
	notifier  *notify.Notifier
	flows     *flows.Service
	mirror    *mirrorDispatcher
	audit     *internalaudit.Dispatcher
	metrics   *Metrics
	inspector *token.Inspector
	closeOnce sync.Once
}

func (e *Engine) ready() bool {
	return e != nil && e.flows != nil && e.flows.Initialized()
}

// Login authenticates with email and password and populates the session.
// A fresh login clears any prior terminal renewal failure and re-arms the
// expiry notifier.
func (e *Engine) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	grant, err := e.flows.Login(ctx, email, password)
	if err != nil {
		e.metrics.Inc(MetricLoginFailure)
		e.emitAudit(AuditEvent{EventType: "login", Success: false, Error: err.Error()})
		return nil, mapAccountStateError(err)
	}

	e.metrics.Inc(MetricLoginSuccess)
	e.emitAudit(AuditEvent{EventType: "login", Success: true})
	return &LoginResult{
		Principal:        grant.Principal,
		Organization:     grant.Organization,
		AccessCredential: grant.Access,
		ExpiresIn:        grant.ExpiresIn,
	}, nil
}

// Register creates an organization and its first user. When the backend
// holds the registration for approval, the result carries PendingActivation
// and the session stays empty.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	grant, err := e.flows.Register(ctx, flows.RegisterInput{
		OrganizationName: req.OrganizationName,
		Email:            req.Email,
		Password:         req.Password,
		FullName:         req.FullName,
		VerificationCode: req.VerificationCode,
	})
	if err != nil {
		e.metrics.Inc(MetricRegisterFailure)
		e.emitAudit(AuditEvent{EventType: "register", Success: false, Error: err.Error()})
		return nil, mapAccountStateError(err)
	}

	result := &RegisterResult{
		PendingActivation: grant.PendingActivation,
		Message:           grant.Message,
		Principal:         grant.Principal,
		Organization:      grant.Organization,
	}
	if grant.PendingActivation {
		e.metrics.Inc(MetricRegisterPending)
		e.emitAudit(AuditEvent{
			EventType: "register",
			Success:   true,
			Metadata:  map[string]string{"pending_activation": "true"},
		})
		return result, nil
	}

	e.metrics.Inc(MetricRegisterSuccess)
	e.emitAudit(AuditEvent{EventType: "register", Success: true})
	return result, nil
}

// Logout clears the session locally, detaches any in-flight renewal, and
// then notifies the backend best-effort. Idempotent.
func (e *Engine) Logout(ctx context.Context) {
	if !e.ready() {
		return
	}
	e.emitAudit(AuditEvent{EventType: "logout", Success: true})
	e.flows.Logout(ctx)
	e.metrics.Inc(MetricLogout)
}

// Renew exchanges the refresh credential for a rotated pair and returns the
// fresh access credential. Concurrent callers collapse into a single
// exchange; every caller receives the same outcome.
//
// Failures map to sentinels: [ErrNoRefreshCredential] and
// [ErrRenewalExhausted] short-circuit without a network call,
// [ErrRenewalRejected] marks the terminal path (session cleared, expiry
// notified, further renewals refused until login), [ErrRenewalTransient]
// wraps network and server errors.
func (e *Engine) Renew(ctx context.Context) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}

	start := time.Now()
	res := e.flows.Renew(ctx)
	if res.Attached {
		e.metrics.Inc(MetricRenewAttached)
	}

	switch res.Failure {
	case flows.RenewFailureNone:
		if !res.Attached {
			e.metrics.Inc(MetricRenewSuccess)
			e.metrics.Observe(MetricRenewLatency, time.Since(start))
			e.emitAudit(AuditEvent{EventType: "renewal", Success: true})
		}
		return res.Access, nil

	case flows.RenewFailureExhausted, flows.RenewFailureNoCredential:
		e.metrics.Inc(MetricRenewShortCircuit)
		return "", res.Err

	case flows.RenewFailureRejected:
		if !res.Attached {
			e.metrics.Inc(MetricRenewRejected)
			e.metrics.Observe(MetricRenewLatency, time.Since(start))
			e.emitAudit(AuditEvent{EventType: "renewal", Success: false, Error: res.Err.Error()})
		}
		return "", fmt.Errorf("%w: %v", ErrRenewalRejected, res.Err)

	default:
		if !res.Attached {
			e.metrics.Inc(MetricRenewTransient)
			e.emitAudit(AuditEvent{EventType: "renewal", Success: false, Error: res.Err.Error()})
		}
		return "", fmt.Errorf("%w: %v", ErrRenewalTransient, res.Err)
	}
}

// RenewalInFlight reports whether a renewal exchange is currently executing.
func (e *Engine) RenewalInFlight() bool {
	return e.ready() && e.flows.RenewalInFlight()
}

// RefreshPrincipal re-fetches the principal from the backend and stores it.
func (e *Engine) RefreshPrincipal(ctx context.Context) (*Principal, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	return e.flows.PrincipalRefresh(ctx)
}

// RefreshOrganization re-fetches the tenant context and stores it.
func (e *Engine) RefreshOrganization(ctx context.Context) (*Organization, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	return e.flows.OrganizationRefresh(ctx)
}

// Principal returns a copy of the current principal, or nil.
func (e *Engine) Principal() *Principal {
	if e == nil || e.sessions == nil {
		return nil
	}
	return e.sessions.Principal()
}

// Organization returns a copy of the current tenant context, or nil.
func (e *Engine) Organization() *Organization {
	if e == nil || e.sessions == nil {
		return nil
	}
	return e.sessions.Organization()
}

// IsAuthenticated reports whether a usable credential pair is present and no
// terminal renewal failure is active.
func (e *Engine) IsAuthenticated() bool {
	return e != nil && e.sessions != nil && e.sessions.Authenticated()
}

// AccessCredential returns the current access credential, or "".
func (e *Engine) AccessCredential() string {
	if e == nil || e.sessions == nil {
		return ""
	}
	return e.sessions.AccessCredential()
}

// SessionSnapshot returns a deep copy of the current session state.
func (e *Engine) SessionSnapshot() SessionSnapshot {
	if e == nil || e.sessions == nil {
		return SessionSnapshot{}
	}
	return e.sessions.Snapshot()
}

// NeedsRenewal reports whether the access credential is absent, expired, or
// inside the proactive leeway window. Advisory only; the backend remains the
// authority.
func (e *Engine) NeedsRenewal() bool {
	if e == nil || e.sessions == nil {
		return true
	}
	return e.inspector.NeedsRenewal(e.sessions.AccessCredential(), time.Now())
}

// AccessExpiresAt returns the access credential's expiry claim. The zero
// time means the credential carries no expiry.
func (e *Engine) AccessExpiresAt() (time.Time, error) {
	if e == nil || e.sessions == nil {
		return time.Time{}, ErrNotAuthenticated
	}
	credential := e.sessions.AccessCredential()
	if credential == "" {
		return time.Time{}, ErrNotAuthenticated
	}
	return e.inspector.ExpiresAt(credential)
}

// IsAdmin reports whether the current principal holds the admin role.
func (e *Engine) IsAdmin() bool {
	return e != nil && e.sessions != nil && e.sessions.IsAdmin()
}

// IsPrivileged reports whether the current principal's username is on the
// configured ops allow-list.
func (e *Engine) IsPrivileged() bool {
	return e != nil && e.sessions != nil &&
		e.sessions.IsPrivileged(e.cfg.Ops.PrivilegedUsernames)
}

// RegisterMessageListener installs the single expiry-message listener.
func (e *Engine) RegisterMessageListener(fn notify.MessageListener) {
	e.notifier.RegisterMessageListener(fn)
}

// ClearMessageListener removes the expiry-message listener.
func (e *Engine) ClearMessageListener() {
	e.notifier.ClearMessageListener()
}

// RegisterRedirectListener installs the single redirect listener.
func (e *Engine) RegisterRedirectListener(fn notify.RedirectListener) {
	e.notifier.RegisterRedirectListener(fn)
}

// ClearRedirectListener removes the redirect listener.
func (e *Engine) ClearRedirectListener() {
	e.notifier.ClearRedirectListener()
}

// Metric reads a single counter. Zero when metrics are disabled.
func (e *Engine) Metric(id MetricID) uint64 {
	if e == nil {
		return 0
	}
	return e.metrics.Value(id)
}

// MetricsSnapshot deep-copies all counters and histograms.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{}
	}
	return e.metrics.Snapshot()
}

// AuditDropped reports audit events discarded under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MirrorDropped reports session snapshots the persistence mirror discarded
// under backpressure.
func (e *Engine) MirrorDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.mirror.Dropped()
}

// Close flushes the persistence mirror and the audit dispatcher. The engine
// must not be used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closeOnce.Do(func() {
		e.mirror.Close()
		e.audit.Close()
	})
}

// emitAudit stamps the current identity onto the event and queues it. A nil
// dispatcher (auditing disabled) drops everything.
func (e *Engine) emitAudit(event AuditEvent) {
	if e.audit == nil {
		return
	}
	if event.UserID == "" {
		if p := e.sessions.Principal(); p != nil {
			event.UserID = p.ID
		}
	}
	if event.OrgID == "" {
		if org := e.sessions.Organization(); org != nil {
			event.OrgID = org.ID
		}
	}
	e.audit.Emit(context.Background(), event)
}

// mapAccountStateError surfaces the backend's tenant-approval gate as
// ErrActivationPending so callers can branch without inspecting codes.
func mapAccountStateError(err error) error {
	if api.IsCode(err, "TENANT_INACTIVE") {
		return fmt.Errorf("%w: %v", ErrActivationPending, err)
	}
	return err
}
