package costscope

import (
	"context"
	"io"

	"github.com/costscope/costscope-go/api"
	internalaudit "github.com/costscope/costscope-go/internal/audit"
	"github.com/costscope/costscope-go/session"
)

// Principal is the authenticated user's identity snapshot.
type Principal = session.Principal

// Organization is the tenant context for the principal.
type Organization = session.Organization

// SessionSnapshot is a point-in-time copy of the session state.
type SessionSnapshot = session.Snapshot

// RegisterRequest is the registration payload.
type RegisterRequest = api.RegisterRequest

// AuthAPI is the wire collaborator behind the engine: the login,
// registration, renewal, and principal endpoints. [api.Client] is the
// default implementation; tests and embedders with custom transports may
// supply their own.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*api.Grant, error)
	Register(ctx context.Context, req api.RegisterRequest) (*api.Grant, error)
	Refresh(ctx context.Context, refreshCredential string) (*api.TokenPair, error)
	Me(ctx context.Context, accessCredential string) (*session.Principal, error)
	Organization(ctx context.Context, accessCredential string) (*session.Organization, error)
	Logout(ctx context.Context, accessCredential string) error
}

// LoginResult is returned by [Engine.Login].
type LoginResult struct {
	Principal        *Principal
	Organization     *Organization
	AccessCredential string
	// ExpiresIn is the access credential lifetime in seconds as reported
	// by the backend.
	ExpiresIn int
}

// RegisterResult is returned by [Engine.Register]. PendingActivation marks
// a registration held for tenant approval; no credentials were issued and
// the session stays empty.
type RegisterResult struct {
	PendingActivation bool
	Message           string
	Principal         *Principal
	Organization      *Organization
}

// AuditEvent is a structured session-lifecycle record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
