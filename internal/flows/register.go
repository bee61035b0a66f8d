package flows

import (
	"context"
	"strings"

	"github.com/costscope/costscope-go/session"
)

// RegisterInput is the normalized registration payload.
type RegisterInput struct {
	OrganizationName string
	Email            string
	Password         string
	FullName         string
	VerificationCode string
}

// RegisterDeps captures registration flow dependencies.
type RegisterDeps struct {
	CreateAccount   func(ctx context.Context, input RegisterInput) (*Grant, error)
	SaveSession     func(creds session.Credentials, p *session.Principal, org *session.Organization)
	ArmNotifier     func()
	DetachRenewal   func()
	ErrMissingInput error
}

// RunRegister creates a tenant and its first user. Registrations under an
// approval-gated tenant return a pending grant and leave the session
// untouched: no credentials were issued, so there is nothing to store.
func RunRegister(ctx context.Context, input RegisterInput, deps RegisterDeps) (*Grant, error) {
	input.OrganizationName = strings.TrimSpace(input.OrganizationName)
	input.Email = strings.TrimSpace(input.Email)
	if input.OrganizationName == "" || input.Email == "" || input.Password == "" {
		return nil, deps.ErrMissingInput
	}

	grant, err := deps.CreateAccount(ctx, input)
	if err != nil {
		return nil, err
	}
	if grant.PendingActivation || grant.Access == "" || grant.Refresh == "" {
		grant.PendingActivation = true
		return grant, nil
	}

	deps.DetachRenewal()
	deps.SaveSession(session.Credentials{
		Access:  grant.Access,
		Refresh: grant.Refresh,
	}, grant.Principal, grant.Organization)
	deps.ArmNotifier()
	return grant, nil
}
