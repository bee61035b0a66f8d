package flows

import (
	"context"
	"strings"

	"github.com/costscope/costscope-go/session"
)

// Grant is the normalized outcome of the login and registration endpoints.
type Grant struct {
	Access            string
	Refresh           string
	ExpiresIn         int
	Principal         *session.Principal
	Organization      *session.Organization
	PendingActivation bool
	Message           string
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	Authenticate    func(ctx context.Context, email, password string) (*Grant, error)
	SaveSession     func(creds session.Credentials, p *session.Principal, org *session.Organization)
	ArmNotifier     func()
	DetachRenewal   func()
	ErrMissingInput error
}

// RunLogin authenticates and populates the session. A fresh login resets the
// terminal renewal failure (SaveSession does that) and re-arms the expiry
// notifier for a new episode.
func RunLogin(ctx context.Context, email, password string, deps LoginDeps) (*Grant, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, deps.ErrMissingInput
	}

	grant, err := deps.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	deps.DetachRenewal()
	deps.SaveSession(session.Credentials{
		Access:  grant.Access,
		Refresh: grant.Refresh,
	}, grant.Principal, grant.Organization)
	deps.ArmNotifier()
	return grant, nil
}
