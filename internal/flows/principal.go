package flows

import (
	"context"

	"github.com/costscope/costscope-go/session"
)

// PrincipalDeps captures the /me and /organization refresh dependencies.
type PrincipalDeps struct {
	AccessCredential    func() string
	Fetch               func(ctx context.Context, accessCredential string) (*session.Principal, error)
	FetchOrganization   func(ctx context.Context, accessCredential string) (*session.Organization, error)
	UpdatePrincipal     func(*session.Principal)
	UpdateOrganization  func(*session.Organization)
	ErrNotAuthenticated error
}

// RunPrincipalRefresh re-fetches the principal snapshot and stores it.
func RunPrincipalRefresh(ctx context.Context, deps PrincipalDeps) (*session.Principal, error) {
	access := deps.AccessCredential()
	if access == "" {
		return nil, deps.ErrNotAuthenticated
	}
	principal, err := deps.Fetch(ctx, access)
	if err != nil {
		return nil, err
	}
	deps.UpdatePrincipal(principal)
	return principal, nil
}

// RunOrganizationRefresh re-fetches the tenant context and stores it.
func RunOrganizationRefresh(ctx context.Context, deps PrincipalDeps) (*session.Organization, error) {
	access := deps.AccessCredential()
	if access == "" {
		return nil, deps.ErrNotAuthenticated
	}
	org, err := deps.FetchOrganization(ctx, access)
	if err != nil {
		return nil, err
	}
	deps.UpdateOrganization(org)
	return org, nil
}
