package flows

import (
	"context"

	"github.com/costscope/costscope-go/session"
)

// Service is the centralized flow runner built once by the root engine. The
// renewal coordinator is the only stateful member.
type Service struct {
	deps  Deps
	renew *RenewCoordinator
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) *Service {
	return &Service{
		deps:  deps,
		renew: NewRenewCoordinator(deps.Renew),
	}
}

// Initialized reports whether the service has been wired with flow deps.
func (s *Service) Initialized() bool {
	return s != nil && s.deps.Renew.Exchange != nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*Grant, error) {
	return RunLogin(ctx, email, password, s.deps.Login)
}

func (s *Service) Register(ctx context.Context, input RegisterInput) (*Grant, error) {
	return RunRegister(ctx, input, s.deps.Register)
}

func (s *Service) Renew(ctx context.Context) RenewResult {
	return s.renew.Renew(ctx)
}

func (s *Service) RenewalInFlight() bool {
	return s.renew.InFlight()
}

// DetachRenewal releases the in-flight renewal handle on logout.
func (s *Service) DetachRenewal() {
	s.renew.Detach()
}

func (s *Service) Logout(ctx context.Context) {
	RunLogout(ctx, s.deps.Logout)
}

func (s *Service) PrincipalRefresh(ctx context.Context) (*session.Principal, error) {
	return RunPrincipalRefresh(ctx, s.deps.Principal)
}

func (s *Service) OrganizationRefresh(ctx context.Context) (*session.Organization, error) {
	return RunOrganizationRefresh(ctx, s.deps.Principal)
}
