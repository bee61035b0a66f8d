package flows

import "context"

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	AccessCredential func() string
	ClearSession     func()
	DetachRenewal    func()
	// ServerLogout records the logout on the backend. Best-effort: the
	// credential is stateless server-side.
	ServerLogout func(ctx context.Context, accessCredential string) error
	Warn         func(format string, args ...any)
}

// RunLogout clears local state first — the user is logged out even when the
// backend is unreachable — then notifies the backend with the credential
// captured beforehand. Idempotent.
func RunLogout(ctx context.Context, deps LogoutDeps) {
	access := deps.AccessCredential()

	deps.DetachRenewal()
	deps.ClearSession()

	if access == "" || deps.ServerLogout == nil {
		return
	}
	if err := deps.ServerLogout(ctx, access); err != nil && deps.Warn != nil {
		deps.Warn("costscope: server logout failed: %v", err)
	}
}
