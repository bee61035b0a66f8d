package flows

// Deps groups flow dependency sets. The root engine builds this once and
// delegates each public method to the matching flow.
type Deps struct {
	Login     LoginDeps
	Register  RegisterDeps
	Renew     RenewDeps
	Logout    LogoutDeps
	Principal PrincipalDeps
}
