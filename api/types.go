package api

import "github.com/costscope/costscope-go/session"

// TokenPair is the credential pair issued by login, registration, and
// renewal. expires_in is the access credential lifetime in seconds.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// Grant is the outcome of login or registration. A registration under an
// approval-gated tenant returns RequiresActivation=true and carries no
// credentials; that path must never populate the session.
type Grant struct {
	TokenPair
	User               *session.Principal    `json:"user,omitempty"`
	Organization       *session.Organization `json:"organization,omitempty"`
	RequiresActivation bool                  `json:"requires_activation,omitempty"`
	Message            string                `json:"message,omitempty"`
}

// RegisterRequest is the payload for POST /api/auth/register.
type RegisterRequest struct {
	OrganizationName string `json:"org_name"`
	Email            string `json:"email"`
	Password         string `json:"password"`
	FullName         string `json:"full_name,omitempty"`
	VerificationCode string `json:"verification_code"`
}

// VerificationTicket is the outcome of requesting or resending an email
// verification code. CanResendAt is empty on the resend-activation path.
type VerificationTicket struct {
	Message     string `json:"message"`
	ExpiresIn   int    `json:"expires_in"`
	CanResendAt string `json:"can_resend_at,omitempty"`
}

// ActivationResult is the outcome of redeeming an activation token.
type ActivationResult struct {
	Message  string `json:"message"`
	Email    string `json:"email"`
	CanLogin bool   `json:"can_login"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type activateRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}
