package session

// Principal is the authenticated user's identity snapshot as returned by the
// backend. Field names mirror the /api/auth/me payload.
type Principal struct {
	ID          string `json:"id"`
	OrgID       string `json:"org_id"`
	Username    string `json:"username"`
	Email       string `json:"email,omitempty"`
	FullName    string `json:"full_name,omitempty"`
	Role        string `json:"role"`
	IsActive    bool   `json:"is_active"`
	CreatedAt   string `json:"created_at,omitempty"`
	LastLoginAt string `json:"last_login_at,omitempty"`
}

// Organization is the tenant context for the principal.
type Organization struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsActive    bool   `json:"is_active"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// Credentials carries an access/refresh pair as issued by the login,
// registration, or renewal endpoints.
type Credentials struct {
	Access  string
	Refresh string
}

// Snapshot is a point-in-time copy of the Session. Authenticated is derived,
// never set independently of the other fields.
type Snapshot struct {
	AccessCredential  string
	RefreshCredential string
	Principal         *Principal
	Organization      *Organization
	Authenticated     bool
	RenewalExhausted  bool
}
