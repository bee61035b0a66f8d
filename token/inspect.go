package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformed is returned when the credential is not a parseable JWT.
var ErrMalformed = errors.New("token: malformed access credential")

// Claims is the advisory claim set carried by CostScope access credentials.
type Claims struct {
	OrgID    string `json:"org_id,omitempty"`
	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Inspector parses access credentials without signature verification.
type Inspector struct {
	parser *jwt.Parser
	leeway time.Duration
}

// NewInspector creates an inspector. leeway is the window before expiry in
// which NeedsRenewal already reports true.
func NewInspector(leeway time.Duration) *Inspector {
	return &Inspector{
		parser: jwt.NewParser(jwt.WithoutClaimsValidation()),
		leeway: leeway,
	}
}

// Inspect parses the credential's claims. The signature is not checked.
func (i *Inspector) Inspect(credential string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := i.parser.ParseUnverified(credential, claims); err != nil {
		return nil, errors.Join(ErrMalformed, err)
	}
	return claims, nil
}

// ExpiresAt returns the credential's expiry. The zero time means the token
// carries no exp claim.
func (i *Inspector) ExpiresAt(credential string) (time.Time, error) {
	claims, err := i.Inspect(credential)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, nil
	}
	return claims.ExpiresAt.Time, nil
}

// NeedsRenewal reports whether the credential is absent, unparseable,
// expired, or inside the leeway window. Anything the inspector cannot read
// counts as needing renewal; the backend is the authority either way.
func (i *Inspector) NeedsRenewal(credential string, now time.Time) bool {
	if credential == "" {
		return true
	}
	exp, err := i.ExpiresAt(credential)
	if err != nil {
		return true
	}
	if exp.IsZero() {
		return false
	}
	return !now.Add(i.leeway).Before(exp)
}
