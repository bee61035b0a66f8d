package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/costscope/costscope-go/session"
)

const defaultTimeout = 30 * time.Second

// Config holds the wire client settings.
type Config struct {
	// BaseURL is the backend origin, e.g. "https://app.costscope.io".
	BaseURL string
	// Timeout bounds each request when no custom http.Client is supplied.
	Timeout time.Duration
	// UserAgent overrides the default User-Agent header.
	UserAgent string
}

// Client talks to the /api/auth endpoints. Safe for concurrent use.
type Client struct {
	base      *url.URL
	hc        *http.Client
	userAgent string
}

// NewClient creates a wire client. hc may be nil; a client with the
// configured timeout is used then.
func NewClient(cfg Config, hc *http.Client) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("api: BaseURL required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("api: invalid BaseURL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, errors.New("api: BaseURL must be http or https")
	}
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "costscope-go"
	}
	return &Client{base: base, hc: hc, userAgent: ua}, nil
}

// Login exchanges email/password for a credential grant.
func (c *Client) Login(ctx context.Context, email, password string) (*Grant, error) {
	var grant Grant
	err := c.do(ctx, http.MethodPost, "/api/auth/login", "", loginRequest{
		Email:    email,
		Password: password,
	}, &grant)
	if err != nil {
		return nil, err
	}
	return &grant, nil
}

// Register creates a new organization and its first user. Under an
// approval-gated tenant the grant carries RequiresActivation and no
// credentials.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*Grant, error) {
	var grant Grant
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", "", req, &grant); err != nil {
		return nil, err
	}
	return &grant, nil
}

// Refresh exchanges the refresh credential for a rotated pair. A 401 means
// the refresh credential itself was rejected.
func (c *Client) Refresh(ctx context.Context, refreshCredential string) (*TokenPair, error) {
	var pair TokenPair
	err := c.do(ctx, http.MethodPost, "/api/auth/refresh", "", refreshRequest{
		RefreshToken: refreshCredential,
	}, &pair)
	if err != nil {
		return nil, err
	}
	return &pair, nil
}

// Me fetches the current principal.
func (c *Client) Me(ctx context.Context, accessCredential string) (*session.Principal, error) {
	var principal session.Principal
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", accessCredential, nil, &principal); err != nil {
		return nil, err
	}
	return &principal, nil
}

// Organization fetches the principal's tenant context.
func (c *Client) Organization(ctx context.Context, accessCredential string) (*session.Organization, error) {
	var org session.Organization
	if err := c.do(ctx, http.MethodGet, "/api/auth/organization", accessCredential, nil, &org); err != nil {
		return nil, err
	}
	return &org, nil
}

// SendVerificationCode requests the registration verification code for
// email. The backend rate-limits this endpoint; a 429 surfaces as an
// [*Error] with the backend's message.
func (c *Client) SendVerificationCode(ctx context.Context, email string) (*VerificationTicket, error) {
	var ticket VerificationTicket
	err := c.do(ctx, http.MethodPost, "/api/auth/send-verification-code", "", emailRequest{
		Email: email,
	}, &ticket)
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// ActivateAccount redeems an activation token and sets the account password.
func (c *Client) ActivateAccount(ctx context.Context, token, password string) (*ActivationResult, error) {
	var result ActivationResult
	err := c.do(ctx, http.MethodPost, "/api/auth/activate", "", activateRequest{
		Token:    token,
		Password: password,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ResendActivation asks the backend to send the activation email again for a
// registered but not yet activated account.
func (c *Client) ResendActivation(ctx context.Context, email string) (*VerificationTicket, error) {
	var ticket VerificationTicket
	err := c.do(ctx, http.MethodPost, "/api/auth/resend-activation", "", emailRequest{
		Email: email,
	}, &ticket)
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// Logout records the logout on the backend. The credential is stateless
// server-side; this call only feeds the audit trail.
func (c *Client) Logout(ctx context.Context, accessCredential string) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", accessCredential, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path, accessCredential string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestIDFromContext(ctx))
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessCredential != "" {
		req.Header.Set("Authorization", "Bearer "+accessCredential)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("api: %s %s: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("api: %s %s: decoding response: %w", method, path, err)
	}
	return nil
}
