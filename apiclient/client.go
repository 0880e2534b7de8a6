package apiclient

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
)

var (
	// ErrUnauthorized is returned for any 401 response: the bearer credential
	// is invalid, whatever the endpoint.
	ErrUnauthorized = errors.New("api: unauthorized")
	// ErrUnavailable is returned when the transport fails before a response
	// arrives (DNS, refused connection, transport timeout).
	ErrUnavailable = errors.New("api: unavailable")
	// ErrNoToken is returned when an authenticated endpoint is called with no
	// credential installed. The call fails fast rather than going out
	// unauthenticated.
	ErrNoToken = errors.New("api: no bearer token")
)

// StatusError is returned for non-2xx responses other than 401, carrying the
// status code and the server's message when one was decodable.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

// TokenSource yields the current bearer credential. The engine's token
// manager satisfies it.
type TokenSource interface {
	Current() (string, bool)
}

// Config carries client settings.
type Config struct {
	BaseURL   string
	UserAgent string
}

// Client talks to the identity API. Construct it with New; methods are safe
// for concurrent use.
type Client struct {
	base      *url.URL
	http      *http.Client
	tokens    TokenSource
	userAgent string
}

// New builds a client. httpClient may be nil, in which case
// http.DefaultClient is used; callers configure timeouts on the client they
// pass in.
func New(cfg Config, tokens TokenSource, httpClient *http.Client) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errors.New("api: base url must be absolute")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		base:      base,
		http:      httpClient,
		tokens:    tokens,
		userAgent: cfg.UserAgent,
	}, nil
}

// RegisterInput is the payload for POST /auth/register.
type RegisterInput struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Username     string `json:"username,omitempty"`
	Password     string `json:"password"`
	ReferralCode string `json:"referral_code,omitempty"`
	ClientNonce  string `json:"client_nonce,omitempty"`
}

type authResponse struct {
	Token string          `json:"token"`
	User  json.RawMessage `json:"user"`
}

// Login exchanges credentials for a bearer token. A 401 maps to
// ErrUnauthorized; the caller translates that into a rejected login.
func (c *Client) Login(ctx context.Context, identifier, password string) (string, error) {
	var out authResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", false, map[string]string{
		"identifier": identifier,
		"password":   password,
	}, &out)
	if err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", &StatusError{Status: http.StatusOK, Message: "login response missing token"}
	}
	return out.Token, nil
}

// Register creates an account and returns the issued token plus the raw user
// payload when the server included one.
func (c *Client) Register(ctx context.Context, input RegisterInput) (string, json.RawMessage, error) {
	var out authResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", false, input, &out); err != nil {
		return "", nil, err
	}
	if out.Token == "" {
		return "", nil, &StatusError{Status: http.StatusOK, Message: "register response missing token"}
	}
	return out.Token, out.User, nil
}

// Me fetches the canonical user record for the current credential.
func (c *Client) Me(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/users/me", true, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateRole issues the role change and returns the server's updated user
// payload when present.
func (c *Client) UpdateRole(ctx context.Context, role string) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.do(ctx, http.MethodPut, "/users/role", true, map[string]string{"role": role}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// VerifyEmail confirms an email-verification token.
func (c *Client) VerifyEmail(ctx context.Context, token string) error {
	path := "/auth/verify?token=" + url.QueryEscape(token)
	return c.do(ctx, http.MethodGet, path, false, nil, nil)
}

// ResendVerification requests a fresh verification email.
func (c *Client) ResendVerification(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/auth/resend-verification", false, map[string]string{"email": email}, nil)
}

// ForgotPassword starts a password reset for the address.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/auth/forgot-password", false, map[string]string{"email": email}, nil)
}

// ResetPassword completes a password reset.
func (c *Client) ResetPassword(ctx context.Context, token, newPassword string) error {
	return c.do(ctx, http.MethodPost, "/auth/reset-password", false, map[string]string{
		"token":    token,
		"password": newPassword,
	}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, authenticated bool, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if authenticated {
		token, ok := c.tokens.Current()
		if !ok {
			return ErrNoToken
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Status: resp.StatusCode, Message: serverMessage(resp.Body)}
	}
	if out == nil {
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

func serverMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(data, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return ""
}
