// Package directauth implements the IdentityProvider port against a backend
// that performs direct credential exchange: POST /login, /register, /refresh
// and /logout with JSON bodies and bearer tokens in responses.
package directauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	domainauth "github.com/linkstash/authkit/internal/domain/auth"
	apperrors "github.com/linkstash/authkit/internal/errors"
	"github.com/linkstash/authkit/internal/ports"
)

// Provider implements ports.IdentityProvider and ports.Registrar using a
// deployment-configured HTTP backend.
type Provider struct {
	baseURL    *url.URL
	httpClient *http.Client
}

var (
	_ ports.IdentityProvider = (*Provider)(nil)
	_ ports.Registrar        = (*Provider)(nil)
)

// Config holds configuration for the direct-exchange provider.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client // Optional; a cookie-jar-equipped default is built when nil
	Timeout    time.Duration
}

// NewProvider creates a direct-exchange provider.
// The default HTTP client carries a publicsuffix-aware cookie jar: the
// backend's older cookie-based flow still sets session cookies alongside
// bearer tokens and misfiling those across domains would leak them.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("backend base URL is required")
	}
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend base URL: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		jar, jarErr := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if jarErr != nil {
			return nil, fmt.Errorf("create cookie jar: %w", jarErr)
		}
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout, Jar: jar}
	}

	return &Provider{baseURL: base, httpClient: httpClient}, nil
}

// sessionResponse is the shape returned by /login, /register and /refresh.
type sessionResponse struct {
	Token        string       `json:"token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"` // seconds; zero means unreported
	User         *userPayload `json:"user"`
}

type userPayload struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// errorResponse is the backend's JSON error envelope.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (p *Provider) Login(ctx context.Context, in ports.LoginInput) (domainauth.Session, error) {
	if in.Email == "" {
		return domainauth.Session{}, apperrors.ValidationField("email", "email is required")
	}
	if in.Password == "" {
		return domainauth.Session{}, apperrors.ValidationField("password", "password is required")
	}

	body := map[string]string{"email": in.Email, "password": in.Password}
	resp, err := p.postJSON(ctx, "/login", "", body)
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("login: %w", err)
	}
	return resp.toSession(), nil
}

func (p *Provider) Register(ctx context.Context, in ports.RegisterInput) (domainauth.Session, error) {
	if in.Email == "" {
		return domainauth.Session{}, apperrors.ValidationField("email", "email is required")
	}
	if in.Password == "" {
		return domainauth.Session{}, apperrors.ValidationField("password", "password is required")
	}

	body := map[string]string{"name": in.Name, "email": in.Email, "password": in.Password}
	resp, err := p.postJSON(ctx, "/register", "", body)
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("register: %w", err)
	}
	return resp.toSession(), nil
}

func (p *Provider) Refresh(ctx context.Context, refreshToken string) (domainauth.Session, error) {
	if refreshToken == "" {
		return domainauth.Session{}, apperrors.RefreshInvalid("no refresh token held")
	}

	body := map[string]string{"refresh_token": refreshToken}
	resp, err := p.postJSON(ctx, "/refresh", "", body)
	if err != nil {
		// A 401/403 from the refresh endpoint means the token itself was
		// rejected, not that the caller lacked authorization.
		if apperrors.IsUnauthorized(err) {
			return domainauth.Session{}, apperrors.Wrap(err, apperrors.ErrCodeRefreshInvalid, "refresh token rejected")
		}
		return domainauth.Session{}, fmt.Errorf("refresh: %w", err)
	}

	session := resp.toSession()
	// Backends that do not rotate refresh tokens omit the field; keep the old one.
	if session.RefreshToken == "" {
		session.RefreshToken = refreshToken
	}
	return session, nil
}

func (p *Provider) Logout(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	if _, err := p.postJSON(ctx, "/logout", accessToken, struct{}{}); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

func (p *Provider) postJSON(ctx context.Context, path, bearer string, body any) (*sessionResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "encode request body")
	}

	endpoint := p.baseURL.JoinPath(path).String()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.MapTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperrors.MapTransportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, mapStatusError(resp.StatusCode, data)
	}

	var out sessionResponse
	if len(data) > 0 {
		if unmarshalErr := json.Unmarshal(data, &out); unmarshalErr != nil {
			return nil, apperrors.Wrap(unmarshalErr, apperrors.ErrCodeInternal, "decode response body")
		}
	}
	return &out, nil
}

// mapStatusError converts a non-2xx backend response into an AppError.
func mapStatusError(status int, body []byte) error {
	var envelope errorResponse
	_ = json.Unmarshal(body, &envelope)
	message := envelope.Message
	if message == "" {
		message = envelope.Error
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		if message == "" {
			message = "invalid credentials"
		}
		return apperrors.Unauthorized(message)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		if message == "" {
			message = "request rejected by backend"
		}
		return apperrors.Validation(message)
	case status == http.StatusConflict:
		if message == "" {
			message = "account already exists"
		}
		return apperrors.Validation(message)
	default:
		if message == "" {
			message = fmt.Sprintf("backend returned status %d", status)
		}
		return apperrors.Network(message)
	}
}

func (r *sessionResponse) toSession() domainauth.Session {
	session := domainauth.Session{
		AccessToken:  r.Token,
		RefreshToken: r.RefreshToken,
	}
	if r.ExpiresIn > 0 {
		session.ExpiresAt = time.Now().Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	if r.User != nil {
		session.User = &domainauth.UserIdentity{ID: r.User.ID, Email: r.User.Email}
	}
	return session
}
