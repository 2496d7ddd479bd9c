// Package transport provides the authenticated HTTP request pipeline: it
// attaches the current bearer token to outbound requests and transparently
// recovers from a single 401 by refreshing the session and retrying once.
package transport

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	domainauth "github.com/linkstash/authkit/internal/domain/auth"
	apperrors "github.com/linkstash/authkit/internal/errors"
)

// maxDrainBytes bounds how much of a 401 body is read before the retry.
const maxDrainBytes = 64 << 10

// SessionSource exposes the slice of the session manager the pipeline needs.
// It never touches the credential store directly.
type SessionSource interface {
	State() domainauth.State
	Refresh(ctx context.Context) error
}

// Option configures an AuthTransport.
type Option func(*AuthTransport)

// WithBase sets the underlying round tripper. Defaults to http.DefaultTransport.
func WithBase(base http.RoundTripper) Option {
	return func(t *AuthTransport) { t.base = base }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *AuthTransport) { t.logger = logger }
}

// AuthTransport is an http.RoundTripper decorator implementing the
// authenticated request pipeline.
type AuthTransport struct {
	base     http.RoundTripper
	sessions SessionSource
	logger   *slog.Logger
}

var _ http.RoundTripper = (*AuthTransport)(nil)

// NewAuthTransport builds the pipeline around the given session source.
func NewAuthTransport(sessions SessionSource, opts ...Option) *AuthTransport {
	t := &AuthTransport{
		base:     http.DefaultTransport,
		sessions: sessions,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewClient returns an *http.Client with the pipeline installed.
func NewClient(sessions SessionSource, timeout time.Duration, opts ...Option) *http.Client {
	return &http.Client{
		Transport: NewAuthTransport(sessions, opts...),
		Timeout:   timeout,
	}
}

// RoundTrip attaches the bearer token when a session exists and omits it
// otherwise. On a 401 with a token attached it refreshes the session once and
// retries the original request once with the new credential; a failed refresh
// fails the request with unauthorized and no further retries.
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token := t.currentToken()

	resp, err := t.base.RoundTrip(t.withToken(req, token))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || token == "" {
		return resp, nil
	}

	// A consumed body without GetBody cannot be replayed, so the 401 stands.
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}

	drainAndClose(resp.Body)

	ctx := req.Context()
	t.logger.DebugContext(ctx, "request unauthorized, refreshing session",
		"method", req.Method,
		"url", req.URL.Redacted(),
	)

	if refreshErr := t.sessions.Refresh(ctx); refreshErr != nil {
		return nil, apperrors.Wrap(refreshErr, apperrors.ErrCodeUnauthorized, "refresh session after 401")
	}

	retryToken := t.currentToken()
	if retryToken == "" {
		return nil, apperrors.Unauthorized("session lost during refresh")
	}

	retry := t.withToken(req, retryToken)
	if req.Body != nil {
		body, bodyErr := req.GetBody()
		if bodyErr != nil {
			return nil, apperrors.Wrap(bodyErr, apperrors.ErrCodeInternal, "replay request body")
		}
		retry.Body = body
	}

	return t.base.RoundTrip(retry)
}

func (t *AuthTransport) currentToken() string {
	state := t.sessions.State()
	if state.Session == nil {
		return ""
	}
	return state.Session.AccessToken
}

// withToken clones the request so the caller's copy is never mutated.
func (t *AuthTransport) withToken(req *http.Request, token string) *http.Request {
	out := req.Clone(req.Context())
	if token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	} else {
		out.Header.Del("Authorization")
	}
	return out
}

func drainAndClose(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxDrainBytes))
	_ = body.Close()
}
