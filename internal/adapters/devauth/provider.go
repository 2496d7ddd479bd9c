// Package devauth provides a simple, config-driven IdentityProvider for local
// development. It short-circuits all network exchanges and hands out locally
// generated tokens for a fixed identity.
package devauth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/linkstash/authkit/internal/domain/auth"
	apperrors "github.com/linkstash/authkit/internal/errors"
	"github.com/linkstash/authkit/internal/ports"
)

// Config controls the dev auth provider behavior.
// UserID and Email are required.
type Config struct {
	UserID          string
	Email           string
	SessionDuration time.Duration // default 8h when zero
}

// Provider implements ports.IdentityProvider for local development.
// Login ignores the submitted credentials and returns the configured
// identity with fresh random tokens.
type Provider struct {
	identity        domainauth.UserIdentity
	sessionDuration time.Duration
}

var _ ports.IdentityProvider = (*Provider)(nil)

// NewProvider constructs a dev auth provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.UserID == "" {
		return nil, errors.New("dev auth: UserID is required")
	}
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}
	dur := cfg.SessionDuration
	if dur == 0 {
		dur = 8 * time.Hour
	}
	return &Provider{
		identity:        domainauth.UserIdentity{ID: cfg.UserID, Email: cfg.Email},
		sessionDuration: dur,
	}, nil
}

// Login issues a fresh local session for the configured identity.
func (p *Provider) Login(_ context.Context, _ ports.LoginInput) (domainauth.Session, error) {
	return p.issue(), nil
}

// Refresh issues a fresh local session. An empty refresh token is rejected
// the way a real backend would reject it.
func (p *Provider) Refresh(_ context.Context, refreshToken string) (domainauth.Session, error) {
	if refreshToken == "" {
		return domainauth.Session{}, apperrors.RefreshInvalid("no refresh token held")
	}
	return p.issue(), nil
}

// Logout is a no-op; there is no server-side session to invalidate.
func (p *Provider) Logout(_ context.Context, _ string) error {
	return nil
}

func (p *Provider) issue() domainauth.Session {
	identity := p.identity
	// UUIDs are URL-safe and have enough entropy for throwaway dev tokens.
	return domainauth.Session{
		AccessToken:  "dev-" + uuid.NewString(),
		RefreshToken: "dev-" + uuid.NewString(),
		User:         &identity,
		ExpiresAt:    time.Now().Add(p.sessionDuration),
	}
}
