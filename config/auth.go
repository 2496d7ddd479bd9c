package config

import (
	"fmt"
	"strings"
	"time"
)

// AuthMode represents the authentication mode for the application.
type AuthMode string

const (
	// AuthModeOAuth uses a browser-delegated OAuth/OIDC flow.
	AuthModeOAuth AuthMode = "oauth"
	// AuthModePassword posts credentials directly to the backend.
	AuthModePassword AuthMode = "password"
	// AuthModeMock uses mock/dev authentication (for development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "oauth", "password", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: oauth, password, mock)", v)
	}
}

// OAuthConfig contains OAuth/OIDC configuration (used when Mode=oauth).
type OAuthConfig struct {
	ClientID     string `env:"CLIENT_ID"     envDefault:"linkstash"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"  envDefault:"http://127.0.0.1:40321/auth/callback"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email offline_access"`
	DiscoveryURL string `env:"DISCOVERY_URL"`
	LogoutURL    string `env:"LOGOUT_URL"`
}

// BackendConfig contains the direct credential exchange endpoint
// configuration (used when Mode=password).
type BackendConfig struct {
	BaseURL string        `env:"BASE_URL"`
	Timeout time.Duration `env:"TIMEOUT"  envDefault:"30s"`
}

// DevAuthConfig controls mock/dev authentication identity.
// Used when AUTH_MODE=mock for development and testing.
type DevAuthConfig struct {
	UserID          string        `env:"USER_ID"          envDefault:"dev-user"`
	Email           string        `env:"EMAIL"            envDefault:"dev@example.com"`
	SessionDuration time.Duration `env:"SESSION_DURATION" envDefault:"8h"`
}

// ClaimsConfig controls how the user identity is extracted from provider
// claims. Paths are JMESPath expressions evaluated against the claim set.
type ClaimsConfig struct {
	UserIDPath string `env:"USER_ID_PATH" envDefault:"sub"`
	EmailPath  string `env:"EMAIL_PATH"   envDefault:"email"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which identity provider to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"oauth"`

	// OAuth configuration (used when Mode=oauth).
	OAuth OAuthConfig `envPrefix:"OAUTH_"`

	// Backend configuration (used when Mode=password).
	Backend BackendConfig `envPrefix:"AUTH_BACKEND_"`

	// DevAuth configuration (used when Mode=mock).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`

	// Claims extraction configuration.
	Claims ClaimsConfig `envPrefix:"AUTH_CLAIMS_"`
}

// Sanitize normalises authentication configuration values.
func (c *AuthConfig) Sanitize() {
	c.OAuth.ClientID = strings.TrimSpace(c.OAuth.ClientID)
	c.OAuth.DiscoveryURL = strings.TrimSpace(c.OAuth.DiscoveryURL)
	c.OAuth.LogoutURL = strings.TrimSpace(c.OAuth.LogoutURL)
	c.Backend.BaseURL = strings.TrimRight(strings.TrimSpace(c.Backend.BaseURL), "/")

	if c.Backend.Timeout <= 0 {
		c.Backend.Timeout = 30 * time.Second
	}
	if c.DevAuth.SessionDuration <= 0 {
		c.DevAuth.SessionDuration = 8 * time.Hour
	}
	if c.Claims.UserIDPath = strings.TrimSpace(c.Claims.UserIDPath); c.Claims.UserIDPath == "" {
		c.Claims.UserIDPath = "sub"
	}
	if c.Claims.EmailPath = strings.TrimSpace(c.Claims.EmailPath); c.Claims.EmailPath == "" {
		c.Claims.EmailPath = "email"
	}
}
