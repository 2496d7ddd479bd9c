// Package oauthbrowser implements the IdentityProvider port using a
// browser-delegated OIDC/OAuth2 authorization-code flow. The interactive
// sign-in happens on an injected Browser surface; the code exchange is
// explicit (the callback URL is parsed and posted back), never inferred by
// URL interception.
package oauthbrowser

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	jmespath "github.com/jmespath-community/go-jmespath"
	"golang.org/x/oauth2"

	domainauth "github.com/linkstash/authkit/internal/domain/auth"
	apperrors "github.com/linkstash/authkit/internal/errors"
	"github.com/linkstash/authkit/internal/ports"
)

// DefaultInteractiveTimeout bounds how long the provider waits for the user
// to finish signing in on the browser surface. Providers can leave the
// surface open indefinitely; the state machine must still resolve.
const DefaultInteractiveTimeout = 60 * time.Second

// Provider implements ports.IdentityProvider using OIDC/OAuth2 with an
// interactive browser surface.
type Provider struct {
	config             *oauth2.Config
	browser            ports.Browser
	logoutURL          string
	redirectURL        string
	httpClient         *http.Client
	interactiveTimeout time.Duration

	// go-oidc provider and verifier
	oidcProvider *gooidc.Provider
	verifier     *gooidc.IDTokenVerifier

	// compiled claim extraction expressions
	userIDExpr jmespath.JMESPath
	emailExpr  jmespath.JMESPath
}

var _ ports.IdentityProvider = (*Provider)(nil)

// ClaimsConfig selects which provider claims populate the user identity.
// Expressions are JMESPath, evaluated against the ID token (or userinfo)
// claim document, so deployments with nonstandard claim shapes configure a
// path instead of forking the adapter.
type ClaimsConfig struct {
	UserIDPath string // default "sub"
	EmailPath  string // default "email"
}

// ProviderConfig holds configuration for the browser OAuth provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scope        string
	DiscoveryURL string
	LogoutURL    string

	Browser            ports.Browser
	Claims             ClaimsConfig
	InteractiveTimeout time.Duration // defaults to DefaultInteractiveTimeout
	HTTPClient         *http.Client  // Optional, defaults to a 30s-timeout client
}

// NewProvider creates a browser-delegated OAuth provider.
// Discovery is fetched once at construction.
func NewProvider(config ProviderConfig) (*Provider, error) {
	if config.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if config.RedirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}
	if config.DiscoveryURL == "" {
		return nil, errors.New("discovery URL is required")
	}
	if config.Browser == nil {
		return nil, errors.New("browser surface is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	interactiveTimeout := config.InteractiveTimeout
	if interactiveTimeout == 0 {
		interactiveTimeout = DefaultInteractiveTimeout
	}

	userIDPath := config.Claims.UserIDPath
	if userIDPath == "" {
		userIDPath = "sub"
	}
	emailPath := config.Claims.EmailPath
	if emailPath == "" {
		emailPath = "email"
	}
	userIDExpr, err := jmespath.Compile(userIDPath)
	if err != nil {
		return nil, fmt.Errorf("compile user ID claim path: %w", err)
	}
	emailExpr, err := jmespath.Compile(emailPath)
	if err != nil {
		return nil, fmt.Errorf("compile email claim path: %w", err)
	}

	p := &Provider{
		browser:            config.Browser,
		logoutURL:          config.LogoutURL,
		redirectURL:        config.RedirectURL,
		httpClient:         httpClient,
		interactiveTimeout: interactiveTimeout,
		userIDExpr:         userIDExpr,
		emailExpr:          emailExpr,
	}

	// Initialize go-oidc provider and verifier (single discovery fetch)
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
	issuer := strings.TrimSuffix(config.DiscoveryURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	issuer = strings.TrimSuffix(issuer, ".well-known/openid-configuration")
	op, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}
	p.oidcProvider = op
	p.verifier = op.Verifier(&gooidc.Config{ClientID: config.ClientID})

	p.config = &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		RedirectURL:  config.RedirectURL,
		Scopes:       strings.Fields(config.Scope),
		Endpoint:     op.Endpoint(),
	}

	return p, nil
}

// Login runs the interactive authorization-code flow.
// Email/password inputs are ignored; the provider collects credentials on
// its own surface. Abandonment (closed surface, denied consent, or the
// interactive timeout) yields auth_cancelled.
func (p *Provider) Login(ctx context.Context, _ ports.LoginInput) (domainauth.Session, error) {
	state, err := generateRandomString(32)
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("generate state: %w", err)
	}
	nonce, err := generateRandomString(32)
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("generate nonce: %w", err)
	}

	authURL := p.config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("nonce", nonce),
		oauth2.SetAuthURLParam("response_type", "code"),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)

	// The browser wait is the only unbounded-duration suspension in the
	// whole flow; bound it so Authenticating always resolves.
	browserCtx, cancel := context.WithTimeout(ctx, p.interactiveTimeout)
	defer cancel()

	callbackURL, err := p.browser.OpenAuthSession(browserCtx, authURL, p.redirectURL)
	if err != nil {
		if apperrors.IsCanceled(err) || errors.Is(err, context.Canceled) {
			return domainauth.Session{}, apperrors.AuthCancelled("sign-in was cancelled")
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return domainauth.Session{}, apperrors.AuthCancelled("sign-in timed out")
		}
		return domainauth.Session{}, apperrors.MapTransportError(err)
	}

	code, err := parseCallback(callbackURL, state)
	if err != nil {
		return domainauth.Session{}, err
	}

	exchangeCtx := context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	token, err := p.config.Exchange(exchangeCtx, code)
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("exchange authorization code: %w", apperrors.MapTransportError(err))
	}

	identity, err := p.resolveIdentity(ctx, token, nonce)
	if err != nil {
		return domainauth.Session{}, err
	}

	return sessionFromToken(token, identity), nil
}

// Refresh exchanges the refresh token for a fresh token set via the
// provider's token endpoint.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (domainauth.Session, error) {
	if refreshToken == "" {
		return domainauth.Session{}, apperrors.RefreshInvalid("no refresh token held")
	}

	refreshCtx := context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	source := p.config.TokenSource(refreshCtx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			// invalid_grant means the token itself is dead; anything else from
			// the token endpoint is treated the same once it is a definitive
			// 4xx rejection.
			if retrieveErr.ErrorCode == "invalid_grant" ||
				retrieveErr.Response.StatusCode == http.StatusBadRequest ||
				retrieveErr.Response.StatusCode == http.StatusUnauthorized {
				return domainauth.Session{}, apperrors.Wrap(err, apperrors.ErrCodeRefreshInvalid, "refresh token rejected")
			}
		}
		return domainauth.Session{}, apperrors.MapTransportError(err)
	}

	session := sessionFromToken(token, nil)
	if session.RefreshToken == "" {
		session.RefreshToken = refreshToken
	}
	return session, nil
}

// Logout calls the provider's logout endpoint when one is configured.
func (p *Provider) Logout(ctx context.Context, accessToken string) error {
	if p.logoutURL == "" || accessToken == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.logoutURL, nil)
	if err != nil {
		return fmt.Errorf("build logout request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return apperrors.MapTransportError(err)
	}
	return resp.Body.Close()
}

// parseCallback extracts and validates the authorization code from the
// terminal redirect URL.
func parseCallback(callbackURL, expectedState string) (string, error) {
	parsed, err := url.Parse(callbackURL)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeInternal, "parse callback URL")
	}

	query := parsed.Query()
	if providerErr := query.Get("error"); providerErr != "" {
		if providerErr == "access_denied" {
			return "", apperrors.AuthCancelled("sign-in was declined")
		}
		description := query.Get("error_description")
		if description == "" {
			description = providerErr
		}
		return "", apperrors.Unauthorized(description)
	}

	if state := query.Get("state"); state != expectedState {
		return "", apperrors.Internal("authorization state mismatch")
	}

	code := query.Get("code")
	if code == "" {
		return "", apperrors.Internal("callback is missing authorization code")
	}
	return code, nil
}

// resolveIdentity extracts the user identity from the ID token when the
// openid scope is present, falling back to the userinfo endpoint for
// missing fields.
func (p *Provider) resolveIdentity(ctx context.Context, token *oauth2.Token, expectedNonce string) (*domainauth.UserIdentity, error) {
	var claims map[string]any

	if p.hasOpenIDScope() {
		rawID, ok := token.Extra("id_token").(string)
		if !ok || rawID == "" {
			return nil, apperrors.Internal("missing id_token in token response")
		}
		idToken, err := p.verifier.Verify(ctx, rawID)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeUnauthorized, "verify id_token")
		}
		if expectedNonce != "" && idToken.Nonce != expectedNonce {
			return nil, apperrors.Unauthorized("invalid nonce")
		}
		if claimsErr := idToken.Claims(&claims); claimsErr != nil {
			return nil, apperrors.Wrap(claimsErr, apperrors.ErrCodeInternal, "parse id_token claims")
		}
	}

	identity := p.extractIdentity(claims)
	if identity.ID == "" || identity.Email == "" {
		infoCtx := context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
		info, err := p.oidcProvider.UserInfo(infoCtx, oauth2.StaticTokenSource(token))
		if err != nil {
			return nil, fmt.Errorf("fetch user info: %w", apperrors.MapTransportError(err))
		}
		var infoClaims map[string]any
		if claimsErr := info.Claims(&infoClaims); claimsErr != nil {
			return nil, apperrors.Wrap(claimsErr, apperrors.ErrCodeInternal, "decode user info")
		}
		fromInfo := p.extractIdentity(infoClaims)
		if identity.ID == "" {
			identity.ID = fromInfo.ID
		}
		if identity.Email == "" {
			identity.Email = fromInfo.Email
		}
	}

	if identity.ID == "" {
		return nil, apperrors.Internal("provider claims carry no user identifier")
	}
	return &identity, nil
}

// extractIdentity evaluates the configured claim paths against a claim document.
func (p *Provider) extractIdentity(claims map[string]any) domainauth.UserIdentity {
	if claims == nil {
		return domainauth.UserIdentity{}
	}
	var identity domainauth.UserIdentity
	if v, err := p.userIDExpr.Search(claims); err == nil {
		if s, ok := v.(string); ok {
			identity.ID = s
		}
	}
	if v, err := p.emailExpr.Search(claims); err == nil {
		if s, ok := v.(string); ok {
			identity.Email = s
		}
	}
	return identity
}

func sessionFromToken(token *oauth2.Token, user *domainauth.UserIdentity) domainauth.Session {
	session := domainauth.Session{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		User:         user,
	}
	if !token.Expiry.IsZero() {
		session.ExpiresAt = token.Expiry
	}
	return session
}

// hasOpenIDScope reports whether the configured scopes include "openid".
func (p *Provider) hasOpenIDScope() bool {
	for _, sc := range p.config.Scopes {
		if sc == "openid" {
			return true
		}
	}
	return false
}

// generateRandomString generates a cryptographically secure URL-safe random string of exact length.
func generateRandomString(length int) (string, error) {
	if length <= 0 {
		return "", nil
	}
	nBytes := (length*3 + 3) / 4
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := base64.RawURLEncoding.EncodeToString(b)
	if len(s) < length {
		extra := make([]byte, 1)
		if _, err := rand.Read(extra); err != nil {
			return "", err
		}
		s += base64.RawURLEncoding.EncodeToString(extra)
	}
	return s[:length], nil
}
