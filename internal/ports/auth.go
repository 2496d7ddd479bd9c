// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.
package ports

import (
	"context"

	domainauth "github.com/linkstash/authkit/internal/domain/auth"
)

// CredentialStore persists the device's single credential record under one
// well-known slot. Implementations never touch the network and never
// validate token contents.
type CredentialStore interface {
	// Save durably writes the record, replacing any previous one.
	Save(ctx context.Context, rec domainauth.Record) error

	// Load returns the stored record. A missing record is not an error:
	// it returns ErrNoRecord. Read failures return a storage error.
	Load(ctx context.Context) (domainauth.Record, error)

	// Clear removes the stored record. Clearing an empty slot is a no-op.
	Clear(ctx context.Context) error
}

// ErrNoRecord is returned by CredentialStore.Load when no credential is stored.
var ErrNoRecord error = noRecordError{}

type noRecordError struct{}

func (noRecordError) Error() string { return "no credential record stored" }

// LoginInput carries inputs for initiating a login. Email/Password are used
// by the direct-exchange provider and ignored by the browser-delegated one.
type LoginInput struct {
	Email    string
	Password string
}

// RegisterInput carries inputs for creating a new account via the
// direct-exchange backend.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// IdentityProvider performs the network exchanges that produce or renew a
// session. The two historical flow variants (browser-delegated OAuth and
// direct credential exchange) both implement this single capability
// interface; deployment configuration selects one.
type IdentityProvider interface {
	// Login acquires a new session. Interactive providers may suspend on an
	// external browser surface; user abandonment yields an auth_cancelled
	// error, which callers treat as "no state change".
	Login(ctx context.Context, in LoginInput) (domainauth.Session, error)

	// Refresh exchanges a refresh token for a new session. A permanent
	// rejection by the backend yields refresh_invalid, distinct from
	// transient network failure.
	Refresh(ctx context.Context, refreshToken string) (domainauth.Session, error)

	// Logout performs best-effort server-side session invalidation.
	// Failures here must not block local logout.
	Logout(ctx context.Context, accessToken string) error
}

// Registrar is implemented by providers that support account creation.
type Registrar interface {
	Register(ctx context.Context, in RegisterInput) (domainauth.Session, error)
}

// Browser is the user-facing browser surface that hosts an interactive
// sign-in (system browser or web-view). OpenAuthSession opens authURL and
// resolves with the full callback URL once the provider redirects back to
// redirectURL. Closing the surface without completing yields a canceled
// error; the operation must resolve rather than hang.
type Browser interface {
	OpenAuthSession(ctx context.Context, authURL, redirectURL string) (string, error)
}
