// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.
package auth

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	domainauth "github.com/linkstash/authkit/internal/domain/auth"
	apperrors "github.com/linkstash/authkit/internal/errors"
	"github.com/linkstash/authkit/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.IdentityProvider = (*MockProvider)(nil)
	_ ports.Registrar        = (*MockProvider)(nil)
	_ ports.CredentialStore  = (*MemoryCredentialStore)(nil)
	_ ports.Browser          = (*MockBrowser)(nil)
)

// MockProvider simulates an identity backend with deterministic sessions.
// Per-method hooks override the default behavior when set; call counters are
// safe for concurrent use so coalescing tests can assert exact call counts.
type MockProvider struct {
	LoginFunc    func(ctx context.Context, in ports.LoginInput) (domainauth.Session, error)
	RefreshFunc  func(ctx context.Context, refreshToken string) (domainauth.Session, error)
	LogoutFunc   func(ctx context.Context, accessToken string) error
	RegisterFunc func(ctx context.Context, in ports.RegisterInput) (domainauth.Session, error)

	// DefaultSession is returned by Login/Refresh when no hook is set.
	DefaultSession domainauth.Session

	loginCalls    atomic.Int64
	refreshCalls  atomic.Int64
	logoutCalls   atomic.Int64
	registerCalls atomic.Int64
}

// NewMockProvider creates a MockProvider with a sensible default session.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		DefaultSession: domainauth.Session{
			AccessToken:  "mock-access-token",
			RefreshToken: "mock-refresh-token",
			User:         &domainauth.UserIdentity{ID: "mock-user-1", Email: "mock.user@example.com"},
			ExpiresAt:    time.Now().Add(time.Hour),
		},
	}
}

func (m *MockProvider) Login(ctx context.Context, in ports.LoginInput) (domainauth.Session, error) {
	m.loginCalls.Add(1)
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, in)
	}
	return m.defaultSession(), nil
}

func (m *MockProvider) Refresh(ctx context.Context, refreshToken string) (domainauth.Session, error) {
	m.refreshCalls.Add(1)
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, refreshToken)
	}
	return m.defaultSession(), nil
}

func (m *MockProvider) Logout(ctx context.Context, accessToken string) error {
	m.logoutCalls.Add(1)
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, accessToken)
	}
	return nil
}

func (m *MockProvider) Register(ctx context.Context, in ports.RegisterInput) (domainauth.Session, error) {
	m.registerCalls.Add(1)
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, in)
	}
	return m.defaultSession(), nil
}

// LoginCalls returns how many times Login was invoked.
func (m *MockProvider) LoginCalls() int64 { return m.loginCalls.Load() }

// RefreshCalls returns how many times Refresh was invoked.
func (m *MockProvider) RefreshCalls() int64 { return m.refreshCalls.Load() }

// LogoutCalls returns how many times Logout was invoked.
func (m *MockProvider) LogoutCalls() int64 { return m.logoutCalls.Load() }

// RegisterCalls returns how many times Register was invoked.
func (m *MockProvider) RegisterCalls() int64 { return m.registerCalls.Load() }

func (m *MockProvider) defaultSession() domainauth.Session {
	sess := m.DefaultSession
	if sess.AccessToken == "" {
		sess.AccessToken = "mock-access-token"
	}
	if sess.ExpiresAt.IsZero() {
		sess.ExpiresAt = time.Now().Add(time.Hour)
	}
	return sess
}

// MemoryCredentialStore is an in-memory credential store for unit tests.
// It holds the single well-known slot and is safe for concurrent use.
type MemoryCredentialStore struct {
	mu     sync.Mutex
	record domainauth.Record
	stored bool

	// Per-operation error hooks for failure-path tests.
	SaveErr  error
	LoadErr  error
	ClearErr error
}

// NewMemoryCredentialStore creates a new empty in-memory credential store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{}
}

func (m *MemoryCredentialStore) Save(_ context.Context, rec domainauth.Record) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	if rec.Empty() {
		return apperrors.Validation("credential record token cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record = rec
	m.stored = true
	return nil
}

func (m *MemoryCredentialStore) Load(_ context.Context) (domainauth.Record, error) {
	if m.LoadErr != nil {
		return domainauth.Record{}, m.LoadErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.stored {
		return domainauth.Record{}, ports.ErrNoRecord
	}
	return m.record, nil
}

func (m *MemoryCredentialStore) Clear(_ context.Context) error {
	if m.ClearErr != nil {
		return m.ClearErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record = domainauth.Record{}
	m.stored = false
	return nil
}

// MockBrowser simulates the interactive browser surface.
// The default behavior echoes back the redirect URL with a fixed code and
// whatever state the auth URL carried, which satisfies the OAuth adapter's
// state check in tests.
type MockBrowser struct {
	OpenFunc func(ctx context.Context, authURL, redirectURL string) (string, error)

	opened atomic.Int64
}

func (m *MockBrowser) OpenAuthSession(ctx context.Context, authURL, redirectURL string) (string, error) {
	m.opened.Add(1)
	if m.OpenFunc != nil {
		return m.OpenFunc(ctx, authURL, redirectURL)
	}
	return redirectURL + "?code=mock-code&state=mock-state", nil
}

// Opened returns how many times the browser surface was opened.
func (m *MockBrowser) Opened() int64 { return m.opened.Load() }
