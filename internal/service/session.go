package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	domainauth "github.com/linkstash/authkit/internal/domain/auth"
	apperrors "github.com/linkstash/authkit/internal/errors"
	"github.com/linkstash/authkit/internal/observability/metrics"
	"github.com/linkstash/authkit/internal/observability/statsd"
	"github.com/linkstash/authkit/internal/ports"
)

// SessionManagerOptions groups dependencies for SessionManager.
type SessionManagerOptions struct {
	Store     ports.CredentialStore   // Required: credential persistence
	Provider  ports.IdentityProvider  // Required: identity backend
	Registrar ports.Registrar         // Optional: account registration support
	Logger    *slog.Logger            // Optional: structured logger
	Metrics   statsd.Sink             // Optional: auth event metrics
}

// SessionManager owns the authentication state machine. It mediates between
// the credential store and the identity provider, and publishes state changes
// to subscribers.
//
// All state mutations happen inside SessionManager operations. At most one
// interactive login or registration is in flight at a time; concurrent
// refreshes are coalesced into a single provider call.
type SessionManager struct {
	store     ports.CredentialStore
	provider  ports.IdentityProvider
	registrar ports.Registrar
	logger    *slog.Logger
	metrics   statsd.Sink

	mu          sync.Mutex
	state       domainauth.State
	subscribers []subscriber
	nextSubID   uint64
	interactive bool
	refreshers  int

	refreshGroup singleflight.Group
}

type subscriber struct {
	id uint64
	fn func(domainauth.State)
}

// NewSessionManager constructs a new SessionManager in the Bootstrapping state.
func NewSessionManager(opts SessionManagerOptions) (*SessionManager, error) {
	if opts.Store == nil {
		return nil, errors.New("CredentialStore is required")
	}
	if opts.Provider == nil {
		return nil, errors.New("IdentityProvider is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &SessionManager{
		store:     opts.Store,
		provider:  opts.Provider,
		registrar: opts.Registrar,
		logger:    logger.With("component", "session_manager"),
		metrics:   opts.Metrics,
		state:     domainauth.State{Status: domainauth.StatusBootstrapping},
	}, nil
}

// MustNewSessionManager constructs a new SessionManager and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewSessionManager(opts SessionManagerOptions) *SessionManager {
	m, err := NewSessionManager(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create SessionManager: %v", err))
	}
	return m
}

// State returns an immutable snapshot of the current authentication state.
func (m *SessionManager) State() domainauth.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneState(m.state)
}

// Subscribe registers fn to be called synchronously on every state change and
// returns an unsubscribe func. Subscribers are notified in registration order
// over a snapshot of the subscriber list, so a subscriber added during a
// notification round is not invoked for that round.
func (m *SessionManager) Subscribe(fn func(domainauth.State)) func() {
	m.mu.Lock()
	m.nextSubID++
	id := m.nextSubID
	m.subscribers = append(m.subscribers, subscriber{id: id, fn: fn})
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, sub := range m.subscribers {
			if sub.id == id {
				m.subscribers = append(m.subscribers[:i:i], m.subscribers[i+1:]...)
				return
			}
		}
	}
}

// Bootstrap resolves the initial Bootstrapping state from the credential
// store. A stored record restores an Authenticated session with the user
// identity unresolved; an absent or empty record resolves to Unauthenticated.
// A storage read failure also resolves to Unauthenticated but is surfaced.
func (m *SessionManager) Bootstrap(ctx context.Context) error {
	start := time.Now()

	record, err := m.store.Load(ctx)
	switch {
	case errors.Is(err, ports.ErrNoRecord) || (err == nil && record.Empty()):
		m.transition(ctx, domainauth.StatusUnauthenticated, nil)
		m.emit(metrics.OpBootstrap, metrics.ResultNoop, time.Since(start), nil)
		return nil
	case err != nil:
		m.transition(ctx, domainauth.StatusUnauthenticated, nil)
		m.emit(metrics.OpBootstrap, metrics.ResultError, time.Since(start), err)
		m.logger.WarnContext(ctx, "credential load failed during bootstrap", "error", err)
		return apperrors.Wrap(err, apperrors.ErrCodeStorage, "load stored credential")
	}

	session := record.ToSession()
	m.transition(ctx, domainauth.StatusAuthenticated, &session)
	m.emit(metrics.OpBootstrap, metrics.ResultSuccess, time.Since(start), nil)
	return nil
}

// Login runs an interactive authentication flow. A second Login, Register, or
// Refresh while one is in flight fails with already_in_progress without
// perturbing the in-flight operation. A user-cancelled flow resolves back to
// Unauthenticated without surfacing an error.
func (m *SessionManager) Login(ctx context.Context, input ports.LoginInput) error {
	return m.interactiveFlow(ctx, metrics.OpLogin, func(ctx context.Context) (domainauth.Session, error) {
		return m.provider.Login(ctx, input)
	})
}

// Register creates an account through the configured registrar and, on
// success, establishes a session exactly like Login.
func (m *SessionManager) Register(ctx context.Context, input ports.RegisterInput) error {
	if m.registrar == nil {
		return apperrors.Internal("registration is not supported by the configured provider")
	}
	return m.interactiveFlow(ctx, metrics.OpRegister, func(ctx context.Context) (domainauth.Session, error) {
		return m.registrar.Register(ctx, input)
	})
}

func (m *SessionManager) interactiveFlow(ctx context.Context, op string, exchange func(context.Context) (domainauth.Session, error)) error {
	start := time.Now()

	m.mu.Lock()
	if m.interactive || m.refreshers > 0 {
		m.mu.Unlock()
		return apperrors.AlreadyInProgress("authentication already in progress")
	}
	m.interactive = true
	prior := cloneState(m.state)
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.interactive = false
		m.mu.Unlock()
	}()

	m.transition(ctx, domainauth.StatusAuthenticating, nil)

	session, err := exchange(ctx)
	if err != nil {
		// Resolve back to where the flow started; a login attempted over a
		// live session must not discard it.
		m.transition(ctx, prior.Status, prior.Session)
		if apperrors.IsAuthCancelled(err) {
			m.logger.InfoContext(ctx, "authentication cancelled by user", "operation", op)
			m.emit(op, metrics.ResultCancelled, time.Since(start), nil)
			return nil
		}
		m.logger.WarnContext(ctx, "authentication failed", "operation", op, "error", err)
		m.emit(op, metrics.ResultError, time.Since(start), err)
		return err
	}

	saveErr := m.store.Save(ctx, domainauth.NewRecord(session))
	m.transition(ctx, domainauth.StatusAuthenticated, &session)
	m.emit(op, metrics.ResultSuccess, time.Since(start), nil)

	if saveErr != nil {
		// The in-memory session stands; only persistence failed.
		m.logger.WarnContext(ctx, "credential save failed", "operation", op, "error", saveErr)
		return apperrors.Wrap(saveErr, apperrors.ErrCodeStorage, "persist credential")
	}

	m.logger.InfoContext(ctx, "session established", "operation", op, "user_id", userID(&session))
	return nil
}

// Refresh exchanges the stored refresh token for a new session. Concurrent
// callers share a single provider call. A permanently rejected refresh token
// clears the stored credential and resolves to Unauthenticated via
// RefreshFailed; a transient failure leaves the state untouched.
func (m *SessionManager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	if m.interactive {
		m.mu.Unlock()
		return apperrors.AlreadyInProgress("authentication already in progress")
	}
	if m.state.Session == nil {
		m.mu.Unlock()
		return apperrors.Unauthorized("no active session to refresh")
	}
	m.refreshers++
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.refreshers--
		m.mu.Unlock()
	}()

	// The shared flight must not die with whichever caller happened to start
	// it; waiters whose own contexts are live still need the result.
	refreshCtx := context.WithoutCancel(ctx)
	_, err, _ := m.refreshGroup.Do("refresh", func() (any, error) {
		return nil, m.refreshOnce(refreshCtx)
	})
	return err
}

func (m *SessionManager) refreshOnce(ctx context.Context) error {
	start := time.Now()

	m.mu.Lock()
	current := m.state.Session
	m.mu.Unlock()
	if current == nil {
		return apperrors.Unauthorized("no active session to refresh")
	}
	if current.RefreshToken == "" {
		return m.invalidateSession(ctx, start, apperrors.RefreshInvalid("no refresh token available"))
	}

	session, err := m.provider.Refresh(ctx, current.RefreshToken)
	if err != nil {
		if apperrors.IsRefreshInvalid(err) {
			return m.invalidateSession(ctx, start, err)
		}
		m.logger.WarnContext(ctx, "token refresh failed", "error", err)
		m.emit(metrics.OpRefresh, metrics.ResultError, time.Since(start), err)
		return err
	}

	if session.User == nil {
		session.User = current.User
	}

	saveErr := m.store.Save(ctx, domainauth.NewRecord(session))
	m.transition(ctx, domainauth.StatusAuthenticated, &session)
	m.emit(metrics.OpRefresh, metrics.ResultSuccess, time.Since(start), nil)

	if saveErr != nil {
		m.logger.WarnContext(ctx, "credential save failed after refresh", "error", saveErr)
		return apperrors.Wrap(saveErr, apperrors.ErrCodeStorage, "persist refreshed credential")
	}
	return nil
}

// invalidateSession handles a permanently rejected refresh token: the stored
// credential is cleared and the state resolves to Unauthenticated through the
// intermediate RefreshFailed status.
func (m *SessionManager) invalidateSession(ctx context.Context, start time.Time, cause error) error {
	m.logger.WarnContext(ctx, "refresh token rejected, clearing session", "error", cause)

	m.transition(ctx, domainauth.StatusRefreshFailed, nil)
	if err := m.store.Clear(ctx); err != nil {
		m.logger.WarnContext(ctx, "credential clear failed", "error", err)
	}
	m.transition(ctx, domainauth.StatusUnauthenticated, nil)

	m.emit(metrics.OpRefresh, metrics.ResultError, time.Since(start), cause)
	return cause
}

// Logout ends the current session. Server-side invalidation is best effort;
// the local credential is always cleared, so logout works offline. Calling
// Logout while already unauthenticated is a no-op.
func (m *SessionManager) Logout(ctx context.Context) error {
	start := time.Now()

	m.mu.Lock()
	status := m.state.Status
	session := m.state.Session
	m.mu.Unlock()

	if status == domainauth.StatusUnauthenticated {
		m.emit(metrics.OpLogout, metrics.ResultNoop, time.Since(start), nil)
		return nil
	}

	if session != nil && session.AccessToken != "" {
		if err := m.provider.Logout(ctx, session.AccessToken); err != nil {
			m.logger.WarnContext(ctx, "server-side logout failed", "error", err)
		}
	}

	clearErr := m.store.Clear(ctx)
	m.transition(ctx, domainauth.StatusUnauthenticated, nil)

	if clearErr != nil {
		m.logger.WarnContext(ctx, "credential clear failed during logout", "error", clearErr)
		m.emit(metrics.OpLogout, metrics.ResultError, time.Since(start), clearErr)
		return apperrors.Wrap(clearErr, apperrors.ErrCodeStorage, "clear stored credential")
	}

	m.emit(metrics.OpLogout, metrics.ResultSuccess, time.Since(start), nil)
	m.logger.InfoContext(ctx, "session ended")
	return nil
}

// transition replaces the current state and notifies subscribers. Dispatch
// runs outside the lock so subscribers may call back into the manager.
func (m *SessionManager) transition(ctx context.Context, status domainauth.Status, session *domainauth.Session) {
	m.mu.Lock()
	from := m.state.Status
	m.state = domainauth.State{Status: status, Session: session}
	subs := make([]subscriber, len(m.subscribers))
	copy(subs, m.subscribers)
	m.mu.Unlock()

	m.logger.DebugContext(ctx, "session state changed", "from", from, "to", status)

	for _, sub := range subs {
		sub.fn(cloneState(domainauth.State{Status: status, Session: session}))
	}
}

func (m *SessionManager) emit(op, result string, duration time.Duration, err error) {
	metrics.EmitAuthEvent(m.metrics, metrics.AuthEvent{
		Operation: op,
		Result:    result,
		Duration:  duration,
		Err:       err,
	})
}

// cloneState returns a deep copy so callers never hold a reference into the
// manager's mutable state.
func cloneState(s domainauth.State) domainauth.State {
	out := domainauth.State{Status: s.Status}
	if s.Session != nil {
		session := *s.Session
		if session.User != nil {
			user := *session.User
			session.User = &user
		}
		out.Session = &session
	}
	return out
}

func userID(s *domainauth.Session) string {
	if s == nil || s.User == nil {
		return ""
	}
	return s.User.ID
}
