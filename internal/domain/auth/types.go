// Package auth contains domain-level types for authentication and sessions.
// It is pure and free of adapter/transport concerns.
package auth

import "time"

// Status represents the externally observable phase of the session lifecycle.
// Keep string form for easy logging and metric tagging.
// Valid values are defined as constants below.
type Status string

const (
	// StatusBootstrapping is the initial state while the stored credential is inspected.
	StatusBootstrapping Status = "bootstrapping"
	// StatusUnauthenticated means no session exists.
	StatusUnauthenticated Status = "unauthenticated"
	// StatusAuthenticating means a login exchange is in flight.
	StatusAuthenticating Status = "authenticating"
	// StatusAuthenticated means a valid session is held.
	StatusAuthenticated Status = "authenticated"
	// StatusRefreshFailed is the transient state entered when the backend
	// permanently rejects a refresh token, before settling on unauthenticated.
	StatusRefreshFailed Status = "refresh_failed"
)

// UserIdentity is the minimal profile attached to a session.
// Adapters map provider-specific claims into this shape.
type UserIdentity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session represents an authenticated identity and its credential material,
// held in memory. The durable subset lives in Record.
type Session struct {
	AccessToken  string        // opaque bearer credential, never empty for a valid session
	RefreshToken string        // present only in refresh-capable flows
	User         *UserIdentity // nil until the profile is resolved
	ExpiresAt    time.Time     // zero when the backend did not report expiry
}

// Valid reports whether the session can still be presented as proof of
// authentication. A session with an expired token and no refresh token is
// dead and must be treated as absent.
func (s Session) Valid() bool {
	if s.AccessToken == "" {
		return false
	}
	if s.ExpiresAt.IsZero() {
		return true
	}
	if time.Now().Before(s.ExpiresAt) {
		return true
	}
	return s.RefreshToken != ""
}

// State is the immutable snapshot published to subscribers.
// Session is non-nil exactly when Status is StatusAuthenticated.
type State struct {
	Status  Status
	Session *Session
}

// RecordSchemaVersion is the current schema for persisted records.
const RecordSchemaVersion = 1

// Record is the durable, persisted subset of a Session (tokens only).
// Stores treat it as an opaque blob; no token validation happens at the
// persistence layer.
type Record struct {
	SchemaVersion int    `json:"schema_version"`
	Token         string `json:"token"`
	RefreshToken  string `json:"refresh_token,omitempty"`
}

// Empty reports whether the record holds no credential.
func (r Record) Empty() bool { return r.Token == "" }

// ToSession lifts a persisted record back into an in-memory session.
// The user profile is unknown at this point and left nil.
func (r Record) ToSession() Session {
	return Session{
		AccessToken:  r.Token,
		RefreshToken: r.RefreshToken,
	}
}

// NewRecord captures the durable subset of a session.
func NewRecord(s Session) Record {
	return Record{
		SchemaVersion: RecordSchemaVersion,
		Token:         s.AccessToken,
		RefreshToken:  s.RefreshToken,
	}
}
