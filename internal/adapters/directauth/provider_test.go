package directauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "github.com/linkstash/authkit/internal/errors"
	"github.com/linkstash/authkit/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, handler http.Handler) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider, err := NewProvider(Config{BaseURL: server.URL})
	require.NoError(t, err)
	return provider
}

func TestNewProvider_RequiresBaseURL(t *testing.T) {
	_, err := NewProvider(Config{})
	assert.Error(t, err)
}

func TestProvider_Login_Success(t *testing.T) {
	provider := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/login", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a@b.com", body["email"])
		assert.Equal(t, "pw", body["password"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"token":         "access-1",
			"refresh_token": "refresh-1",
			"expires_in":    3600,
			"user":          map[string]string{"id": "u1", "email": "a@b.com"},
		})
	}))

	session, err := provider.Login(context.Background(), ports.LoginInput{Email: "a@b.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "access-1", session.AccessToken)
	assert.Equal(t, "refresh-1", session.RefreshToken)
	require.NotNil(t, session.User)
	assert.Equal(t, "u1", session.User.ID)
	assert.Equal(t, "a@b.com", session.User.Email)
	assert.WithinDuration(t, time.Now().Add(time.Hour), session.ExpiresAt, 5*time.Second)
}

func TestProvider_Login_InvalidCredentials(t *testing.T) {
	provider := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "invalid email or password"})
	}))

	_, err := provider.Login(context.Background(), ports.LoginInput{Email: "a@b.com", Password: "wrong"})
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestProvider_Login_MissingFields(t *testing.T) {
	provider := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("backend must not be called for invalid input")
	}))

	_, err := provider.Login(context.Background(), ports.LoginInput{Email: "a@b.com"})
	assert.True(t, apperrors.IsValidation(err))

	_, err = provider.Login(context.Background(), ports.LoginInput{Password: "pw"})
	assert.True(t, apperrors.IsValidation(err))
}

func TestProvider_Login_BackendDown(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close() // connection refused from here on

	provider, err := NewProvider(Config{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = provider.Login(context.Background(), ports.LoginInput{Email: "a@b.com", Password: "pw"})
	assert.True(t, apperrors.IsNetwork(err))
}

func TestProvider_Register_Success(t *testing.T) {
	provider := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/register", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Ada", body["name"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"token": "access-2",
			"user":  map[string]string{"id": "u2", "email": "ada@example.com"},
		})
	}))

	session, err := provider.Register(context.Background(), ports.RegisterInput{
		Name:     "Ada",
		Email:    "ada@example.com",
		Password: "pw",
	})
	require.NoError(t, err)
	assert.Equal(t, "access-2", session.AccessToken)
	assert.Empty(t, session.RefreshToken)
}

func TestProvider_Register_Conflict(t *testing.T) {
	provider := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "email already registered"})
	}))

	_, err := provider.Register(context.Background(), ports.RegisterInput{Email: "a@b.com", Password: "pw"})
	assert.True(t, apperrors.IsValidation(err))
}

func TestProvider_Refresh_Success(t *testing.T) {
	provider := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/refresh", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "refresh-1", body["refresh_token"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"token":         "access-2",
			"refresh_token": "refresh-2",
		})
	}))

	session, err := provider.Refresh(context.Background(), "refresh-1")
	require.NoError(t, err)
	assert.Equal(t, "access-2", session.AccessToken)
	assert.Equal(t, "refresh-2", session.RefreshToken)
}

func TestProvider_Refresh_KeepsTokenWhenNotRotated(t *testing.T) {
	provider := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"token": "access-2"})
	}))

	session, err := provider.Refresh(context.Background(), "refresh-1")
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", session.RefreshToken)
}

func TestProvider_Refresh_Rejected(t *testing.T) {
	provider := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
	}))

	_, err := provider.Refresh(context.Background(), "revoked-token")
	assert.True(t, apperrors.IsRefreshInvalid(err))
}

func TestProvider_Refresh_TransientFailureIsNotRefreshInvalid(t *testing.T) {
	provider := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := provider.Refresh(context.Background(), "refresh-1")
	assert.True(t, apperrors.IsNetwork(err))
	assert.False(t, apperrors.IsRefreshInvalid(err))
}

func TestProvider_Refresh_EmptyToken(t *testing.T) {
	provider := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("backend must not be called without a refresh token")
	}))

	_, err := provider.Refresh(context.Background(), "")
	assert.True(t, apperrors.IsRefreshInvalid(err))
}

func TestProvider_Logout(t *testing.T) {
	var gotAuth string
	provider := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/logout", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, provider.Logout(context.Background(), "access-1"))
	assert.Equal(t, "Bearer access-1", gotAuth)
}

func TestProvider_Logout_NoTokenIsNoOp(t *testing.T) {
	provider := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("backend must not be called without a token")
	}))

	assert.NoError(t, provider.Logout(context.Background(), ""))
}
