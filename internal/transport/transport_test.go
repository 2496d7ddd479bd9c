package transport

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/linkstash/authkit/internal/domain/auth"
	apperrors "github.com/linkstash/authkit/internal/errors"
)

// fakeSessions is a scriptable SessionSource.
type fakeSessions struct {
	mu         sync.Mutex
	token      string
	refreshErr error
	refreshed  int
	rotateTo   string
}

func (f *fakeSessions) State() domainauth.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.token == "" {
		return domainauth.State{Status: domainauth.StatusUnauthenticated}
	}
	return domainauth.State{
		Status:  domainauth.StatusAuthenticated,
		Session: &domainauth.Session{AccessToken: f.token},
	}
}

func (f *fakeSessions) Refresh(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed++
	if f.refreshErr != nil {
		return f.refreshErr
	}
	f.token = f.rotateTo
	return nil
}

func (f *fakeSessions) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshed
}

func newTestClient(sessions SessionSource) *http.Client {
	return NewClient(sessions, 0, WithLogger(slog.New(slog.DiscardHandler)))
}

func TestAuthTransport_AttachesBearerToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer server.Close()

	client := newTestClient(&fakeSessions{token: "tok-1"})
	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "Bearer tok-1", gotAuth)
}

func TestAuthTransport_OmitsHeaderWhenUnauthenticated(t *testing.T) {
	var gotAuth string
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	sessions := &fakeSessions{}
	client := newTestClient(sessions)

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Empty(t, gotAuth)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "an anonymous 401 is returned as-is")
	assert.Equal(t, 1, hits)
	assert.Zero(t, sessions.refreshCount())
}

func TestAuthTransport_RefreshesAndRetriesOnce(t *testing.T) {
	var tokens []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokens = append(tokens, r.Header.Get("Authorization"))
		if r.Header.Get("Authorization") != "Bearer tok-2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))
	defer server.Close()

	sessions := &fakeSessions{token: "tok-1", rotateTo: "tok-2"}
	client := newTestClient(sessions)

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, []string{"Bearer tok-1", "Bearer tok-2"}, tokens)
	assert.Equal(t, 1, sessions.refreshCount())
}

func TestAuthTransport_ReplaysPostBody(t *testing.T) {
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(payload))
		if r.Header.Get("Authorization") != "Bearer tok-2" {
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer server.Close()

	sessions := &fakeSessions{token: "tok-1", rotateTo: "tok-2"}
	client := newTestClient(sessions)

	resp, err := client.Post(server.URL, "application/json", strings.NewReader(`{"title":"a bookmark"}`))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{`{"title":"a bookmark"}`, `{"title":"a bookmark"}`}, bodies)
}

func TestAuthTransport_FailedRefreshFailsUnauthorized(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	sessions := &fakeSessions{token: "tok-1", refreshErr: apperrors.RefreshInvalid("token revoked")}
	client := newTestClient(sessions)

	resp, err := client.Get(server.URL) //nolint:bodyclose // the request fails, there is no body
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.True(t, apperrors.IsUnauthorized(err))
	assert.Equal(t, 1, hits, "no retry after a failed refresh")
	assert.Equal(t, 1, sessions.refreshCount())
}

func TestAuthTransport_Retried401IsReturned(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	sessions := &fakeSessions{token: "tok-1", rotateTo: "tok-2"}
	client := newTestClient(sessions)

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 2, hits, "exactly one retry per original request")
	assert.Equal(t, 1, sessions.refreshCount())
}
