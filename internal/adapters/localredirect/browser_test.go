package localredirect

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// freeLoopbackURL reserves a loopback port and returns a redirect URL on it.
func freeLoopbackURL(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())
	return "http://" + addr + "/auth/callback"
}

func TestBrowser_CapturesCallback(t *testing.T) {
	redirectURL := freeLoopbackURL(t)

	// Simulated user: the "browser" immediately follows the provider's
	// redirect back to the loopback listener.
	browser := New(nil, WithOpenCommand(func(ctx context.Context, authURL string) error {
		go func() {
			resp, err := http.Get(redirectURL + "?code=abc&state=xyz")
			if err != nil {
				return
			}
			body, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			assert.Contains(t, string(body), "Sign-in complete")
		}()
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	callbackURL, err := browser.OpenAuthSession(ctx, "https://idp.example.com/auth", redirectURL)
	require.NoError(t, err)

	parsed, err := url.Parse(callbackURL)
	require.NoError(t, err)
	assert.Equal(t, "/auth/callback", parsed.Path)
	assert.Equal(t, "abc", parsed.Query().Get("code"))
	assert.Equal(t, "xyz", parsed.Query().Get("state"))
}

func TestBrowser_ContextCancellation(t *testing.T) {
	redirectURL := freeLoopbackURL(t)

	browser := New(nil, WithOpenCommand(func(_ context.Context, _ string) error {
		return nil // user never completes sign-in
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := browser.OpenAuthSession(ctx, "https://idp.example.com/auth", redirectURL)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBrowser_RejectsNonHTTPRedirect(t *testing.T) {
	browser := New(nil, WithOpenCommand(func(_ context.Context, _ string) error {
		t.Fatal("browser must not be opened for an invalid redirect URL")
		return nil
	}))

	_, err := browser.OpenAuthSession(context.Background(), "https://idp.example.com/auth", "linkstash://cb")
	assert.Error(t, err)
}

func TestBrowser_OpenCommandFailure(t *testing.T) {
	redirectURL := freeLoopbackURL(t)

	browser := New(nil, WithOpenCommand(func(_ context.Context, _ string) error {
		return fmt.Errorf("no display")
	}))

	_, err := browser.OpenAuthSession(context.Background(), "https://idp.example.com/auth", redirectURL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open system browser")
}

func TestBrowser_IgnoresOtherPaths(t *testing.T) {
	redirectURL := freeLoopbackURL(t)
	base, err := url.Parse(redirectURL)
	require.NoError(t, err)

	browser := New(nil, WithOpenCommand(func(_ context.Context, _ string) error {
		go func() {
			// A stray probe on another path must not resolve the flow.
			_, _ = http.Get("http://" + base.Host + "/favicon.ico")
			time.Sleep(20 * time.Millisecond)
			_, _ = http.Get(redirectURL + "?code=real")
		}()
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	callbackURL, err := browser.OpenAuthSession(ctx, "https://idp.example.com/auth", redirectURL)
	require.NoError(t, err)
	assert.Contains(t, callbackURL, "code=real")
}
