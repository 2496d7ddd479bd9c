// Package localredirect implements the Browser port for CLI and daemon
// deployments: the registered redirect URI points at a loopback address, a
// short-lived HTTP listener captures the provider's terminal redirect, and
// the system browser hosts the interactive sign-in.
package localredirect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
	"time"

	"github.com/linkstash/authkit/internal/ports"
)

const completionPage = `<!DOCTYPE html>
<html><head><title>linkstash</title></head>
<body><p>Sign-in complete. You can close this window and return to the app.</p></body></html>`

// Browser opens the system browser and waits on a loopback listener for the
// redirect back from the identity provider.
type Browser struct {
	logger *slog.Logger

	// openCommand launches the user-facing browser; replaceable in tests.
	openCommand func(ctx context.Context, url string) error
}

var _ ports.Browser = (*Browser)(nil)

// Option customizes a Browser.
type Option func(*Browser)

// WithOpenCommand replaces the system-browser launcher.
func WithOpenCommand(fn func(ctx context.Context, url string) error) Option {
	return func(b *Browser) { b.openCommand = fn }
}

// New creates a loopback-redirect browser surface.
func New(logger *slog.Logger, opts ...Option) *Browser {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Browser{
		logger:      logger,
		openCommand: openSystemBrowser,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// OpenAuthSession serves the redirect URL on loopback, opens authURL in the
// system browser, and resolves with the full callback URL of the first
// request that hits the redirect path. Context cancellation (the caller's
// interactive timeout, or the user giving up) resolves with ctx.Err().
func (b *Browser) OpenAuthSession(ctx context.Context, authURL, redirectURL string) (string, error) {
	target, err := url.Parse(redirectURL)
	if err != nil {
		return "", fmt.Errorf("parse redirect URL: %w", err)
	}
	if target.Scheme != "http" {
		return "", fmt.Errorf("redirect URL must be http on loopback, got %q", target.Scheme)
	}

	listener, err := net.Listen("tcp", target.Host)
	if err != nil {
		return "", fmt.Errorf("listen on redirect address: %w", err)
	}

	callbackCh := make(chan string, 1)
	path := target.Path
	if path == "" {
		path = "/"
	}

	server := &http.Server{
		ReadHeaderTimeout: 10 * time.Second,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != path {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(completionPage))

			full := *target
			full.RawQuery = r.URL.RawQuery
			full.Fragment = r.URL.Fragment
			select {
			case callbackCh <- full.String():
			default: // a second hit on the callback is ignored
			}
		}),
	}

	serveErrCh := make(chan error, 1)
	go func() {
		if serveErr := server.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			serveErrCh <- serveErr
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			b.logger.Warn("shutdown redirect listener failed", "error", shutdownErr)
		}
	}()

	if openErr := b.openCommand(ctx, authURL); openErr != nil {
		return "", fmt.Errorf("open system browser: %w", openErr)
	}

	select {
	case callbackURL := <-callbackCh:
		return callbackURL, nil
	case serveErr := <-serveErrCh:
		return "", fmt.Errorf("redirect listener: %w", serveErr)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// openSystemBrowser launches the platform's default browser.
func openSystemBrowser(ctx context.Context, target string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", target)
	case "windows":
		cmd = exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", target)
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", target)
	}
	return cmd.Start()
}
