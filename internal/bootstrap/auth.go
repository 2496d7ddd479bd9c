package bootstrap

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/linkstash/authkit/config"
	"github.com/linkstash/authkit/internal/adapters/devauth"
	"github.com/linkstash/authkit/internal/adapters/directauth"
	"github.com/linkstash/authkit/internal/adapters/filestore"
	"github.com/linkstash/authkit/internal/adapters/localredirect"
	"github.com/linkstash/authkit/internal/adapters/oauthbrowser"
	"github.com/linkstash/authkit/internal/adapters/redisstore"
	domainauth "github.com/linkstash/authkit/internal/domain/auth"
	"github.com/linkstash/authkit/internal/observability/statsd"
	"github.com/linkstash/authkit/internal/ports"
	"github.com/linkstash/authkit/internal/service"
	"github.com/linkstash/authkit/internal/transport"
)

// ProviderOptions groups configuration for building the identity provider.
type ProviderOptions struct {
	Auth    config.AuthConfig
	HTTP    config.HTTPClientConfig
	Browser ports.Browser // Optional: defaults to the loopback redirect browser
	Logger  *slog.Logger
}

// BuildProvider creates an identity provider based on the configured auth
// mode. Returns nil if the selected mode is not fully configured.
//
//nolint:ireturn // callers program against the port, not a concrete provider.
func BuildProvider(opts ProviderOptions) ports.IdentityProvider {
	switch opts.Auth.Mode {
	case config.AuthModeMock:
		return buildDevProvider(opts)
	case config.AuthModePassword:
		return buildDirectProvider(opts)
	case config.AuthModeOAuth:
		return buildOAuthProvider(opts)
	default:
		return nil
	}
}

//nolint:ireturn
func buildDevProvider(opts ProviderOptions) ports.IdentityProvider {
	prov, err := devauth.NewProvider(devauth.Config{
		UserID:          opts.Auth.DevAuth.UserID,
		Email:           opts.Auth.DevAuth.Email,
		SessionDuration: opts.Auth.DevAuth.SessionDuration,
	})
	if err != nil {
		if opts.Logger != nil {
			opts.Logger.Warn("failed to create dev auth provider, auth disabled", "error", err)
		}
		return nil
	}
	return prov
}

//nolint:ireturn
func buildDirectProvider(opts ProviderOptions) ports.IdentityProvider {
	if opts.Auth.Backend.BaseURL == "" {
		if opts.Logger != nil {
			opts.Logger.Warn("AuthModePassword selected but backend base URL missing; auth disabled")
		}
		return nil
	}

	prov, err := directauth.NewProvider(directauth.Config{
		BaseURL: opts.Auth.Backend.BaseURL,
		Timeout: opts.Auth.Backend.Timeout,
	})
	if err != nil {
		if opts.Logger != nil {
			opts.Logger.Warn("failed to create direct auth provider, auth disabled", "error", err)
		}
		return nil
	}
	return prov
}

//nolint:ireturn
func buildOAuthProvider(opts ProviderOptions) ports.IdentityProvider {
	// Only enable when fully configured
	oauth := opts.Auth.OAuth
	if oauth.DiscoveryURL == "" || oauth.ClientID == "" {
		if opts.Logger != nil {
			opts.Logger.Warn("AuthModeOAuth selected but required config missing; auth disabled",
				"discovery_url_empty", oauth.DiscoveryURL == "",
				"client_id_empty", oauth.ClientID == "",
			)
		}
		return nil
	}

	browser := opts.Browser
	if browser == nil {
		browser = localredirect.New(opts.Logger)
	}

	prov, err := oauthbrowser.NewProvider(oauthbrowser.ProviderConfig{
		ClientID:     oauth.ClientID,
		ClientSecret: oauth.ClientSecret,
		RedirectURL:  oauth.RedirectURL,
		Scope:        oauth.Scope,
		DiscoveryURL: oauth.DiscoveryURL,
		LogoutURL:    oauth.LogoutURL,
		Browser:      browser,
		Claims: oauthbrowser.ClaimsConfig{
			UserIDPath: opts.Auth.Claims.UserIDPath,
			EmailPath:  opts.Auth.Claims.EmailPath,
		},
		InteractiveTimeout: opts.HTTP.InteractiveTimeout,
	})
	if err != nil {
		if opts.Logger != nil {
			opts.Logger.Warn("failed to create OAuth provider, auth disabled", "error", err)
		}
		return nil
	}
	return prov
}

// StoreOptions groups configuration for building the credential store.
type StoreOptions struct {
	Storage config.StorageConfig
	Logger  *slog.Logger
}

// BuildCredentialStore creates a credential store for the configured backend
// and a cleanup func releasing any held connections. Returns a nil store if
// the backend cannot be built.
//
//nolint:ireturn // callers program against the port, not a concrete store.
func BuildCredentialStore(opts StoreOptions) (ports.CredentialStore, func() error) {
	noop := func() error { return nil }

	switch opts.Storage.Backend {
	case config.StorageBackendMemory:
		return &memoryStore{}, noop

	case config.StorageBackendRedis:
		client, err := ConnectRedis(opts.Storage.Redis, opts.Logger)
		if err != nil {
			if opts.Logger != nil {
				opts.Logger.Warn("failed to connect redis, credential store disabled", "error", err)
			}
			return nil, noop
		}
		if key := opts.Storage.Redis.Key; key != "" {
			return redisstore.NewStoreWithKey(client, key), client.Close
		}
		return redisstore.NewStore(client), client.Close

	case config.StorageBackendFile:
		path := opts.Storage.File.Path
		if path == "" {
			base, err := os.UserConfigDir()
			if err != nil {
				if opts.Logger != nil {
					opts.Logger.Warn("cannot resolve user config dir, credential store disabled", "error", err)
				}
				return nil, noop
			}
			path = filepath.Join(base, "authkit", "credentials.json")
		}
		store, err := filestore.NewStore(path)
		if err != nil {
			if opts.Logger != nil {
				opts.Logger.Warn("failed to create file credential store", "error", err, "path", path)
			}
			return nil, noop
		}
		return store, noop

	default:
		return nil, noop
	}
}

// SessionManagerOptions groups configuration for building the session manager.
type SessionManagerOptions struct {
	Store    ports.CredentialStore
	Provider ports.IdentityProvider
	Metrics  statsd.Sink
	Logger   *slog.Logger
}

// BuildSessionManager wires the session manager from previously built parts.
// Returns nil if the store or provider is missing.
func BuildSessionManager(opts SessionManagerOptions) *service.SessionManager {
	if opts.Store == nil || opts.Provider == nil {
		if opts.Logger != nil {
			opts.Logger.Warn("session manager disabled: missing store or provider",
				"store_missing", opts.Store == nil,
				"provider_missing", opts.Provider == nil,
			)
		}
		return nil
	}

	var registrar ports.Registrar
	if r, ok := opts.Provider.(ports.Registrar); ok {
		registrar = r
	}

	manager, err := service.NewSessionManager(service.SessionManagerOptions{
		Store:     opts.Store,
		Provider:  opts.Provider,
		Registrar: registrar,
		Logger:    opts.Logger,
		Metrics:   opts.Metrics,
	})
	if err != nil {
		if opts.Logger != nil {
			opts.Logger.Warn("failed to create session manager", "error", err)
		}
		return nil
	}
	return manager
}

// BuildMetrics creates the statsd client, or nil when metrics are disabled.
func BuildMetrics(cfg config.ObservabilityConfig, logger *slog.Logger) *statsd.Client {
	if !cfg.Metrics.IsEnabled() {
		return nil
	}
	client, err := statsd.NewClient(statsd.Config{
		Enabled: true,
		Address: cfg.Metrics.StatsdAddress,
		Prefix:  cfg.Metrics.StatsdPrefix,
		Logger:  logger,
	})
	if err != nil {
		if logger != nil {
			logger.Warn("failed to create statsd client, metrics disabled", "error", err)
		}
		return nil
	}
	return client
}

// BuildHTTPClient returns an http.Client with the authenticated request
// pipeline installed around the session manager.
func BuildHTTPClient(manager *service.SessionManager, cfg config.HTTPClientConfig, logger *slog.Logger) *http.Client {
	if manager == nil {
		return &http.Client{Timeout: cfg.Timeout}
	}
	opts := []transport.Option{}
	if logger != nil {
		opts = append(opts, transport.WithLogger(logger))
	}
	return transport.NewClient(manager, cfg.Timeout, opts...)
}

// memoryStore keeps the credential record in process memory only. Used by the
// memory storage backend, mostly for throwaway environments.
type memoryStore struct {
	mu     sync.Mutex
	record domainauth.Record
	stored bool
}

func (m *memoryStore) Save(_ context.Context, rec domainauth.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record = rec
	m.stored = true
	return nil
}

func (m *memoryStore) Load(_ context.Context) (domainauth.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.stored {
		return domainauth.Record{}, ports.ErrNoRecord
	}
	return m.record, nil
}

func (m *memoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record = domainauth.Record{}
	m.stored = false
	return nil
}
