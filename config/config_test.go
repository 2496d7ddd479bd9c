package config

import (
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestAuthMode_UnmarshalText(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    AuthMode
		expectError bool
	}{
		{name: "oauth", input: "oauth", expected: AuthModeOAuth},
		{name: "password", input: "password", expected: AuthModePassword},
		{name: "mock", input: "mock", expected: AuthModeMock},
		{name: "uppercase is normalised", input: "OAuth", expected: AuthModeOAuth},
		{name: "unknown mode", input: "saml", expectError: true},
		{name: "empty", input: "", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mode AuthMode
			err := mode.UnmarshalText([]byte(tt.input))
			if tt.expectError {
				if err == nil {
					t.Fatalf("expected error for input %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if mode != tt.expected {
				t.Fatalf("got %q, want %q", mode, tt.expected)
			}
		})
	}
}

func TestStorageBackend_UnmarshalText(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    StorageBackend
		expectError bool
	}{
		{name: "file", input: "file", expected: StorageBackendFile},
		{name: "redis", input: "redis", expected: StorageBackendRedis},
		{name: "memory", input: "memory", expected: StorageBackendMemory},
		{name: "unknown backend", input: "postgres", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var backend StorageBackend
			err := backend.UnmarshalText([]byte(tt.input))
			if tt.expectError {
				if err == nil {
					t.Fatalf("expected error for input %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if backend != tt.expected {
				t.Fatalf("got %q, want %q", backend, tt.expected)
			}
		})
	}
}

func TestAppConfig_Defaults(t *testing.T) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.Auth.Mode != AuthModeOAuth {
		t.Errorf("Auth.Mode = %q, want %q", cfg.Auth.Mode, AuthModeOAuth)
	}
	if cfg.Storage.Backend != StorageBackendFile {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, StorageBackendFile)
	}
	if cfg.HTTP.Timeout != 30*time.Second {
		t.Errorf("HTTP.Timeout = %v, want 30s", cfg.HTTP.Timeout)
	}
	if cfg.HTTP.InteractiveTimeout != 60*time.Second {
		t.Errorf("HTTP.InteractiveTimeout = %v, want 60s", cfg.HTTP.InteractiveTimeout)
	}
	if cfg.Auth.Claims.UserIDPath != "sub" || cfg.Auth.Claims.EmailPath != "email" {
		t.Errorf("unexpected claim paths: %+v", cfg.Auth.Claims)
	}
	if cfg.Observability.Metrics.IsEnabled() {
		t.Error("metrics should be disabled by default")
	}
}

func TestAppConfig_FromEnvironment(t *testing.T) {
	t.Setenv("AUTH_MODE", "password")
	t.Setenv("AUTH_BACKEND_BASE_URL", "https://api.linkstash.test/")
	t.Setenv("STORAGE_BACKEND", "redis")
	t.Setenv("STORAGE_REDIS_URI", "redis.internal:6380")
	t.Setenv("HTTP_INTERACTIVE_TIMEOUT", "90s")
	t.Setenv("OBSERVABILITY_METRICS_ENABLED", "true")
	t.Setenv("OBSERVABILITY_METRICS_STATSD_ADDRESS", "statsd.internal:8125")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.Auth.Mode != AuthModePassword {
		t.Errorf("Auth.Mode = %q, want password", cfg.Auth.Mode)
	}
	if cfg.Auth.Backend.BaseURL != "https://api.linkstash.test" {
		t.Errorf("Backend.BaseURL = %q, trailing slash should be trimmed", cfg.Auth.Backend.BaseURL)
	}
	if cfg.Storage.Backend != StorageBackendRedis {
		t.Errorf("Storage.Backend = %q, want redis", cfg.Storage.Backend)
	}
	if cfg.Storage.Redis.URI != "redis.internal:6380" {
		t.Errorf("Redis.URI = %q", cfg.Storage.Redis.URI)
	}
	if cfg.HTTP.InteractiveTimeout != 90*time.Second {
		t.Errorf("InteractiveTimeout = %v, want 90s", cfg.HTTP.InteractiveTimeout)
	}
	if !cfg.Observability.Metrics.IsEnabled() {
		t.Error("metrics should be enabled")
	}
}

func TestAppConfig_DetectDevMode(t *testing.T) {
	t.Setenv("NODE_ENV", "development")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if !cfg.IsDev {
		t.Error("NODE_ENV=development should enable dev mode")
	}
}

func TestObservabilityMetricsConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityMetricsConfig{Enabled: true, StatsdAddress: "   "}
	cfg.Sanitize()
	if cfg.IsEnabled() {
		t.Error("blank statsd address must disable metrics")
	}
}
