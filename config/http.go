package config

import "time"

// HTTPClientConfig controls outbound HTTP behavior.
type HTTPClientConfig struct {
	// Timeout bounds ordinary backend requests.
	Timeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`

	// InteractiveTimeout bounds the browser-delegated sign-in wait. Providers
	// can leave the browser surface open indefinitely, so this must be finite.
	InteractiveTimeout time.Duration `env:"HTTP_INTERACTIVE_TIMEOUT" envDefault:"60s"`
}

// Sanitize enforces safe defaults for HTTP client configuration.
func (c *HTTPClientConfig) Sanitize() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.InteractiveTimeout <= 0 {
		c.InteractiveTimeout = 60 * time.Second
	}
}
