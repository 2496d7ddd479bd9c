package config

import (
	"fmt"
	"strings"
)

// StorageBackend selects where the credential record is persisted.
type StorageBackend string

const (
	// StorageBackendFile persists the record as a JSON file on disk.
	StorageBackendFile StorageBackend = "file"
	// StorageBackendRedis persists the record in Redis.
	StorageBackendRedis StorageBackend = "redis"
	// StorageBackendMemory keeps the record in process memory only.
	StorageBackendMemory StorageBackend = "memory"
)

// UnmarshalText implements encoding.TextUnmarshaler for StorageBackend.
func (s *StorageBackend) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "file", "redis", "memory":
		*s = StorageBackend(v)
		return nil
	default:
		return fmt.Errorf("invalid StorageBackend: %q (valid options: file, redis, memory)", v)
	}
}

// FileStoreConfig contains file-backed credential store configuration.
type FileStoreConfig struct {
	// Path is the credential file location. Empty means a default under the
	// user config directory, resolved at wiring time.
	Path string `env:"PATH"`
}

// RedisConfig contains Redis connection configuration for the credential
// store, including optional Sentinel failover.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	DB                 int      `env:"DB"                   envDefault:"0"`
	Key                string   `env:"KEY"`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
}

// StorageConfig groups credential persistence configuration.
type StorageConfig struct {
	// Backend selects the credential store implementation.
	Backend StorageBackend `env:"STORAGE_BACKEND" envDefault:"file"`

	// File store configuration (used when Backend=file).
	File FileStoreConfig `envPrefix:"STORAGE_FILE_"`

	// Redis configuration (used when Backend=redis).
	Redis RedisConfig `envPrefix:"STORAGE_REDIS_"`
}

// Sanitize normalises storage configuration values.
func (c *StorageConfig) Sanitize() {
	c.File.Path = strings.TrimSpace(c.File.Path)
	c.Redis.URI = strings.TrimSpace(c.Redis.URI)
	c.Redis.Key = strings.TrimSpace(c.Redis.Key)
}
