package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// StoreBackend selects where credentials are persisted.
type StoreBackend string

const (
	// StoreBackendMemory keeps credentials for the life of the process only.
	StoreBackendMemory StoreBackend = "memory"
	// StoreBackendRedis shares credentials between processes through Redis.
	StoreBackendRedis StoreBackend = "redis"
	// StoreBackendSQLite keeps credentials in a local file.
	StoreBackendSQLite StoreBackend = "sqlite"
)

// UnmarshalText implements encoding.TextUnmarshaler so env parsing rejects unknown backends.
func (b *StoreBackend) UnmarshalText(text []byte) error {
	v := StoreBackend(strings.ToLower(strings.TrimSpace(string(text))))
	if v == "" {
		v = StoreBackendSQLite
	}
	if !v.Valid() {
		return fmt.Errorf("invalid store backend: %q (valid options: memory, redis, sqlite)", string(text))
	}
	*b = v
	return nil
}

// Valid reports whether b is a known backend.
func (b StoreBackend) Valid() bool {
	switch b {
	case StoreBackendMemory, StoreBackendRedis, StoreBackendSQLite:
		return true
	default:
		return false
	}
}

// StoreConfig selects and configures the credential store.
type StoreConfig struct {
	Backend StoreBackend `env:"BACKEND" envDefault:"sqlite"`
	SQLite  SQLiteConfig `envPrefix:"SQLITE_"`
	Redis   RedisConfig  `envPrefix:"REDIS_"`
	// EncryptionKey enables AES-256-GCM encryption of stored values. A 64-char
	// hex string is used as-is; any other value is hashed into a key.
	EncryptionKey string `env:"ENCRYPTION_KEY"`
}

// Sanitize applies defaults to the selected backend.
func (c *StoreConfig) Sanitize() {
	if !c.Backend.Valid() {
		c.Backend = StoreBackendSQLite
	}
	c.EncryptionKey = strings.TrimSpace(c.EncryptionKey)
	c.SQLite.Sanitize()
	c.Redis.Sanitize()
}

// SQLiteConfig configures the file-backed credential store.
type SQLiteConfig struct {
	// Path defaults to <user config dir>/todoctl/credentials.db.
	Path        string        `env:"PATH"`
	BusyTimeout time.Duration `env:"BUSY_TIMEOUT" envDefault:"5s"`
}

// Sanitize fills in the default path.
func (c *SQLiteConfig) Sanitize() {
	c.Path = strings.TrimSpace(c.Path)
	if c.Path == "" {
		c.Path = DefaultSQLitePath()
	}
	if c.BusyTimeout <= 0 {
		c.BusyTimeout = 5 * time.Second
	}
}

// DefaultSQLitePath returns the per-user credential file location, falling
// back to the working directory when no config dir is known.
func DefaultSQLitePath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return filepath.Join(".todoctl", "credentials.db")
	}
	return filepath.Join(dir, "todoctl", "credentials.db")
}

// RedisConfig contains Redis configuration for the shared credential store.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	DB                 int      `env:"DB"                   envDefault:"0"`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:""`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`

	// KeyPrefix namespaces every credential key.
	KeyPrefix string `env:"KEY_PREFIX" envDefault:"todo:session:"`
	// RefreshTTL expires the stored refresh token; zero keeps it until logout.
	RefreshTTL time.Duration `env:"REFRESH_TTL" envDefault:"0s"`
}

// Sanitize trims connection settings and clamps the TTL.
func (c *RedisConfig) Sanitize() {
	c.URI = strings.TrimSpace(c.URI)
	c.KeyPrefix = strings.TrimSpace(c.KeyPrefix)
	if c.DB < 0 {
		c.DB = 0
	}
	if c.RefreshTTL < 0 {
		c.RefreshTTL = 0
	}
}
