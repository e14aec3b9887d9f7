package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Backend types.
const (
	BackendPostgres = "postgres"
	BackendSupabase = "supabase"
)

// Config holds all configuration for shambu.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:""`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// TLS configuration (optional - if both provided, server uses HTTPS)
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	Auth     AuthConfig     `yaml:"auth"`
	Backend  BackendConfig  `yaml:"backend"`
	Database DatabaseConfig `yaml:"database"`
	Supabase SupabaseConfig `yaml:"supabase"`
	Realtime RealtimeConfig `yaml:"realtime"`
	MCP      MCPConfig      `yaml:"mcp"`
}

// AuthConfig holds bearer token verification settings.
type AuthConfig struct {
	// EnableVerification controls whether JWT tokens are validated.
	// Set to false for local development.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"false"`

	// JWKSURL verifies RS/ES tokens against a key set. Takes precedence over JWTSecret.
	JWKSURL string `yaml:"jwks_url" env:"AUTH_JWKS_URL" env-default:""`

	// JWTSecret verifies HS256 tokens, e.g. the Supabase project JWT secret.
	JWTSecret string `yaml:"-" env:"AUTH_JWT_SECRET"` // Secret - not in YAML

	Issuer   string `yaml:"issuer" env:"AUTH_ISSUER" env-default:""`
	Audience string `yaml:"audience" env:"AUTH_AUDIENCE" env-default:""`
}

// BackendConfig selects which storage implementation serves the views.
type BackendConfig struct {
	Type string `yaml:"type" env:"BACKEND" env-default:"postgres"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"shambu"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"shambu"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	RunMigrations  bool   `yaml:"run_migrations" env:"PGRUN_MIGRATIONS" env-default:"true"`
}

// SupabaseConfig holds the hosted backend settings.
type SupabaseConfig struct {
	URL    string `yaml:"url" env:"SUPABASE_URL" env-default:""`
	Key    string `yaml:"-" env:"SUPABASE_KEY"` // Secret - not in YAML
	Schema string `yaml:"schema" env:"SUPABASE_SCHEMA" env-default:"public"`
}

// RealtimeConfig controls change notification delivery.
type RealtimeConfig struct {
	Enabled          bool   `yaml:"enabled" env:"REALTIME_ENABLED" env-default:"true"`
	Channel          string `yaml:"channel" env:"REALTIME_CHANNEL" env-default:"shambu_changes"`
	HeartbeatSeconds int    `yaml:"heartbeat_seconds" env:"REALTIME_HEARTBEAT_SECONDS" env-default:"25"`

	// AllowedOrigins are host patterns accepted by the /api/changes websocket
	// in addition to same-origin requests.
	AllowedOrigins []string `yaml:"allowed_origins" env:"REALTIME_ALLOWED_ORIGINS" env-separator:","`
}

// Heartbeat returns the Phoenix heartbeat interval.
func (c *RealtimeConfig) Heartbeat() time.Duration {
	return time.Duration(c.HeartbeatSeconds) * time.Second
}

// MCPConfig controls the MCP endpoint.
type MCPConfig struct {
	Enabled bool `yaml:"enabled" env:"MCP_ENABLED" env-default:"true"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}
	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv reads configuration from environment variables only.
// Used by the CLI, which has no config file.
func LoadFromEnv(version string) (*Config, error) {
	cfg := &Config{Version: version}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) finish() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Auto-derive BaseURL from Port if not explicitly set
	if c.BaseURL == "" {
		scheme := "http"
		if c.TLSCertPath != "" {
			scheme = "https"
		}
		c.BaseURL = (&url.URL{
			Scheme: scheme,
			Host:   "localhost:" + c.Port,
		}).String()
	}
	return nil
}

func (c *Config) validate() error {
	switch c.Backend.Type {
	case BackendPostgres:
	case BackendSupabase:
		if c.Supabase.URL == "" {
			return fmt.Errorf("supabase backend requires SUPABASE_URL")
		}
		if c.Supabase.Key == "" {
			return fmt.Errorf("supabase backend requires SUPABASE_KEY")
		}
	default:
		return fmt.Errorf("unknown backend type %q (want %s or %s)", c.Backend.Type, BackendPostgres, BackendSupabase)
	}

	if c.Auth.EnableVerification && c.Auth.JWKSURL == "" && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth verification requires AUTH_JWKS_URL or AUTH_JWT_SECRET")
	}
	if c.Realtime.HeartbeatSeconds <= 0 {
		return fmt.Errorf("realtime.heartbeat_seconds must be positive")
	}
	return c.validateTLS()
}

// validateTLS ensures TLS configuration is valid if provided.
// Both cert and key must be provided together, and files must exist.
func (c *Config) validateTLS() error {
	certSet := c.TLSCertPath != ""
	keySet := c.TLSKeyPath != ""

	if certSet != keySet {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}
	if certSet {
		if _, err := os.Stat(c.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}
	return nil
}

// ListenAddr returns host:port for the HTTP server.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.BindAddr, c.Port)
}

// URL returns a postgres:// connection URL.
func (c *DatabaseConfig) URL() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	if c.Password == "" {
		u.User = url.User(c.User)
	}
	return u.String()
}
