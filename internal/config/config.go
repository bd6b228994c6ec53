package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configDirName  = "bookshare"
	configFileName = "config.yaml"
)

// Config holds all configuration for the bookshare client
type Config struct {
	// Server is the external book-sharing API
	Server ServerConfig `yaml:"server"`

	// Session controls where the auth state is mirrored
	Session SessionConfig `yaml:"session"`

	// Auth controls role resolution
	Auth AuthConfig `yaml:"auth"`

	// Web controls the local web UI
	Web WebConfig `yaml:"web"`

	// Logging Configuration
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds the API server configuration
type ServerConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// SessionConfig holds durable session storage configuration
type SessionConfig struct {
	Backend string `yaml:"backend"` // file, keyring, sqlite
	Path    string `yaml:"path"`    // file or sqlite path; ignored for keyring
}

// AuthConfig holds role resolution configuration
type AuthConfig struct {
	AdminIdentities []string `yaml:"admin_identities"`
	RoleSource      string   `yaml:"role_source"` // allowlist, claims
}

// WebConfig holds the local web UI configuration
type WebConfig struct {
	Address      string   `yaml:"address"`
	AllowOrigins []string `yaml:"allow_origins"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, console
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL: "http://localhost:8000/api",
			Timeout: 30 * time.Second,
		},
		Session: SessionConfig{
			Backend: "file",
		},
		Auth: AuthConfig{
			AdminIdentities: []string{"admin@gmail.com", "superadmin@gmail.com"},
			RoleSource:      "allowlist",
		},
		Web: WebConfig{
			Address:      "127.0.0.1:5173",
			AllowOrigins: []string{"http://localhost:5173"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// GetConfigPath returns the path to the optional user config file
func GetConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", configDirName, configFileName), nil
}

// Load loads configuration from the user config file and environment variables.
// Environment variables win over the file.
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	cfg := Default()

	path := os.Getenv("BOOKSHARE_CONFIG")
	if path == "" {
		p, err := GetConfigPath()
		if err == nil {
			path = p
		}
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile merges the YAML file at path into cfg. A missing file is not an error.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func (c *Config) applyEnv() error {
	// The web client build used VITE_SERVER_BASE_URL; keep accepting it
	if v := os.Getenv("VITE_SERVER_BASE_URL"); v != "" {
		c.Server.BaseURL = v
	}
	if v := os.Getenv("BOOKSHARE_SERVER_BASE_URL"); v != "" {
		c.Server.BaseURL = v
	}
	if v := os.Getenv("BOOKSHARE_HTTP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid BOOKSHARE_HTTP_TIMEOUT %q: %w", v, err)
		}
		c.Server.Timeout = d
	}

	if v := os.Getenv("BOOKSHARE_SESSION_BACKEND"); v != "" {
		c.Session.Backend = v
	}
	if v := os.Getenv("BOOKSHARE_SESSION_PATH"); v != "" {
		c.Session.Path = v
	}

	if v := os.Getenv("BOOKSHARE_ADMIN_IDENTITIES"); v != "" {
		c.Auth.AdminIdentities = splitList(v)
	}
	if v := os.Getenv("BOOKSHARE_ROLE_SOURCE"); v != "" {
		c.Auth.RoleSource = v
	}

	if v := os.Getenv("BOOKSHARE_WEB_ADDRESS"); v != "" {
		c.Web.Address = v
	}
	if v := os.Getenv("BOOKSHARE_WEB_ALLOW_ORIGINS"); v != "" {
		c.Web.AllowOrigins = splitList(v)
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}

	return nil
}

// Validate checks values that cannot be defaulted
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.BaseURL) == "" {
		return fmt.Errorf("server base URL is empty (set BOOKSHARE_SERVER_BASE_URL)")
	}
	c.Server.BaseURL = strings.TrimRight(c.Server.BaseURL, "/")

	switch c.Session.Backend {
	case "file", "keyring", "sqlite":
	default:
		return fmt.Errorf("invalid session backend '%s', must be one of: file, keyring, sqlite", c.Session.Backend)
	}

	switch c.Auth.RoleSource {
	case "allowlist", "claims":
	default:
		return fmt.Errorf("invalid role source '%s', must be one of: allowlist, claims", c.Auth.RoleSource)
	}

	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server timeout must be positive")
	}

	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
