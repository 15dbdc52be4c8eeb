package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DatabaseSQLite   = "sqlite"
	DatabasePostgres = "postgres"

	PasswordArgon2id = "argon2id"
	PasswordBcrypt   = "bcrypt"
)

// DefaultPath is used when CONFIG_PATH is not set.
const DefaultPath = "configs/config.yml"

// Config holds the application's configuration.
type Config struct {
	Server struct {
		Port                   string `yaml:"port"`
		Mode                   string `yaml:"mode"`
		ShutdownTimeoutSeconds int64  `yaml:"shutdown_timeout_seconds"`
	} `yaml:"server"`
	Database struct {
		Type string `yaml:"type"`
		URL  string `yaml:"url"`
	} `yaml:"database"`
	Auth struct {
		JWTSecret             string `yaml:"jwt_secret"`
		Issuer                string `yaml:"issuer"`
		AccessTokenTTLMinutes int64  `yaml:"access_token_ttl_minutes"`
		RefreshTokenTTLHours  int64  `yaml:"refresh_token_ttl_hours"`
		PasswordAlgorithm     string `yaml:"password_algorithm"`
		BcryptCost            int    `yaml:"bcrypt_cost"`
	} `yaml:"auth"`
	Redis struct {
		Enabled         bool   `yaml:"enabled"`
		Addr            string `yaml:"addr"`
		Password        string `yaml:"password"`
		DB              int    `yaml:"db"`
		CacheTTLSeconds int64  `yaml:"cache_ttl_seconds"`
	} `yaml:"redis"`
	Blocklist struct {
		PruneSchedule string `yaml:"prune_schedule"`
	} `yaml:"blocklist"`
}

// Path returns the config file location, honoring CONFIG_PATH.
func Path() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return DefaultPath
}

// LoadConfig reads configuration from the specified YAML file. A .env file in
// the working directory, if any, is loaded first so ${VAR} references resolve.
func LoadConfig(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.expandEnv()
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) expandEnv() {
	c.Database.URL = os.ExpandEnv(c.Database.URL)
	c.Auth.JWTSecret = os.ExpandEnv(c.Auth.JWTSecret)
	c.Redis.Addr = os.ExpandEnv(c.Redis.Addr)
	c.Redis.Password = os.ExpandEnv(c.Redis.Password)
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = ":4000"
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "debug"
	}
	if c.Server.ShutdownTimeoutSeconds == 0 {
		c.Server.ShutdownTimeoutSeconds = 5
	}

	if c.Database.Type == "" {
		c.Database.Type = DatabaseSQLite
	}
	if c.Database.URL == "" && c.Database.Type == DatabaseSQLite {
		c.Database.URL = "./data/blog.db"
	}

	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "blog-backend"
	}
	if c.Auth.AccessTokenTTLMinutes == 0 {
		c.Auth.AccessTokenTTLMinutes = 15
	}
	if c.Auth.RefreshTokenTTLHours == 0 {
		c.Auth.RefreshTokenTTLHours = 30 * 24
	}
	if c.Auth.PasswordAlgorithm == "" {
		c.Auth.PasswordAlgorithm = PasswordArgon2id
	}
	if c.Auth.BcryptCost == 0 {
		c.Auth.BcryptCost = 12
	}

	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.CacheTTLSeconds == 0 {
		c.Redis.CacheTTLSeconds = 30
	}
}

// Validate checks values that have no sensible default.
func (c *Config) Validate() error {
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("server.mode must be debug, release or test (got %q)", c.Server.Mode)
	}

	switch c.Database.Type {
	case DatabaseSQLite, DatabasePostgres:
	default:
		return fmt.Errorf("database.type must be sqlite or postgres (got %q)", c.Database.Type)
	}
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}

	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if c.Auth.AccessTokenTTLMinutes < 0 || c.Auth.RefreshTokenTTLHours < 0 {
		return errors.New("token lifetimes must be positive")
	}
	switch c.Auth.PasswordAlgorithm {
	case PasswordArgon2id, PasswordBcrypt:
	default:
		return fmt.Errorf("auth.password_algorithm must be argon2id or bcrypt (got %q)", c.Auth.PasswordAlgorithm)
	}

	return nil
}

func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.Auth.AccessTokenTTLMinutes) * time.Minute
}

func (c *Config) RefreshTokenTTL() time.Duration {
	return time.Duration(c.Auth.RefreshTokenTTLHours) * time.Hour
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

func (c *Config) RedisCacheTTL() time.Duration {
	return time.Duration(c.Redis.CacheTTLSeconds) * time.Second
}
