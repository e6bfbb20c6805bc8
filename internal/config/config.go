package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lepinkainen/registry-preview/internal/ratelimit"
	"github.com/lepinkainen/registry-preview/pkg/filesystem"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. REGISTRY_PREVIEW_SERVER_ADDR.
const EnvPrefix = "REGISTRY_PREVIEW"

// Config holds the central application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scraper   ScraperConfig   `mapstructure:"scraper"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Mail      MailConfig      `mapstructure:"mail"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// AdminToken guards the cache admin routes when set.
	AdminToken string `mapstructure:"admin_token"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ScraperConfig tunes the preview engine.
type ScraperConfig struct {
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
	HeuristicCacheTTL time.Duration `mapstructure:"heuristic_cache_ttl"`
	PrimaryTimeout    time.Duration `mapstructure:"primary_timeout"`
	FallbackTimeout   time.Duration `mapstructure:"fallback_timeout"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	DomainInterval    time.Duration `mapstructure:"domain_interval"`
	// DomainRequests per DomainWindow adds a token bucket on top of the interval; 0 disables it.
	DomainRequests   int           `mapstructure:"domain_requests"`
	DomainWindow     time.Duration `mapstructure:"domain_window"`
	MaxBodyBytes     int64         `mapstructure:"max_body_bytes"`
	CleanupInterval  time.Duration `mapstructure:"cleanup_interval"`
	BatchConcurrency int           `mapstructure:"batch_concurrency"`
	SitesURL         string        `mapstructure:"sites_url"`
	SitesPath        string        `mapstructure:"sites_path"`
}

type RateLimitConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	Rules   []ratelimit.Rule `mapstructure:"rules"`
	// Retention is how long request records are kept before the cleanup sweep removes them.
	Retention time.Duration `mapstructure:"retention"`
}

// MailConfig configures the Zoho Mail API sender. Disabled mail logs instead of sending.
type MailConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	FromAddress  string `mapstructure:"from_address"`
	AccountID    string `mapstructure:"account_id"`
	APIBase      string `mapstructure:"api_base"`
	TokenURL     string `mapstructure:"token_url"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RefreshToken string `mapstructure:"refresh_token"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.admin_token", "")

	v.SetDefault("database.path", filesystem.DefaultDataPath("registry-preview.db"))

	v.SetDefault("scraper.cache_ttl", "168h")
	v.SetDefault("scraper.heuristic_cache_ttl", "1h")
	v.SetDefault("scraper.primary_timeout", "15s")
	v.SetDefault("scraper.fallback_timeout", "10s")
	v.SetDefault("scraper.max_attempts", 3)
	v.SetDefault("scraper.domain_interval", "1s")
	v.SetDefault("scraper.domain_requests", 0)
	v.SetDefault("scraper.domain_window", "1m")
	v.SetDefault("scraper.max_body_bytes", 2<<20)
	v.SetDefault("scraper.cleanup_interval", "1h")
	v.SetDefault("scraper.batch_concurrency", 5)
	v.SetDefault("scraper.sites_url", "")
	v.SetDefault("scraper.sites_path", "")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.rules", ratelimit.DefaultRules())
	v.SetDefault("rate_limit.retention", "24h")

	v.SetDefault("mail.enabled", false)
	v.SetDefault("mail.from_address", "")
	v.SetDefault("mail.account_id", "")
	v.SetDefault("mail.api_base", "https://mail.zoho.com/api")
	v.SetDefault("mail.token_url", "https://accounts.zoho.com/oauth/v2/token")
	v.SetDefault("mail.client_id", "")
	v.SetDefault("mail.client_secret", "")
	v.SetDefault("mail.refresh_token", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("log.compress", true)
}

// LoadConfig loads the configuration from a file. A missing file is not an error; the
// defaults and environment overrides apply.
func LoadConfig(path string) (*Config, error) {
	v := newViper(resolvePath(path))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// DefaultConfig returns the built-in defaults. Config files and environment overrides
// are ignored.
func DefaultConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling defaults: %w", err)
	}
	return &config, nil
}

// SaveConfig saves the configuration to a file
func SaveConfig(config *Config, path string) error {
	path = resolvePath(path)
	if err := filesystem.EnsureDirectoryExists(path); err != nil {
		return err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("server.addr", config.Server.Addr)
	v.Set("server.allowed_origins", config.Server.AllowedOrigins)
	v.Set("server.admin_token", config.Server.AdminToken)
	v.Set("database.path", config.Database.Path)

	s := config.Scraper
	v.Set("scraper.cache_ttl", s.CacheTTL.String())
	v.Set("scraper.heuristic_cache_ttl", s.HeuristicCacheTTL.String())
	v.Set("scraper.primary_timeout", s.PrimaryTimeout.String())
	v.Set("scraper.fallback_timeout", s.FallbackTimeout.String())
	v.Set("scraper.max_attempts", s.MaxAttempts)
	v.Set("scraper.domain_interval", s.DomainInterval.String())
	v.Set("scraper.domain_requests", s.DomainRequests)
	v.Set("scraper.domain_window", s.DomainWindow.String())
	v.Set("scraper.max_body_bytes", s.MaxBodyBytes)
	v.Set("scraper.cleanup_interval", s.CleanupInterval.String())
	v.Set("scraper.batch_concurrency", s.BatchConcurrency)
	v.Set("scraper.sites_url", s.SitesURL)
	v.Set("scraper.sites_path", s.SitesPath)

	rules := make([]map[string]any, 0, len(config.RateLimit.Rules))
	for _, r := range config.RateLimit.Rules {
		rules = append(rules, map[string]any{
			"endpoint":       r.Endpoint,
			"max_requests":   r.MaxRequests,
			"window":         r.Window.String(),
			"block_duration": r.BlockDuration.String(),
		})
	}
	v.Set("rate_limit.enabled", config.RateLimit.Enabled)
	v.Set("rate_limit.rules", rules)
	v.Set("rate_limit.retention", config.RateLimit.Retention.String())

	m := config.Mail
	v.Set("mail.enabled", m.Enabled)
	v.Set("mail.from_address", m.FromAddress)
	v.Set("mail.account_id", m.AccountID)
	v.Set("mail.api_base", m.APIBase)
	v.Set("mail.token_url", m.TokenURL)
	v.Set("mail.client_id", m.ClientID)
	v.Set("mail.client_secret", m.ClientSecret)
	v.Set("mail.refresh_token", m.RefreshToken)

	l := config.Log
	v.Set("log.level", l.Level)
	v.Set("log.format", l.Format)
	v.Set("log.file", l.File)
	v.Set("log.max_size_mb", l.MaxSizeMB)
	v.Set("log.max_backups", l.MaxBackups)
	v.Set("log.max_age_days", l.MaxAgeDays)
	v.Set("log.compress", l.Compress)

	return v.WriteConfig()
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	s := c.Scraper
	if s.CacheTTL <= 0 {
		errs = append(errs, errors.New("scraper.cache_ttl must be positive"))
	}
	if s.HeuristicCacheTTL <= 0 {
		errs = append(errs, errors.New("scraper.heuristic_cache_ttl must be positive"))
	}
	if s.PrimaryTimeout <= 0 || s.FallbackTimeout <= 0 {
		errs = append(errs, errors.New("scraper timeouts must be positive"))
	}
	if s.MaxAttempts < 1 {
		errs = append(errs, errors.New("scraper.max_attempts must be at least 1"))
	}
	if s.DomainInterval < 0 {
		errs = append(errs, errors.New("scraper.domain_interval must not be negative"))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	for _, r := range c.RateLimit.Rules {
		if r.Endpoint == "" || r.MaxRequests < 1 || r.Window <= 0 {
			errs = append(errs, fmt.Errorf("invalid rate limit rule %+v", r))
		}
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if c.Mail.Enabled && (c.Mail.FromAddress == "" || c.Mail.AccountID == "" || c.Mail.RefreshToken == "") {
		errs = append(errs, errors.New("mail.enabled requires from_address, account_id and refresh_token"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// resolvePath picks the config file: path as given, or for a relative path not found in
// the working directory, the same name inside the per-user application directory.
func resolvePath(path string) string {
	if path == "" {
		path = "config.yaml"
	}

	if !filepath.IsAbs(path) {
		if _, err := os.Stat(path); err != nil {
			appPath := filesystem.DefaultDataPath(path)
			if _, err := os.Stat(appPath); err == nil {
				path = appPath
			}
		}
	}
	return path
}
