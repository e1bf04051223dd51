// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token    string `yaml:"token"`
	Mode     string `yaml:"mode"`    // polling | noop
	Workers  int    `yaml:"workers"` // update workers
	Language string `yaml:"language"`
}

type BackendPaths struct {
	Bind   string `yaml:"bind"`
	Pull   string `yaml:"pull"`
	Mark   string `yaml:"mark"`
	Decide string `yaml:"decide"`
}

type BackendConfig struct {
	BaseURL      string        `yaml:"base_url"`
	Secret       string        `yaml:"secret"`
	SecretHeader string        `yaml:"secret_header"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`    // initial interval
	RetryMaxWait time.Duration `yaml:"retry_max_backoff"` // cap per interval
	Paths        BackendPaths  `yaml:"paths"`

	// retriesSet is true when the file names max_retries, so an explicit 0 disables retry.
	retriesSet bool
}

type PollerConfig struct {
	Interval     time.Duration `yaml:"interval"`
	BatchSize    int           `yaml:"batch_size"`
	CycleTimeout time.Duration `yaml:"cycle_timeout"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port   int    `yaml:"port"`    // 0 disables the admin server
	APIKey string `yaml:"api_key"` // bearer key for /api/v1; empty disables those routes
}

type DatabaseConfig struct {
	URL           string `yaml:"url"`            // optional outcome journal
	EncryptionKey string `yaml:"encryption_key"` // 16/24/32 bytes; seals chat targets at rest
}

type RedisConfig struct {
	URL      string `yaml:"url"` // optional rate limiting
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type RateLimitConfig struct {
	Commands  int           `yaml:"commands"`
	Callbacks int           `yaml:"callbacks"`
	Window    time.Duration `yaml:"window"`
}

type Config struct {
	Bot       BotConfig       `yaml:"bot"`
	Backend   BackendConfig   `yaml:"backend"`
	Poller    PollerConfig    `yaml:"poller"`
	Log       LogConfig       `yaml:"log"`
	Admin     AdminConfig     `yaml:"admin"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	Runtime RuntimeConfig `yaml:"-"`
}

const (
	DefaultPollInterval = 2 * time.Second
	DefaultBatchSize    = 10
	MaxBatchSize        = 100
	DefaultTimeout      = 15 * time.Second
	DefaultMaxRetries   = 3
	MaxRetriesCap       = 5
)

// LoadConfig reads the optional yaml file at path, then a .env file if present,
// then applies environment overrides and defaults. A missing config file is not
// an error; a missing bot token, site url or secret is.
func LoadConfig(path string, dev bool) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
			var explicit struct {
				Backend struct {
					MaxRetries *int `yaml:"max_retries"`
				} `yaml:"backend"`
			}
			if err := yaml.Unmarshal(b, &explicit); err == nil {
				cfg.Backend.retriesSet = explicit.Backend.MaxRetries != nil
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	// .env is a convenience for local runs; real environment wins.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	setStr := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	setStr(&cfg.Bot.Token, "BOT_TOKEN")
	setStr(&cfg.Backend.BaseURL, "SITE_URL")
	setStr(&cfg.Backend.Secret, "BOT_API_SECRET")
	setStr(&cfg.Redis.URL, "REDIS_URL")
	setStr(&cfg.Database.URL, "DATABASE_URL")
	setStr(&cfg.Log.Level, "LOG_LEVEL")
	setStr(&cfg.Bot.Language, "BOT_LANGUAGE")
	setStr(&cfg.Admin.APIKey, "ADMIN_API_KEY")
	setStr(&cfg.Database.EncryptionKey, "JOURNAL_ENCRYPTION_KEY")
	if v, ok := os.LookupEnv("ADMIN_PORT"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.Admin.Port = n
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 4
	}
	if cfg.Bot.Mode == "" {
		cfg.Bot.Mode = "polling"
	}
	if cfg.Bot.Language == "" {
		cfg.Bot.Language = "en"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}

	cfg.Backend.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Backend.BaseURL), "/")
	if cfg.Backend.SecretHeader == "" {
		cfg.Backend.SecretHeader = "X-Bot-Secret"
	}
	if cfg.Backend.Timeout <= 0 {
		cfg.Backend.Timeout = DefaultTimeout
	}
	if cfg.Backend.MaxRetries < 0 {
		cfg.Backend.MaxRetries = 0
	} else if cfg.Backend.MaxRetries == 0 && !cfg.Backend.retriesSet {
		cfg.Backend.MaxRetries = DefaultMaxRetries
	}
	if cfg.Backend.MaxRetries > MaxRetriesCap {
		cfg.Backend.MaxRetries = MaxRetriesCap
	}
	if cfg.Backend.RetryBackoff <= 0 {
		cfg.Backend.RetryBackoff = 250 * time.Millisecond
	}
	if cfg.Backend.RetryMaxWait <= 0 {
		cfg.Backend.RetryMaxWait = 2 * time.Second
	}
	p := &cfg.Backend.Paths
	if p.Bind == "" {
		p.Bind = "/api/twofa/bot_bind.php"
	}
	if p.Pull == "" {
		p.Pull = "/api/twofa/bot_pull.php"
	}
	if p.Mark == "" {
		p.Mark = "/api/twofa/bot_ack.php"
	}
	if p.Decide == "" {
		p.Decide = "/api/twofa/bot_action.php"
	}

	if cfg.Poller.Interval <= 0 {
		cfg.Poller.Interval = DefaultPollInterval
	}
	if cfg.Poller.BatchSize <= 0 {
		cfg.Poller.BatchSize = DefaultBatchSize
	}
	if cfg.Poller.BatchSize > MaxBatchSize {
		cfg.Poller.BatchSize = MaxBatchSize
	}
	if cfg.Poller.CycleTimeout <= 0 {
		cfg.Poller.CycleTimeout = time.Minute
	}

	if cfg.RateLimit.Commands <= 0 {
		cfg.RateLimit.Commands = 20
	}
	if cfg.RateLimit.Callbacks <= 0 {
		cfg.RateLimit.Callbacks = 30
	}
	if cfg.RateLimit.Window <= 0 {
		cfg.RateLimit.Window = time.Minute
	}
}

// Validate checks the settings the relay cannot run without.
func (c *Config) Validate() error {
	if c.Bot.Token == "" && c.Bot.Mode != "noop" {
		return errors.New("bot.token is required (BOT_TOKEN)")
	}
	if c.Backend.BaseURL == "" {
		return errors.New("backend.base_url is required (SITE_URL)")
	}
	if !strings.HasPrefix(c.Backend.BaseURL, "http://") && !strings.HasPrefix(c.Backend.BaseURL, "https://") {
		return fmt.Errorf("backend.base_url must be an http(s) url, got %q", c.Backend.BaseURL)
	}
	if c.Backend.Secret == "" {
		return errors.New("backend.secret is required (BOT_API_SECRET)")
	}
	if k := len(c.Database.EncryptionKey); k != 0 && k != 16 && k != 24 && k != 32 {
		return fmt.Errorf("database.encryption_key must be 16, 24 or 32 bytes, got %d", k)
	}
	switch c.Bot.Mode {
	case "polling", "noop":
	default:
		return fmt.Errorf("bot.mode %q not supported (polling|noop)", c.Bot.Mode)
	}
	return nil
}
