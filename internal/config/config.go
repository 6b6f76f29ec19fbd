package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port         int           `yaml:"port"`
	PublicOrigin string        `yaml:"public_origin"` // e.g. https://academy.example.com; empty -> Host header
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	HandlerLimit time.Duration `yaml:"handler_timeout"`
	// TrustedProxies lists the IPs or CIDRs of reverse proxies whose forwarding
	// headers (X-Real-IP, X-Forwarded-For) are believed. Empty trusts none.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// TrustedProxyPrefixes parses TrustedProxies; a bare IP becomes a single-host prefix.
func (c ServerConfig) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, raw := range c.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("server.trusted_proxies: %w", err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("server.trusted_proxies: %w", err)
		}
		out = append(out, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
	}
	return out, nil
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"` // host:port; empty disables redis features
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // delivery log retention
}

type PaystackConfig struct {
	SecretKey string        `yaml:"secret_key"`
	BaseURL   string        `yaml:"base_url"`
	Currency  string        `yaml:"currency"`
	Channels  []string      `yaml:"channels"`
	Timeout   time.Duration `yaml:"timeout"`
}

type PricingConfig struct {
	AgeBands map[string]float64 `yaml:"age_bands"` // band -> price in major units
}

type AdminConfig struct {
	APIKey       string        `yaml:"api_key"`
	JWTSecret    string        `yaml:"jwt_secret"`
	SessionTTL   time.Duration `yaml:"session_ttl"`
	SecureCookie bool          `yaml:"secure_cookie"`
}

type TelegramConfig struct {
	Token   string  `yaml:"token"`
	ChatIDs []int64 `yaml:"chat_ids"`
}

type NotifyConfig struct {
	Telegram  TelegramConfig `yaml:"telegram"`
	Workers   int            `yaml:"workers"`
	QueueSize int            `yaml:"queue_size"`
}

type ReconcilerConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Interval   time.Duration `yaml:"interval"`
	StaleAfter time.Duration `yaml:"stale_after"`
	MaxAge     time.Duration `yaml:"max_age"` // pending enrollments older than this are no longer re-checked
	BatchSize  int           `yaml:"batch_size"`
}

type RateLimitConfig struct {
	InitializePerMinute int `yaml:"initialize_per_minute"`
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Paystack   PaystackConfig   `yaml:"paystack"`
	Pricing    PricingConfig    `yaml:"pricing"`
	Admin      AdminConfig      `yaml:"admin"`
	Notify     NotifyConfig     `yaml:"notify"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	RateLimit  RateLimitConfig  `yaml:"ratelimit"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, overlays secrets from a .env file (if
// present) and the process environment, applies defaults and validates.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	dotenv, err := godotenv.Read(".env")
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}
	applyEnv(&cfg, lookupFrom(dotenv))

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return &cfg, nil
}

// lookupFrom prefers the process environment, then the .env values.
func lookupFrom(dotenv map[string]string) func(string) string {
	return func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return dotenv[key]
	}
}

func applyEnv(cfg *Config, get func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(get(key)); v != "" {
			*dst = v
		}
	}
	set(&cfg.Database.URL, "DATABASE_URL")
	set(&cfg.Redis.URL, "REDIS_URL")
	set(&cfg.Paystack.SecretKey, "PAYSTACK_SECRET_KEY")
	set(&cfg.Admin.APIKey, "ADMIN_API_KEY")
	set(&cfg.Admin.JWTSecret, "ADMIN_JWT_SECRET")
	set(&cfg.Notify.Telegram.Token, "TELEGRAM_BOT_TOKEN")
	set(&cfg.Server.PublicOrigin, "PUBLIC_ORIGIN")
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.HandlerLimit <= 0 {
		cfg.Server.HandlerLimit = 15 * time.Second
	}
	cfg.Server.PublicOrigin = strings.TrimRight(cfg.Server.PublicOrigin, "/")
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.Paystack.BaseURL == "" {
		cfg.Paystack.BaseURL = "https://api.paystack.co"
	}
	if cfg.Paystack.Currency == "" {
		cfg.Paystack.Currency = "GHS"
	}
	if len(cfg.Paystack.Channels) == 0 {
		cfg.Paystack.Channels = []string{"card", "mobile_money"}
	}
	if cfg.Paystack.Timeout <= 0 {
		cfg.Paystack.Timeout = 15 * time.Second
	}
	if len(cfg.Pricing.AgeBands) == 0 {
		cfg.Pricing.AgeBands = map[string]float64{"4-6": 650, "7-10": 750, "11-14": 800}
	}
	if cfg.Admin.SessionTTL <= 0 {
		cfg.Admin.SessionTTL = 30 * time.Minute
	}
	if cfg.Notify.Workers <= 0 {
		cfg.Notify.Workers = 2
	}
	if cfg.Notify.QueueSize <= 0 {
		cfg.Notify.QueueSize = 64
	}
	if cfg.Reconciler.Interval <= 0 {
		cfg.Reconciler.Interval = 5 * time.Minute
	}
	if cfg.Reconciler.StaleAfter <= 0 {
		cfg.Reconciler.StaleAfter = 15 * time.Minute
	}
	if cfg.Reconciler.MaxAge <= 0 {
		cfg.Reconciler.MaxAge = 72 * time.Hour
	}
	if cfg.Reconciler.BatchSize <= 0 {
		cfg.Reconciler.BatchSize = 100
	}
	if cfg.RateLimit.InitializePerMinute <= 0 {
		cfg.RateLimit.InitializePerMinute = 10
	}
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Paystack.SecretKey == "" {
		return errors.New("paystack.secret_key is required")
	}
	if _, err := c.Server.TrustedProxyPrefixes(); err != nil {
		return err
	}
	if c.Reconciler.MaxAge <= c.Reconciler.StaleAfter {
		return errors.New("reconciler.max_age must be longer than reconciler.stale_after")
	}
	for band, price := range c.Pricing.AgeBands {
		if price <= 0 {
			return fmt.Errorf("pricing.age_bands[%s] must be positive", band)
		}
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return 24 * time.Hour
	}
	return d
}
