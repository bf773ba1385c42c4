// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL            string        `yaml:"url"`
	MaxConns       int32         `yaml:"max_conns"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type MyFatoorahConfig struct {
	BaseURL            string        `yaml:"base_url"`
	EventAPIKey        string        `yaml:"event_api_key"`
	SubscriptionAPIKey string        `yaml:"subscription_api_key"`
	Timeout            time.Duration `yaml:"timeout"`
	Currency           string        `yaml:"currency"`
}

type PaymentConfig struct {
	MyFatoorah MyFatoorahConfig `yaml:"myfatoorah"`
}

type AppConfig struct {
	// BaseURL is the public origin used for gateway callback and error URLs.
	BaseURL string `yaml:"base_url"`
}

type AuthConfig struct {
	JWTSecret  string `yaml:"jwt_secret"`
	CookieName string `yaml:"cookie_name"`
}

type SMTPConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	User       string `yaml:"user"`
	Pass       string `yaml:"pass"`
	From       string `yaml:"from"`
	FromName   string `yaml:"from_name"`
	TLSMode    string `yaml:"tls_mode"` // starttls|tls|none
	SkipVerify bool   `yaml:"skip_verify"`
}

type RetryConfig struct {
	Attempts       int           `yaml:"attempts"`
	BaseDelay      time.Duration `yaml:"base_delay"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
}

type SchedulerConfig struct {
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	StaleAfter        time.Duration `yaml:"stale_after"`
	SweepWindow       time.Duration `yaml:"sweep_window"` // unpaid invoices older than this are not swept
	ExpiryInterval    time.Duration `yaml:"expiry_interval"`
	BatchSize         int           `yaml:"batch_size"`
}

type RateLimitConfig struct {
	InvoicePerMinute int `yaml:"invoice_per_minute"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Payment   PaymentConfig   `yaml:"payment"`
	App       AppConfig       `yaml:"app"`
	Auth      AuthConfig      `yaml:"auth"`
	SMTP      SMTPConfig      `yaml:"smtp"`
	Retry     RetryConfig     `yaml:"retry"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, overlays secrets from the
// environment and fills defaults.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return cfg, nil
}

// Parse is LoadConfig without the file read.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.App.BaseURL == "" {
		return nil, errors.New("app.base_url is required")
	}
	cfg.App.BaseURL = strings.TrimRight(cfg.App.BaseURL, "/")
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	override := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	override(&cfg.Database.URL, "DATABASE_URL")
	override(&cfg.Redis.URL, "REDIS_URL")
	override(&cfg.Payment.MyFatoorah.EventAPIKey, "MYFATOORAH_EVENT_API_KEY")
	override(&cfg.Payment.MyFatoorah.SubscriptionAPIKey, "MYFATOORAH_SUBSCRIPTION_API_KEY")
	override(&cfg.Auth.JWTSecret, "JWT_SECRET")
	override(&cfg.SMTP.Pass, "SMTP_PASSWORD")
	override(&cfg.App.BaseURL, "APP_URL")
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = 45 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Database.ConnectTimeout <= 0 {
		cfg.Database.ConnectTimeout = 5 * time.Second
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	mf := &cfg.Payment.MyFatoorah
	if mf.BaseURL == "" {
		mf.BaseURL = "https://apitest.myfatoorah.com"
	}
	if mf.Timeout <= 0 {
		mf.Timeout = 30 * time.Second
	}
	if mf.Currency == "" {
		mf.Currency = "BHD"
	}

	if cfg.Auth.CookieName == "" {
		cfg.Auth.CookieName = "bds_token"
	}
	if cfg.SMTP.Port <= 0 {
		cfg.SMTP.Port = 587
	}
	if cfg.SMTP.TLSMode == "" {
		cfg.SMTP.TLSMode = "starttls"
	}
	if cfg.SMTP.FromName == "" {
		cfg.SMTP.FromName = "Bahrain Dental Society"
	}

	if cfg.Retry.Attempts <= 0 {
		cfg.Retry.Attempts = 3
	}
	if cfg.Retry.BaseDelay <= 0 {
		cfg.Retry.BaseDelay = time.Second
	}
	if cfg.Retry.AttemptTimeout <= 0 {
		cfg.Retry.AttemptTimeout = 15 * time.Second
	}

	if cfg.Scheduler.ReconcileInterval <= 0 {
		cfg.Scheduler.ReconcileInterval = 10 * time.Minute
	}
	if cfg.Scheduler.StaleAfter <= 0 {
		cfg.Scheduler.StaleAfter = 30 * time.Minute
	}
	if cfg.Scheduler.SweepWindow <= 0 {
		cfg.Scheduler.SweepWindow = 72 * time.Hour
	}
	if cfg.Scheduler.SweepWindow <= cfg.Scheduler.StaleAfter {
		cfg.Scheduler.SweepWindow = cfg.Scheduler.StaleAfter + 24*time.Hour
	}
	if cfg.Scheduler.ExpiryInterval <= 0 {
		cfg.Scheduler.ExpiryInterval = time.Hour
	}
	if cfg.Scheduler.BatchSize <= 0 {
		cfg.Scheduler.BatchSize = 50
	}
	if cfg.RateLimit.InvoicePerMinute <= 0 {
		cfg.RateLimit.InvoicePerMinute = 10
	}
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
