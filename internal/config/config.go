// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Port            int           `yaml:"port"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
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
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type RazorpayConfig struct {
	KeyID         string `yaml:"key_id"`
	KeySecret     string `yaml:"key_secret"`
	WebhookSecret string `yaml:"webhook_secret"`
	BaseURL       string `yaml:"base_url"`
}

type PaymentConfig struct {
	Razorpay       RazorpayConfig `yaml:"razorpay"`
	StaleAfter     time.Duration  `yaml:"stale_after"`  // pending age before reconciliation
	ExpireAfter    time.Duration  `yaml:"expire_after"` // pending age before a failed-only order is closed
	OrderRateLimit int            `yaml:"order_rate_limit"`
}

type CreditsConfig struct {
	FreeDaily     int64 `yaml:"free_daily"`
	LowThreshold  int64 `yaml:"low_threshold"`
	MaxCASRetries int   `yaml:"max_cas_retries"`
	SweepWorkers  int   `yaml:"sweep_workers"`
}

type WebhookConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	MaxAttempts int           `yaml:"max_attempts"`
	UserAgent   string        `yaml:"user_agent"`
	RetryBatch  int           `yaml:"retry_batch"`
	ClaimLease  time.Duration `yaml:"claim_lease"`
}

type TryOnConfig struct {
	GeminiKey string `yaml:"gemini_key"`
	GeminiURL string `yaml:"gemini_url"`
	Model     string `yaml:"model"`
	// FallbackModels are tried in order when Model fails.
	FallbackModels  []string `yaml:"fallback_models"`
	Workers         int      `yaml:"workers"`
	QueueSize       int      `yaml:"queue_size"`
	ConcurrentLimit int      `yaml:"concurrent_limit"`
	CreditCost      int64    `yaml:"credit_cost"`
	SubmitRateLimit int      `yaml:"submit_rate_limit"`
	// RequeueAfter is how long a job may sit in queued before it is pushed
	// onto the in-memory queue again.
	RequeueAfter time.Duration `yaml:"requeue_after"`
}

type SchedulerConfig struct {
	WebhookRetryInterval time.Duration `yaml:"webhook_retry_interval"`
	DailyResetInterval   time.Duration `yaml:"daily_reset_interval"`
	ReconcileInterval    time.Duration `yaml:"reconcile_interval"`
	PoolStatsInterval    time.Duration `yaml:"pool_stats_interval"`
	TryOnRequeueInterval time.Duration `yaml:"tryon_requeue_interval"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
	// RetiredKeys still decrypt secrets sealed before a key rotation.
	RetiredKeys []string `yaml:"retired_keys"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Payment   PaymentConfig   `yaml:"payment"`
	Credits   CreditsConfig   `yaml:"credits"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	TryOn     TryOnConfig     `yaml:"tryon"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Security  SecurityConfig  `yaml:"security"`
	Auth      AuthConfig      `yaml:"auth"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, overlays secrets from a .env file
// next to it (or the process environment), fills defaults and validates.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, err
	}

	env, _ := godotenv.Read(filepath.Join(filepath.Dir(path), ".env"))
	cfg.applyEnv(func(key string) string {
		if v, ok := env[key]; ok && v != "" {
			return v
		}
		return os.Getenv(key)
	})

	cfg.Runtime.Dev = dev
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes raw YAML and fills defaults. It does not validate.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.setDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv(get func(string) string) {
	overlay := []struct {
		key string
		dst *string
	}{
		{"DATABASE_URL", &c.Database.URL},
		{"REDIS_URL", &c.Redis.URL},
		{"RAZORPAY_KEY_ID", &c.Payment.Razorpay.KeyID},
		{"RAZORPAY_KEY_SECRET", &c.Payment.Razorpay.KeySecret},
		{"RAZORPAY_WEBHOOK_SECRET", &c.Payment.Razorpay.WebhookSecret},
		{"GEMINI_API_KEY", &c.TryOn.GeminiKey},
		{"JWT_SECRET", &c.Auth.JWTSecret},
		{"ENCRYPTION_KEY", &c.Security.EncryptionKey},
	}
	for _, o := range overlay {
		if v := get(o.key); v != "" {
			*o.dst = v
		}
	}
}

func (c *Config) setDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8001
	}
	c.HTTP.RequestTimeout = orDuration(c.HTTP.RequestTimeout, 30*time.Second)
	c.HTTP.ShutdownTimeout = orDuration(c.HTTP.ShutdownTimeout, 15*time.Second)

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = 10
	}
	c.Redis.TTL = orDuration(c.Redis.TTL, time.Hour)

	if c.Payment.Razorpay.BaseURL == "" {
		c.Payment.Razorpay.BaseURL = "https://api.razorpay.com"
	}
	c.Payment.StaleAfter = orDuration(c.Payment.StaleAfter, 10*time.Minute)
	c.Payment.ExpireAfter = orDuration(c.Payment.ExpireAfter, 24*time.Hour)
	if c.Payment.OrderRateLimit <= 0 {
		c.Payment.OrderRateLimit = 10
	}

	if c.Credits.FreeDaily <= 0 {
		c.Credits.FreeDaily = 3
	}
	if c.Credits.LowThreshold <= 0 {
		c.Credits.LowThreshold = 5
	}
	if c.Credits.MaxCASRetries <= 0 {
		c.Credits.MaxCASRetries = 8
	}
	if c.Credits.SweepWorkers <= 0 {
		c.Credits.SweepWorkers = 8
	}

	c.Webhook.Timeout = orDuration(c.Webhook.Timeout, 30*time.Second)
	if c.Webhook.MaxAttempts <= 0 {
		c.Webhook.MaxAttempts = 5
	}
	if c.Webhook.UserAgent == "" {
		c.Webhook.UserAgent = "TrailRoom-Webhook/1.0"
	}
	if c.Webhook.RetryBatch <= 0 {
		c.Webhook.RetryBatch = 100
	}
	c.Webhook.ClaimLease = orDuration(c.Webhook.ClaimLease, 2*time.Minute)

	if c.TryOn.Model == "" {
		c.TryOn.Model = "gemini-2.5-flash-image-preview"
	}
	if c.TryOn.Workers <= 0 {
		c.TryOn.Workers = 4
	}
	if c.TryOn.QueueSize <= 0 {
		c.TryOn.QueueSize = 256
	}
	if c.TryOn.ConcurrentLimit <= 0 {
		c.TryOn.ConcurrentLimit = 8
	}
	if c.TryOn.CreditCost <= 0 {
		c.TryOn.CreditCost = 1
	}
	if c.TryOn.SubmitRateLimit <= 0 {
		c.TryOn.SubmitRateLimit = 30
	}
	c.TryOn.RequeueAfter = orDuration(c.TryOn.RequeueAfter, 2*time.Minute)

	c.Scheduler.WebhookRetryInterval = orDuration(c.Scheduler.WebhookRetryInterval, 30*time.Second)
	c.Scheduler.DailyResetInterval = orDuration(c.Scheduler.DailyResetInterval, 5*time.Minute)
	c.Scheduler.ReconcileInterval = orDuration(c.Scheduler.ReconcileInterval, time.Minute)
	c.Scheduler.PoolStatsInterval = orDuration(c.Scheduler.PoolStatsInterval, 15*time.Second)
	c.Scheduler.TryOnRequeueInterval = orDuration(c.Scheduler.TryOnRequeueInterval, time.Minute)
}

// Validate performs minimal validation.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Redis.URL == "" {
		return errors.New("redis.url is required")
	}
	if c.Runtime.Dev {
		return nil
	}
	if c.Payment.Razorpay.KeyID == "" || c.Payment.Razorpay.KeySecret == "" {
		return errors.New("payment.razorpay.key_id and key_secret are required")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if n := len(c.Security.EncryptionKey); n != 16 && n != 24 && n != 32 {
		return fmt.Errorf("security.encryption_key must be 16, 24 or 32 bytes; got %d", n)
	}
	return nil
}

func orDuration(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
