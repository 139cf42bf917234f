package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Store     StoreConfig     `mapstructure:"store"`
	Supabase  SupabaseConfig  `mapstructure:"supabase"`
	Email     EmailConfig     `mapstructure:"email"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Reaper    ReaperConfig    `mapstructure:"reaper"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// AppConfig holds deployment-wide settings.
type AppConfig struct {
	Env string `mapstructure:"env"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// AuthConfig holds API key authentication settings.
type AuthConfig struct {
	APIKeys []string `mapstructure:"api_keys"`
}

// CORSConfig holds CORS policy settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// RateLimitConfig holds rate limiting settings.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// QueueConfig holds async queue settings.
type QueueConfig struct {
	Concurrency  int `mapstructure:"concurrency"`
	MaxRetry     int `mapstructure:"max_retry"`
	RetryBaseSec int `mapstructure:"retry_base_sec"`
}

// StoreConfig selects the notification store backend.
type StoreConfig struct {
	Driver      string `mapstructure:"driver"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresURL string `mapstructure:"postgres_url"`
	Migrate     bool   `mapstructure:"migrate"`
}

// SupabaseConfig holds Supabase project settings.
type SupabaseConfig struct {
	URL        string `mapstructure:"url"`
	ServiceKey string `mapstructure:"service_key"`
}

// EmailConfig holds email transport settings.
type EmailConfig struct {
	Transport   string     `mapstructure:"transport"`
	FromAddress string     `mapstructure:"from_address"`
	FromName    string     `mapstructure:"from_name"`
	APIKey      string     `mapstructure:"api_key"`
	SMTP        SMTPConfig `mapstructure:"smtp"`
}

// SMTPConfig holds SMTP server settings.
type SMTPConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	Encryption string `mapstructure:"encryption"`
}

// DispatchConfig holds delivery and retry settings.
type DispatchConfig struct {
	// DevMode routes every notification to the console channel too.
	// Unless set explicitly it is on outside production.
	DevMode           bool `mapstructure:"dev_mode"`
	MaxRetries        int  `mapstructure:"max_retries"`
	ChannelTimeoutSec int  `mapstructure:"channel_timeout_sec"`
	RetryBaseSec      int  `mapstructure:"retry_base_sec"`
	LockTTLSec        int  `mapstructure:"lock_ttl_sec"`
}

// KafkaConfig holds the optional Kafka source settings.
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

// ReaperConfig holds retry sweeper settings (durations as seconds for YAML/env compat).
type ReaperConfig struct {
	IntervalSec       int `mapstructure:"interval_sec"`
	StaleThresholdSec int `mapstructure:"stale_threshold_sec"`
	BatchSize         int `mapstructure:"batch_size"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// ChannelTimeout returns the per-channel send timeout.
func (d DispatchConfig) ChannelTimeout() time.Duration {
	return time.Duration(d.ChannelTimeoutSec) * time.Second
}

// RetryBase returns the first backoff step between delivery attempts.
func (d DispatchConfig) RetryBase() time.Duration {
	return time.Duration(d.RetryBaseSec) * time.Second
}

// LockTTL returns how long a per-event lock survives a crashed holder.
func (d DispatchConfig) LockTTL() time.Duration {
	return time.Duration(d.LockTTLSec) * time.Second
}

// IsProduction reports whether app.env is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Env, "production")
}

// Load reads configuration from config.yaml and environment variables.
// Environment variables use the HIRENOTIFY_ prefix and underscore separators.
// Example: HIRENOTIFY_SERVER_PORT overrides server.port in config.yaml.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("HIRENOTIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	// dev_mode has no default so an explicit false can be told apart from unset.
	_ = v.BindEnv("dispatch.dev_mode")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if !v.IsSet("dispatch.dev_mode") {
		cfg.Dispatch.DevMode = !cfg.IsProduction()
	}

	cfg.Auth.APIKeys = trimList(cfg.Auth.APIKeys)
	cfg.Kafka.Brokers = trimList(cfg.Kafka.Brokers)
	cfg.CORS.AllowedOrigins = trimList(cfg.CORS.AllowedOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("server.port", 8081)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("auth.api_keys", []string{})
	v.SetDefault("cors.allowed_origins", []string{})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Content-Type", "X-API-Key", "Authorization", "X-Request-ID"})
	v.SetDefault("rate_limit.requests_per_second", 10)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 28)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("queue.concurrency", 10)
	v.SetDefault("queue.max_retry", 5)
	v.SetDefault("queue.retry_base_sec", 30)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "data/hirenotify.db")
	v.SetDefault("store.postgres_url", "")
	v.SetDefault("store.migrate", true)
	v.SetDefault("supabase.url", "")
	v.SetDefault("supabase.service_key", "")
	v.SetDefault("email.transport", "smtp")
	v.SetDefault("email.from_address", "no-reply@localhost")
	v.SetDefault("email.from_name", "Recruitment Team")
	v.SetDefault("email.api_key", "")
	v.SetDefault("email.smtp.host", "localhost")
	v.SetDefault("email.smtp.port", 1025)
	v.SetDefault("email.smtp.username", "")
	v.SetDefault("email.smtp.password", "")
	v.SetDefault("email.smtp.encryption", "none")
	v.SetDefault("dispatch.max_retries", 3)
	v.SetDefault("dispatch.channel_timeout_sec", 30)
	v.SetDefault("dispatch.retry_base_sec", 30)
	v.SetDefault("dispatch.lock_ttl_sec", 120)
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "hiring-events")
	v.SetDefault("kafka.group_id", "hirenotify")
	v.SetDefault("reaper.interval_sec", 300)       // 5 minutes
	v.SetDefault("reaper.stale_threshold_sec", 60) // 1 minute
	v.SetDefault("reaper.batch_size", 50)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.address", ":9091")
}

// trimList drops blanks from a list; env values arrive comma-split by viper.
func trimList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate rejects settings the dispatch engine cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Dispatch.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("dispatch.max_retries must be at least 1, got %d", c.Dispatch.MaxRetries))
	}
	if c.Dispatch.ChannelTimeoutSec < 1 {
		errs = append(errs, fmt.Errorf("dispatch.channel_timeout_sec must be at least 1, got %d", c.Dispatch.ChannelTimeoutSec))
	}
	// The per-event lock must outlive a whole attempt, or a second worker can
	// take the key while channels are still sending.
	if c.Dispatch.LockTTLSec <= c.Dispatch.ChannelTimeoutSec {
		errs = append(errs, fmt.Errorf("dispatch.lock_ttl_sec (%d) must exceed dispatch.channel_timeout_sec (%d)", c.Dispatch.LockTTLSec, c.Dispatch.ChannelTimeoutSec))
	}
	if c.Queue.MaxRetry < c.Dispatch.MaxRetries {
		errs = append(errs, fmt.Errorf("queue.max_retry (%d) must be at least dispatch.max_retries (%d)", c.Queue.MaxRetry, c.Dispatch.MaxRetries))
	}

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("store.sqlite_path is required for the sqlite driver"))
		}
	case "postgres":
		if c.Store.PostgresURL == "" {
			errs = append(errs, errors.New("store.postgres_url is required for the postgres driver"))
		}
	case "supabase":
		if c.Supabase.URL == "" || c.Supabase.ServiceKey == "" {
			errs = append(errs, errors.New("supabase.url and supabase.service_key are required for the supabase driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}

	switch c.Email.Transport {
	case "smtp", "resend":
	default:
		errs = append(errs, fmt.Errorf("unknown email.transport %q", c.Email.Transport))
	}

	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		errs = append(errs, errors.New("kafka.brokers and kafka.topic are required when kafka is enabled"))
	}

	return errors.Join(errs...)
}
