package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Dispatch.MaxRetries)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "smtp", cfg.Email.Transport)
	assert.True(t, cfg.Dispatch.DevMode, "dev mode is on outside production")
	assert.Equal(t, 30, cfg.Dispatch.ChannelTimeoutSec)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_ProductionDisablesDevMode(t *testing.T) {
	t.Setenv("HIRENOTIFY_APP_ENV", "production")

	cfg, err := load(viper.New())
	require.NoError(t, err)
	assert.False(t, cfg.Dispatch.DevMode)
}

func TestLoad_ExplicitDevMode(t *testing.T) {
	t.Setenv("HIRENOTIFY_APP_ENV", "production")
	t.Setenv("HIRENOTIFY_DISPATCH_DEV_MODE", "true")

	cfg, err := load(viper.New())
	require.NoError(t, err)
	assert.True(t, cfg.Dispatch.DevMode)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HIRENOTIFY_AUTH_API_KEYS", "k1, k2")
	t.Setenv("HIRENOTIFY_DISPATCH_MAX_RETRIES", "4")
	t.Setenv("HIRENOTIFY_QUEUE_MAX_RETRY", "8")
	t.Setenv("HIRENOTIFY_EMAIL_SMTP_HOST", "mail.internal")

	cfg, err := load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Auth.APIKeys)
	assert.Equal(t, 4, cfg.Dispatch.MaxRetries)
	assert.Equal(t, "mail.internal", cfg.Email.SMTP.Host)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := load(viper.New())
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"max retries below one", func(c *Config) { c.Dispatch.MaxRetries = 0 }, "dispatch.max_retries"},
		{"lock ttl equal to channel timeout", func(c *Config) { c.Dispatch.LockTTLSec = c.Dispatch.ChannelTimeoutSec }, "dispatch.lock_ttl_sec"},
		{"lock ttl below channel timeout", func(c *Config) { c.Dispatch.LockTTLSec = 10 }, "must exceed dispatch.channel_timeout_sec"},
		{"queue retry budget too small", func(c *Config) { c.Queue.MaxRetry = 2 }, "queue.max_retry"},
		{"unknown store", func(c *Config) { c.Store.Driver = "mongo" }, "unknown store.driver"},
		{"postgres without url", func(c *Config) { c.Store.Driver = "postgres" }, "store.postgres_url"},
		{"unknown transport", func(c *Config) { c.Email.Transport = "pigeon" }, "unknown email.transport"},
		{"kafka without topic", func(c *Config) { c.Kafka.Enabled = true; c.Kafka.Topic = "" }, "kafka.topic"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
