package config

import (
	"testing"
	"time"

	apperrors "hunter-compare/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 24*time.Hour, cfg.StaleAfter)
	assert.Equal(t, 75, cfg.MatchThreshold)
	assert.Equal(t, "chrome", cfg.BrowserMode)
	assert.True(t, cfg.BrowserHeadless)
	assert.Equal(t, 15*time.Second, cfg.CardWaitTimeout)
	assert.Equal(t, 20, cfg.MaxScrollAttempts)
	assert.Equal(t, "https://5ka.ru/search/", cfg.PyaterochkaURL)
	assert.Equal(t, "https://magnit.ru/search", cfg.MagnitURL)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_DSN", "postgres://localhost/hunter?sslmode=disable")
	t.Setenv("STALE_AFTER", "2h")
	t.Setenv("PAGE_WAIT", "7")
	t.Setenv("BROWSER_MODE", "STATIC")
	t.Setenv("BROWSER_HEADLESS", "false")
	t.Setenv("MATCH_THRESHOLD", "60")

	cfg := Load()

	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 2*time.Hour, cfg.StaleAfter)
	assert.Equal(t, 7*time.Second, cfg.PageWait)
	assert.Equal(t, "static", cfg.BrowserMode)
	assert.False(t, cfg.BrowserHeadless)
	assert.Equal(t, 60, cfg.MatchThreshold)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.DBDriver = "mysql" }},
		{"empty dsn", func(c *Config) { c.DBDSN = "" }},
		{"unknown browser", func(c *Config) { c.BrowserMode = "firefox" }},
		{"threshold too high", func(c *Config) { c.MatchThreshold = 101 }},
		{"threshold zero", func(c *Config) { c.MatchThreshold = 0 }},
		{"no workers", func(c *Config) { c.Workers = 0 }},
		{"no queue", func(c *Config) { c.QueueSize = 0 }},
		{"zero staleness", func(c *Config) { c.StaleAfter = 0 }},
		{"no pages", func(c *Config) { c.MaxPages = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrorTypeConfiguration, apperrors.TypeOf(err))
		})
	}
}
