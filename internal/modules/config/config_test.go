package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "values.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Trading.Confirmations)
	assert.Equal(t, 30*time.Second, cfg.Trading.PollInterval)
	assert.Len(t, cfg.TakeProfit.Levels, 3)
	assert.InDelta(t, 0.01, cfg.Trailing.DistancePct, 1e-12)
	assert.True(t, cfg.Trading.Simulation)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	p := writeFile(t, `
trading:
  instruments: [BTCUSDT]
  confirmations: 2
  poll_interval: 5s
take_profit:
  levels:
    - { pct: 0.005, close_fraction: 0.5 }
    - { pct: 0.01, close_fraction: 0.3 }
`)
	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, []string{"BTCUSDT"}, cfg.Trading.Instruments)
	assert.Equal(t, 2, cfg.Trading.Confirmations)
	assert.Equal(t, 5*time.Second, cfg.Trading.PollInterval)
	require.Len(t, cfg.TakeProfit.Levels, 2)
	assert.InDelta(t, 0.5, cfg.TakeProfit.Levels[0].CloseFraction, 1e-12)
	// не тронутые секции остаются дефолтными
	assert.Equal(t, 50, cfg.Stop.TrendEMAPeriod)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LADDER_TRADING_INSTRUMENTS", "btcusdt, ethusdt")
	t.Setenv("LADDER_TRADING_CONFIRMATIONS", "6")
	t.Setenv("LADDER_TRADING_COOLDOWN", "15m")
	t.Setenv("TELEGRAM_TOKEN", "tok")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Trading.Instruments)
	assert.Equal(t, 6, cfg.Trading.Confirmations)
	assert.Equal(t, 15*time.Minute, cfg.Trading.Cooldown)
	assert.Equal(t, "tok", cfg.Telegram.Token)
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(writeFile(t, "trading: [oops"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"no instruments", func(c *Config) { c.Trading.Instruments = nil }},
		{"zero confirmations", func(c *Config) { c.Trading.Confirmations = 0 }},
		{"fractions leave no remainder", func(c *Config) {
			c.TakeProfit.Levels = []TPLevel{{Pct: 0.01, CloseFraction: 0.5}, {Pct: 0.02, CloseFraction: 0.5}}
		}},
		{"non increasing ladder", func(c *Config) {
			c.TakeProfit.Levels = []TPLevel{{Pct: 0.02, CloseFraction: 0.3}, {Pct: 0.01, CloseFraction: 0.3}}
		}},
		{"trailing distance", func(c *Config) { c.Trailing.DistancePct = 0 }},
		{"fallback above cap", func(c *Config) { c.Stop.FallbackPct = 0.1 }},
		{"live without keys", func(c *Config) { c.Trading.Simulation = false }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}

	c := Default()
	assert.NoError(t, c.Validate())
}

func TestRetryPolicy(t *testing.T) {
	c := Default()
	p := c.RetryPolicy()
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, p.Delay(0))
	assert.Equal(t, time.Second, p.Delay(1))
}
