package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("Defaults without file", func(t *testing.T) {
		cfg, err := LoadConfig(t.TempDir())

		require.NoError(t, err)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, "sqlite", cfg.Database.Driver)
		assert.Equal(t, 120*time.Second, cfg.Market.CacheExpiry)
		assert.Equal(t, 250, cfg.Market.PerPage)
		assert.Equal(t, 4, cfg.Market.Pages)
		assert.Equal(t, time.Minute, cfg.Alerts.CheckInterval)
		assert.Equal(t, int64(1), cfg.Alerts.MaxConcurrent)
		assert.Equal(t, "price_alerts", cfg.Notifications.RedisChannel)
		assert.Equal(t, "portfolio-tracker", cfg.Logger.Service)
		assert.Equal(t, 0.1, cfg.Market.OutlierContamination)
	})

	t.Run("File overrides defaults", func(t *testing.T) {
		dir := t.TempDir()
		content := []byte(`
server:
  port: 9090
market:
  cache_expiry: 30s
  pages: 2
alerts:
  check_interval: 5m
logger:
  level: debug
  format: json
`)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), content, 0o600))

		cfg, err := LoadConfig(dir)

		require.NoError(t, err)
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, 30*time.Second, cfg.Market.CacheExpiry)
		assert.Equal(t, 2, cfg.Market.Pages)
		assert.Equal(t, 5*time.Minute, cfg.Alerts.CheckInterval)
		assert.Equal(t, "json", cfg.Logger.Format)
		// untouched keys keep their defaults
		assert.Equal(t, "usd", cfg.Market.VsCurrency)
	})

	t.Run("Environment overrides file", func(t *testing.T) {
		t.Setenv("SERVER_PORT", "7070")
		t.Setenv("AUTH_JWT_SECRET", "from-env")
		t.Setenv("LOGGER_SERVICE", "tracker-eu")

		cfg, err := LoadConfig(t.TempDir())

		require.NoError(t, err)
		assert.Equal(t, 7070, cfg.Server.Port)
		assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
		assert.Equal(t, "tracker-eu", cfg.Logger.Service)
	})
}
