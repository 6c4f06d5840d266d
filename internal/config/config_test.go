package config

import (
	"context"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"folio/internal/logger"
	"folio/internal/testutils"
)

const sampleConfig = `
app:
  name: folio-test
  environment: test
server:
  port: 9090
  read_timeout: 5s
store:
  driver: postgres
database:
  host: db.internal
  dbname: folio_test
jwt:
  secret_key: yaml-secret-0123456789
  access_ttl: 10m
quotes:
  timeout: 3s
  yahoo:
    api_key: from-yaml
logging:
  level: debug
`

func TestLoadConfig(t *testing.T) {
	suite := testutils.NewTestSuite(t, nil)
	path := suite.CreateTempFile("config.yaml", sampleConfig)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "folio-test", cfg.App.Name)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 10*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, 3*time.Second, cfg.Quotes.Timeout)
	assert.Equal(t, "from-yaml", cfg.Quotes.Yahoo.APIKey)

	// defaults fill what the file leaves out
	assert.Equal(t, "/api/v1", cfg.Server.BasePath)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 24*time.Hour, cfg.JWT.RefreshTTL)
	assert.Equal(t, "AAPL", cfg.Quotes.Yahoo.Ticker)
	assert.Equal(t, "TIME_SERIES_DAILY", cfg.Quotes.AlphaVantage.Function)
	assert.Equal(t, logger.LevelDebug, cfg.Logging.LoggerConfig().Level)
}

func TestLoadConfigWithoutFile(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Store.Driver)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/folio.yaml")
	assert.Error(t, err)
}

func TestLoadConfigWithEnvironmentOverride(t *testing.T) {
	suite := testutils.NewTestSuite(t, nil)
	path := suite.CreateTempFile("config.yaml", sampleConfig)

	testutils.SetEnv(t, "FOLIO_SERVER_PORT", "7070")
	testutils.SetEnv(t, "FOLIO_DATABASE_HOST", "env-db")
	testutils.SetEnv(t, "FOLIO_JWT_ACCESS_TTL", "1h")
	testutils.SetEnv(t, "FOLIO_CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	testutils.SetEnv(t, "YAHOO_FINANCE_API_KEY", "from-env")
	testutils.SetEnv(t, "ALPHA_VANTAGE_API_KEY", "av-env")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "env-db", cfg.Database.Host)
	assert.Equal(t, time.Hour, cfg.JWT.AccessTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "from-env", cfg.Quotes.Yahoo.APIKey)
	assert.Equal(t, "av-env", cfg.Quotes.AlphaVantage.APIKey)
}

func TestEnvManagerFallbacks(t *testing.T) {
	em := NewEnvManager(EnvPrefix)
	testutils.SetEnv(t, "FOLIO_BAD_INT", "many")
	testutils.SetEnv(t, "FOLIO_SOME_FLAG", "true")

	assert.Equal(t, 3, em.GetInt("bad_int", 3))
	assert.True(t, em.GetBool("some_flag", false))
	assert.Equal(t, "fallback", em.GetString("unset_key", "fallback"))

	assert.NoError(t, em.ValidateRequired([]string{"some_flag"}))
	assert.Error(t, em.ValidateRequired([]string{"some_flag", "jwt_secret_key_missing"}))
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"empty app name", func(c *Config) { c.App.Name = "" }, "app"},
		{"unknown environment", func(c *Config) { c.App.Environment = "qa" }, "app"},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, "server"},
		{"relative base path", func(c *Config) { c.Server.BasePath = "api" }, "server"},
		{"unknown driver", func(c *Config) { c.Store.Driver = "firestore" }, "store"},
		{"postgres without host", func(c *Config) {
			c.Store.Driver = "postgres"
			c.Database.Host = ""
		}, "store"},
		{"redis without addr", func(c *Config) {
			c.Store.Driver = "redis"
			c.Redis.Addr = ""
		}, "store"},
		{"short secret", func(c *Config) { c.JWT.SecretKey = "short" }, "jwt"},
		{"production without secret", func(c *Config) { c.App.Environment = "production" }, "jwt"},
		{"bad quote url", func(c *Config) { c.Quotes.AlphaVantage.BaseURL = "ftp://alpha" }, "quotes"},
		{"rate limit without budget", func(c *Config) {
			c.RateLimit.Enabled = true
			c.RateLimit.RequestsPerMinute = 0
		}, "rate_limit"},
		{"unknown log level", func(c *Config) { c.Logging.Level = "loud" }, "logging"},
		{"bad purge schedule", func(c *Config) { c.Maintenance.SessionPurgeSchedule = "every minute" }, "maintenance"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := ValidateConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr+":")
		})
	}
}

func TestConfigWatcher(t *testing.T) {
	suite := testutils.NewTestSuite(t, nil)
	path := suite.CreateTempFile("config.yaml", sampleConfig)

	watcher := NewConfigWatcher(path, 20*time.Millisecond)

	var reloads atomic.Int32
	var lastLevel atomic.Value
	watcher.OnChange(func(cfg *Config) error {
		lastLevel.Store(cfg.Logging.Level)
		reloads.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watcher.Start(ctx) }()

	testutils.Eventually(t, watcher.IsRunning, time.Second, "watcher running")

	// an invalid file is ignored
	writeWithModTime(t, path, strings.Replace(sampleConfig, "port: 9090", "port: -1", 1), time.Now().Add(time.Second))
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, reloads.Load())

	updated := strings.Replace(sampleConfig, "level: debug", "level: warn", 1)
	writeWithModTime(t, path, updated, time.Now().Add(2*time.Second))

	testutils.Eventually(t, func() bool { return reloads.Load() == 1 }, 2*time.Second, "config reloaded")
	assert.Equal(t, "warn", lastLevel.Load())

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.False(t, watcher.IsRunning())
}

func writeWithModTime(t *testing.T, path, content string, modTime time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	require.NoError(t, os.Chtimes(path, modTime, modTime))
}
