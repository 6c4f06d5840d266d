package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "FOLIO_"

// Settings names kept from the deployment environment of the quote upstreams.
const (
	EnvYahooAPIKey        = "YAHOO_FINANCE_API_KEY"
	EnvYahooAPIHost       = "YAHOO_FINANCE_API_HOST"
	EnvAlphaVantageAPIKey = "ALPHA_VANTAGE_API_KEY"
)

// EnvManager reads prefixed environment variables
type EnvManager struct {
	prefix string
}

// NewEnvManager creates a new environment variable manager
func NewEnvManager(prefix string) *EnvManager {
	if prefix == "" {
		prefix = EnvPrefix
	}
	return &EnvManager{prefix: prefix}
}

func (em *EnvManager) lookup(key string) (string, bool) {
	value, ok := os.LookupEnv(em.prefix + strings.ToUpper(key))
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// GetString gets a string environment variable
func (em *EnvManager) GetString(key string, defaultValue string) string {
	if value, ok := em.lookup(key); ok {
		return value
	}
	return defaultValue
}

// GetInt gets an integer environment variable
func (em *EnvManager) GetInt(key string, defaultValue int) int {
	if value, ok := em.lookup(key); ok {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetBool gets a boolean environment variable
func (em *EnvManager) GetBool(key string, defaultValue bool) bool {
	if value, ok := em.lookup(key); ok {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// GetDuration gets a duration environment variable
func (em *EnvManager) GetDuration(key string, defaultValue time.Duration) time.Duration {
	if value, ok := em.lookup(key); ok {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// GetList gets a comma separated environment variable
func (em *EnvManager) GetList(key string, defaultValue []string) []string {
	value, ok := em.lookup(key)
	if !ok {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// Apply overrides config values from the environment
func (em *EnvManager) Apply(c *Config) {
	c.App.Name = em.GetString("app_name", c.App.Name)
	c.App.Version = em.GetString("app_version", c.App.Version)
	c.App.Environment = em.GetString("app_environment", c.App.Environment)

	c.Server.Port = em.GetInt("server_port", c.Server.Port)
	c.Server.Host = em.GetString("server_host", c.Server.Host)
	c.Server.BasePath = em.GetString("server_base_path", c.Server.BasePath)
	c.Server.ReadTimeout = em.GetDuration("server_read_timeout", c.Server.ReadTimeout)
	c.Server.WriteTimeout = em.GetDuration("server_write_timeout", c.Server.WriteTimeout)
	c.Server.ShutdownTimeout = em.GetDuration("server_shutdown_timeout", c.Server.ShutdownTimeout)

	c.Store.Driver = em.GetString("store_driver", c.Store.Driver)

	c.Database.Host = em.GetString("database_host", c.Database.Host)
	c.Database.Port = em.GetInt("database_port", c.Database.Port)
	c.Database.User = em.GetString("database_user", c.Database.User)
	c.Database.Password = em.GetString("database_password", c.Database.Password)
	c.Database.DBName = em.GetString("database_dbname", c.Database.DBName)
	c.Database.SSLMode = em.GetString("database_sslmode", c.Database.SSLMode)
	c.Database.AutoMigrate = em.GetBool("database_auto_migrate", c.Database.AutoMigrate)

	c.Redis.Addr = em.GetString("redis_addr", c.Redis.Addr)
	c.Redis.Password = em.GetString("redis_password", c.Redis.Password)
	c.Redis.DB = em.GetInt("redis_db", c.Redis.DB)

	c.JWT.SecretKey = em.GetString("jwt_secret_key", c.JWT.SecretKey)
	c.JWT.AccessTTL = em.GetDuration("jwt_access_ttl", c.JWT.AccessTTL)
	c.JWT.RefreshTTL = em.GetDuration("jwt_refresh_ttl", c.JWT.RefreshTTL)

	c.Quotes.Timeout = em.GetDuration("quotes_timeout", c.Quotes.Timeout)
	c.Quotes.Yahoo.BaseURL = em.GetString("yahoo_base_url", c.Quotes.Yahoo.BaseURL)
	c.Quotes.AlphaVantage.BaseURL = em.GetString("alpha_vantage_base_url", c.Quotes.AlphaVantage.BaseURL)

	// unprefixed names win over the YAML file
	if value := os.Getenv(EnvYahooAPIKey); value != "" {
		c.Quotes.Yahoo.APIKey = value
	}
	if value := os.Getenv(EnvYahooAPIHost); value != "" {
		c.Quotes.Yahoo.APIHost = value
	}
	if value := os.Getenv(EnvAlphaVantageAPIKey); value != "" {
		c.Quotes.AlphaVantage.APIKey = value
	}

	c.Monitoring.PrometheusEnabled = em.GetBool("monitoring_prometheus_enabled", c.Monitoring.PrometheusEnabled)
	c.CORS.AllowedOrigins = em.GetList("cors_allowed_origins", c.CORS.AllowedOrigins)

	c.RateLimit.Enabled = em.GetBool("rate_limit_enabled", c.RateLimit.Enabled)
	c.RateLimit.RequestsPerMinute = em.GetInt("rate_limit_requests_per_minute", c.RateLimit.RequestsPerMinute)
	c.RateLimit.Burst = em.GetInt("rate_limit_burst", c.RateLimit.Burst)

	c.Logging.Level = em.GetString("logging_level", c.Logging.Level)
	c.Logging.Format = em.GetString("logging_format", c.Logging.Format)
	c.Logging.Output = em.GetString("logging_output", c.Logging.Output)

	c.Maintenance.Enabled = em.GetBool("maintenance_enabled", c.Maintenance.Enabled)
	c.Maintenance.SessionPurgeSchedule = em.GetString("maintenance_session_purge_schedule", c.Maintenance.SessionPurgeSchedule)
}

// ValidateRequired checks if all required environment variables are set
func (em *EnvManager) ValidateRequired(required []string) error {
	var missing []string

	for _, key := range required {
		if _, ok := em.lookup(key); !ok {
			missing = append(missing, em.prefix+strings.ToUpper(key))
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missing)
	}

	return nil
}
