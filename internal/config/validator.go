package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

var (
	validEnvironments = []string{"development", "staging", "production", "test"}
	validStoreDrivers = []string{"memory", "postgres", "redis"}
	validLogLevels    = []string{"trace", "debug", "info", "warn", "warning", "error", "fatal", "panic"}
	validLogOutputs   = []string{"stdout", "stderr", "file"}
)

const minSecretLength = 16

// Validator checks a loaded configuration
type Validator struct {
	config *Config
}

// NewValidator creates a configuration validator
func NewValidator(config *Config) *Validator {
	return &Validator{
		config: config,
	}
}

// ValidateConfig validates config and returns every problem in one error
func ValidateConfig(config *Config) error {
	return NewValidator(config).Validate()
}

// Validate runs every section check
func (v *Validator) Validate() error {
	var errors []string

	checks := []struct {
		section string
		check   func() error
	}{
		{"app", v.validateApp},
		{"server", v.validateServer},
		{"store", v.validateStore},
		{"jwt", v.validateJWT},
		{"quotes", v.validateQuotes},
		{"rate_limit", v.validateRateLimit},
		{"logging", v.validateLogging},
		{"maintenance", v.validateMaintenance},
	}

	for _, c := range checks {
		if err := c.check(); err != nil {
			errors = append(errors, fmt.Sprintf("%s: %v", c.section, err))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("invalid configuration:\n%s", strings.Join(errors, "\n"))
	}

	return nil
}

func (v *Validator) validateApp() error {
	app := v.config.App

	if app.Name == "" {
		return fmt.Errorf("name must not be empty")
	}

	if app.Environment != "" && !contains(validEnvironments, app.Environment) {
		return fmt.Errorf("invalid environment %q, valid values: %v", app.Environment, validEnvironments)
	}

	return nil
}

func (v *Validator) validateServer() error {
	server := v.config.Server

	if server.Port <= 0 || server.Port > 65535 {
		return fmt.Errorf("invalid port %d", server.Port)
	}

	if server.BasePath != "" && !strings.HasPrefix(server.BasePath, "/") {
		return fmt.Errorf("base path %q must start with /", server.BasePath)
	}

	if server.ReadTimeout < 0 || server.WriteTimeout < 0 || server.ShutdownTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}

	return nil
}

func (v *Validator) validateStore() error {
	driver := v.config.Store.Driver
	if driver == "" {
		return nil
	}

	if !contains(validStoreDrivers, driver) {
		return fmt.Errorf("unknown driver %q, valid values: %v", driver, validStoreDrivers)
	}

	switch driver {
	case "postgres":
		db := v.config.Database
		if db.Host == "" || db.DBName == "" {
			return fmt.Errorf("postgres driver needs database.host and database.dbname")
		}
		if db.Port <= 0 || db.Port > 65535 {
			return fmt.Errorf("invalid database port %d", db.Port)
		}
	case "redis":
		if v.config.Redis.Addr == "" {
			return fmt.Errorf("redis driver needs redis.addr")
		}
	}

	return nil
}

// validateJWT allows an empty secret outside production; the server then generates one per process
func (v *Validator) validateJWT() error {
	jwt := v.config.JWT

	if jwt.SecretKey == "" {
		if v.config.App.Environment == "production" {
			return fmt.Errorf("secret_key is required in production")
		}
	} else if len(jwt.SecretKey) < minSecretLength {
		return fmt.Errorf("secret_key must be at least %d characters", minSecretLength)
	}

	if jwt.AccessTTL < 0 || jwt.RefreshTTL < 0 {
		return fmt.Errorf("token lifetimes must not be negative")
	}

	return nil
}

func (v *Validator) validateQuotes() error {
	quotes := v.config.Quotes

	if quotes.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}

	for name, raw := range map[string]string{
		"yahoo.base_url":         quotes.Yahoo.BaseURL,
		"alpha_vantage.base_url": quotes.AlphaVantage.BaseURL,
	} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid %s %q", name, raw)
		}
	}

	return nil
}

func (v *Validator) validateRateLimit() error {
	rl := v.config.RateLimit
	if !rl.Enabled {
		return nil
	}

	if rl.RequestsPerMinute <= 0 {
		return fmt.Errorf("requests_per_minute must be positive")
	}
	if rl.Burst <= 0 {
		return fmt.Errorf("burst must be positive")
	}

	return nil
}

func (v *Validator) validateLogging() error {
	logging := v.config.Logging

	if logging.Level != "" && !contains(validLogLevels, strings.ToLower(logging.Level)) {
		return fmt.Errorf("invalid level %q", logging.Level)
	}
	if logging.Output != "" && !contains(validLogOutputs, logging.Output) {
		return fmt.Errorf("invalid output %q", logging.Output)
	}

	return nil
}

func (v *Validator) validateMaintenance() error {
	m := v.config.Maintenance
	if !m.Enabled || m.SessionPurgeSchedule == "" {
		return nil
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(m.SessionPurgeSchedule); err != nil {
		return fmt.Errorf("invalid session_purge_schedule: %w", err)
	}

	return nil
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
