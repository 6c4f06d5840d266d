package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"folio/internal/logger"
)

// Config represents the application configuration
type Config struct {
	App         AppConfig         `yaml:"app"`
	Server      ServerConfig      `yaml:"server"`
	Store       StoreConfig       `yaml:"store"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	JWT         JWTConfig         `yaml:"jwt"`
	Quotes      QuotesConfig      `yaml:"quotes"`
	Monitoring  MonitoringConfig  `yaml:"monitoring"`
	CORS        CORSConfig        `yaml:"cors"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Logging     LoggingConfig     `yaml:"logging"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
}

// AppConfig represents application configuration
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// IsDevelopment reports whether development-only routes should be mounted
func (a AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	Host            string        `yaml:"host"`
	BasePath        string        `yaml:"base_path"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes"`
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StoreConfig selects the document store backend
type StoreConfig struct {
	Driver string `yaml:"driver"` // memory, postgres, redis
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host          string        `yaml:"host"`
	Port          int           `yaml:"port"`
	User          string        `yaml:"user"`
	Password      string        `yaml:"password"`
	DBName        string        `yaml:"dbname"`
	SSLMode       string        `yaml:"sslmode"`
	MaxOpen       int           `yaml:"max_open"`
	MaxIdle       int           `yaml:"max_idle"`
	Timeout       time.Duration `yaml:"timeout"`
	AutoMigrate   bool          `yaml:"auto_migrate"`
	MigrationsDir string        `yaml:"migrations_dir"` // empty uses the embedded migrations
}

// RedisConfig represents Redis configuration
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	PoolSize  int    `yaml:"pool_size"`
	KeyPrefix string `yaml:"key_prefix"`
}

// JWTConfig represents JWT configuration
type JWTConfig struct {
	SecretKey  string        `yaml:"secret_key"`
	AccessTTL  time.Duration `yaml:"access_ttl"`
	RefreshTTL time.Duration `yaml:"refresh_ttl"`
	Issuer     string        `yaml:"issuer"`
}

// QuotesConfig configures the market-data upstreams
type QuotesConfig struct {
	Timeout      time.Duration      `yaml:"timeout"`
	Yahoo        YahooConfig        `yaml:"yahoo"`
	AlphaVantage AlphaVantageConfig `yaml:"alpha_vantage"`
}

// YahooConfig is the Yahoo Finance (RapidAPI) upstream
type YahooConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	APIHost string `yaml:"api_host"`
	Ticker  string `yaml:"ticker"`
	Type    string `yaml:"type"`
}

// AlphaVantageConfig is the Alpha Vantage upstream
type AlphaVantageConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	Function   string `yaml:"function"`
	Symbol     string `yaml:"symbol"`
	OutputSize string `yaml:"output_size"`
	DataType   string `yaml:"data_type"`
}

// MonitoringConfig represents monitoring configuration
type MonitoringConfig struct {
	PrometheusEnabled bool   `yaml:"prometheus_enabled"`
	PrometheusPath    string `yaml:"prometheus_path"`
}

// CORSConfig represents CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowedMethods   []string `yaml:"allowed_methods"`
	AllowedHeaders   []string `yaml:"allowed_headers"`
	AllowCredentials bool     `yaml:"allow_credentials"`
}

// RateLimitConfig represents rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	Filename   string `yaml:"filename"`
	MaxSize    int    `yaml:"max_size"`
	MaxAge     int    `yaml:"max_age"`
	MaxBackups int    `yaml:"max_backups"`
	Compress   bool   `yaml:"compress"`
}

// LoggerConfig converts the logging section into a logger configuration
func (l LoggingConfig) LoggerConfig() logger.Config {
	cfg := logger.DefaultConfig
	cfg.Level = logger.ParseLevel(l.Level)
	if l.Format != "" {
		cfg.Format = logger.LogFormat(l.Format)
	}
	if l.Output != "" {
		cfg.Output = l.Output
	}
	cfg.Filename = l.Filename
	if l.MaxSize > 0 {
		cfg.MaxSize = l.MaxSize
	}
	if l.MaxAge > 0 {
		cfg.MaxAge = l.MaxAge
	}
	if l.MaxBackups > 0 {
		cfg.MaxBackups = l.MaxBackups
	}
	cfg.Compress = l.Compress
	return cfg
}

// MaintenanceConfig schedules background maintenance
type MaintenanceConfig struct {
	Enabled              bool   `yaml:"enabled"`
	SessionPurgeSchedule string `yaml:"session_purge_schedule"`
}

// Default returns a configuration that runs with no file present
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:        "folio",
			Version:     "1.0.0",
			Environment: "development",
		},
		Server: ServerConfig{
			Port:            8000,
			Host:            "0.0.0.0",
			BasePath:        "/api/v1",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxHeaderBytes:  1 << 20,
		},
		Store: StoreConfig{Driver: "memory"},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "postgres",
			DBName:  "folio",
			SSLMode: "disable",
			MaxOpen: 25,
			MaxIdle: 5,
			Timeout: 5 * time.Second,
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			PoolSize:  10,
			KeyPrefix: "folio",
		},
		JWT: JWTConfig{
			AccessTTL:  30 * time.Minute,
			RefreshTTL: 24 * time.Hour,
			Issuer:     "folio",
		},
		Quotes: QuotesConfig{
			Timeout: 10 * time.Second,
			Yahoo: YahooConfig{
				BaseURL: "https://yahoo-finance15.p.rapidapi.com",
				APIHost: "yahoo-finance15.p.rapidapi.com",
				Ticker:  "AAPL",
				Type:    "STOCKS",
			},
			AlphaVantage: AlphaVantageConfig{
				BaseURL:    "https://www.alphavantage.co",
				Function:   "TIME_SERIES_DAILY",
				Symbol:     "IBM",
				OutputSize: "compact",
				DataType:   "json",
			},
		},
		Monitoring: MonitoringConfig{
			PrometheusEnabled: true,
			PrometheusPath:    "/metrics",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerMinute: 120,
			Burst:             20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Maintenance: MaintenanceConfig{
			Enabled:              true,
			SessionPurgeSchedule: "0 */30 * * * *",
		},
	}
}

// Load loads configuration from a YAML file on top of the defaults
func Load(filename string) (*Config, error) {
	config := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// LoadConfig loads .env, the optional YAML file and environment overrides, then validates.
// An empty filename skips the file.
func LoadConfig(filename string) (*Config, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	config := Default()
	if filename != "" {
		loaded, err := Load(filename)
		if err != nil {
			return nil, err
		}
		config = loaded
	}

	NewEnvManager(EnvPrefix).Apply(config)

	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}
