package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"folio/internal/logger"
)

// DB represents the database connection
type DB struct {
	*sql.DB
	config *Config
	stats  *PoolStats
	mu     sync.RWMutex
	stop   chan struct{}
	once   sync.Once

	monitorCallback func(*PoolStats)
}

// Config represents database configuration
type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpen         int
	MaxIdle         int
	Timeout         time.Duration
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	StatsInterval   time.Duration
}

// DSN returns the lib/pq connection string
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// PoolStats represents connection pool statistics
type PoolStats struct {
	MaxOpenConnections int
	OpenConnections    int
	InUse              int
	Idle               int
	WaitCount          int64
	WaitDuration       time.Duration
	MaxIdleClosed      int64
	MaxLifetimeClosed  int64
	LastUpdated        time.Time
}

// NewConnection opens the pool and pings it with retries
func NewConnection(ctx context.Context, cfg *Config) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpen <= 0 {
		cfg.MaxOpen = 25
	}
	if cfg.MaxIdle <= 0 {
		cfg.MaxIdle = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.ConnMaxLifetime <= 0 {
		cfg.ConnMaxLifetime = time.Hour
	}
	if cfg.ConnMaxIdleTime <= 0 {
		cfg.ConnMaxIdleTime = 15 * time.Minute
	}
	if cfg.StatsInterval <= 0 {
		cfg.StatsInterval = 30 * time.Second
	}

	db.SetMaxOpenConns(cfg.MaxOpen)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	var pingErr error
	maxRetries := 3
	for i := 0; i < maxRetries; i++ {
		pingErr = db.PingContext(pingCtx)
		if pingErr == nil {
			break
		}

		logger.Warn("Database ping failed", "attempt", i+1, "max_attempts", maxRetries, "error", pingErr)
		if i < maxRetries-1 {
			select {
			case <-pingCtx.Done():
			case <-time.After(time.Second * time.Duration(i+1)):
			}
		}
	}

	if pingErr != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database %q at %s:%d after %d attempts: %w",
			cfg.DBName, cfg.Host, cfg.Port, maxRetries, pingErr)
	}

	logger.Info("Database connection established",
		"host", cfg.Host,
		"dbname", cfg.DBName,
		"max_open", cfg.MaxOpen,
		"max_idle", cfg.MaxIdle,
		"max_lifetime", cfg.ConnMaxLifetime.String(),
	)

	return newDB(db, cfg), nil
}

// newDB wraps an open pool and starts its stats monitor
func newDB(db *sql.DB, cfg *Config) *DB {
	database := &DB{
		DB:     db,
		config: cfg,
		stats:  &PoolStats{},
		stop:   make(chan struct{}),
	}

	go database.monitorPoolStats()

	return database
}

// Close stops pool monitoring and closes the pool
func (db *DB) Close() error {
	db.once.Do(func() { close(db.stop) })
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.PingContext(ctx)
}

// SetMonitorCallback sets a callback that receives every pool stats refresh
func (db *DB) SetMonitorCallback(callback func(*PoolStats)) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.monitorCallback = callback
}

func (db *DB) monitorPoolStats() {
	ticker := time.NewTicker(db.config.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-db.stop:
			return
		case <-ticker.C:
			db.updatePoolStats()
		}
	}
}

func (db *DB) updatePoolStats() {
	stats := db.DB.Stats()

	db.mu.Lock()
	db.stats.MaxOpenConnections = stats.MaxOpenConnections
	db.stats.OpenConnections = stats.OpenConnections
	db.stats.InUse = stats.InUse
	db.stats.Idle = stats.Idle
	db.stats.WaitCount = stats.WaitCount
	db.stats.WaitDuration = stats.WaitDuration
	db.stats.MaxIdleClosed = stats.MaxIdleClosed
	db.stats.MaxLifetimeClosed = stats.MaxLifetimeClosed
	db.stats.LastUpdated = time.Now()

	callback := db.monitorCallback
	statsCopy := *db.stats
	db.mu.Unlock()

	if callback != nil {
		callback(&statsCopy)
	}

	if stats.WaitCount > 0 {
		logger.Warn("Database connection pool under pressure",
			"wait_count", stats.WaitCount,
			"wait_duration", stats.WaitDuration.String(),
			"in_use", stats.InUse,
			"idle", stats.Idle,
		)
	}
}
