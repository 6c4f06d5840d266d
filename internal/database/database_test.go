package database

import (
	"context"
	"database/sql"
	"io/fs"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"folio/internal/models"
	"folio/internal/store"
)

func TestConfigDSN(t *testing.T) {
	cfg := &Config{Host: "db", Port: 5432, User: "folio", Password: "secret", DBName: "folio", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=folio password=secret dbname=folio sslmode=disable", cfg.DSN())
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	require.NoError(t, err)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}

	require.NotEmpty(t, ups)
	assert.Equal(t, ups, downs)
}

func TestMigrateStopsPoolMonitor(t *testing.T) {
	// nothing listens on port 1, so the migrator fails right after the pool opens
	cfg := &Config{Host: "127.0.0.1", Port: 1, User: "folio", DBName: "folio", SSLMode: "disable", StatsInterval: time.Hour}
	pool, err := sql.Open("postgres", cfg.DSN())
	require.NoError(t, err)

	db := newDB(pool, cfg)
	assert.Error(t, migrateAndClose(db, ""))

	select {
	case <-db.stop:
	case <-time.After(time.Second):
		t.Fatal("pool stats monitor still running after migration")
	}
	assert.NoError(t, db.Close())
}

// postgresTestConfig needs a disposable database; the tests migrate it up.
func postgresTestConfig(t *testing.T) Config {
	host := os.Getenv("FOLIO_TEST_POSTGRES_HOST")
	if host == "" {
		t.Skip("FOLIO_TEST_POSTGRES_HOST not set")
	}
	return Config{
		Host:     host,
		Port:     5432,
		User:     envOr("FOLIO_TEST_POSTGRES_USER", "postgres"),
		Password: os.Getenv("FOLIO_TEST_POSTGRES_PASSWORD"),
		DBName:   envOr("FOLIO_TEST_POSTGRES_DB", "folio_test"),
		SSLMode:  "disable",
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func openTestDB(t *testing.T) *DB {
	cfg := postgresTestConfig(t)
	ctx := context.Background()

	require.NoError(t, Migrate(ctx, cfg, ""))

	db, err := NewConnection(ctx, &cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDocumentStorePostgres(t *testing.T) {
	db := openTestDB(t)
	s, err := NewDocumentStore(db)
	require.NoError(t, err)

	ctx := context.Background()
	collection := "assets_" + uuid.NewString()[:8]

	created, err := s.Create(ctx, collection, map[string]interface{}{"symbol": "AAPL", "price": 150.0})
	require.NoError(t, err)

	got, err := s.Get(ctx, collection, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", got.Data["symbol"])
	assert.Equal(t, 150.0, got.Data["price"])

	updated, err := s.Replace(ctx, collection, created.ID, map[string]interface{}{"symbol": "AAPL", "price": 155.0})
	require.NoError(t, err)
	assert.Equal(t, 155.0, updated.Data["price"])

	second, err := s.Create(ctx, collection, map[string]interface{}{"symbol": "IBM"})
	require.NoError(t, err)

	docs, err := s.List(ctx, collection)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, created.ID, docs[0].ID)
	assert.Equal(t, second.ID, docs[1].ID)

	require.NoError(t, s.Delete(ctx, collection, created.ID))
	_, err = s.Get(ctx, collection, created.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, collection, created.ID), store.ErrNotFound)
}

func TestIdentityStorePostgres(t *testing.T) {
	db := openTestDB(t)
	s := NewIdentityStore(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	user := &models.User{
		Username:     "pg_" + uuid.NewString()[:8],
		PasswordHash: "hash",
		Role:         models.DefaultRole,
		Status:       models.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, s.CreateUser(ctx, user))
	assert.ErrorIs(t, s.CreateUser(ctx, &models.User{
		Username: user.Username, PasswordHash: "x", Role: "user", Status: "active", CreatedAt: now, UpdatedAt: now,
	}), store.ErrConflict)

	got, err := s.GetUserByUsername(ctx, user.Username)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = s.GetUserByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, store.ErrNotFound)

	token := uuid.NewString()
	require.NoError(t, s.CreateSession(ctx, &models.Session{
		UserID: user.ID, RefreshToken: token, ExpiresAt: now.Add(time.Hour), CreatedAt: now,
	}))
	session, err := s.GetSessionByToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, session.UserID)

	require.NoError(t, s.DeleteSessionByToken(ctx, token))
	_, err = s.GetSessionByToken(ctx, token)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
