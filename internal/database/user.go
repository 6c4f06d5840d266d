package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"folio/internal/models"
	"folio/internal/store"
)

const uniqueViolation = "23505"

// IdentityStore keeps users and refresh sessions in Postgres
type IdentityStore struct {
	db *DB
}

// NewIdentityStore wraps an open pool
func NewIdentityStore(db *DB) *IdentityStore {
	return &IdentityStore{db: db}
}

const userColumns = `id, username, password_hash, role, status, last_login, created_at, updated_at`

func scanUser(row *sql.Row) (*models.User, error) {
	var (
		idStr     string
		lastLogin sql.NullTime
	)
	user := &models.User{}
	err := row.Scan(&idStr, &user.Username, &user.PasswordHash,
		&user.Role, &user.Status, &lastLogin, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse user ID: %w", err)
	}
	user.ID = id.String()
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLogin = &t
	}

	return user, nil
}

// CreateUser inserts a user; a taken username yields store.ErrConflict
func (s *IdentityStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	query := `
		INSERT INTO users (id, username, password_hash, role, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.db.ExecContext(ctx, query,
		user.ID, user.Username, user.PasswordHash,
		user.Role, user.Status, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return store.ErrConflict
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByUsername retrieves a user by username
func (s *IdentityStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return scanUser(s.db.QueryRowContext(ctx, query, username))
}

// GetUserByID retrieves a user by ID
func (s *IdentityStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return nil, store.ErrNotFound
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(s.db.QueryRowContext(ctx, query, userID.String()))
}

// UpdateUserLastLogin updates the last login time for a user
func (s *IdentityStore) UpdateUserLastLogin(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE users SET last_login = $1, updated_at = $1 WHERE id = $2`

	result, err := s.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}

	return nil
}

// CreateSession stores a refresh token
func (s *IdentityStore) CreateSession(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}

	query := `
		INSERT INTO user_sessions (id, user_id, refresh_token, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.db.ExecContext(ctx, query,
		session.ID, session.UserID, session.RefreshToken,
		session.ExpiresAt, session.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user session: %w", err)
	}

	return nil
}

// GetSessionByToken retrieves a live session by refresh token
func (s *IdentityStore) GetSessionByToken(ctx context.Context, refreshToken string) (*models.Session, error) {
	query := `
		SELECT id, user_id, refresh_token, expires_at, created_at
		FROM user_sessions WHERE refresh_token = $1 AND expires_at > $2
	`

	session := &models.Session{}
	err := s.db.QueryRowContext(ctx, query, refreshToken, time.Now()).Scan(
		&session.ID, &session.UserID, &session.RefreshToken,
		&session.ExpiresAt, &session.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user session: %w", err)
	}

	return session, nil
}

// DeleteSessionByToken deletes a session; deleting twice is not an error
func (s *IdentityStore) DeleteSessionByToken(ctx context.Context, refreshToken string) error {
	query := `DELETE FROM user_sessions WHERE refresh_token = $1`

	if _, err := s.db.ExecContext(ctx, query, refreshToken); err != nil {
		return fmt.Errorf("failed to delete user session: %w", err)
	}

	return nil
}

// DeleteExpiredSessions deletes expired user sessions
func (s *IdentityStore) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	query := `DELETE FROM user_sessions WHERE expires_at <= $1`

	result, err := s.db.ExecContext(ctx, query, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count expired sessions: %w", err)
	}
	return removed, nil
}

var _ store.IdentityStore = (*IdentityStore)(nil)
