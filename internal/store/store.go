// Package store defines the persistence contracts the gateways and the
// authenticator depend on, plus the in-memory and Redis backends.
// The Postgres backends live in package database.
package store

import (
	"context"
	"errors"
	"time"

	"folio/internal/models"
)

var (
	// ErrNotFound is returned when an id, username or token has no record
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique key is already taken
	ErrConflict = errors.New("already exists")
)

// Document is one record in a collection. Data never contains the id.
type Document struct {
	ID         string                 `json:"id"`
	Data       map[string]interface{} `json:"data"`
	CreateTime time.Time              `json:"create_time"`
	UpdateTime time.Time              `json:"update_time"`
}

// DocumentStore is a schemaless collection store
type DocumentStore interface {
	// List returns every document of the collection in creation order
	List(ctx context.Context, collection string) ([]Document, error)
	// Create stores data under a generated id
	Create(ctx context.Context, collection string, data map[string]interface{}) (Document, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	// Replace overwrites the data of an existing document
	Replace(ctx context.Context, collection, id string, data map[string]interface{}) (Document, error)
	Delete(ctx context.Context, collection, id string) error

	Ping(ctx context.Context) error
	Close() error
}

// IdentityStore holds users and their refresh sessions
type IdentityStore interface {
	// CreateUser fails with ErrConflict when the username is taken
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateUserLastLogin(ctx context.Context, id string, at time.Time) error

	CreateSession(ctx context.Context, session *models.Session) error
	// GetSessionByToken treats expired sessions as missing
	GetSessionByToken(ctx context.Context, refreshToken string) (*models.Session, error)
	// DeleteSessionByToken succeeds when no session matches
	DeleteSessionByToken(ctx context.Context, refreshToken string) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

// cloneData copies the top level of a document's data
func cloneData(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
