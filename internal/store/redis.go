package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"folio/internal/logger"
	"folio/internal/models"
)

// RedisConfig represents Redis configuration
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	PoolSize  int
	KeyPrefix string
}

// NewRedisClient connects and pings Redis
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established", "addr", cfg.Addr, "db", cfg.DB)
	return client, nil
}

// RedisStore keeps each collection in a hash of JSON documents.
// A sorted set scored by a per-collection counter preserves creation order.
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisStore wraps a connected client
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "folio"
	}
	return &RedisStore{client: client, prefix: prefix, now: time.Now}
}

func (r *RedisStore) docsKey(collection string) string {
	return fmt.Sprintf("%s:doc:%s", r.prefix, collection)
}

func (r *RedisStore) orderKey(collection string) string {
	return fmt.Sprintf("%s:doc:%s:order", r.prefix, collection)
}

func (r *RedisStore) seqKey(collection string) string {
	return fmt.Sprintf("%s:doc:%s:seq", r.prefix, collection)
}

func decodeDocument(raw string) (Document, error) {
	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return Document{}, fmt.Errorf("failed to decode document: %w", err)
	}
	if doc.Data == nil {
		doc.Data = map[string]interface{}{}
	}
	return doc, nil
}

func (r *RedisStore) List(ctx context.Context, collection string) ([]Document, error) {
	ids, err := r.client.ZRange(ctx, r.orderKey(collection), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("List %s: %w", collection, err)
	}
	if len(ids) == 0 {
		return []Document{}, nil
	}

	values, err := r.client.HMGet(ctx, r.docsKey(collection), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("List %s: %w", collection, err)
	}

	docs := make([]Document, 0, len(values))
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			// deleted between ZRANGE and HMGET
			continue
		}
		doc, err := decodeDocument(raw)
		if err != nil {
			return nil, fmt.Errorf("List %s: %w", collection, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (r *RedisStore) Create(ctx context.Context, collection string, data map[string]interface{}) (Document, error) {
	now := r.now()
	doc := Document{
		ID:         uuid.NewString(),
		Data:       cloneData(data),
		CreateTime: now,
		UpdateTime: now,
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return Document{}, fmt.Errorf("Create %s: %w", collection, err)
	}

	seq, err := r.client.Incr(ctx, r.seqKey(collection)).Result()
	if err != nil {
		return Document{}, fmt.Errorf("Create %s: %w", collection, err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.docsKey(collection), doc.ID, payload)
		pipe.ZAdd(ctx, r.orderKey(collection), redis.Z{Score: float64(seq), Member: doc.ID})
		return nil
	})
	if err != nil {
		return Document{}, fmt.Errorf("Create %s: %w", collection, err)
	}

	return doc, nil
}

func (r *RedisStore) Get(ctx context.Context, collection, id string) (Document, error) {
	raw, err := r.client.HGet(ctx, r.docsKey(collection), id).Result()
	if errors.Is(err, redis.Nil) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("Get %s/%s: %w", collection, id, err)
	}
	return decodeDocument(raw)
}

func (r *RedisStore) Replace(ctx context.Context, collection, id string, data map[string]interface{}) (Document, error) {
	key := r.docsKey(collection)
	var updated Document

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, key, id).Result()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		existing, err := decodeDocument(raw)
		if err != nil {
			return err
		}

		updated = Document{
			ID:         id,
			Data:       cloneData(data),
			CreateTime: existing.CreateTime,
			UpdateTime: r.now(),
		}
		payload, err := json.Marshal(updated)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, id, payload)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, ErrNotFound) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("Replace %s/%s: %w", collection, id, err)
	}
	return updated, nil
}

func (r *RedisStore) Delete(ctx context.Context, collection, id string) error {
	var removed *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.HDel(ctx, r.docsKey(collection), id)
		pipe.ZRem(ctx, r.orderKey(collection), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("Delete %s/%s: %w", collection, id, err)
	}
	if removed.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

// RedisIdentityStore keeps users in a hash and sessions as keys that expire
// with their refresh token.
type RedisIdentityStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// userRecord is the stored form of a user; models.User hides the hash from JSON
type userRecord struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"password_hash"`
	Role         string     `json:"role"`
	Status       string     `json:"status"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func toUserRecord(u *models.User) userRecord {
	return userRecord{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		Status:       u.Status,
		LastLogin:    u.LastLogin,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (rec userRecord) user() *models.User {
	return &models.User{
		ID:           rec.ID,
		Username:     rec.Username,
		PasswordHash: rec.PasswordHash,
		Role:         rec.Role,
		Status:       rec.Status,
		LastLogin:    rec.LastLogin,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
}

// NewRedisIdentityStore wraps a connected client
func NewRedisIdentityStore(client *redis.Client, prefix string) *RedisIdentityStore {
	if prefix == "" {
		prefix = "folio"
	}
	return &RedisIdentityStore{client: client, prefix: prefix, now: time.Now}
}

func (r *RedisIdentityStore) usersKey() string    { return r.prefix + ":users" }
func (r *RedisIdentityStore) usernamesKey() string { return r.prefix + ":users:by_name" }
func (r *RedisIdentityStore) sessionKey(token string) string {
	return r.prefix + ":session:" + token
}

func (r *RedisIdentityStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	claimed, err := r.client.HSetNX(ctx, r.usernamesKey(), user.Username, user.ID).Result()
	if err != nil {
		return fmt.Errorf("CreateUser: %w", err)
	}
	if !claimed {
		return ErrConflict
	}

	payload, err := json.Marshal(toUserRecord(user))
	if err != nil {
		return fmt.Errorf("CreateUser: %w", err)
	}
	if err := r.client.HSet(ctx, r.usersKey(), user.ID, payload).Err(); err != nil {
		r.client.HDel(ctx, r.usernamesKey(), user.Username)
		return fmt.Errorf("CreateUser: %w", err)
	}
	return nil
}

func (r *RedisIdentityStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	id, err := r.client.HGet(ctx, r.usernamesKey(), username).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetUserByUsername: %w", err)
	}
	return r.GetUserByID(ctx, id)
}

func (r *RedisIdentityStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	raw, err := r.client.HGet(ctx, r.usersKey(), id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetUserByID: %w", err)
	}

	var rec userRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("GetUserByID: %w", err)
	}
	return rec.user(), nil
}

func (r *RedisIdentityStore) UpdateUserLastLogin(ctx context.Context, id string, at time.Time) error {
	user, err := r.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	user.LastLogin = &at
	user.UpdatedAt = at

	payload, err := json.Marshal(toUserRecord(user))
	if err != nil {
		return fmt.Errorf("UpdateUserLastLogin: %w", err)
	}
	if err := r.client.HSet(ctx, r.usersKey(), id, payload).Err(); err != nil {
		return fmt.Errorf("UpdateUserLastLogin: %w", err)
	}
	return nil
}

func (r *RedisIdentityStore) CreateSession(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}

	ttl := session.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("CreateSession: %w", err)
	}
	if err := r.client.Set(ctx, r.sessionKey(session.RefreshToken), payload, ttl).Err(); err != nil {
		return fmt.Errorf("CreateSession: %w", err)
	}
	return nil
}

func (r *RedisIdentityStore) GetSessionByToken(ctx context.Context, refreshToken string) (*models.Session, error) {
	raw, err := r.client.Get(ctx, r.sessionKey(refreshToken)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetSessionByToken: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("GetSessionByToken: %w", err)
	}
	if session.Expired(r.now()) {
		return nil, ErrNotFound
	}
	return &session, nil
}

func (r *RedisIdentityStore) DeleteSessionByToken(ctx context.Context, refreshToken string) error {
	if err := r.client.Del(ctx, r.sessionKey(refreshToken)).Err(); err != nil {
		return fmt.Errorf("DeleteSessionByToken: %w", err)
	}
	return nil
}

// DeleteExpiredSessions has nothing to do; Redis expires session keys itself
func (r *RedisIdentityStore) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	return 0, nil
}
