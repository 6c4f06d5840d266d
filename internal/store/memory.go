package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"folio/internal/models"
)

type memoryCollection struct {
	docs  map[string]Document
	order []string
}

// MemoryStore keeps documents in process memory
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
	now         func() time.Time
}

// NewMemoryStore creates an empty in-memory document store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]*memoryCollection),
		now:         time.Now,
	}
}

func (m *MemoryStore) collection(name string) *memoryCollection {
	c, ok := m.collections[name]
	if !ok {
		c = &memoryCollection{docs: make(map[string]Document)}
		m.collections[name] = c
	}
	return c
}

func (m *MemoryStore) List(ctx context.Context, collection string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.collections[collection]
	if !ok {
		return []Document{}, nil
	}

	docs := make([]Document, 0, len(c.order))
	for _, id := range c.order {
		doc := c.docs[id]
		doc.Data = cloneData(doc.Data)
		docs = append(docs, doc)
	}
	return docs, nil
}

func (m *MemoryStore) Create(ctx context.Context, collection string, data map[string]interface{}) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	doc := Document{
		ID:         uuid.NewString(),
		Data:       cloneData(data),
		CreateTime: now,
		UpdateTime: now,
	}

	c := m.collection(collection)
	c.docs[doc.ID] = doc
	c.order = append(c.order, doc.ID)

	doc.Data = cloneData(doc.Data)
	return doc, nil
}

func (m *MemoryStore) Get(ctx context.Context, collection, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.collections[collection]
	if !ok {
		return Document{}, ErrNotFound
	}
	doc, ok := c.docs[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	doc.Data = cloneData(doc.Data)
	return doc, nil
}

func (m *MemoryStore) Replace(ctx context.Context, collection, id string, data map[string]interface{}) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.collections[collection]
	if !ok {
		return Document{}, ErrNotFound
	}
	doc, ok := c.docs[id]
	if !ok {
		return Document{}, ErrNotFound
	}

	doc.Data = cloneData(data)
	doc.UpdateTime = m.now()
	c.docs[id] = doc

	doc.Data = cloneData(doc.Data)
	return doc, nil
}

func (m *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.collections[collection]
	if !ok {
		return ErrNotFound
	}
	if _, ok := c.docs[id]; !ok {
		return ErrNotFound
	}

	delete(c.docs, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

// MemoryIdentityStore keeps users and sessions in process memory
type MemoryIdentityStore struct {
	mu         sync.RWMutex
	users      map[string]models.User
	byUsername map[string]string
	sessions   map[string]models.Session
	now        func() time.Time
}

// NewMemoryIdentityStore creates an empty identity store
func NewMemoryIdentityStore() *MemoryIdentityStore {
	return &MemoryIdentityStore{
		users:      make(map[string]models.User),
		byUsername: make(map[string]string),
		sessions:   make(map[string]models.Session),
		now:        time.Now,
	}
}

func (m *MemoryIdentityStore) CreateUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := user.Username
	if _, taken := m.byUsername[key]; taken {
		return ErrConflict
	}

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	m.users[user.ID] = *user
	m.byUsername[key] = user.ID
	return nil
}

func (m *MemoryIdentityStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byUsername[username]
	if !ok {
		return nil, ErrNotFound
	}
	user := m.users[id]
	return &user, nil
}

func (m *MemoryIdentityStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (m *MemoryIdentityStore) UpdateUserLastLogin(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	user.LastLogin = &at
	user.UpdatedAt = at
	m.users[id] = user
	return nil
}

func (m *MemoryIdentityStore) CreateSession(ctx context.Context, session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	m.sessions[session.RefreshToken] = *session
	return nil
}

func (m *MemoryIdentityStore) GetSessionByToken(ctx context.Context, refreshToken string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[refreshToken]
	if !ok || session.Expired(m.now()) {
		return nil, ErrNotFound
	}
	return &session, nil
}

func (m *MemoryIdentityStore) DeleteSessionByToken(ctx context.Context, refreshToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, refreshToken)
	return nil
}

func (m *MemoryIdentityStore) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var removed int64
	for token, session := range m.sessions {
		if session.Expired(now) {
			delete(m.sessions, token)
			removed++
		}
	}
	return removed, nil
}
