package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"folio/internal/store"
)

// documentRow maps the documents table; seq is assigned by Postgres
type documentRow struct {
	Seq        int64     `gorm:"column:seq;->"`
	Collection string    `gorm:"column:collection;primaryKey"`
	ID         string    `gorm:"column:id;primaryKey"`
	Data       string    `gorm:"column:data;type:jsonb"`
	CreateTime time.Time `gorm:"column:create_time"`
	UpdateTime time.Time `gorm:"column:update_time"`
}

func (documentRow) TableName() string {
	return "documents"
}

func (r documentRow) document() (store.Document, error) {
	data := map[string]interface{}{}
	if r.Data != "" {
		if err := json.Unmarshal([]byte(r.Data), &data); err != nil {
			return store.Document{}, fmt.Errorf("failed to decode document %s: %w", r.ID, err)
		}
	}
	return store.Document{
		ID:         r.ID,
		Data:       data,
		CreateTime: r.CreateTime,
		UpdateTime: r.UpdateTime,
	}, nil
}

// DocumentStore keeps every collection in one JSONB table through gorm
type DocumentStore struct {
	db  *DB
	orm *gorm.DB
	now func() time.Time
}

// NewDocumentStore opens gorm on top of the existing lib/pq pool
func NewDocumentStore(db *DB) (*DocumentStore, error) {
	orm, err := gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm: %w", err)
	}

	return &DocumentStore{db: db, orm: orm, now: time.Now}, nil
}

func (s *DocumentStore) List(ctx context.Context, collection string) ([]store.Document, error) {
	var rows []documentRow
	err := s.orm.WithContext(ctx).
		Where("collection = ?", collection).
		Order("seq").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("List %s: %w", collection, err)
	}

	docs := make([]store.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := row.document()
		if err != nil {
			return nil, fmt.Errorf("List %s: %w", collection, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *DocumentStore) Create(ctx context.Context, collection string, data map[string]interface{}) (store.Document, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return store.Document{}, fmt.Errorf("Create %s: %w", collection, err)
	}

	now := s.now().UTC()
	row := documentRow{
		Collection: collection,
		ID:         uuid.NewString(),
		Data:       string(payload),
		CreateTime: now,
		UpdateTime: now,
	}

	if err := s.orm.WithContext(ctx).Create(&row).Error; err != nil {
		return store.Document{}, fmt.Errorf("Create %s: %w", collection, err)
	}

	return row.document()
}

func (s *DocumentStore) Get(ctx context.Context, collection, id string) (store.Document, error) {
	var row documentRow
	err := s.orm.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.Document{}, store.ErrNotFound
	}
	if err != nil {
		return store.Document{}, fmt.Errorf("Get %s/%s: %w", collection, id, err)
	}

	return row.document()
}

func (s *DocumentStore) Replace(ctx context.Context, collection, id string, data map[string]interface{}) (store.Document, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return store.Document{}, fmt.Errorf("Replace %s/%s: %w", collection, id, err)
	}

	result := s.orm.WithContext(ctx).
		Model(&documentRow{}).
		Where("collection = ? AND id = ?", collection, id).
		Updates(map[string]interface{}{
			"data":        string(payload),
			"update_time": s.now().UTC(),
		})
	if result.Error != nil {
		return store.Document{}, fmt.Errorf("Replace %s/%s: %w", collection, id, result.Error)
	}
	if result.RowsAffected == 0 {
		return store.Document{}, store.ErrNotFound
	}

	return s.Get(ctx, collection, id)
}

func (s *DocumentStore) Delete(ctx context.Context, collection, id string) error {
	result := s.orm.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		Delete(&documentRow{})
	if result.Error != nil {
		return fmt.Errorf("Delete %s/%s: %w", collection, id, result.Error)
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *DocumentStore) Ping(ctx context.Context) error {
	return s.db.HealthCheck(ctx)
}

// Close closes the shared pool
func (s *DocumentStore) Close() error {
	return s.db.Close()
}

var _ store.DocumentStore = (*DocumentStore)(nil)
