// Package gateway maps entity records onto document store collections.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "folio/internal/errors"
	"folio/internal/logger"
	"folio/internal/models"
	"folio/internal/store"
)

// Recorder receives the outcome of every store call
type Recorder interface {
	RecordStoreOperation(collection, operation string, duration time.Duration, err error)
}

// Service serves one entity type out of its collection
type Service[T models.Entity] struct {
	store    store.DocumentStore
	resource models.Resource
	recorder Recorder
}

// New creates a gateway for T. recorder may be nil.
func New[T models.Entity](documents store.DocumentStore, recorder Recorder) *Service[T] {
	var zero T
	return &Service[T]{
		store:    documents,
		resource: zero.Resource(),
		recorder: recorder,
	}
}

// Resource describes the entity type served
func (s *Service[T]) Resource() models.Resource {
	return s.resource
}

// List returns every record in creation order
func (s *Service[T]) List(ctx context.Context) ([]T, error) {
	var docs []store.Document
	err := s.observe("list", func() (err error) {
		docs, err = s.store.List(ctx, s.resource.Collection)
		return err
	})
	if err != nil {
		return nil, s.storeError(ctx, "list", "", err)
	}

	records := make([]T, 0, len(docs))
	for _, doc := range docs {
		record, err := s.decode(doc)
		if err != nil {
			return nil, s.storeError(ctx, "list", doc.ID, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// Create stores a record and returns it with its generated identifier
func (s *Service[T]) Create(ctx context.Context, record T) (T, error) {
	var zero T

	data, err := s.encode(record)
	if err != nil {
		return zero, apperrors.Internal(err)
	}

	var doc store.Document
	err = s.observe("create", func() (err error) {
		doc, err = s.store.Create(ctx, s.resource.Collection, data)
		return err
	})
	if err != nil {
		return zero, s.storeError(ctx, "create", "", err)
	}

	created, err := s.decode(doc)
	if err != nil {
		return zero, s.storeError(ctx, "create", doc.ID, err)
	}

	logger.WithContext(ctx).Debug("Record created", "collection", s.resource.Collection, "id", doc.ID)
	return created, nil
}

// Get returns one record
func (s *Service[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T

	var doc store.Document
	err := s.observe("get", func() (err error) {
		doc, err = s.store.Get(ctx, s.resource.Collection, id)
		return err
	})
	if err != nil {
		return zero, s.storeError(ctx, "get", id, err)
	}

	record, err := s.decode(doc)
	if err != nil {
		return zero, s.storeError(ctx, "get", id, err)
	}
	return record, nil
}

// Update replaces every field of an existing record
func (s *Service[T]) Update(ctx context.Context, id string, record T) (T, error) {
	var zero T

	data, err := s.encode(record)
	if err != nil {
		return zero, apperrors.Internal(err)
	}

	var doc store.Document
	err = s.observe("replace", func() (err error) {
		doc, err = s.store.Replace(ctx, s.resource.Collection, id, data)
		return err
	})
	if err != nil {
		return zero, s.storeError(ctx, "replace", id, err)
	}

	updated, err := s.decode(doc)
	if err != nil {
		return zero, s.storeError(ctx, "replace", id, err)
	}
	return updated, nil
}

// Delete removes a record
func (s *Service[T]) Delete(ctx context.Context, id string) error {
	err := s.observe("delete", func() error {
		return s.store.Delete(ctx, s.resource.Collection, id)
	})
	if err != nil {
		return s.storeError(ctx, "delete", id, err)
	}

	logger.WithContext(ctx).Debug("Record deleted", "collection", s.resource.Collection, "id", id)
	return nil
}

func (s *Service[T]) observe(operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	if s.recorder != nil {
		var recorded error
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			recorded = err
		}
		s.recorder.RecordStoreOperation(s.resource.Collection, operation, time.Since(start), recorded)
	}
	return err
}

func (s *Service[T]) storeError(ctx context.Context, operation, id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NotFound(s.resource.Name, id)
	}
	return apperrors.Internal(fmt.Errorf("%s %s %s: %w", operation, s.resource.Collection, id, err)).
		WithContext("collection", s.resource.Collection)
}

// encode turns a record into document data without its identifier
func (s *Service[T]) encode(record T) (map[string]interface{}, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", s.resource.Collection, err)
	}

	data := map[string]interface{}{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", s.resource.Collection, err)
	}
	delete(data, s.resource.IDKey)
	return data, nil
}

// decode builds a record from a document, exposing the id under the entity's key
func (s *Service[T]) decode(doc store.Document) (T, error) {
	var record T

	data := make(map[string]interface{}, len(doc.Data)+1)
	for k, v := range doc.Data {
		data[k] = v
	}
	data[s.resource.IDKey] = doc.ID

	raw, err := json.Marshal(data)
	if err != nil {
		return record, fmt.Errorf("failed to decode document %s: %w", doc.ID, err)
	}
	if err := json.Unmarshal(raw, &record); err != nil {
		return record, fmt.Errorf("failed to decode document %s: %w", doc.ID, err)
	}
	return record, nil
}
