// Package outbound defines the ports the application uses to reach stores,
// providers and brokers.
package outbound

import (
	"context"
	"errors"

	"dgsync/internal/domain/entity"
)

// ErrDuplicateKey is returned by EntityStore.Insert when the candidate
// collides with an existing row on a uniqueness key.
var ErrDuplicateKey = errors.New("duplicate key")

// BatchRowResult is the store outcome for one record of a batch upsert.
type BatchRowResult struct {
	Row     *entity.Row
	Created bool
	Err     error
}

// EntityStore persists entity rows.
//
// Errors other than ErrDuplicateKey and domain.ErrNotFound are returned as
// domain typed errors: *domain.ReferenceError for foreign-key violations and
// *domain.InternalError for everything else.
type EntityStore interface {
	// FindByKey returns the row whose key columns equal values, or domain.ErrNotFound.
	FindByKey(ctx context.Context, kind *entity.Kind, key []string, values []any) (*entity.Row, error)

	// Insert inserts one validated record in a single statement.
	Insert(ctx context.Context, kind *entity.Kind, record entity.Record) (*entity.Row, error)

	// UpsertBatch inserts records using key as the conflict target and returns
	// one result per record in input order. Records must have distinct key
	// values. A record that cannot be stored gets a per-record Err; the
	// returned error is reserved for failures affecting the whole batch.
	UpsertBatch(ctx context.Context, kind *entity.Kind, key []string, records []entity.Record) ([]BatchRowResult, error)
}

// PendingContent is a content row still lacking an embedding.
type PendingContent struct {
	ID   int64
	Text string
}

// EmbeddingBacklog lists content that needs embeddings.
type EmbeddingBacklog interface {
	// ListContentWithoutEmbedding returns up to limit content rows of a space
	// with id greater than afterID that have no embedding row, ordered by id.
	ListContentWithoutEmbedding(ctx context.Context, spaceID int64, afterID int64, limit int) ([]PendingContent, error)
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}
