package service

import (
	"context"
	"errors"
	"time"

	"dgsync/internal/application/common/slogger"
	"dgsync/internal/domain/entity"
	"dgsync/internal/domain/errors/domain"
	"dgsync/internal/port/outbound"
)

// EntityResolver implements get-or-create by uniqueness key. Every store
// mutation it issues is a single statement; the store's unique constraints
// decide which concurrent writer creates a row.
type EntityResolver struct {
	catalog   *entity.Catalog
	store     outbound.EntityStore
	publisher outbound.EventPublisher
	metrics   SyncMetrics
	clock     Clock
}

// EntityResolverOption configures an EntityResolver.
type EntityResolverOption func(*EntityResolver)

// WithResolverEvents publishes entity.created events through publisher.
func WithResolverEvents(publisher outbound.EventPublisher) EntityResolverOption {
	return func(r *EntityResolver) { r.publisher = publisher }
}

// WithResolverMetrics records resolution outcomes.
func WithResolverMetrics(metrics SyncMetrics) EntityResolverOption {
	return func(r *EntityResolver) { r.metrics = metrics }
}

// NewEntityResolver creates a resolver over catalog and store.
func NewEntityResolver(catalog *entity.Catalog, store outbound.EntityStore, opts ...EntityResolverOption) *EntityResolver {
	r := &EntityResolver{
		catalog:   catalog,
		store:     store,
		publisher: NewNoopEventPublisher(),
		metrics:   NewNoopSyncMetrics(),
		clock:     SystemClock{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the existing row matching candidate on the uniqueness key,
// or inserts candidate and returns the new row.
func (r *EntityResolver) Resolve(
	ctx context.Context,
	kindName string,
	candidate entity.Record,
	uniqueOn []string,
) (*entity.Resolution, error) {
	start := time.Now()
	defer func() { r.metrics.RecordDuration(ctx, "resolve_entity", time.Since(start)) }()

	res, err := r.resolve(ctx, kindName, candidate, uniqueOn)
	if err != nil {
		r.metrics.RecordResolution(ctx, kindName, failureOutcome(err))
		r.logFailure(ctx, kindName, err)
		return nil, err
	}
	r.metrics.RecordResolution(ctx, kindName, string(res.Outcome()))
	if res.Created {
		r.publishCreated(ctx, res.Row)
	}
	return res, nil
}

func (r *EntityResolver) resolve(
	ctx context.Context,
	kindName string,
	candidate entity.Record,
	uniqueOn []string,
) (*entity.Resolution, error) {
	kind, err := r.catalog.Kind(kindName)
	if err != nil {
		return nil, err
	}
	record, err := kind.Normalize(candidate)
	if err != nil {
		return nil, err
	}
	key, err := requestedKey(kind, uniqueOn)
	if err != nil {
		return nil, err
	}
	values, err := keyValues(record, key, len(uniqueOn) > 0)
	if err != nil {
		return nil, err
	}

	if values != nil {
		row, err := r.store.FindByKey(ctx, kind, key, values)
		switch {
		case err == nil:
			return &entity.Resolution{Row: row}, nil
		case !errors.Is(err, domain.ErrNotFound):
			return nil, err
		}
	}

	row, err := r.store.Insert(ctx, kind, record)
	if err == nil {
		return &entity.Resolution{Row: row, Created: true}, nil
	}
	if !errors.Is(err, outbound.ErrDuplicateKey) {
		return nil, err
	}

	// Another writer inserted between our lookup and insert.
	if values != nil {
		row, findErr := r.store.FindByKey(ctx, kind, key, values)
		if findErr == nil {
			return &entity.Resolution{Row: row}, nil
		}
		if !errors.Is(findErr, domain.ErrNotFound) {
			return nil, findErr
		}
	}
	return nil, &domain.ConflictError{Kind: kind.Name, Key: entity.KeyMap(key, values)}
}

func (r *EntityResolver) publishCreated(ctx context.Context, row *entity.Row) {
	publishEvent(ctx, r.publisher, r.clock, outbound.EventEntityCreated, map[string]any{
		"kind": row.Kind,
		"id":   row.ID,
	})
}

func (r *EntityResolver) logFailure(ctx context.Context, kind string, err error) {
	fields := slogger.Fields{"kind": kind, "error": err.Error()}
	var internal *domain.InternalError
	if errors.As(err, &internal) {
		fields["detail"] = internal.Detail()
		slogger.Error(ctx, "Entity resolution failed", fields)
		return
	}
	slogger.Debug(ctx, "Entity resolution rejected", fields)
}

// requestedKey resolves uniqueOn to a declared uniqueness key.
func requestedKey(kind *entity.Kind, uniqueOn []string) ([]string, error) {
	key, err := kind.UniqueKey(uniqueOn)
	if err != nil {
		return nil, domain.NewValidationError("unique_on", err.Error())
	}
	return key, nil
}

// keyValues extracts the key values of record. A derived key with unset
// columns leaves the record keyless; an explicitly requested one is invalid.
func keyValues(record entity.Record, key []string, explicit bool) ([]any, error) {
	if len(key) == 0 {
		return nil, nil
	}
	values, err := entity.KeyValues(record, key)
	if err != nil {
		if explicit {
			return nil, domain.NewValidationError("unique_on", err.Error())
		}
		return nil, nil
	}
	return values, nil
}

func failureOutcome(err error) string {
	if errors.Is(domain.Classify(err), domain.ErrInvalid) {
		return string(entity.OutcomeInvalid)
	}
	return string(entity.OutcomeFailed)
}
