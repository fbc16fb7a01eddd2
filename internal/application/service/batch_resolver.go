package service

import (
	"context"
	"errors"
	"time"

	"dgsync/internal/application/common/slogger"
	"dgsync/internal/domain/entity"
	"dgsync/internal/domain/errors/domain"
)

// ResolveBatch resolves many candidates of one kind with independent
// per-item outcomes. The returned error is reserved for problems with the
// request as a whole: an unknown kind, an undeclared uniqueness key or an
// empty batch.
func (r *EntityResolver) ResolveBatch(
	ctx context.Context,
	kindName string,
	candidates []entity.Record,
	uniqueOn []string,
) (*entity.BatchResult, error) {
	start := time.Now()
	defer func() { r.metrics.RecordDuration(ctx, "resolve_batch", time.Since(start)) }()

	if len(candidates) == 0 {
		return nil, domain.NewValidationError("candidates", "request body must be a non-empty array")
	}
	kind, err := r.catalog.Kind(kindName)
	if err != nil {
		return nil, err
	}
	key, err := requestedKey(kind, uniqueOn)
	if err != nil {
		return nil, err
	}

	items := make([]entity.BatchItem, len(candidates))
	var (
		records   []entity.Record
		positions []int // original index of each submitted record
		byKey     = map[string]int{}
		dupOf     = map[int]int{} // original index -> submitted position
	)
	for i, candidate := range candidates {
		items[i].Index = i
		record, err := kind.Normalize(candidate)
		if err == nil {
			var values []any
			if values, err = keyValues(record, key, len(uniqueOn) > 0); err == nil && values != nil {
				ks := entity.KeyString(values)
				if pos, seen := byKey[ks]; seen {
					dupOf[i] = pos
					continue
				}
				byKey[ks] = len(records)
			}
		}
		if err != nil {
			items[i].Outcome = entity.OutcomeInvalid
			items[i].Err = err
			continue
		}
		records = append(records, record)
		positions = append(positions, i)
	}

	if len(records) > 0 {
		results, err := r.store.UpsertBatch(ctx, kind, key, records)
		for pos, idx := range positions {
			item := &items[idx]
			switch {
			case err != nil:
				item.Outcome, item.Err = entity.OutcomeFailed, err
			case pos >= len(results):
				item.Outcome = entity.OutcomeFailed
				item.Err = domain.NewInternalError("resolve batch", errMissingBatchResult)
			case results[pos].Err != nil:
				item.Outcome, item.Err = entity.OutcomeFailed, results[pos].Err
			default:
				item.Row = results[pos].Row
				item.Outcome = entity.OutcomeFound
				if results[pos].Created {
					item.Outcome = entity.OutcomeCreated
				}
			}
		}
	}

	for idx, pos := range dupOf {
		first := items[positions[pos]]
		items[idx].Row, items[idx].Err = first.Row, first.Err
		items[idx].Outcome = entity.OutcomeFound
		if !first.Outcome.Succeeded() {
			items[idx].Outcome = first.Outcome
		}
	}

	result := &entity.BatchResult{Items: items, Status: entity.Summarize(items)}
	r.recordBatch(ctx, kind.Name, result)
	return result, nil
}

func (r *EntityResolver) recordBatch(ctx context.Context, kind string, result *entity.BatchResult) {
	outcomes := make(map[string]int, 4)
	for _, item := range result.Items {
		outcomes[string(item.Outcome)]++
		if item.Outcome == entity.OutcomeCreated {
			r.publishCreated(ctx, item.Row)
		}
	}
	r.metrics.RecordBatch(ctx, kind, string(result.Status), outcomes)

	fields := slogger.Fields{
		"kind":     kind,
		"status":   string(result.Status),
		"items":    len(result.Items),
		"outcomes": outcomes,
	}
	if result.Status == entity.BatchFailed || result.Status == entity.BatchPartial {
		slogger.Warn(ctx, "Batch resolution had failures", fields)
		return
	}
	slogger.Debug(ctx, "Batch resolved", fields)
}

var errMissingBatchResult = errors.New("store returned fewer results than records")
