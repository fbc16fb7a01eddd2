package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"dgsync/internal/domain/entity"
	"dgsync/internal/domain/errors/domain"
	"dgsync/internal/port/outbound"
)

// EntityStore implements outbound.EntityStore on SQLite.
type EntityStore struct {
	*Store
}

// NewEntityStore creates an entity store on s.
func NewEntityStore(s *Store) *EntityStore {
	return &EntityStore{Store: s}
}

// FindByKey returns the row matching values on key.
func (s *EntityStore) FindByKey(ctx context.Context, kind *entity.Kind, key []string, values []any) (*entity.Row, error) {
	where, args, err := keyCondition(kind, key, values)
	if err != nil {
		return nil, domain.NewInternalError("find entity", err)
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s", strings.Join(kind.ColumnNames(), ", "), kind.Table, where)
	row, err := scanRow(kind, s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.NewInternalError("find entity", err)
	}
	return row, nil
}

// Insert inserts record in a single statement.
func (s *EntityStore) Insert(ctx context.Context, kind *entity.Kind, record entity.Record) (*entity.Row, error) {
	query, args, err := insertStatement(kind, []entity.Record{record}, nil)
	if err != nil {
		return nil, domain.NewInternalError("insert entity", err)
	}
	row, err := scanRow(kind, s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, s.classifyWriteError(ctx, "insert entity", kind, record, err)
	}
	return row, nil
}

// UpsertBatch inserts records with key as the conflict target. Keyed records
// go through multi-row statements sized to the driver limits; when one fails
// because of a row's contents each record of that statement is retried on its
// own so the others still land.
func (s *EntityStore) UpsertBatch(
	ctx context.Context,
	kind *entity.Kind,
	key []string,
	records []entity.Record,
) ([]outbound.BatchRowResult, error) {
	results := make([]outbound.BatchRowResult, len(records))

	var keyed []int
	for i, rec := range records {
		if _, err := entity.KeyValues(rec, key); len(key) > 0 && err == nil {
			keyed = append(keyed, i)
			continue
		}
		row, err := s.Insert(ctx, kind, rec)
		results[i] = outbound.BatchRowResult{Row: row, Created: err == nil, Err: keyless(kind, err)}
	}
	if len(keyed) == 0 {
		return results, nil
	}

	size := batchRows(kind)
	for start := 0; start < len(keyed); start += size {
		chunk := keyed[start:min(start+size, len(keyed))]
		if err := s.upsertChunk(ctx, kind, key, records, chunk, results); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// SQLite caps bind parameters per statement, and a key lookup over many rows
// nests one OR per row under the expression depth limit.
const (
	maxBindParams = 32766
	maxBatchRows  = 500
)

// batchRows is how many records of kind fit in one statement.
func batchRows(kind *entity.Kind) int {
	return max(1, min(maxBatchRows, maxBindParams/max(1, len(kind.Columns))))
}

// upsertChunk writes records[chunk...] in one statement, falling back to one
// statement per record when a row's contents break the batch.
func (s *EntityStore) upsertChunk(
	ctx context.Context,
	kind *entity.Kind,
	key []string,
	records []entity.Record,
	chunk []int,
	results []outbound.BatchRowResult,
) error {
	subset := make([]entity.Record, len(chunk))
	for j, i := range chunk {
		subset[j] = records[i]
	}
	err := s.upsertAll(ctx, kind, key, subset, func(j int, r outbound.BatchRowResult) {
		results[chunk[j]] = r
	})
	if err == nil {
		return nil
	}
	if !rowAttributable(err) {
		return domain.NewInternalError("upsert entities", err)
	}
	for _, i := range chunk {
		results[i] = s.upsertOne(ctx, kind, key, records[i])
	}
	return nil
}

// upsertAll inserts records that do not exist yet and reads back the rest.
func (s *EntityStore) upsertAll(
	ctx context.Context,
	kind *entity.Kind,
	key []string,
	records []entity.Record,
	set func(int, outbound.BatchRowResult),
) error {
	byKey := make(map[string]int, len(records))
	keyValues := make([][]any, len(records))
	for j, rec := range records {
		values, _ := entity.KeyValues(rec, key)
		keyValues[j] = values
		byKey[entity.KeyString(values)] = j
	}

	query, args, err := insertStatement(kind, records, key)
	if err != nil {
		return err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	settled := make(map[int]bool, len(records))
	err = collectRows(kind, key, rows, byKey, func(j int, row *entity.Row) {
		settled[j] = true
		set(j, outbound.BatchRowResult{Row: row, Created: true})
	})
	if err != nil {
		return err
	}

	var missing [][]any
	for j := range records {
		if !settled[j] {
			missing = append(missing, keyValues[j])
		}
	}
	if len(missing) > 0 {
		where, args, err := keyConditions(kind, key, missing)
		if err != nil {
			return err
		}
		query := fmt.Sprintf("SELECT %s FROM %s WHERE %s", strings.Join(kind.ColumnNames(), ", "), kind.Table, where)
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		err = collectRows(kind, key, rows, byKey, func(j int, row *entity.Row) {
			settled[j] = true
			set(j, outbound.BatchRowResult{Row: row})
		})
		if err != nil {
			return err
		}
	}

	for j := range records {
		if !settled[j] {
			set(j, outbound.BatchRowResult{Err: &domain.ConflictError{Kind: kind.Name, Key: entity.KeyMap(key, keyValues[j])}})
		}
	}
	return nil
}

// upsertOne resolves one record with its own statements.
func (s *EntityStore) upsertOne(ctx context.Context, kind *entity.Kind, key []string, record entity.Record) outbound.BatchRowResult {
	values, _ := entity.KeyValues(record, key)
	query, args, err := insertStatement(kind, []entity.Record{record}, key)
	if err != nil {
		return outbound.BatchRowResult{Err: domain.NewInternalError("upsert entity", err)}
	}
	row, err := scanRow(kind, s.db.QueryRowContext(ctx, query, args...))
	if err == nil {
		return outbound.BatchRowResult{Row: row, Created: true}
	}
	if !errors.Is(err, sql.ErrNoRows) {
		err = s.classifyWriteError(ctx, "upsert entity", kind, record, err)
		if errors.Is(err, outbound.ErrDuplicateKey) {
			err = &domain.ConflictError{Kind: kind.Name, Key: entity.KeyMap(key, values)}
		}
		return outbound.BatchRowResult{Err: err}
	}

	row, err = s.FindByKey(ctx, kind, key, values)
	if errors.Is(err, domain.ErrNotFound) {
		err = &domain.ConflictError{Kind: kind.Name, Key: entity.KeyMap(key, values)}
	}
	if err != nil {
		return outbound.BatchRowResult{Err: err}
	}
	return outbound.BatchRowResult{Row: row}
}

func keyless(kind *entity.Kind, err error) error {
	if errors.Is(err, outbound.ErrDuplicateKey) {
		return &domain.ConflictError{Kind: kind.Name}
	}
	return err
}

func collectRows(kind *entity.Kind, key []string, rows *sql.Rows, byKey map[string]int, fn func(int, *entity.Row)) error {
	defer rows.Close()
	for rows.Next() {
		row, err := scanRow(kind, rows)
		if err != nil {
			return err
		}
		values, err := entity.KeyValues(row.Fields(), key)
		if err != nil {
			return err
		}
		if j, ok := byKey[entity.KeyString(values)]; ok {
			fn(j, row)
		}
	}
	return rows.Err()
}

// insertStatement builds a multi-row INSERT ... RETURNING. A non-empty
// conflictKey adds ON CONFLICT (key) DO NOTHING.
func insertStatement(kind *entity.Kind, records []entity.Record, conflictKey []string) (string, []any, error) {
	cols := make([]string, len(kind.Columns))
	for i, c := range kind.Columns {
		cols[i] = c.Name
	}

	tuples := make([]string, len(records))
	args := make([]any, 0, len(records)*len(cols))
	placeholders := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
	for i, rec := range records {
		for _, c := range kind.Columns {
			v, err := encodeValue(c, rec[c.Name])
			if err != nil {
				return "", nil, err
			}
			args = append(args, v)
		}
		tuples[i] = placeholders
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES %s", kind.Table, strings.Join(cols, ", "), strings.Join(tuples, ", "))
	if len(conflictKey) > 0 {
		fmt.Fprintf(&b, " ON CONFLICT (%s) DO NOTHING", strings.Join(conflictKey, ", "))
	}
	fmt.Fprintf(&b, " RETURNING %s", strings.Join(kind.ColumnNames(), ", "))
	return b.String(), args, nil
}

func keyCondition(kind *entity.Kind, key []string, values []any) (string, []any, error) {
	if len(key) != len(values) || len(key) == 0 {
		return "", nil, fmt.Errorf("%d key columns with %d values", len(key), len(values))
	}
	parts := make([]string, len(key))
	args := make([]any, len(key))
	for i, name := range key {
		v, err := encodeValue(columnByName(kind, name), values[i])
		if err != nil {
			return "", nil, err
		}
		parts[i] = name + " = ?"
		args[i] = v
	}
	return strings.Join(parts, " AND "), args, nil
}

func keyConditions(kind *entity.Kind, key []string, values [][]any) (string, []any, error) {
	parts := make([]string, len(values))
	var args []any
	for i, v := range values {
		cond, condArgs, err := keyCondition(kind, key, v)
		if err != nil {
			return "", nil, err
		}
		parts[i] = "(" + cond + ")"
		args = append(args, condArgs...)
	}
	return strings.Join(parts, " OR "), args, nil
}
