package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dgsync/internal/domain/entity"
	"dgsync/internal/domain/errors/domain"
	"dgsync/internal/port/outbound"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgreSQLEntityRepository implements outbound.EntityStore.
type PostgreSQLEntityRepository struct {
	pool *pgxpool.Pool
}

// NewPostgreSQLEntityRepository creates a new entity repository.
func NewPostgreSQLEntityRepository(pool *pgxpool.Pool) *PostgreSQLEntityRepository {
	return &PostgreSQLEntityRepository{pool: pool}
}

// FindByKey returns the row matching values on key.
func (r *PostgreSQLEntityRepository) FindByKey(
	ctx context.Context,
	kind *entity.Kind,
	key []string,
	values []any,
) (*entity.Row, error) {
	where, args, err := keyCondition(kind, key, values, 1)
	if err != nil {
		return nil, domain.NewInternalError("find entity", err)
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s", selectList(kind, ""), kind.Table, where)

	row, err := scanRow(kind, GetQueryInterface(ctx, r.pool).QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.NewInternalError("find entity", err)
	}
	return row, nil
}

// Insert inserts record in a single statement.
func (r *PostgreSQLEntityRepository) Insert(ctx context.Context, kind *entity.Kind, record entity.Record) (*entity.Row, error) {
	query, args, err := insertStatement(kind, []entity.Record{record}, nil)
	if err != nil {
		return nil, domain.NewInternalError("insert entity", err)
	}
	row, err := scanRow(kind, GetQueryInterface(ctx, r.pool).QueryRow(ctx, query, args...))
	if err != nil {
		return nil, classifyWriteError("insert entity", err)
	}
	return row, nil
}

// UpsertBatch writes keyed records with INSERT ... ON CONFLICT DO UPDATE
// statements of at most batchRows records each. RETURNING yields both
// inserted and existing rows, and xmax = 0 tells them apart. When a statement
// fails because of one row's contents each of its records is retried alone
// so the rest still land.
func (r *PostgreSQLEntityRepository) UpsertBatch(
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
		row, err := r.Insert(ctx, kind, rec)
		if errors.Is(err, outbound.ErrDuplicateKey) {
			err = &domain.ConflictError{Kind: kind.Name}
		}
		results[i] = outbound.BatchRowResult{Row: row, Created: err == nil, Err: err}
	}
	if len(keyed) == 0 {
		return results, nil
	}

	size := batchRows(kind)
	for start := 0; start < len(keyed); start += size {
		chunk := keyed[start:min(start+size, len(keyed))]
		if err := r.upsertChunk(ctx, kind, key, records, chunk, results); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// PostgreSQL numbers bind parameters with a uint16.
const (
	maxBindParams = 65535
	maxBatchRows  = 1000
)

func batchRows(kind *entity.Kind) int {
	return max(1, min(maxBatchRows, maxBindParams/max(1, len(kind.Columns))))
}

func (r *PostgreSQLEntityRepository) upsertChunk(
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
	err := r.upsertAll(ctx, kind, key, subset, func(j int, res outbound.BatchRowResult) {
		results[chunk[j]] = res
	})
	if err == nil {
		return nil
	}
	if !rowAttributable(err) {
		return domain.NewInternalError("upsert entities", err)
	}
	for _, i := range chunk {
		results[i] = r.upsertOne(ctx, kind, key, records[i])
	}
	return nil
}

func (r *PostgreSQLEntityRepository) upsertAll(
	ctx context.Context,
	kind *entity.Kind,
	key []string,
	records []entity.Record,
	set func(int, outbound.BatchRowResult),
) error {
	byKey := make(map[string]int, len(records))
	for j, rec := range records {
		values, _ := entity.KeyValues(rec, key)
		byKey[entity.KeyString(values)] = j
	}

	query, args, err := insertStatement(kind, records, key)
	if err != nil {
		return err
	}
	rows, err := GetQueryInterface(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	settled := make(map[int]bool, len(records))
	for rows.Next() {
		var inserted bool
		row, err := scanRow(kind, rows, &inserted)
		if err != nil {
			return err
		}
		values, err := entity.KeyValues(row.Fields(), key)
		if err != nil {
			return err
		}
		if j, ok := byKey[entity.KeyString(values)]; ok {
			settled[j] = true
			set(j, outbound.BatchRowResult{Row: row, Created: inserted})
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for j, rec := range records {
		if !settled[j] {
			values, _ := entity.KeyValues(rec, key)
			return fmt.Errorf("upsert returned no row for %v", entity.KeyMap(key, values))
		}
	}
	return nil
}

func (r *PostgreSQLEntityRepository) upsertOne(
	ctx context.Context,
	kind *entity.Kind,
	key []string,
	record entity.Record,
) outbound.BatchRowResult {
	query, args, err := insertStatement(kind, []entity.Record{record}, key)
	if err != nil {
		return outbound.BatchRowResult{Err: domain.NewInternalError("upsert entity", err)}
	}
	var inserted bool
	row, err := scanRow(kind, GetQueryInterface(ctx, r.pool).QueryRow(ctx, query, args...), &inserted)
	if err == nil {
		return outbound.BatchRowResult{Row: row, Created: inserted}
	}

	err = classifyWriteError("upsert entity", err)
	if errors.Is(err, outbound.ErrDuplicateKey) {
		// The conflict target absorbs duplicates on key, so this collided on
		// another uniqueness key.
		values, _ := entity.KeyValues(record, key)
		err = &domain.ConflictError{Kind: kind.Name, Key: entity.KeyMap(key, values)}
	}
	return outbound.BatchRowResult{Err: err}
}

// insertStatement builds a multi-row INSERT ... RETURNING. A non-empty
// conflictKey turns it into an upsert that also returns existing rows,
// followed by an inserted flag.
func insertStatement(kind *entity.Kind, records []entity.Record, conflictKey []string) (string, []any, error) {
	cols := make([]string, len(kind.Columns))
	for i, c := range kind.Columns {
		cols[i] = c.Name
	}

	tuples := make([]string, len(records))
	args := make([]any, 0, len(records)*len(cols))
	for i, rec := range records {
		params := make([]string, len(kind.Columns))
		for j, c := range kind.Columns {
			v, err := encodeValue(c, rec[c.Name])
			if err != nil {
				return "", nil, err
			}
			args = append(args, v)
			params[j] = placeholder(c, len(args))
		}
		tuples[i] = "(" + strings.Join(params, ", ") + ")"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES %s", kind.Table, strings.Join(cols, ", "), strings.Join(tuples, ", "))
	if len(conflictKey) == 0 {
		fmt.Fprintf(&b, " RETURNING %s", selectList(kind, ""))
		return b.String(), args, nil
	}

	// A no-op update on the key columns makes RETURNING include existing rows.
	sets := make([]string, len(conflictKey))
	for i, name := range conflictKey {
		sets[i] = fmt.Sprintf("%s = EXCLUDED.%s", name, name)
	}
	fmt.Fprintf(&b, " ON CONFLICT (%s) DO UPDATE SET %s RETURNING %s, (xmax = 0) AS inserted",
		strings.Join(conflictKey, ", "), strings.Join(sets, ", "), selectList(kind, ""))
	return b.String(), args, nil
}

func keyCondition(kind *entity.Kind, key []string, values []any, first int) (string, []any, error) {
	if len(key) != len(values) || len(key) == 0 {
		return "", nil, fmt.Errorf("%d key columns with %d values", len(key), len(values))
	}
	parts := make([]string, len(key))
	args := make([]any, len(key))
	for i, name := range key {
		col := columnByName(kind, name)
		v, err := encodeValue(col, values[i])
		if err != nil {
			return "", nil, err
		}
		parts[i] = name + " = " + placeholder(col, first+i)
		args[i] = v
	}
	return strings.Join(parts, " AND "), args, nil
}
