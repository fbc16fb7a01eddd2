package repository

import (
	"context"
	"fmt"
	"strings"

	"dgsync/internal/application/common/slogger"
	"dgsync/internal/domain/entity"

	"github.com/jackc/pgx/v5/pgxpool"
)

const syncInfoDDL = `CREATE TABLE IF NOT EXISTS sync_info (
	id BIGSERIAL PRIMARY KEY,
	sync_target BIGINT NOT NULL,
	sync_function VARCHAR(20) NOT NULL,
	status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'complete', 'failed', 'timeout')),
	worker VARCHAR(100) NOT NULL,
	failure_count SMALLINT NOT NULL DEFAULT 0,
	last_task_start TIMESTAMPTZ,
	last_task_end TIMESTAMPTZ,
	task_times_out_at TIMESTAMPTZ,
	UNIQUE (sync_target, sync_function)
)`

// SchemaStatements returns the DDL for the pgvector extension, the shared id
// sequence, every catalog kind and sync_info, in dependency order.
func SchemaStatements(catalog *entity.Catalog) []string {
	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		"CREATE SEQUENCE IF NOT EXISTS entity_id_seq",
	}
	for _, kind := range catalog.Kinds() {
		stmts = append(stmts, kindDDL(kind))
	}
	return append(stmts, syncInfoDDL)
}

func kindDDL(kind *entity.Kind) string {
	var defs []string
	if kind.GeneratedID {
		defs = append(defs, fmt.Sprintf("%s BIGINT PRIMARY KEY DEFAULT nextval('entity_id_seq')", kind.IDColumn))
	}
	for _, col := range kind.Columns {
		def := col.Name + " " + sqlType(col)
		if col.Name == kind.IDColumn {
			def += " PRIMARY KEY"
		}
		if col.NotNull() {
			def += " NOT NULL"
		}
		if col.Type == entity.ColumnEnum {
			def += fmt.Sprintf(" CHECK (%s IN ('%s'))", col.Name, strings.Join(col.Values, "', '"))
		}
		if ref, ok := kind.ReferencedKind(col.Name); ok {
			def += fmt.Sprintf(" REFERENCES %s (%s)", ref.Table, ref.IDColumn)
		}
		defs = append(defs, def)
	}
	for _, key := range kind.UniqueKeys {
		defs = append(defs, fmt.Sprintf("UNIQUE (%s)", strings.Join(key, ", ")))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", kind.Table, strings.Join(defs, ",\n\t"))
}

func sqlType(col entity.Column) string {
	switch col.Type {
	case entity.ColumnInteger:
		return "BIGINT"
	case entity.ColumnBoolean:
		return "BOOLEAN"
	case entity.ColumnTimestamp:
		return "TIMESTAMPTZ"
	case entity.ColumnJSON:
		return "JSONB"
	case entity.ColumnVector:
		return fmt.Sprintf("vector(%d)", col.Dimensions)
	case entity.ColumnText:
		if col.MaxLength > 0 {
			return fmt.Sprintf("VARCHAR(%d)", col.MaxLength)
		}
		return "TEXT"
	default:
		return "TEXT"
	}
}

// Migrate applies the schema in one transaction.
func Migrate(ctx context.Context, pool *pgxpool.Pool, catalog *entity.Catalog) error {
	stmts := SchemaStatements(catalog)
	err := NewTransactionManager(pool).WithTransaction(ctx, func(ctx context.Context) error {
		q := GetQueryInterface(ctx, pool)
		for _, stmt := range stmts {
			if _, err := q.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("failed to apply schema: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	slogger.Info(ctx, "Applied database schema", slogger.Field("statements", len(stmts)))
	return nil
}
