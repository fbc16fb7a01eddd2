package sqlite

import (
	"fmt"
	"strings"

	"dgsync/internal/domain/entity"
)

const syncInfoDDL = `CREATE TABLE IF NOT EXISTS sync_info (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	sync_target INTEGER NOT NULL,
	sync_function TEXT NOT NULL CHECK (length(sync_function) <= 20),
	status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'complete', 'failed', 'timeout')),
	worker TEXT NOT NULL CHECK (length(worker) <= 100),
	failure_count INTEGER NOT NULL DEFAULT 0,
	last_task_start TEXT,
	last_task_end TEXT,
	task_times_out_at TEXT,
	UNIQUE (sync_target, sync_function)
)`

// SchemaStatements returns the DDL for every catalog kind plus sync_info.
// Timestamps are stored as fixed-width UTC text so they compare in order.
func SchemaStatements(catalog *entity.Catalog) []string {
	stmts := make([]string, 0, len(catalog.Kinds())+1)
	for _, kind := range catalog.Kinds() {
		stmts = append(stmts, kindDDL(kind))
	}
	return append(stmts, syncInfoDDL)
}

func kindDDL(kind *entity.Kind) string {
	var defs []string
	if kind.GeneratedID {
		defs = append(defs, fmt.Sprintf("%s INTEGER PRIMARY KEY AUTOINCREMENT", kind.IDColumn))
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
	case entity.ColumnInteger, entity.ColumnBoolean:
		return "INTEGER"
	default:
		return "TEXT"
	}
}
