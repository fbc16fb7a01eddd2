package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dgsync/internal/domain/entity"
	"dgsync/internal/domain/errors/domain"
	"dgsync/internal/port/outbound"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

func errorCode(err error) (int, bool) {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		return serr.Code(), true
	}
	return 0, false
}

func isUniqueViolation(err error) bool {
	code, ok := errorCode(err)
	return ok && (code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY)
}

func isForeignKeyViolation(err error) bool {
	code, ok := errorCode(err)
	return ok && code == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
}

func isRowConstraintViolation(err error) bool {
	code, ok := errorCode(err)
	return ok && (code == sqlite3.SQLITE_CONSTRAINT_NOTNULL || code == sqlite3.SQLITE_CONSTRAINT_CHECK)
}

// rowAttributable reports whether err is caused by one row's contents, so
// that retrying the rows one by one isolates it.
func rowAttributable(err error) bool {
	return isForeignKeyViolation(err) || isRowConstraintViolation(err) || isUniqueViolation(err)
}

// classifyWriteError maps a failed insert of record into a domain error.
// SQLite does not name the failing foreign key, so each reference is probed.
func (s *Store) classifyWriteError(ctx context.Context, op string, kind *entity.Kind, record entity.Record, err error) error {
	switch {
	case isUniqueViolation(err):
		return outbound.ErrDuplicateKey
	case isForeignKeyViolation(err):
		if ref := s.findMissingReference(ctx, kind, record); ref != nil {
			ref.Detail = err.Error()
			return ref
		}
		return &domain.ReferenceError{Detail: err.Error()}
	case isRowConstraintViolation(err):
		return domain.NewValidationError("", err.Error())
	default:
		return domain.NewInternalError(op, err)
	}
}

func (s *Store) findMissingReference(ctx context.Context, kind *entity.Kind, record entity.Record) *domain.ReferenceError {
	for _, col := range kind.References() {
		value, ok := record[col.Name]
		if !ok || value == nil {
			continue
		}
		ref, ok := kind.ReferencedKind(col.Name)
		if !ok {
			continue
		}
		var one int
		query := fmt.Sprintf("SELECT 1 FROM %s WHERE %s = ?", ref.Table, ref.IDColumn)
		err := s.db.QueryRowContext(ctx, query, value).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.ReferenceError{Field: col.Name, Value: fmt.Sprint(value), Table: ref.Table}
		}
	}
	return nil
}
