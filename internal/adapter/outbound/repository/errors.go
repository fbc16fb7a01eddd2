package repository

import (
	"errors"
	"regexp"

	"dgsync/internal/domain/errors/domain"
	"dgsync/internal/port/outbound"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes the stores distinguish.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeNotNullViolation    = "23502"
	codeCheckViolation      = "23514"
)

// fkDetail matches the DETAIL of a foreign key violation:
// Key (author_id)=(42) is not present in table "platform_account".
var fkDetail = regexp.MustCompile(`Key \((.+?)\)=\((.*?)\) is not present in table "(.+?)"`)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsConnectionError reports connection exceptions (class 08) and operator
// intervention (class 57).
func IsConnectionError(err error) bool {
	code := pgCode(err)
	return len(code) == 5 && (code[:2] == "08" || code[:2] == "57")
}

// rowAttributable reports whether err was caused by one row's contents, so
// retrying the rows one by one isolates it.
func rowAttributable(err error) bool {
	switch pgCode(err) {
	case codeUniqueViolation, codeForeignKeyViolation, codeNotNullViolation, codeCheckViolation:
		return true
	default:
		return false
	}
}

// classifyWriteError maps a failed insert into a domain error. A unique
// violation becomes outbound.ErrDuplicateKey for the caller to resolve.
func classifyWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return domain.NewInternalError(op, err)
	}

	switch pgErr.Code {
	case codeUniqueViolation:
		return outbound.ErrDuplicateKey
	case codeForeignKeyViolation:
		ref := &domain.ReferenceError{Detail: pgErr.Detail}
		if m := fkDetail.FindStringSubmatch(pgErr.Detail); m != nil {
			ref.Field, ref.Value, ref.Table = m[1], m[2], m[3]
		}
		return ref
	case codeNotNullViolation:
		return domain.NewValidationError(pgErr.ColumnName, "must not be null")
	case codeCheckViolation:
		return domain.NewValidationError(pgErr.ColumnName, "violates constraint "+pgErr.ConstraintName)
	default:
		return domain.NewInternalError(op, err)
	}
}
