package repository

import (
	"context"
	"fmt"

	"dgsync/internal/domain/entity"
	"dgsync/internal/domain/errors/domain"
	"dgsync/internal/port/outbound"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgreSQLContentMatchRepository ranks content by pgvector cosine distance
// and lists content still missing an embedding.
type PostgreSQLContentMatchRepository struct {
	pool      *pgxpool.Pool
	content   *entity.Kind
	embedding *entity.Kind
}

// NewPostgreSQLContentMatchRepository creates a matcher over the catalog's
// Content and ContentEmbedding kinds.
func NewPostgreSQLContentMatchRepository(
	pool *pgxpool.Pool,
	catalog *entity.Catalog,
) (*PostgreSQLContentMatchRepository, error) {
	content, err := catalog.Kind("Content")
	if err != nil {
		return nil, err
	}
	embedding, err := catalog.Kind("ContentEmbedding")
	if err != nil {
		return nil, err
	}
	return &PostgreSQLContentMatchRepository{pool: pool, content: content, embedding: embedding}, nil
}

// MatchContent returns the space's non-obsolete content whose similarity to
// query.Embedding reaches query.Threshold, most similar first.
func (r *PostgreSQLContentMatchRepository) MatchContent(
	ctx context.Context,
	query outbound.MatchQuery,
) ([]entity.Match, error) {
	if query.SourceLocalIDs != nil && len(query.SourceLocalIDs) == 0 {
		return []entity.Match{}, nil
	}

	stmt := fmt.Sprintf(`SELECT c.id, COALESCE(c.source_local_id, ''), c.text, 1 - (e.vector <=> $1::vector) AS similarity
FROM %s e JOIN %s c ON c.id = e.target_id
WHERE c.space_id = $2 AND NOT e.obsolete AND 1 - (e.vector <=> $1::vector) >= $3`,
		r.embedding.Table, r.content.Table)
	args := []any{pgVector(query.Embedding).String(), query.SpaceID, query.Threshold}
	if query.SourceLocalIDs != nil {
		args = append(args, query.SourceLocalIDs)
		stmt += fmt.Sprintf(" AND c.source_local_id = ANY($%d)", len(args))
	}
	stmt += " ORDER BY e.vector <=> $1::vector"
	if query.Limit > 0 {
		args = append(args, query.Limit)
		stmt += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := GetQueryInterface(ctx, r.pool).Query(ctx, stmt, args...)
	if err != nil {
		return nil, domain.NewInternalError("match content", err)
	}
	defer rows.Close()

	matches := []entity.Match{}
	for rows.Next() {
		var m entity.Match
		if err := rows.Scan(&m.ContentID, &m.SourceLocalID, &m.Text, &m.Similarity); err != nil {
			return nil, domain.NewInternalError("match content", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewInternalError("match content", err)
	}
	return matches, nil
}

// ListContentWithoutEmbedding pages through the space's content lacking an
// embedding row, in id order.
func (r *PostgreSQLContentMatchRepository) ListContentWithoutEmbedding(
	ctx context.Context,
	spaceID int64,
	afterID int64,
	limit int,
) ([]outbound.PendingContent, error) {
	stmt := fmt.Sprintf(`SELECT c.id, c.text FROM %s c
WHERE c.space_id = $1 AND c.id > $2
	AND NOT EXISTS (SELECT 1 FROM %s e WHERE e.target_id = c.id)
ORDER BY c.id LIMIT $3`, r.content.Table, r.embedding.Table)

	rows, err := GetQueryInterface(ctx, r.pool).Query(ctx, stmt, spaceID, afterID, limit)
	if err != nil {
		return nil, domain.NewInternalError("list content without embedding", err)
	}
	defer rows.Close()

	var pending []outbound.PendingContent
	for rows.Next() {
		var p outbound.PendingContent
		if err := rows.Scan(&p.ID, &p.Text); err != nil {
			return nil, domain.NewInternalError("list content without embedding", err)
		}
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewInternalError("list content without embedding", err)
	}
	return pending, nil
}
