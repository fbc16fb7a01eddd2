package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"dgsync/internal/domain/entity"
	"dgsync/internal/domain/errors/domain"
	"dgsync/internal/port/outbound"
)

// ContentMatcher implements outbound.ContentMatcher and
// outbound.EmbeddingBacklog on SQLite. Similarity is computed in process
// since SQLite has no vector type.
type ContentMatcher struct {
	*Store
	content   *entity.Kind
	embedding *entity.Kind
}

// NewContentMatcher creates a matcher over the catalog's Content and
// ContentEmbedding kinds.
func NewContentMatcher(s *Store) (*ContentMatcher, error) {
	content, err := s.catalog.Kind("Content")
	if err != nil {
		return nil, err
	}
	embedding, err := s.catalog.Kind("ContentEmbedding")
	if err != nil {
		return nil, err
	}
	return &ContentMatcher{Store: s, content: content, embedding: embedding}, nil
}

// MatchContent ranks the space's non-obsolete embeddings by cosine similarity.
func (m *ContentMatcher) MatchContent(ctx context.Context, query outbound.MatchQuery) ([]entity.Match, error) {
	if query.SourceLocalIDs != nil && len(query.SourceLocalIDs) == 0 {
		return []entity.Match{}, nil
	}

	stmt := fmt.Sprintf(`SELECT c.id, c.source_local_id, c.text, e.vector
FROM %s e JOIN %s c ON c.id = e.target_id
WHERE c.space_id = ? AND e.obsolete = 0`, m.embedding.Table, m.content.Table)
	args := []any{query.SpaceID}
	if len(query.SourceLocalIDs) > 0 {
		stmt += " AND c.source_local_id IN (" + strings.TrimSuffix(strings.Repeat("?, ", len(query.SourceLocalIDs)), ", ") + ")"
		for _, id := range query.SourceLocalIDs {
			args = append(args, id)
		}
	}

	rows, err := m.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, domain.NewInternalError("match content", err)
	}
	defer rows.Close()

	matches := []entity.Match{}
	for rows.Next() {
		var (
			match      entity.Match
			sourceID   sql.NullString
			vectorJSON string
			vector     []float64
		)
		if err := rows.Scan(&match.ContentID, &sourceID, &match.Text, &vectorJSON); err != nil {
			return nil, domain.NewInternalError("match content", err)
		}
		if err := json.Unmarshal([]byte(vectorJSON), &vector); err != nil {
			return nil, domain.NewInternalError("match content", err)
		}
		match.SourceLocalID = sourceID.String
		match.Similarity = cosineSimilarity(query.Embedding, vector)
		if match.Similarity >= query.Threshold {
			matches = append(matches, match)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewInternalError("match content", err)
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Similarity > matches[j].Similarity })
	if query.Limit > 0 && len(matches) > query.Limit {
		matches = matches[:query.Limit]
	}
	return matches, nil
}

// ListContentWithoutEmbedding pages through content lacking an embedding row.
func (m *ContentMatcher) ListContentWithoutEmbedding(
	ctx context.Context,
	spaceID int64,
	afterID int64,
	limit int,
) ([]outbound.PendingContent, error) {
	stmt := fmt.Sprintf(`SELECT c.id, c.text FROM %s c
LEFT JOIN %s e ON e.target_id = c.id
WHERE c.space_id = ? AND c.id > ? AND e.target_id IS NULL
ORDER BY c.id LIMIT ?`, m.content.Table, m.embedding.Table)

	rows, err := m.db.QueryContext(ctx, stmt, spaceID, afterID, limit)
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

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
