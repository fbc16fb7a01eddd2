package outbound

import (
	"context"

	"dgsync/internal/domain/entity"
)

// MatchQuery selects content similar to an embedding.
type MatchQuery struct {
	SpaceID   int64
	Embedding []float64
	Threshold float64
	Limit     int
	// SourceLocalIDs restricts matching to content with these source ids
	// when non-nil.
	SourceLocalIDs []string
}

// ContentMatcher runs vector similarity search over content embeddings.
type ContentMatcher interface {
	// MatchContent returns matches with similarity >= Threshold, most similar first.
	MatchContent(ctx context.Context, query MatchQuery) ([]entity.Match, error)
}
