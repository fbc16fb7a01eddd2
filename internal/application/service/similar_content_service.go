package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"dgsync/internal/application/common/slogger"
	"dgsync/internal/domain/entity"
	"dgsync/internal/domain/errors/domain"
	"dgsync/internal/port/outbound"
)

// SimilarContentConfig holds lookup defaults.
type SimilarContentConfig struct {
	DefaultLimit     int
	MaxLimit         int
	DefaultThreshold float64
	EmbeddingModel   string
}

// SimilarContentService embeds a query text and matches it against stored
// content embeddings. Results are memoized per space and query parameters.
type SimilarContentService struct {
	embedder outbound.EmbeddingService
	matcher  outbound.ContentMatcher
	cache    *LookupCache[[]entity.Match]
	config   SimilarContentConfig
}

// NewSimilarContentService creates the service.
func NewSimilarContentService(
	embedder outbound.EmbeddingService,
	matcher outbound.ContentMatcher,
	cache *LookupCache[[]entity.Match],
	config SimilarContentConfig,
) *SimilarContentService {
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = 10
	}
	if config.MaxLimit <= 0 {
		config.MaxLimit = 100
	}
	return &SimilarContentService{embedder: embedder, matcher: matcher, cache: cache, config: config}
}

// FindSimilar returns content similar to query.Text, most similar first.
// A zero Limit or Threshold selects the configured default.
func (s *SimilarContentService) FindSimilar(ctx context.Context, query entity.SimilarityQuery) ([]entity.Match, error) {
	if err := s.normalize(&query); err != nil {
		return nil, err
	}
	if query.SourceLocalIDs != nil && len(query.SourceLocalIDs) == 0 {
		return []entity.Match{}, nil
	}

	return s.cache.GetOrCompute(ctx, similarityScope(query), query.Text, func(ctx context.Context) ([]entity.Match, error) {
		embedding, err := s.embedder.GenerateEmbedding(ctx, query.Text, outbound.EmbeddingOptions{Model: s.config.EmbeddingModel})
		if err != nil {
			return nil, domain.NewInternalError("generate query embedding", err)
		}
		matches, err := s.matcher.MatchContent(ctx, outbound.MatchQuery{
			SpaceID:        query.SpaceID,
			Embedding:      embedding.Vector,
			Threshold:      query.Threshold,
			Limit:          query.Limit,
			SourceLocalIDs: query.SourceLocalIDs,
		})
		if err != nil {
			return nil, err
		}
		slogger.Debug(ctx, "Computed similar content", slogger.Fields3(
			"space_id", query.SpaceID,
			"matches", len(matches),
			"threshold", query.Threshold,
		))
		return matches, nil
	})
}

// ClearCache drops every memoized lookup.
func (s *SimilarContentService) ClearCache(ctx context.Context) error {
	if err := s.cache.Clear(ctx); err != nil {
		return domain.NewInternalError("clear lookup cache", err)
	}
	return nil
}

func (s *SimilarContentService) normalize(query *entity.SimilarityQuery) error {
	verr := &domain.ValidationError{}
	if query.SpaceID <= 0 {
		verr.Add("space_id", "must be a positive integer")
	}
	if strings.TrimSpace(query.Text) == "" {
		verr.Add("text", "is required")
	}
	switch {
	case query.Limit < 0:
		verr.Add("limit", "must not be negative")
	case query.Limit == 0:
		query.Limit = s.config.DefaultLimit
	case query.Limit > s.config.MaxLimit:
		verr.Add("limit", fmt.Sprintf("must be at most %d", s.config.MaxLimit))
	}
	if query.Threshold < 0 || query.Threshold > 1 {
		verr.Add("threshold", "must be between 0 and 1")
	}
	if query.Threshold == 0 {
		query.Threshold = s.config.DefaultThreshold
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

// similarityScope identifies every query parameter other than the text.
func similarityScope(query entity.SimilarityQuery) string {
	scope := fmt.Sprintf("similar-content:%d:%d:%g", query.SpaceID, query.Limit, query.Threshold)
	if query.SourceLocalIDs != nil {
		ids := slices.Clone(query.SourceLocalIDs)
		slices.Sort(ids)
		scope += ":" + strings.Join(ids, ",")
	}
	return scope
}
