package service

import (
	"context"

	"dgsync/internal/application/common"
	"dgsync/internal/application/dto"
	"dgsync/internal/domain/entity"
	"dgsync/internal/port/inbound"
)

// SimilarContentFinder is the application service behind LookupServiceAdapter.
type SimilarContentFinder interface {
	FindSimilar(ctx context.Context, query entity.SimilarityQuery) ([]entity.Match, error)
	ClearCache(ctx context.Context) error
}

// LookupServiceAdapter maps lookup DTOs onto the similar content service.
type LookupServiceAdapter struct {
	finder SimilarContentFinder
}

// NewLookupServiceAdapter creates a new LookupServiceAdapter.
func NewLookupServiceAdapter(finder SimilarContentFinder) inbound.LookupService {
	return &LookupServiceAdapter{finder: finder}
}

// FindSimilarContent runs a cached similarity lookup.
func (a *LookupServiceAdapter) FindSimilarContent(
	ctx context.Context,
	request dto.SimilarContentRequest,
) (*dto.SimilarContentResponse, error) {
	query := entity.SimilarityQuery{
		SpaceID:        request.SpaceID,
		Text:           request.Text,
		Limit:          request.Limit,
		SourceLocalIDs: request.SubsetSourceLocalIDs,
	}
	if request.Threshold != nil {
		query.Threshold = *request.Threshold
	}

	matches, err := a.finder.FindSimilar(ctx, query)
	if err != nil {
		return nil, common.WrapServiceError(common.OpFindSimilarContent, err)
	}
	response := &dto.SimilarContentResponse{Results: make([]dto.SimilarContentResult, len(matches))}
	for i, m := range matches {
		response.Results[i] = dto.SimilarContentResult{
			ContentID:     m.ContentID,
			SourceLocalID: m.SourceLocalID,
			Text:          m.Text,
			Similarity:    m.Similarity,
		}
	}
	return response, nil
}

// ClearSimilarContentCache drops memoized lookups.
func (a *LookupServiceAdapter) ClearSimilarContentCache(ctx context.Context) error {
	return common.WrapServiceError(common.OpClearLookupCache, a.finder.ClearCache(ctx))
}
