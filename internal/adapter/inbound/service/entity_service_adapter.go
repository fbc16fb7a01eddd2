package service

import (
	"context"

	"dgsync/internal/application/common"
	"dgsync/internal/application/dto"
	"dgsync/internal/domain/entity"
	"dgsync/internal/port/inbound"
)

// EntityResolver is the application service behind EntityServiceAdapter.
type EntityResolver interface {
	Resolve(ctx context.Context, kind string, candidate entity.Record, uniqueOn []string) (*entity.Resolution, error)
	ResolveBatch(ctx context.Context, kind string, candidates []entity.Record, uniqueOn []string) (*entity.BatchResult, error)
}

// EntityServiceAdapter maps entity DTOs onto the resolver.
type EntityServiceAdapter struct {
	resolver EntityResolver
}

// NewEntityServiceAdapter creates a new EntityServiceAdapter.
func NewEntityServiceAdapter(resolver EntityResolver) inbound.EntityService {
	return &EntityServiceAdapter{resolver: resolver}
}

// ResolveEntity resolves a single candidate.
func (a *EntityServiceAdapter) ResolveEntity(
	ctx context.Context,
	kind string,
	request dto.ResolveEntityRequest,
) (*dto.ResolveEntityResponse, error) {
	res, err := a.resolver.Resolve(ctx, kind, entity.Record(request.Candidate), request.UniqueOn)
	if err != nil {
		return nil, common.WrapServiceError(common.OpResolveEntity, err)
	}
	return &dto.ResolveEntityResponse{Data: res.Row.Fields(), Created: res.Created}, nil
}

// ResolveEntityBatch resolves a batch of candidates.
func (a *EntityServiceAdapter) ResolveEntityBatch(
	ctx context.Context,
	kind string,
	request dto.ResolveBatchRequest,
) (*dto.ResolveBatchResponse, error) {
	candidates := make([]entity.Record, len(request.Candidates))
	for i, c := range request.Candidates {
		candidates[i] = entity.Record(c)
	}

	result, err := a.resolver.ResolveBatch(ctx, kind, candidates, request.UniqueOn)
	if err != nil {
		return nil, common.WrapServiceError(common.OpResolveBatch, err)
	}

	response := &dto.ResolveBatchResponse{
		Status: string(result.Status),
		Data:   make([]dto.BatchItemResponse, len(result.Items)),
	}
	for i, item := range result.Items {
		out := dto.BatchItemResponse{Index: item.Index, Outcome: string(item.Outcome)}
		if item.Row != nil {
			out.Data = item.Row.Fields()
		}
		if item.Err != nil {
			out.Error = item.Err.Error()
			response.PartialErrors = append(response.PartialErrors, dto.PartialError{
				Index: item.Index,
				Error: item.Err.Error(),
			})
		}
		response.Data[i] = out
	}
	if result.Status == entity.BatchFailed {
		response.ClientFault = result.ClientFault()
	}
	return response, nil
}
