// Package inbound defines the inbound ports (interfaces) for the application layer.
// These ports represent the entry points into the application's core business logic.
package inbound

import (
	"context"

	"dgsync/internal/application/dto"
)

// EntityService defines the inbound port for idempotent entity resolution.
type EntityService interface {
	ResolveEntity(ctx context.Context, kind string, request dto.ResolveEntityRequest) (*dto.ResolveEntityResponse, error)
	ResolveEntityBatch(ctx context.Context, kind string, request dto.ResolveBatchRequest) (*dto.ResolveBatchResponse, error)
}

// SyncTaskService defines the inbound port for sync task leases.
type SyncTaskService interface {
	ProposeTask(
		ctx context.Context,
		function string,
		target int64,
		request dto.ProposeTaskRequest,
	) (*dto.ProposeTaskResponse, error)
	EndTask(
		ctx context.Context,
		function string,
		target int64,
		worker string,
		request dto.EndTaskRequest,
	) (*dto.EndTaskResponse, error)
	GetTask(ctx context.Context, function string, target int64) (*dto.SyncTaskResponse, error)
}

// LookupService defines the inbound port for cached similarity lookups.
type LookupService interface {
	FindSimilarContent(ctx context.Context, request dto.SimilarContentRequest) (*dto.SimilarContentResponse, error)
	ClearSimilarContentCache(ctx context.Context) error
}

// HealthService defines the inbound port for health check operations.
type HealthService interface {
	GetHealth(ctx context.Context) (*dto.HealthResponse, error)
}
