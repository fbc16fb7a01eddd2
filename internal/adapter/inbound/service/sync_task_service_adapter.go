package service

import (
	"context"
	"fmt"
	"time"

	"dgsync/internal/application/common"
	"dgsync/internal/application/dto"
	"dgsync/internal/domain/errors/domain"
	"dgsync/internal/domain/lease"
	"dgsync/internal/port/inbound"
)

// LeaseCoordinator is the application service behind SyncTaskServiceAdapter.
type LeaseCoordinator interface {
	Propose(ctx context.Context, claim lease.Claim) (*lease.ProposeResult, error)
	End(ctx context.Context, release lease.Release) (*lease.EndResult, error)
	Get(ctx context.Context, target int64, function string) (*lease.Lease, error)
}

// SyncTaskServiceAdapter maps sync task DTOs onto the lease coordinator.
type SyncTaskServiceAdapter struct {
	coordinator LeaseCoordinator
}

// NewSyncTaskServiceAdapter creates a new SyncTaskServiceAdapter.
func NewSyncTaskServiceAdapter(coordinator LeaseCoordinator) inbound.SyncTaskService {
	return &SyncTaskServiceAdapter{coordinator: coordinator}
}

// ProposeTask asks for the lease of function on target.
func (a *SyncTaskServiceAdapter) ProposeTask(
	ctx context.Context,
	function string,
	target int64,
	request dto.ProposeTaskRequest,
) (*dto.ProposeTaskResponse, error) {
	verr := &domain.ValidationError{}
	timeout := parseDuration(verr, "timeout", request.Timeout)
	interval := parseDuration(verr, "interval", request.Interval)
	if verr.HasErrors() {
		return nil, common.WrapServiceError(common.OpProposeTask, verr)
	}

	result, err := a.coordinator.Propose(ctx, lease.Claim{
		Target:   target,
		Function: function,
		Worker:   request.Worker,
		Timeout:  timeout,
		Interval: interval,
	})
	if err != nil {
		return nil, common.WrapServiceError(common.OpProposeTask, err)
	}
	return &dto.ProposeTaskResponse{
		Acquired:   result.Acquired,
		Reclaimed:  result.Reclaimed,
		LastRunEnd: result.LastRunEnd,
		BusyUntil:  result.BusyUntil,
		NextDueAt:  result.NextDueAt,
		Task:       leaseToDTO(result.Lease),
	}, nil
}

// EndTask ends the run of worker.
func (a *SyncTaskServiceAdapter) EndTask(
	ctx context.Context,
	function string,
	target int64,
	worker string,
	request dto.EndTaskRequest,
) (*dto.EndTaskResponse, error) {
	status, err := lease.ParseEndStatus(request.Status)
	if err != nil {
		return nil, common.WrapServiceError(common.OpEndTask, domain.NewValidationError("status", err.Error()))
	}
	result, err := a.coordinator.End(ctx, lease.Release{
		Target:   target,
		Function: function,
		Worker:   worker,
		Status:   status,
	})
	if err != nil {
		return nil, common.WrapServiceError(common.OpEndTask, err)
	}
	return &dto.EndTaskResponse{Accepted: result.Accepted, Task: leaseToDTO(result.Lease)}, nil
}

// GetTask returns the stored sync task.
func (a *SyncTaskServiceAdapter) GetTask(ctx context.Context, function string, target int64) (*dto.SyncTaskResponse, error) {
	l, err := a.coordinator.Get(ctx, target, function)
	if err != nil {
		return nil, common.WrapServiceError(common.OpGetTask, err)
	}
	return leaseToDTO(l), nil
}

func parseDuration(verr *domain.ValidationError, field, value string) time.Duration {
	if value == "" {
		return 0
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		verr.Add(field, fmt.Sprintf("must be a duration such as \"20s\": %q", value))
		return 0
	}
	if d <= 0 {
		verr.Add(field, "must be positive")
	}
	return d
}

func leaseToDTO(l *lease.Lease) *dto.SyncTaskResponse {
	if l == nil {
		return nil
	}
	return &dto.SyncTaskResponse{
		SyncTarget:     l.Target,
		SyncFunction:   l.Function,
		Worker:         l.Worker,
		Status:         l.Status.String(),
		FailureCount:   l.FailureCount,
		LastTaskStart:  l.LastTaskStart,
		LastTaskEnd:    l.LastTaskEnd,
		TaskTimesOutAt: l.TaskTimesOutAt,
	}
}
