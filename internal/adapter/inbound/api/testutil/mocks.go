// Package testutil provides hand-written service mocks and request helpers
// for handler tests.
package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"dgsync/internal/application/dto"
	"dgsync/internal/port/inbound"
)

var (
	_ inbound.EntityService   = (*MockEntityService)(nil)
	_ inbound.SyncTaskService = (*MockSyncTaskService)(nil)
	_ inbound.LookupService   = (*MockLookupService)(nil)
	_ inbound.HealthService   = (*MockHealthService)(nil)
)

var errNotConfigured = errors.New("mock not configured")

// ResolveEntityCall records one ResolveEntity invocation.
type ResolveEntityCall struct {
	Kind    string
	Request dto.ResolveEntityRequest
}

// ResolveBatchCall records one ResolveEntityBatch invocation.
type ResolveBatchCall struct {
	Kind    string
	Request dto.ResolveBatchRequest
}

// MockEntityService implements inbound.EntityService for testing.
type MockEntityService struct {
	mu sync.Mutex

	ResolveEntityFunc      func(ctx context.Context, kind string, request dto.ResolveEntityRequest) (*dto.ResolveEntityResponse, error)
	ResolveEntityBatchFunc func(ctx context.Context, kind string, request dto.ResolveBatchRequest) (*dto.ResolveBatchResponse, error)

	ResolveEntityCalls []ResolveEntityCall
	ResolveBatchCalls  []ResolveBatchCall
}

// ResolveEntity records the call and delegates to ResolveEntityFunc.
func (m *MockEntityService) ResolveEntity(
	ctx context.Context,
	kind string,
	request dto.ResolveEntityRequest,
) (*dto.ResolveEntityResponse, error) {
	m.mu.Lock()
	m.ResolveEntityCalls = append(m.ResolveEntityCalls, ResolveEntityCall{Kind: kind, Request: request})
	m.mu.Unlock()
	if m.ResolveEntityFunc == nil {
		return nil, errNotConfigured
	}
	return m.ResolveEntityFunc(ctx, kind, request)
}

// ResolveEntityBatch records the call and delegates to ResolveEntityBatchFunc.
func (m *MockEntityService) ResolveEntityBatch(
	ctx context.Context,
	kind string,
	request dto.ResolveBatchRequest,
) (*dto.ResolveBatchResponse, error) {
	m.mu.Lock()
	m.ResolveBatchCalls = append(m.ResolveBatchCalls, ResolveBatchCall{Kind: kind, Request: request})
	m.mu.Unlock()
	if m.ResolveEntityBatchFunc == nil {
		return nil, errNotConfigured
	}
	return m.ResolveEntityBatchFunc(ctx, kind, request)
}

// TaskCall records one sync task invocation.
type TaskCall struct {
	Function string
	Target   int64
	Worker   string
	Propose  dto.ProposeTaskRequest
	End      dto.EndTaskRequest
}

// MockSyncTaskService implements inbound.SyncTaskService for testing.
type MockSyncTaskService struct {
	mu sync.Mutex

	ProposeTaskFunc func(ctx context.Context, function string, target int64, request dto.ProposeTaskRequest) (*dto.ProposeTaskResponse, error)
	EndTaskFunc     func(ctx context.Context, function string, target int64, worker string, request dto.EndTaskRequest) (*dto.EndTaskResponse, error)
	GetTaskFunc     func(ctx context.Context, function string, target int64) (*dto.SyncTaskResponse, error)

	Calls []TaskCall
}

func (m *MockSyncTaskService) record(call TaskCall) {
	m.mu.Lock()
	m.Calls = append(m.Calls, call)
	m.mu.Unlock()
}

// ProposeTask records the call and delegates to ProposeTaskFunc.
func (m *MockSyncTaskService) ProposeTask(
	ctx context.Context,
	function string,
	target int64,
	request dto.ProposeTaskRequest,
) (*dto.ProposeTaskResponse, error) {
	m.record(TaskCall{Function: function, Target: target, Worker: request.Worker, Propose: request})
	if m.ProposeTaskFunc == nil {
		return nil, errNotConfigured
	}
	return m.ProposeTaskFunc(ctx, function, target, request)
}

// EndTask records the call and delegates to EndTaskFunc.
func (m *MockSyncTaskService) EndTask(
	ctx context.Context,
	function string,
	target int64,
	worker string,
	request dto.EndTaskRequest,
) (*dto.EndTaskResponse, error) {
	m.record(TaskCall{Function: function, Target: target, Worker: worker, End: request})
	if m.EndTaskFunc == nil {
		return nil, errNotConfigured
	}
	return m.EndTaskFunc(ctx, function, target, worker, request)
}

// GetTask records the call and delegates to GetTaskFunc.
func (m *MockSyncTaskService) GetTask(ctx context.Context, function string, target int64) (*dto.SyncTaskResponse, error) {
	m.record(TaskCall{Function: function, Target: target})
	if m.GetTaskFunc == nil {
		return nil, errNotConfigured
	}
	return m.GetTaskFunc(ctx, function, target)
}

// MockLookupService implements inbound.LookupService for testing.
type MockLookupService struct {
	mu sync.Mutex

	FindSimilarContentFunc func(ctx context.Context, request dto.SimilarContentRequest) (*dto.SimilarContentResponse, error)
	ClearErr               error

	FindCalls  []dto.SimilarContentRequest
	ClearCalls int
}

// FindSimilarContent records the call and delegates to FindSimilarContentFunc.
func (m *MockLookupService) FindSimilarContent(
	ctx context.Context,
	request dto.SimilarContentRequest,
) (*dto.SimilarContentResponse, error) {
	m.mu.Lock()
	m.FindCalls = append(m.FindCalls, request)
	m.mu.Unlock()
	if m.FindSimilarContentFunc == nil {
		return nil, errNotConfigured
	}
	return m.FindSimilarContentFunc(ctx, request)
}

// ClearSimilarContentCache counts the call and returns ClearErr.
func (m *MockLookupService) ClearSimilarContentCache(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ClearCalls++
	return m.ClearErr
}

// MockHealthService implements inbound.HealthService for testing.
type MockHealthService struct {
	Response *dto.HealthResponse
	Err      error
}

// GetHealth returns the configured response.
func (m *MockHealthService) GetHealth(context.Context) (*dto.HealthResponse, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Response == nil {
		return dto.NewHealthResponse("test", time.Now()), nil
	}
	return m.Response, nil
}
