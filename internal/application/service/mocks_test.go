package service

import (
	"context"
	"sync"
	"time"

	"dgsync/internal/domain/entity"
	"dgsync/internal/domain/lease"
	"dgsync/internal/port/outbound"

	"github.com/stretchr/testify/mock"
)

// MockEntityStore mocks outbound.EntityStore.
type MockEntityStore struct {
	mock.Mock
}

func (m *MockEntityStore) FindByKey(ctx context.Context, kind *entity.Kind, key []string, values []any) (*entity.Row, error) {
	args := m.Called(ctx, kind, key, values)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Row), args.Error(1)
}

func (m *MockEntityStore) Insert(ctx context.Context, kind *entity.Kind, record entity.Record) (*entity.Row, error) {
	args := m.Called(ctx, kind, record)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Row), args.Error(1)
}

func (m *MockEntityStore) UpsertBatch(
	ctx context.Context,
	kind *entity.Kind,
	key []string,
	records []entity.Record,
) ([]outbound.BatchRowResult, error) {
	args := m.Called(ctx, kind, key, records)
	if fn, ok := args.Get(0).(func(context.Context, *entity.Kind, []string, []entity.Record) []outbound.BatchRowResult); ok {
		return fn(ctx, kind, key, records), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]outbound.BatchRowResult), args.Error(1)
}

// MockLeaseStore mocks outbound.LeaseStore.
type MockLeaseStore struct {
	mock.Mock
}

func (m *MockLeaseStore) Propose(ctx context.Context, claim lease.Claim) (*lease.ProposeResult, error) {
	args := m.Called(ctx, claim)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lease.ProposeResult), args.Error(1)
}

func (m *MockLeaseStore) End(ctx context.Context, release lease.Release) (*lease.EndResult, error) {
	args := m.Called(ctx, release)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lease.EndResult), args.Error(1)
}

func (m *MockLeaseStore) Get(ctx context.Context, target int64, function string) (*lease.Lease, error) {
	args := m.Called(ctx, target, function)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lease.Lease), args.Error(1)
}

// MockEmbeddingService mocks outbound.EmbeddingService.
type MockEmbeddingService struct {
	mock.Mock
}

func (m *MockEmbeddingService) GenerateEmbedding(
	ctx context.Context,
	text string,
	options outbound.EmbeddingOptions,
) (*outbound.EmbeddingResult, error) {
	args := m.Called(ctx, text, options)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbound.EmbeddingResult), args.Error(1)
}

func (m *MockEmbeddingService) GenerateBatchEmbeddings(
	ctx context.Context,
	texts []string,
	options outbound.EmbeddingOptions,
) ([]*outbound.EmbeddingResult, error) {
	args := m.Called(ctx, texts, options)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbound.EmbeddingResult), args.Error(1)
}

func (m *MockEmbeddingService) GetModelInfo(ctx context.Context) (*outbound.ModelInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbound.ModelInfo), args.Error(1)
}

// MockContentMatcher mocks outbound.ContentMatcher and outbound.EmbeddingBacklog.
type MockContentMatcher struct {
	mock.Mock
}

func (m *MockContentMatcher) MatchContent(ctx context.Context, query outbound.MatchQuery) ([]entity.Match, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Match), args.Error(1)
}

func (m *MockContentMatcher) ListContentWithoutEmbedding(
	ctx context.Context,
	spaceID int64,
	afterID int64,
	limit int,
) ([]outbound.PendingContent, error) {
	args := m.Called(ctx, spaceID, afterID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]outbound.PendingContent), args.Error(1)
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []outbound.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event outbound.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, len(p.events))
	for i, e := range p.events {
		types[i] = e.Type
	}
	return types
}

// fakeClock is a settable Clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memorySharedCache is an in-process outbound.SharedCache.
type memorySharedCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	sets    int
}

func newMemorySharedCache() *memorySharedCache {
	return &memorySharedCache{entries: make(map[string][]byte)}
}

func (c *memorySharedCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.entries[key]
	return data, ok, nil
}

func (c *memorySharedCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	c.sets++
	return nil
}

func (c *memorySharedCache) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]byte)
	return nil
}
