package service

import (
	"context"
	"sync/atomic"

	"dgsync/internal/domain/entity"
	"dgsync/internal/domain/lease"

	"github.com/stretchr/testify/mock"
)

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) Resolve(ctx context.Context, kind string, candidate entity.Record, uniqueOn []string) (*entity.Resolution, error) {
	args := m.Called(ctx, kind, candidate, uniqueOn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Resolution), args.Error(1)
}

func (m *mockResolver) ResolveBatch(ctx context.Context, kind string, candidates []entity.Record, uniqueOn []string) (*entity.BatchResult, error) {
	args := m.Called(ctx, kind, candidates, uniqueOn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.BatchResult), args.Error(1)
}

type mockCoordinator struct {
	mock.Mock
}

func (m *mockCoordinator) Propose(ctx context.Context, claim lease.Claim) (*lease.ProposeResult, error) {
	args := m.Called(ctx, claim)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lease.ProposeResult), args.Error(1)
}

func (m *mockCoordinator) End(ctx context.Context, release lease.Release) (*lease.EndResult, error) {
	args := m.Called(ctx, release)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lease.EndResult), args.Error(1)
}

func (m *mockCoordinator) Get(ctx context.Context, target int64, function string) (*lease.Lease, error) {
	args := m.Called(ctx, target, function)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lease.Lease), args.Error(1)
}

type mockFinder struct {
	mock.Mock
}

func (m *mockFinder) FindSimilar(ctx context.Context, query entity.SimilarityQuery) ([]entity.Match, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Match), args.Error(1)
}

func (m *mockFinder) ClearCache(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// countingChecker fails while err is set and counts pings.
type countingChecker struct {
	err   error
	calls atomic.Int32
}

func (c *countingChecker) Ping(context.Context) error {
	c.calls.Add(1)
	return c.err
}
