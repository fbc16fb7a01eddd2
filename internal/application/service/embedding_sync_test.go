package service

import (
	"context"
	"errors"
	"testing"

	"dgsync/internal/domain/entity"
	"dgsync/internal/domain/errors/domain"
	"dgsync/internal/domain/lease"
	"dgsync/internal/port/outbound"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type embeddingSyncFixture struct {
	leases   *MockLeaseStore
	backlog  *MockContentMatcher
	embedder *MockEmbeddingService
	store    *MockEntityStore
	job      *EmbeddingSync
}

func newEmbeddingSyncFixture(batchSize int) *embeddingSyncFixture {
	f := &embeddingSyncFixture{
		leases:   new(MockLeaseStore),
		backlog:  new(MockContentMatcher),
		embedder: new(MockEmbeddingService),
		store:    new(MockEntityStore),
	}
	coordinator := NewLeaseCoordinator(f.leases, newFakeClock(), LeaseCoordinatorConfig{}, nil, nil)
	resolver := NewEntityResolver(entity.DefaultCatalog(), f.store)
	f.job = NewEmbeddingSync(coordinator, f.backlog, f.embedder, resolver, EmbeddingSyncConfig{
		WorkerID:  "worker-1",
		BatchSize: batchSize,
	})
	return f
}

func vectors(n int) []*outbound.EmbeddingResult {
	out := make([]*outbound.EmbeddingResult, n)
	for i := range out {
		v := make([]float64, 1536)
		v[i] = 1
		out[i] = &outbound.EmbeddingResult{Vector: v}
	}
	return out
}

func embeddedRows(records []entity.Record) []outbound.BatchRowResult {
	out := make([]outbound.BatchRowResult, len(records))
	for i, r := range records {
		out[i] = outbound.BatchRowResult{
			Row:     &entity.Row{Kind: "ContentEmbedding", IDColumn: "target_id", ID: r["target_id"].(int64), Values: r},
			Created: true,
		}
	}
	return out
}

func (f *embeddingSyncFixture) grantLease() {
	f.leases.On("Propose", mock.Anything, mock.MatchedBy(func(c lease.Claim) bool {
		return c.Function == EmbeddingSyncFunction && c.Worker == "worker-1" && c.Target == 9
	})).Return(&lease.ProposeResult{Acquired: true}, nil)
}

func (f *embeddingSyncFixture) expectEnd(status lease.Status, accepted bool) {
	f.leases.On("End", mock.Anything, mock.MatchedBy(func(r lease.Release) bool {
		return r.Status == status && r.Worker == "worker-1"
	})).Return(&lease.EndResult{Accepted: accepted}, nil).Once()
}

func TestEmbeddingSync_PagesThroughBacklog(t *testing.T) {
	f := newEmbeddingSyncFixture(2)
	f.grantLease()
	f.backlog.On("ListContentWithoutEmbedding", mock.Anything, int64(9), int64(0), 2).
		Return([]outbound.PendingContent{{ID: 10, Text: "a"}, {ID: 11, Text: "b"}}, nil)
	f.backlog.On("ListContentWithoutEmbedding", mock.Anything, int64(9), int64(11), 2).
		Return([]outbound.PendingContent{{ID: 12, Text: "c"}}, nil)
	f.embedder.On("GenerateBatchEmbeddings", mock.Anything, []string{"a", "b"}, mock.Anything).Return(vectors(2), nil)
	f.embedder.On("GenerateBatchEmbeddings", mock.Anything, []string{"c"}, mock.Anything).Return(vectors(1), nil)
	f.store.On("UpsertBatch", mock.Anything, mock.Anything, []string{"target_id"}, mock.Anything).
		Return(func(_ context.Context, _ *entity.Kind, _ []string, records []entity.Record) []outbound.BatchRowResult {
			return embeddedRows(records)
		}, nil)
	f.expectEnd(lease.StatusComplete, true)

	report, err := f.job.Run(context.Background(), 9)
	require.NoError(t, err)
	assert.True(t, report.Acquired)
	assert.Equal(t, 3, report.Embedded)
	assert.Zero(t, report.Failed)
	assert.Equal(t, lease.StatusComplete, report.Status)
	f.leases.AssertExpectations(t)
	f.backlog.AssertExpectations(t)
}

func TestEmbeddingSync_RefusedLeaseDoesNothing(t *testing.T) {
	f := newEmbeddingSyncFixture(2)
	f.leases.On("Propose", mock.Anything, mock.Anything).Return(&lease.ProposeResult{}, nil)

	report, err := f.job.Run(context.Background(), 9)
	require.NoError(t, err)
	assert.False(t, report.Acquired)
	f.backlog.AssertNotCalled(t, "ListContentWithoutEmbedding", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.leases.AssertNotCalled(t, "End", mock.Anything, mock.Anything)
}

func TestEmbeddingSync_ItemFailuresEndFailed(t *testing.T) {
	f := newEmbeddingSyncFixture(5)
	f.grantLease()
	f.backlog.On("ListContentWithoutEmbedding", mock.Anything, int64(9), int64(0), 5).
		Return([]outbound.PendingContent{{ID: 10, Text: "a"}, {ID: 11, Text: "b"}}, nil)
	f.embedder.On("GenerateBatchEmbeddings", mock.Anything, mock.Anything, mock.Anything).Return(vectors(2), nil)
	f.store.On("UpsertBatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(func(_ context.Context, _ *entity.Kind, _ []string, records []entity.Record) []outbound.BatchRowResult {
			rows := embeddedRows(records)
			rows[1] = outbound.BatchRowResult{Err: &domain.ReferenceError{Field: "target_id", Value: "11"}}
			return rows
		}, nil)
	f.expectEnd(lease.StatusFailed, true)

	report, err := f.job.Run(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Embedded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, lease.StatusFailed, report.Status)
}

func TestEmbeddingSync_EmbedderErrorEndsFailed(t *testing.T) {
	f := newEmbeddingSyncFixture(5)
	f.grantLease()
	f.backlog.On("ListContentWithoutEmbedding", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]outbound.PendingContent{{ID: 10, Text: "a"}}, nil)
	f.embedder.On("GenerateBatchEmbeddings", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("quota exceeded"))
	f.expectEnd(lease.StatusFailed, true)

	report, err := f.job.Run(context.Background(), 9)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Equal(t, lease.StatusFailed, report.Status)
	f.leases.AssertExpectations(t)
}

func TestEmbeddingSync_ReclaimedLeaseIsReported(t *testing.T) {
	f := newEmbeddingSyncFixture(5)
	f.grantLease()
	f.backlog.On("ListContentWithoutEmbedding", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]outbound.PendingContent{}, nil)
	f.expectEnd(lease.StatusComplete, false)

	_, err := f.job.Run(context.Background(), 9)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reclaimed")
}

func TestEmbeddingSync_CancelledRunStillEndsLease(t *testing.T) {
	f := newEmbeddingSyncFixture(5)
	ctx, cancel := context.WithCancel(context.Background())
	f.leases.On("Propose", mock.Anything, mock.Anything).Run(func(mock.Arguments) { cancel() }).
		Return(&lease.ProposeResult{Acquired: true}, nil)
	f.expectEnd(lease.StatusFailed, true)

	report, err := f.job.Run(ctx, 9)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, lease.StatusFailed, report.Status)
	f.leases.AssertExpectations(t)
}
