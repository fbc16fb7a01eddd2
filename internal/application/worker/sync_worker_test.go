package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dgsync/internal/application/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJob struct {
	mu      sync.Mutex
	calls   []int64
	fail    map[int64]error
	block   chan struct{}
	started chan int64
	active  atomic.Int32
	peak    atomic.Int32
}

func (j *fakeJob) Run(ctx context.Context, target int64) (*service.EmbeddingSyncReport, error) {
	n := j.active.Add(1)
	defer j.active.Add(-1)
	for {
		p := j.peak.Load()
		if n <= p || j.peak.CompareAndSwap(p, n) {
			break
		}
	}

	j.mu.Lock()
	j.calls = append(j.calls, target)
	j.mu.Unlock()

	if j.started != nil {
		j.started <- target
	}
	if j.block != nil {
		select {
		case <-j.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := j.fail[target]; err != nil {
		return nil, err
	}
	return &service.EmbeddingSyncReport{SpaceID: target, Acquired: target%2 == 1}, nil
}

func (j *fakeJob) Calls() []int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]int64(nil), j.calls...)
}

func TestNewSyncWorker_Validation(t *testing.T) {
	_, err := NewSyncWorker(nil, SyncWorkerConfig{Schedule: "@every 1m"})
	assert.Error(t, err)

	_, err = NewSyncWorker(&fakeJob{}, SyncWorkerConfig{Schedule: "not a schedule"})
	assert.ErrorContains(t, err, "invalid cron expression")

	w, err := NewSyncWorker(&fakeJob{}, SyncWorkerConfig{Schedule: "*/5 * * * *"})
	require.NoError(t, err)
	assert.Equal(t, 1, w.config.Concurrency)
}

func TestRunOnce_RunsEveryTargetAndKeepsOrder(t *testing.T) {
	job := &fakeJob{fail: map[int64]error{2: errors.New("boom")}}
	w, err := NewSyncWorker(job, SyncWorkerConfig{Schedule: "@every 1m", Targets: []int64{1, 2, 3, 4}, Concurrency: 2})
	require.NoError(t, err)

	summary := w.RunOnce(context.Background())

	require.Len(t, summary.Results, 4)
	for i, target := range []int64{1, 2, 3, 4} {
		assert.Equal(t, target, summary.Results[i].Target)
	}
	assert.EqualError(t, summary.Results[1].Err, "boom")
	assert.Equal(t, 2, summary.Acquired())
	assert.Equal(t, 1, summary.Failed())
	assert.ElementsMatch(t, []int64{1, 2, 3, 4}, job.Calls())
	assert.LessOrEqual(t, job.peak.Load(), int32(2))
}

func TestRunOnce_SkipsWhileRunning(t *testing.T) {
	job := &fakeJob{block: make(chan struct{}), started: make(chan int64, 1)}
	w, err := NewSyncWorker(job, SyncWorkerConfig{Schedule: "@every 1m", Targets: []int64{7}})
	require.NoError(t, err)

	done := make(chan RunSummary)
	go func() { done <- w.RunOnce(context.Background()) }()
	<-job.started

	assert.True(t, w.RunOnce(context.Background()).Skipped)

	close(job.block)
	first := <-done
	assert.False(t, first.Skipped)
	assert.Len(t, first.Results, 1)
}

func TestStartStop(t *testing.T) {
	job := &fakeJob{started: make(chan int64, 10)}
	w, err := NewSyncWorker(job, SyncWorkerConfig{Schedule: "@every 1s", Targets: []int64{5}})
	require.NoError(t, err)

	require.NoError(t, w.Start(context.Background()))
	assert.ErrorIs(t, w.Start(context.Background()), ErrAlreadyStarted)

	select {
	case target := <-job.started:
		assert.Equal(t, int64(5), target)
	case <-time.After(3 * time.Second):
		t.Fatal("scheduled run did not happen")
	}

	w.Stop()
	w.Stop()
	require.NoError(t, w.Start(context.Background()), "a stopped worker can be restarted")
	w.Stop()
}

func TestStop_CancelsRunInProgress(t *testing.T) {
	job := &fakeJob{block: make(chan struct{}), started: make(chan int64, 1)}
	w, err := NewSyncWorker(job, SyncWorkerConfig{Schedule: "@every 1s", Targets: []int64{9}})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	select {
	case <-job.started:
	case <-time.After(3 * time.Second):
		t.Fatal("scheduled run did not happen")
	}

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestStart_StopsWhenContextEnds(t *testing.T) {
	w, err := NewSyncWorker(&fakeJob{}, SyncWorkerConfig{Schedule: "@every 1h"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	cancel()

	assert.Eventually(t, func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		return w.cron == nil
	}, time.Second, 10*time.Millisecond)
}
