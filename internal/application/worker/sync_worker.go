// Package worker runs sync jobs on a cron schedule.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"dgsync/internal/application/common/slogger"
	"dgsync/internal/application/service"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

// ErrAlreadyStarted is returned by Start on a running worker.
var ErrAlreadyStarted = errors.New("sync worker already started")

// SyncJob runs one sync function against a target while holding its lease.
type SyncJob interface {
	Run(ctx context.Context, target int64) (*service.EmbeddingSyncReport, error)
}

// SyncWorkerConfig configures the worker.
type SyncWorkerConfig struct {
	// Schedule is a standard cron expression or descriptor such as "@every 1m".
	Schedule    string
	Targets     []int64
	Concurrency int
}

// TargetResult is the outcome of one target in a run.
type TargetResult struct {
	Target int64
	Report *service.EmbeddingSyncReport
	Err    error
}

// RunSummary collects a run's per-target results in target order.
type RunSummary struct {
	StartedAt time.Time
	Duration  time.Duration
	Results   []TargetResult
	// Skipped is set when the run was dropped because the previous one was
	// still in progress.
	Skipped bool
}

// Acquired counts targets whose lease this worker held.
func (s RunSummary) Acquired() int {
	n := 0
	for _, r := range s.Results {
		if r.Report != nil && r.Report.Acquired {
			n++
		}
	}
	return n
}

// Failed counts targets that returned an error.
func (s RunSummary) Failed() int {
	n := 0
	for _, r := range s.Results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

// SyncWorker proposes every configured target on each scheduled tick. Targets
// are run in parallel; the lease decides which worker actually syncs each one.
type SyncWorker struct {
	job      SyncJob
	config   SyncWorkerConfig
	schedule cron.Schedule

	running sync.Mutex

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
}

// NewSyncWorker validates the schedule and creates a stopped worker.
func NewSyncWorker(job SyncJob, config SyncWorkerConfig) (*SyncWorker, error) {
	if job == nil {
		return nil, errors.New("sync job is required")
	}
	schedule, err := cron.ParseStandard(config.Schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	return &SyncWorker{job: job, config: config, schedule: schedule}, nil
}

// Start schedules runs until Stop is called or ctx ends.
func (w *SyncWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cron != nil {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	c := cron.New()
	c.Schedule(w.schedule, cron.FuncJob(func() {
		summary := w.RunOnce(runCtx)
		if summary.Skipped {
			slogger.Warn(runCtx, "Previous sync run still in progress, skipping tick", nil)
		}
	}))
	c.Start()

	w.cron = c
	w.cancel = cancel
	slogger.Info(ctx, "Sync worker started", slogger.Fields{
		"schedule": w.config.Schedule,
		"targets":  len(w.config.Targets),
	})

	go func() {
		<-runCtx.Done()
		w.Stop()
	}()
	return nil
}

// Stop cancels any run in progress and waits for it to return.
func (w *SyncWorker) Stop() {
	w.mu.Lock()
	c, cancel := w.cron, w.cancel
	w.cron, w.cancel = nil, nil
	w.mu.Unlock()
	if c == nil {
		return
	}

	cancel()
	<-c.Stop().Done()
	slogger.InfoNoCtx("Sync worker stopped", nil)
}

// RunOnce runs the job against every target once. A run started while
// another is in progress is skipped.
func (w *SyncWorker) RunOnce(ctx context.Context) RunSummary {
	summary := RunSummary{StartedAt: time.Now()}
	if !w.running.TryLock() {
		summary.Skipped = true
		return summary
	}
	defer w.running.Unlock()

	summary.Results = make([]TargetResult, len(w.config.Targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.config.Concurrency)
	for i, target := range w.config.Targets {
		g.Go(func() error {
			report, err := w.job.Run(gctx, target)
			summary.Results[i] = TargetResult{Target: target, Report: report, Err: err}
			if err != nil {
				slogger.Error(gctx, "Sync job failed", slogger.Fields2("target", target, "error", err.Error()))
			}
			// One failing target must not cancel the others.
			return nil
		})
	}
	_ = g.Wait()

	summary.Duration = time.Since(summary.StartedAt)
	slogger.Info(ctx, "Sync run finished", slogger.Fields{
		"targets":  len(w.config.Targets),
		"acquired": summary.Acquired(),
		"failed":   summary.Failed(),
		"duration": summary.Duration.String(),
	})
	return summary
}
