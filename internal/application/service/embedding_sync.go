package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dgsync/internal/application/common/slogger"
	"dgsync/internal/domain/entity"
	"dgsync/internal/domain/lease"
	"dgsync/internal/port/outbound"
)

// Embedding sync defaults.
const (
	EmbeddingSyncFunction  = "embedding"
	DefaultEmbeddingBatch  = 200
	embeddingKind          = "ContentEmbedding"
	defaultEmbeddingLease  = 5 * time.Minute
	defaultEmbeddingPeriod = 45 * time.Second
)

// EmbeddingSyncConfig configures the embedding sync job.
type EmbeddingSyncConfig struct {
	WorkerID  string
	BatchSize int
	// Timeout is the lease duration; a run taking longer can be reclaimed.
	Timeout  time.Duration
	Interval time.Duration
	Model    string
}

// EmbeddingSyncReport summarises one run against a space.
type EmbeddingSyncReport struct {
	SpaceID  int64
	Acquired bool
	Embedded int
	Failed   int
	Status   lease.Status
}

// EmbeddingSync fills in missing content embeddings for a space while
// holding the space's "embedding" sync task lease.
type EmbeddingSync struct {
	leases   *LeaseCoordinator
	backlog  outbound.EmbeddingBacklog
	embedder outbound.EmbeddingService
	resolver *EntityResolver
	config   EmbeddingSyncConfig
}

// NewEmbeddingSync creates the job.
func NewEmbeddingSync(
	leases *LeaseCoordinator,
	backlog outbound.EmbeddingBacklog,
	embedder outbound.EmbeddingService,
	resolver *EntityResolver,
	config EmbeddingSyncConfig,
) *EmbeddingSync {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultEmbeddingBatch
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultEmbeddingLease
	}
	if config.Interval <= 0 {
		config.Interval = defaultEmbeddingPeriod
	}
	return &EmbeddingSync{
		leases:   leases,
		backlog:  backlog,
		embedder: embedder,
		resolver: resolver,
		config:   config,
	}
}

// Run proposes the lease for spaceID and, when granted, embeds every content
// row of the space lacking an embedding. The lease is ended complete when
// every row was stored and failed otherwise.
func (s *EmbeddingSync) Run(ctx context.Context, spaceID int64) (*EmbeddingSyncReport, error) {
	report := &EmbeddingSyncReport{SpaceID: spaceID}

	proposal, err := s.leases.Propose(ctx, lease.Claim{
		Target:   spaceID,
		Function: EmbeddingSyncFunction,
		Worker:   s.config.WorkerID,
		Timeout:  s.config.Timeout,
		Interval: s.config.Interval,
	})
	if err != nil {
		return nil, fmt.Errorf("propose embedding sync for space %d: %w", spaceID, err)
	}
	if !proposal.Acquired {
		return report, nil
	}
	report.Acquired = true

	start := time.Now()
	runErr := s.embedBacklog(ctx, spaceID, report)

	report.Status = lease.StatusComplete
	if runErr != nil || report.Failed > 0 {
		report.Status = lease.StatusFailed
	}
	// The lease must be released even when ctx was cancelled mid-run.
	endCtx := context.WithoutCancel(ctx)
	end, endErr := s.leases.End(endCtx, lease.Release{
		Target:   spaceID,
		Function: EmbeddingSyncFunction,
		Worker:   s.config.WorkerID,
		Status:   report.Status,
	})
	if endErr == nil && !end.Accepted {
		endErr = errors.New("lease was reclaimed before the run ended")
	}

	slogger.Info(ctx, "Embedding sync finished", slogger.Fields{
		"space_id": spaceID,
		"embedded": report.Embedded,
		"failed":   report.Failed,
		"status":   report.Status.String(),
		"duration": time.Since(start).String(),
	})
	if err := errors.Join(runErr, endErr); err != nil {
		return report, fmt.Errorf("embedding sync for space %d: %w", spaceID, err)
	}
	return report, nil
}

func (s *EmbeddingSync) embedBacklog(ctx context.Context, spaceID int64, report *EmbeddingSyncReport) error {
	var afterID int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		pending, err := s.backlog.ListContentWithoutEmbedding(ctx, spaceID, afterID, s.config.BatchSize)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			return nil
		}
		if err := s.embedBatch(ctx, pending, report); err != nil {
			return err
		}
		afterID = pending[len(pending)-1].ID
		if len(pending) < s.config.BatchSize {
			return nil
		}
	}
}

func (s *EmbeddingSync) embedBatch(ctx context.Context, pending []outbound.PendingContent, report *EmbeddingSyncReport) error {
	texts := make([]string, len(pending))
	for i, p := range pending {
		texts[i] = p.Text
	}
	results, err := s.embedder.GenerateBatchEmbeddings(ctx, texts, outbound.EmbeddingOptions{Model: s.config.Model})
	if err != nil {
		return fmt.Errorf("generate embeddings: %w", err)
	}
	if len(results) != len(pending) {
		return fmt.Errorf("generate embeddings: got %d vectors for %d texts", len(results), len(pending))
	}

	candidates := make([]entity.Record, len(pending))
	for i, p := range pending {
		candidates[i] = entity.Record{
			"target_id": p.ID,
			"vector":    results[i].Vector,
		}
	}
	batch, err := s.resolver.ResolveBatch(ctx, embeddingKind, candidates, nil)
	if err != nil {
		return err
	}
	for _, item := range batch.Items {
		if item.Outcome.Succeeded() {
			report.Embedded++
			continue
		}
		report.Failed++
		slogger.Warn(ctx, "Content embedding not stored", slogger.Fields2(
			"content_id", pending[item.Index].ID, "error", item.Err.Error()))
	}
	return nil
}
