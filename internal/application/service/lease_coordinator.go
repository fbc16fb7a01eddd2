package service

import (
	"context"
	"time"

	"dgsync/internal/application/common/slogger"
	"dgsync/internal/domain/errors/domain"
	"dgsync/internal/domain/lease"
	"dgsync/internal/port/outbound"
)

// LeaseCoordinatorConfig holds default lease timings.
type LeaseCoordinatorConfig struct {
	DefaultTimeout  time.Duration
	DefaultInterval time.Duration
}

// LeaseCoordinator grants and ends sync task leases. The store applies each
// transition as one conditional statement, so concurrent workers never both
// hold a (target, function) lease.
type LeaseCoordinator struct {
	store     outbound.LeaseStore
	clock     Clock
	config    LeaseCoordinatorConfig
	publisher outbound.EventPublisher
	metrics   SyncMetrics
}

// NewLeaseCoordinator creates a coordinator. Nil collaborators get no-op defaults.
func NewLeaseCoordinator(
	store outbound.LeaseStore,
	clock Clock,
	config LeaseCoordinatorConfig,
	publisher outbound.EventPublisher,
	metrics SyncMetrics,
) *LeaseCoordinator {
	if clock == nil {
		clock = SystemClock{}
	}
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = lease.DefaultTimeout
	}
	if config.DefaultInterval <= 0 {
		config.DefaultInterval = lease.DefaultInterval
	}
	if publisher == nil {
		publisher = NewNoopEventPublisher()
	}
	if metrics == nil {
		metrics = NewNoopSyncMetrics()
	}
	return &LeaseCoordinator{store: store, clock: clock, config: config, publisher: publisher, metrics: metrics}
}

// Propose asks for the lease on claim.Target. A refusal is reported through
// ProposeResult.Acquired, never as an error.
func (c *LeaseCoordinator) Propose(ctx context.Context, claim lease.Claim) (*lease.ProposeResult, error) {
	if claim.Timeout == 0 {
		claim.Timeout = c.config.DefaultTimeout
	}
	if claim.Interval == 0 {
		claim.Interval = c.config.DefaultInterval
	}
	if err := claim.Validate(); err != nil {
		return nil, domain.NewValidationError("", err.Error())
	}
	claim.Now = c.clock.Now()

	result, err := c.store.Propose(ctx, claim)
	if err != nil {
		slogger.ErrorWithError(ctx, err, "Sync task proposal failed", slogger.Fields2(
			"function", claim.Function, "target", claim.Target))
		return nil, err
	}

	fields := slogger.Fields{
		"function": claim.Function,
		"target":   claim.Target,
		"worker":   claim.Worker,
	}
	switch {
	case result.Reclaimed:
		c.metrics.RecordLeaseProposal(ctx, claim.Function, ProposalReclaimed)
		slogger.Warn(ctx, "Reclaimed expired sync task lease", fields)
	case result.Acquired:
		c.metrics.RecordLeaseProposal(ctx, claim.Function, ProposalAcquired)
		slogger.Debug(ctx, "Acquired sync task lease", fields)
	default:
		c.metrics.RecordLeaseProposal(ctx, claim.Function, ProposalRefused)
		slogger.Debug(ctx, "Sync task lease not available", fields)
	}
	if result.Acquired {
		publishEvent(ctx, c.publisher, c.clock, outbound.EventLeaseAcquired, map[string]any{
			"function":  claim.Function,
			"target":    claim.Target,
			"worker":    claim.Worker,
			"reclaimed": result.Reclaimed,
		})
	}
	return result, nil
}

// End releases a lease held by release.Worker. Only the recorded holder of an
// active lease can end it; anyone else gets Accepted=false.
func (c *LeaseCoordinator) End(ctx context.Context, release lease.Release) (*lease.EndResult, error) {
	if err := release.Validate(); err != nil {
		return nil, domain.NewValidationError("", err.Error())
	}
	release.Now = c.clock.Now()

	result, err := c.store.End(ctx, release)
	if err != nil {
		slogger.ErrorWithError(ctx, err, "Sync task end failed", slogger.Fields2(
			"function", release.Function, "target", release.Target))
		return nil, err
	}
	c.metrics.RecordLeaseEnd(ctx, release.Function, release.Status.String(), result.Accepted)

	fields := slogger.Fields{
		"function": release.Function,
		"target":   release.Target,
		"worker":   release.Worker,
		"status":   release.Status.String(),
	}
	if !result.Accepted {
		slogger.Warn(ctx, "Rejected sync task end from non-holder", fields)
		return result, nil
	}
	slogger.Debug(ctx, "Ended sync task", fields)
	publishEvent(ctx, c.publisher, c.clock, outbound.EventLeaseEnded, map[string]any{
		"function": release.Function,
		"target":   release.Target,
		"worker":   release.Worker,
		"status":   release.Status.String(),
	})
	return result, nil
}

// Get returns the stored lease for (target, function).
func (c *LeaseCoordinator) Get(ctx context.Context, target int64, function string) (*lease.Lease, error) {
	if function == "" || len(function) > lease.MaxFunctionLength {
		return nil, domain.NewValidationError("function", "must be 1 to 20 characters")
	}
	return c.store.Get(ctx, target, function)
}
