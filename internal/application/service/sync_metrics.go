package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// Metric names for resolution, lease and lookup instrumentation.
const (
	EntityResolutionCounterName    = "dgsync_entity_resolutions_total"
	BatchItemCounterName           = "dgsync_batch_items_total"
	BatchStatusCounterName         = "dgsync_batches_total"
	LeaseProposalCounterName       = "dgsync_lease_proposals_total"
	LeaseEndCounterName            = "dgsync_lease_ends_total"
	LookupCounterName              = "dgsync_lookups_total"
	OperationDurationHistogramName = "dgsync_operation_duration_seconds"
)

// Attribute keys.
const (
	AttrKind      = "kind"
	AttrOutcome   = "outcome"
	AttrStatus    = "status"
	AttrFunction  = "function"
	AttrResult    = "result"
	AttrAccepted  = "accepted"
	AttrLookup    = "lookup"
	AttrOperation = "operation"
)

// Lease proposal results.
const (
	ProposalAcquired  = "acquired"
	ProposalReclaimed = "reclaimed"
	ProposalRefused   = "refused"
)

// Lookup results.
const (
	LookupHit      = "hit"
	LookupComputed = "computed"
	LookupShared   = "shared_tier"
	LookupError    = "error"
)

// SyncMetrics records resolution, lease and lookup activity.
type SyncMetrics interface {
	RecordResolution(ctx context.Context, kind, outcome string)
	RecordBatch(ctx context.Context, kind, status string, outcomes map[string]int)
	RecordLeaseProposal(ctx context.Context, function, result string)
	RecordLeaseEnd(ctx context.Context, function, status string, accepted bool)
	RecordLookup(ctx context.Context, lookup, result string)
	RecordDuration(ctx context.Context, operation string, duration time.Duration)
}

// SyncMetricsConfig holds metrics configuration.
type SyncMetricsConfig struct {
	ServiceName    string
	ServiceVersion string
}

type otelSyncMetrics struct {
	resolutions metric.Int64Counter
	batchItems  metric.Int64Counter
	batches     metric.Int64Counter
	proposals   metric.Int64Counter
	ends        metric.Int64Counter
	lookups     metric.Int64Counter
	durations   metric.Float64Histogram
}

// NewSyncMetrics creates SyncMetrics backed by a meter provider with a manual reader.
func NewSyncMetrics(config SyncMetricsConfig) (SyncMetrics, error) {
	if config.ServiceName == "" {
		return nil, errors.New("service name cannot be empty")
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", config.ServiceName),
			attribute.String("service.version", config.ServiceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewManualReader()),
	)
	return NewSyncMetricsWithProvider(provider)
}

// NewSyncMetricsWithProvider creates SyncMetrics on a caller-supplied provider.
func NewSyncMetricsWithProvider(provider metric.MeterProvider) (SyncMetrics, error) {
	meter := provider.Meter("dgsync")
	m := &otelSyncMetrics{}

	counters := []struct {
		target      *metric.Int64Counter
		name        string
		description string
	}{
		{&m.resolutions, EntityResolutionCounterName, "Entity resolutions by kind and outcome"},
		{&m.batchItems, BatchItemCounterName, "Batch items by kind and outcome"},
		{&m.batches, BatchStatusCounterName, "Batch resolutions by kind and overall status"},
		{&m.proposals, LeaseProposalCounterName, "Sync task lease proposals by result"},
		{&m.ends, LeaseEndCounterName, "Sync task end requests by status"},
		{&m.lookups, LookupCounterName, "Cached lookups by result"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.description))
		if err != nil {
			return nil, err
		}
		*c.target = counter
	}

	durations, err := meter.Float64Histogram(OperationDurationHistogramName,
		metric.WithDescription("Operation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	m.durations = durations

	return m, nil
}

// NewNoopSyncMetrics returns metrics that record nothing.
func NewNoopSyncMetrics() SyncMetrics {
	m, _ := NewSyncMetricsWithProvider(noop.NewMeterProvider())
	return m
}

func (m *otelSyncMetrics) RecordResolution(ctx context.Context, kind, outcome string) {
	m.resolutions.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrKind, kind),
		attribute.String(AttrOutcome, outcome),
	))
}

func (m *otelSyncMetrics) RecordBatch(ctx context.Context, kind, status string, outcomes map[string]int) {
	m.batches.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrKind, kind),
		attribute.String(AttrStatus, status),
	))
	for outcome, n := range outcomes {
		m.batchItems.Add(ctx, int64(n), metric.WithAttributes(
			attribute.String(AttrKind, kind),
			attribute.String(AttrOutcome, outcome),
		))
	}
}

func (m *otelSyncMetrics) RecordLeaseProposal(ctx context.Context, function, result string) {
	m.proposals.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrFunction, function),
		attribute.String(AttrResult, result),
	))
}

func (m *otelSyncMetrics) RecordLeaseEnd(ctx context.Context, function, status string, accepted bool) {
	m.ends.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrFunction, function),
		attribute.String(AttrStatus, status),
		attribute.Bool(AttrAccepted, accepted),
	))
}

func (m *otelSyncMetrics) RecordLookup(ctx context.Context, lookup, result string) {
	m.lookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrLookup, lookup),
		attribute.String(AttrResult, result),
	))
}

func (m *otelSyncMetrics) RecordDuration(ctx context.Context, operation string, duration time.Duration) {
	m.durations.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(AttrOperation, operation),
	))
}
