package outbound

import (
	"context"

	"dgsync/internal/domain/lease"
)

// LeaseStore persists sync task leases. Propose and End each run as one
// atomic conditional statement.
type LeaseStore interface {
	Propose(ctx context.Context, claim lease.Claim) (*lease.ProposeResult, error)
	End(ctx context.Context, release lease.Release) (*lease.EndResult, error)
	// Get returns the stored lease or domain.ErrLeaseNotFound.
	Get(ctx context.Context, target int64, function string) (*lease.Lease, error)
}
