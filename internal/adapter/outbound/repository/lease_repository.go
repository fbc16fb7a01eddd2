package repository

import (
	"context"
	"errors"
	"time"

	"dgsync/internal/domain/errors/domain"
	"dgsync/internal/domain/lease"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const leaseColumns = "sync_target, sync_function, worker, status, failure_count, last_task_start, last_task_end, task_times_out_at"

// $1 target, $2 function, $3 worker, $4 now, $5 timeout instant, $6 now minus interval.
// The conflict branch updates only a free row whose interval elapsed or a
// held row whose timeout passed; otherwise no row is returned.
const proposeLeaseSQL = `INSERT INTO sync_info AS s (sync_target, sync_function, worker, status, failure_count, last_task_start, task_times_out_at)
VALUES ($1, $2, $3, 'active', 0, $4, $5)
ON CONFLICT (sync_target, sync_function) DO UPDATE SET
	worker = EXCLUDED.worker,
	status = 'active',
	last_task_start = EXCLUDED.last_task_start,
	task_times_out_at = EXCLUDED.task_times_out_at,
	failure_count = CASE WHEN s.status = 'active' THEN s.failure_count + 1 ELSE s.failure_count END
WHERE (s.status <> 'active' AND (s.last_task_end IS NULL OR s.last_task_end <= $6))
	OR (s.status = 'active' AND s.task_times_out_at <= $4)
RETURNING ` + leaseColumns

const endLeaseSQL = `UPDATE sync_info SET
	status = $1,
	last_task_end = $2,
	failure_count = CASE WHEN $3 THEN failure_count + 1 ELSE 0 END
WHERE sync_target = $4 AND sync_function = $5 AND worker = $6 AND status = 'active'
RETURNING ` + leaseColumns

const getLeaseSQL = `SELECT ` + leaseColumns + ` FROM sync_info WHERE sync_target = $1 AND sync_function = $2`

// PostgreSQLLeaseRepository implements outbound.LeaseStore on sync_info.
type PostgreSQLLeaseRepository struct {
	pool *pgxpool.Pool
}

// NewPostgreSQLLeaseRepository creates a new lease repository.
func NewPostgreSQLLeaseRepository(pool *pgxpool.Pool) *PostgreSQLLeaseRepository {
	return &PostgreSQLLeaseRepository{pool: pool}
}

// Propose grants the lease when it is free and due, or held but expired.
func (r *PostgreSQLLeaseRepository) Propose(ctx context.Context, claim lease.Claim) (*lease.ProposeResult, error) {
	// Read only to report a reclaim; proposeLeaseSQL decides the grant.
	prev, err := r.Get(ctx, claim.Target, claim.Function)
	if err != nil && !errors.Is(err, domain.ErrLeaseNotFound) {
		return nil, err
	}

	q := GetQueryInterface(ctx, r.pool)
	granted, err := scanLease(q.QueryRow(ctx, proposeLeaseSQL,
		claim.Target, claim.Function, claim.Worker,
		claim.Now, claim.TimesOutAt(), claim.Now.Add(-claim.Interval),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		current, err := r.Get(ctx, claim.Target, claim.Function)
		if err != nil {
			return nil, err
		}
		return lease.Refused(current, claim), nil
	}
	if err != nil {
		return nil, domain.NewInternalError("propose sync task", err)
	}
	return lease.Granted(granted, prev), nil
}

// End releases the lease held by release.Worker.
func (r *PostgreSQLLeaseRepository) End(ctx context.Context, release lease.Release) (*lease.EndResult, error) {
	ended, err := scanLease(GetQueryInterface(ctx, r.pool).QueryRow(ctx, endLeaseSQL,
		release.Status.String(), release.Now, release.Status.CountsAsFailure(),
		release.Target, release.Function, release.Worker,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return &lease.EndResult{Accepted: false}, nil
	}
	if err != nil {
		return nil, domain.NewInternalError("end sync task", err)
	}
	return &lease.EndResult{Accepted: true, Lease: ended}, nil
}

// Get reads the stored lease.
func (r *PostgreSQLLeaseRepository) Get(ctx context.Context, target int64, function string) (*lease.Lease, error) {
	l, err := scanLease(GetQueryInterface(ctx, r.pool).QueryRow(ctx, getLeaseSQL, target, function))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrLeaseNotFound
	}
	if err != nil {
		return nil, domain.NewInternalError("get sync task", err)
	}
	return l, nil
}

func scanLease(row pgx.Row) (*lease.Lease, error) {
	var (
		l            lease.Lease
		status       string
		failureCount int16
	)
	err := row.Scan(&l.Target, &l.Function, &l.Worker, &status, &failureCount,
		&l.LastTaskStart, &l.LastTaskEnd, &l.TaskTimesOutAt)
	if err != nil {
		return nil, err
	}
	l.FailureCount = int(failureCount)
	if l.Status, err = lease.ParseStatus(status); err != nil {
		return nil, err
	}
	for _, t := range []**time.Time{&l.LastTaskStart, &l.LastTaskEnd, &l.TaskTimesOutAt} {
		if *t != nil {
			utc := (*t).UTC()
			*t = &utc
		}
	}
	return &l, nil
}
