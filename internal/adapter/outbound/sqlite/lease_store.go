package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"dgsync/internal/domain/errors/domain"
	"dgsync/internal/domain/lease"
)

const leaseColumns = "sync_target, sync_function, worker, status, failure_count, last_task_start, last_task_end, task_times_out_at"

// The conflict branch only fires for a free row whose interval elapsed or a
// held row whose timeout passed; otherwise the statement returns no row.
const proposeSQL = `INSERT INTO sync_info (sync_target, sync_function, worker, status, failure_count, last_task_start, task_times_out_at)
VALUES (?, ?, ?, 'active', 0, ?, ?)
ON CONFLICT (sync_target, sync_function) DO UPDATE SET
	worker = excluded.worker,
	status = 'active',
	last_task_start = excluded.last_task_start,
	task_times_out_at = excluded.task_times_out_at,
	failure_count = CASE WHEN sync_info.status = 'active' THEN sync_info.failure_count + 1 ELSE sync_info.failure_count END
WHERE (sync_info.status <> 'active' AND (sync_info.last_task_end IS NULL OR sync_info.last_task_end <= ?))
	OR (sync_info.status = 'active' AND sync_info.task_times_out_at <= ?)
RETURNING ` + leaseColumns

const endSQL = `UPDATE sync_info SET
	status = ?,
	last_task_end = ?,
	failure_count = CASE WHEN ? THEN failure_count + 1 ELSE 0 END
WHERE sync_target = ? AND sync_function = ? AND worker = ? AND status = 'active'
RETURNING ` + leaseColumns

const getLeaseSQL = `SELECT ` + leaseColumns + ` FROM sync_info WHERE sync_target = ? AND sync_function = ?`

// LeaseStore implements outbound.LeaseStore on SQLite.
type LeaseStore struct {
	*Store
}

// NewLeaseStore creates a lease store on s.
func NewLeaseStore(s *Store) *LeaseStore {
	return &LeaseStore{Store: s}
}

// Propose grants the lease when it is free and due, or held but expired.
func (s *LeaseStore) Propose(ctx context.Context, claim lease.Claim) (*lease.ProposeResult, error) {
	// Read only to report a reclaim; the grant itself is decided by proposeSQL.
	prev, err := s.Get(ctx, claim.Target, claim.Function)
	if err != nil && !errors.Is(err, domain.ErrLeaseNotFound) {
		return nil, err
	}

	now := encodeTime(claim.Now)
	row := s.db.QueryRowContext(ctx, proposeSQL,
		claim.Target, claim.Function, claim.Worker, now, encodeTime(claim.TimesOutAt()),
		encodeTime(claim.Now.Add(-claim.Interval)), now,
	)
	granted, err := scanLease(row)
	if errors.Is(err, sql.ErrNoRows) {
		current, err := s.Get(ctx, claim.Target, claim.Function)
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
func (s *LeaseStore) End(ctx context.Context, release lease.Release) (*lease.EndResult, error) {
	row := s.db.QueryRowContext(ctx, endSQL,
		release.Status.String(), encodeTime(release.Now), release.Status.CountsAsFailure(),
		release.Target, release.Function, release.Worker,
	)
	ended, err := scanLease(row)
	if errors.Is(err, sql.ErrNoRows) {
		return &lease.EndResult{Accepted: false}, nil
	}
	if err != nil {
		return nil, domain.NewInternalError("end sync task", err)
	}
	return &lease.EndResult{Accepted: true, Lease: ended}, nil
}

// Get reads the stored lease.
func (s *LeaseStore) Get(ctx context.Context, target int64, function string) (*lease.Lease, error) {
	l, err := scanLease(s.db.QueryRowContext(ctx, getLeaseSQL, target, function))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrLeaseNotFound
	}
	if err != nil {
		return nil, domain.NewInternalError("get sync task", err)
	}
	return l, nil
}

func scanLease(row *sql.Row) (*lease.Lease, error) {
	var (
		l                 lease.Lease
		status            string
		start, end, times sql.NullString
	)
	if err := row.Scan(&l.Target, &l.Function, &l.Worker, &status, &l.FailureCount, &start, &end, &times); err != nil {
		return nil, err
	}
	var err error
	if l.Status, err = lease.ParseStatus(status); err != nil {
		return nil, err
	}
	if l.LastTaskStart, err = decodeTimePtr(start); err != nil {
		return nil, err
	}
	if l.LastTaskEnd, err = decodeTimePtr(end); err != nil {
		return nil, err
	}
	if l.TaskTimesOutAt, err = decodeTimePtr(times); err != nil {
		return nil, err
	}
	return &l, nil
}
