// Package lease models sync task leases: the right of one worker to run a
// named sync function against a target.
package lease

import (
	"fmt"
	"time"
)

// Default lease timings.
const (
	DefaultTimeout  = 20 * time.Second
	DefaultInterval = 45 * time.Second

	MaxFunctionLength = 20
	MaxWorkerLength   = 100
)

// Status is the stored status of a sync task.
type Status string

// Status values.
const (
	StatusActive   Status = "active"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
	StatusTimeout  Status = "timeout"
)

var validStatuses = map[Status]bool{
	StatusActive:   true,
	StatusComplete: true,
	StatusFailed:   true,
	StatusTimeout:  true,
}

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !validStatuses[st] {
		return "", fmt.Errorf("invalid task status: %s", s)
	}
	return st, nil
}

// ParseEndStatus validates a status a holder may end a task with.
func ParseEndStatus(s string) (Status, error) {
	st, err := ParseStatus(s)
	if err != nil {
		return "", err
	}
	if st == StatusActive {
		return "", fmt.Errorf("a task cannot be ended with status %s", st)
	}
	return st, nil
}

// String returns the status text.
func (s Status) String() string {
	return string(s)
}

// CountsAsFailure reports whether ending with s increments the failure count.
func (s Status) CountsAsFailure() bool {
	return s == StatusFailed || s == StatusTimeout
}

// Lease is the stored state of one (target, function) pair.
type Lease struct {
	Target         int64
	Function       string
	Worker         string
	Status         Status
	FailureCount   int
	LastTaskStart  *time.Time
	LastTaskEnd    *time.Time
	TaskTimesOutAt *time.Time
}

// Held reports whether the lease is held at now.
func (l *Lease) Held(now time.Time) bool {
	return l.Status == StatusActive && l.TaskTimesOutAt != nil && now.Before(*l.TaskTimesOutAt)
}

// Claim is a worker's proposal to run function against target.
type Claim struct {
	Target   int64
	Function string
	Worker   string
	Timeout  time.Duration
	Interval time.Duration
	Now      time.Time
}

// Validate checks the claim and fills default timings.
func (c *Claim) Validate() error {
	if err := validateIdentity(c.Function, c.Worker); err != nil {
		return err
	}
	if c.Timeout < 0 || c.Interval < 0 {
		return fmt.Errorf("timeout and interval must not be negative")
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	return nil
}

// TimesOutAt returns when a lease granted to this claim expires.
func (c Claim) TimesOutAt() time.Time {
	return c.Now.Add(c.Timeout)
}

// ProposeResult reports the outcome of a claim. A refused claim is not an error.
type ProposeResult struct {
	Acquired bool
	// LastRunEnd is when the previous completed run ended; nil on first run.
	LastRunEnd *time.Time
	// Reclaimed is set when the lease was taken over from an expired holder.
	Reclaimed bool
	// BusyUntil is the current holder's expiry when the lease is held.
	BusyUntil *time.Time
	// NextDueAt is when the lease becomes claimable again when it is not yet due.
	NextDueAt *time.Time
	Lease     *Lease
}

// Granted builds the result of a successful claim. prev is the row read
// before the claim, nil when none existed; a held prev means the claim
// reclaimed an expired lease.
func Granted(granted, prev *Lease) *ProposeResult {
	return &ProposeResult{
		Acquired:   true,
		LastRunEnd: granted.LastTaskEnd,
		Reclaimed:  prev != nil && prev.Status == StatusActive,
		Lease:      granted,
	}
}

// Refused builds the result of a refused claim from the current row.
func Refused(current *Lease, claim Claim) *ProposeResult {
	result := &ProposeResult{LastRunEnd: current.LastTaskEnd, Lease: current}
	switch {
	case current.Status == StatusActive:
		result.BusyUntil = current.TaskTimesOutAt
	case current.LastTaskEnd != nil:
		next := current.LastTaskEnd.Add(claim.Interval)
		result.NextDueAt = &next
	}
	return result
}

// Release is a holder's report that its run ended.
type Release struct {
	Target   int64
	Function string
	Worker   string
	Status   Status
	Now      time.Time
}

// Validate checks the release.
func (r Release) Validate() error {
	if err := validateIdentity(r.Function, r.Worker); err != nil {
		return err
	}
	if r.Status == "" || r.Status == StatusActive || !validStatuses[r.Status] {
		return fmt.Errorf("invalid end status: %q", r.Status)
	}
	return nil
}

// EndResult reports whether a release was accepted.
type EndResult struct {
	Accepted bool
	Lease    *Lease
}

func validateIdentity(function, worker string) error {
	if function == "" {
		return fmt.Errorf("function is required")
	}
	if len(function) > MaxFunctionLength {
		return fmt.Errorf("function must be at most %d characters", MaxFunctionLength)
	}
	if worker == "" {
		return fmt.Errorf("worker is required")
	}
	if len(worker) > MaxWorkerLength {
		return fmt.Errorf("worker must be at most %d characters", MaxWorkerLength)
	}
	return nil
}
