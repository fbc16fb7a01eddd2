package dto

import "time"

// ProposeTaskRequest asks for the lease of a sync function on a target.
// Durations use Go duration syntax, e.g. "20s".
type ProposeTaskRequest struct {
	Worker   string `json:"worker"`
	Timeout  string `json:"timeout,omitempty"`
	Interval string `json:"interval,omitempty"`
}

// ProposeTaskResponse reports whether the lease was granted.
type ProposeTaskResponse struct {
	Acquired   bool              `json:"acquired"`
	Reclaimed  bool              `json:"reclaimed,omitempty"`
	LastRunEnd *time.Time        `json:"last_run_end,omitempty"`
	BusyUntil  *time.Time        `json:"busy_until,omitempty"`
	NextDueAt  *time.Time        `json:"next_due_at,omitempty"`
	Task       *SyncTaskResponse `json:"task,omitempty"`
}

// EndTaskRequest reports the final status of a run.
type EndTaskRequest struct {
	Status string `json:"status"`
}

// EndTaskResponse reports whether the end was accepted.
type EndTaskResponse struct {
	Accepted bool              `json:"accepted"`
	Task     *SyncTaskResponse `json:"task,omitempty"`
}

// SyncTaskResponse is a sync_info row.
type SyncTaskResponse struct {
	SyncTarget     int64      `json:"sync_target"`
	SyncFunction   string     `json:"sync_function"`
	Worker         string     `json:"worker"`
	Status         string     `json:"status"`
	FailureCount   int        `json:"failure_count"`
	LastTaskStart  *time.Time `json:"last_task_start,omitempty"`
	LastTaskEnd    *time.Time `json:"last_task_end,omitempty"`
	TaskTimesOutAt *time.Time `json:"task_times_out_at,omitempty"`
}
