// Package snp defines core types shared across subsystems.
package snp

import (
	"context"
	"time"
)

// Record holds the reference data fetched from SNPedia for one RSID.
// JSON field names match the on-disk results schema.
type Record struct {
	Description           string     `json:"Description"`
	Variations            [][]string `json:"Variations"`
	StabilizedOrientation string     `json:"StabilizedOrientation"`
}

// IsZero reports whether the record carries no reference data. A 404 from
// SNPedia is recorded as a zero Record so the identifier is never refetched.
func (r Record) IsZero() bool {
	return r.Description == "" && len(r.Variations) == 0 && r.StabilizedOrientation == ""
}

// TaskState represents the lifecycle state of a crawl task.
type TaskState string

// Task state values. A task is owned by exactly one worker while InFlight.
const (
	TaskPending   TaskState = "pending"
	TaskInFlight  TaskState = "in_flight"
	TaskSucceeded TaskState = "succeeded"
	TaskFailed    TaskState = "failed"
	TaskExhausted TaskState = "exhausted"
)

// Task is one unit of remote work: a single RSID to fetch and its progress.
type Task struct {
	RSID      string
	State     TaskState
	Attempt   int
	LastClass FailureClass
	Record    Record
}

// Fetcher retrieves the SNPedia record for a single RSID. Implementations
// must honor ctx and return a *FetchError for classifiable failures.
type Fetcher interface {
	Fetch(ctx context.Context, rsid string) (Record, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using time.Now.
type SystemClock struct{}

// Now returns the current time in UTC.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
