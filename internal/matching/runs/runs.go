// Package runs keeps the history of matching runs for the admin view.
package runs

import (
	"time"

	"github.com/google/uuid"
)

// Outcomes a run can finish with.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
)

// Record is one finished matching run. TriggeredBy is the admin actor that
// called the API, or "scheduler" for interval runs.
type Record struct {
	ID             uuid.UUID     `json:"id"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     time.Time     `json:"finished_at"`
	TriggeredBy    string        `json:"triggered_by"`
	Outcome        string        `json:"outcome"`
	PoolSize       int           `json:"pool_size"`
	GroupsCreated  int           `json:"groups_created"`
	UsersMatched   int           `json:"users_matched"`
	UsersUnmatched int           `json:"users_unmatched"`
	UsersSkipped   int           `json:"users_skipped"`
	BucketErrors   []BucketError `json:"bucket_errors"`
}

// BucketError attributes a bucket failure inside a run record.
type BucketError struct {
	Bucket string `json:"bucket"`
	Error  string `json:"error"`
}
