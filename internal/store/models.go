package store

import (
	"database/sql"
	"time"
)

// Run status values.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// Run is one dexgen invocation.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Status     string
	Entries    int64
	Error      string
}

// Fetch is one network attempt. Status 0 means the request never got a response.
type Fetch struct {
	ID          int64
	RunID       string
	URL         string
	Path        string
	Status      int64
	Bytes       int64
	OK          bool
	Error       string
	AttemptedAt time.Time
}
