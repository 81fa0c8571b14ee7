package job

import (
	"time"

	"github.com/voltgrid/jobcore/id"
)

// Level classifies a job log entry.
type Level string

const (
	LevelInfo  Level = "info"
	LevelDebug Level = "debug"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// LogEntry is one record in a job's append-only event stream. Entries are
// only ever appended; there is no update or delete operation.
type LogEntry struct {
	ID        id.LogID  `json:"id"`
	JobID     id.JobID  `json:"job_id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	Data      []byte    `json:"data,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
