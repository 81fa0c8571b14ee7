// Package status builds the caller-facing view of a job, decoupling
// storage fields from the public contract. Internal exception text,
// stack traces, and storage errors never pass through the projection.
package status

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/voltgrid/jobcore/job"
)

// Snapshot is the stable public view of a job.
type Snapshot struct {
	ID            string     `json:"id"`
	Type          string     `json:"type"`
	Status        job.Status `json:"status"`
	DisplayStatus string     `json:"display_status"`
	DisplayName   string     `json:"display_name"`
	CorrelationID string     `json:"correlation_id"`
	Attempts      int        `json:"attempts"`
	MaxAttempts   int        `json:"max_attempts"`

	// Progress is read opportunistically from the payload while the job
	// is processing; the actual work happens out of process.
	Progress        *int   `json:"progress,omitempty"`
	ProgressMessage string `json:"progress_message,omitempty"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	FailedAt    *time.Time `json:"failed_at,omitempty"`

	Error             string `json:"error,omitempty"`
	UserFriendlyError string `json:"user_friendly_error,omitempty"`

	// IsRetryable is true exactly when the job is terminally failed.
	// A failed job is always eligible for the manual retry path, even
	// though it is no longer eligible for automatic in-place retry.
	IsRetryable bool `json:"is_retryable"`
}

// progressPayload is the side channel workers may embed in the payload.
type progressPayload struct {
	Progress        *int   `json:"progress"`
	ProgressMessage string `json:"progressMessage"`
}

// Project builds the public snapshot of a job.
func Project(j *job.Job) Snapshot {
	s := Snapshot{
		ID:            j.ID.String(),
		Type:          j.Type,
		Status:        j.Status,
		DisplayStatus: displayStatus(j),
		DisplayName:   displayName(j.Type),
		CorrelationID: j.CorrelationID,
		Attempts:      j.Attempts,
		MaxAttempts:   j.MaxAttempts,
		StartedAt:     j.StartedAt,
		CompletedAt:   j.CompletedAt,
		FailedAt:      j.FailedAt,
		Error:         j.Error,
		IsRetryable:   j.Status == job.StatusFailed,
	}

	if j.Error != "" {
		s.UserFriendlyError = friendlyError(j.Error)
	}

	if j.Status == job.StatusProcessing && len(j.Payload) > 0 {
		var p progressPayload
		// Best effort: a payload that is not JSON, or carries no
		// progress keys, simply yields no progress.
		if err := json.Unmarshal(j.Payload, &p); err == nil {
			s.Progress = p.Progress
			s.ProgressMessage = p.ProgressMessage
		}
	}

	return s
}

// displayStatus derives the human label from status and attempts.
func displayStatus(j *job.Job) string {
	switch j.Status {
	case job.StatusQueued:
		if j.Attempts > 0 {
			return fmt.Sprintf("Retrying (%d/%d)", j.Attempts, j.MaxAttempts)
		}
		return "Queued"
	case job.StatusProcessing:
		return "Processing"
	case job.StatusCompleted:
		return "Completed"
	case job.StatusFailed:
		return "Failed"
	case job.StatusCancelled:
		return "Cancelled"
	default:
		return string(j.Status)
	}
}

// displayName derives a human label from a job type, e.g.
// "document_ingestion" becomes "Document Ingestion".
func displayName(jobType string) string {
	words := strings.FieldsFunc(jobType, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// internalMarkers flag error text that leaked from infrastructure and
// must never reach end users verbatim.
var internalMarkers = []string{
	"sqlstate",
	"pq:",
	"pgx",
	"panic:",
	"goroutine",
	"runtime error",
	"dial tcp",
}

// friendlyError renders a sanitized, non-internal version of a stored
// job error.
func friendlyError(raw string) string {
	lower := strings.ToLower(raw)

	for _, marker := range internalMarkers {
		if strings.Contains(lower, marker) {
			return "An internal error occurred while processing this job."
		}
	}

	switch {
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "timed out"):
		return "The operation timed out. Please try again."
	case strings.Contains(lower, "connection"), strings.Contains(lower, "unreachable"),
		strings.Contains(lower, "refused"):
		return "A connection problem interrupted this job. Please try again."
	case strings.Contains(lower, "not found"):
		return "A resource this job depends on could not be found."
	case strings.Contains(lower, "unauthorized"), strings.Contains(lower, "forbidden"),
		strings.Contains(lower, "permission"):
		return "This job was not permitted to access a required resource."
	}

	// Keep only the first line and bound the length; multi-line errors
	// tend to carry stack traces.
	msg := raw
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
