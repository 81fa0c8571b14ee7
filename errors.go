package jobcore

import "errors"

var (
	// Not found errors. A job that exists but is not visible to the
	// caller is reported with the same error as a truly missing job so
	// that existence is never leaked across owners.
	ErrJobNotFound  = errors.New("jobcore: job not found")
	ErrTaskNotFound = errors.New("jobcore: scheduled task not found")

	// Conflict errors.
	ErrJobAlreadyExists     = errors.New("jobcore: job already exists")
	ErrTaskAlreadyExists    = errors.New("jobcore: scheduled task already exists")
	ErrDuplicateCorrelation = errors.New("jobcore: correlation id already in use")

	// State errors.
	ErrInvalidTransition = errors.New("jobcore: invalid state transition")
	ErrNotFailed         = errors.New("jobcore: job is not in a failed state")

	// Authorization errors.
	ErrAdminRequired    = errors.New("jobcore: admin access required")
	ErrCapabilityDenied = errors.New("jobcore: capability denied")
)
