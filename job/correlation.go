package job

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// correlationAlphabet is the character set for the random component of a
// correlation ID. Lowercase alphanumeric only, to keep IDs URL- and
// log-safe.
const correlationAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// correlationRandLen is the length of the random component.
const correlationRandLen = 9

// NewCorrelationID generates a caller-visible correlation identifier in
// the format "job_<epochMillis>_<lowercase-alphanumeric>". It is assigned
// once at creation when the caller does not supply its own, and is
// immutable afterwards.
func NewCorrelationID(now time.Time) string {
	buf := make([]byte, correlationRandLen)
	for i := range buf {
		buf[i] = correlationAlphabet[rand.IntN(len(correlationAlphabet))]
	}

	return fmt.Sprintf("job_%d_%s", now.UnixMilli(), buf)
}
