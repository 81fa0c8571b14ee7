package cron

import "time"

// Clock abstracts wall-clock reads so the scheduler can be tested with a
// fixed or stepped time source.
type Clock interface {
	Now() time.Time
}

// systemClock reads the real wall clock in UTC.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
