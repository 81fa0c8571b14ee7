package cron

import (
	"fmt"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// parser accepts standard 5-field cron expressions only. Descriptors like
// "@every 30s" are rejected: scheduled tasks fire at minute granularity.
var parser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow,
)

// Expression is a parsed 5-field cron expression. Each field supports
// "*", comma lists ("1,3,5"), ranges ("1-5"), and steps ("*/n").
type Expression struct {
	spec *cronlib.SpecSchedule
}

// ParseExpression parses a 5-field cron expression
// (minute, hour, day-of-month, month, day-of-week).
func ParseExpression(expr string) (Expression, error) {
	sched, err := parser.Parse(expr)
	if err != nil {
		return Expression{}, fmt.Errorf("cron: parse %q: %w", expr, err)
	}

	spec, ok := sched.(*cronlib.SpecSchedule)
	if !ok {
		return Expression{}, fmt.Errorf("cron: %q is not a 5-field expression", expr)
	}

	return Expression{spec: spec}, nil
}

// Matches reports whether t is due under the expression. All five fields
// must match t independently (minute, hour, day-of-month, month,
// day-of-week); seconds are ignored.
func (e Expression) Matches(t time.Time) bool {
	if e.spec == nil {
		return false
	}

	return fieldMatches(e.spec.Minute, t.Minute()) &&
		fieldMatches(e.spec.Hour, t.Hour()) &&
		fieldMatches(e.spec.Dom, t.Day()) &&
		fieldMatches(e.spec.Month, int(t.Month())) &&
		fieldMatches(e.spec.Dow, int(t.Weekday()))
}

// fieldMatches tests value against a parsed field bitmask.
func fieldMatches(mask uint64, value int) bool {
	return mask&(1<<uint(value)) != 0
}
