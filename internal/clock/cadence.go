package clock

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Cadence decides whether a cycle is due
// last가 zero이면 (첫 사이클) 항상 due
type Cadence interface {
	Due(last, now time.Time) bool
}

// Always is due on every check
type Always struct{}

// Due always returns true
func (Always) Due(last, now time.Time) bool {
	return true
}

// Interval is due once Every has elapsed since the last cycle
type Interval struct {
	Every time.Duration
}

// Due reports whether now - last >= Every
func (i Interval) Due(last, now time.Time) bool {
	if last.IsZero() || i.Every <= 0 {
		return true
	}
	return !now.Before(last.Add(i.Every))
}

// CronCadence is due when a scheduled tick falls in (last, now]
type CronCadence struct {
	Spec     string
	schedule cron.Schedule
}

// cronParser accepts an optional seconds field, matching the scheduler
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// NewCronCadence parses a cron expression ("0 30 9 * * MON-FRI", "@hourly")
func NewCronCadence(spec string) (*CronCadence, error) {
	schedule, err := cronParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron cadence %q: %w", spec, err)
	}
	return &CronCadence{Spec: spec, schedule: schedule}, nil
}

// Due reports whether the next tick after last is not after now
func (c *CronCadence) Due(last, now time.Time) bool {
	if last.IsZero() {
		return true
	}
	next := c.schedule.Next(last)
	return !next.After(now)
}

// ParseCadence builds a Cadence from a strategy file value
// "" / "always" → Always, Go duration ("15m") → Interval, 그 외 → cron
func ParseCadence(value string) (Cadence, error) {
	if value == "" || value == "always" {
		return Always{}, nil
	}
	if d, err := time.ParseDuration(value); err == nil {
		if d <= 0 {
			return nil, fmt.Errorf("cadence interval must be positive, got %s", value)
		}
		return Interval{Every: d}, nil
	}
	return NewCronCadence(value)
}
