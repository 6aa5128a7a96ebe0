// Package schedule runs a job once a day at a wall-clock time.
package schedule

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"time"
)

var timeOfDayRegex = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

// Clock is a time of day.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM" (24-hour).
func ParseClock(s string) (Clock, error) {
	m := timeOfDayRegex.FindStringSubmatch(s)
	if m == nil {
		return Clock{}, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if hour > 23 || minute > 59 {
		return Clock{}, fmt.Errorf("invalid time %q", s)
	}
	return Clock{Hour: hour, Minute: minute}, nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// NextRun returns the first occurrence of at strictly after now, in now's
// location.
func NextRun(at Clock, now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), at.Hour, at.Minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Job is the work run on each tick.
type Job func(ctx context.Context) error

// Scheduler fires a job daily. Jobs run inline, so a slow job delays the
// next tick instead of overlapping it. Now and After default to the real
// clock.
type Scheduler struct {
	At    Clock
	Now   func() time.Time
	After func(time.Duration) <-chan time.Time
}

// Run loops until ctx is cancelled. Job errors are logged, not returned.
func (s Scheduler) Run(ctx context.Context, job Job) error {
	now := s.Now
	if now == nil {
		now = time.Now
	}
	after := s.After
	if after == nil {
		after = time.After
	}

	log.Printf("[schedule] started, daily at %s", s.At)
	for {
		if ctx.Err() != nil {
			log.Printf("[schedule] stopped")
			return ctx.Err()
		}
		next := NextRun(s.At, now())
		log.Printf("[schedule] next run at %s", next.Format(time.RFC3339))

		select {
		case <-ctx.Done():
			log.Printf("[schedule] stopped")
			return ctx.Err()
		case <-after(next.Sub(now())):
		}

		if err := job(ctx); err != nil {
			log.Printf("[schedule] job failed: %v", err)
		}
	}
}

// Daily runs job every day at the given time until ctx is cancelled.
func Daily(ctx context.Context, at Clock, job Job) error {
	return Scheduler{At: at}.Run(ctx, job)
}
