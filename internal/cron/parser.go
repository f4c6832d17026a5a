// Package cron parses the schedules that drive periodic maintenance work
// (order reconciliation) and waits for their next fire time.
package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

type Schedule interface {
	Next(after time.Time) time.Time
}

// Parse accepts a five-field expression or a descriptor such as "@every 5m"
// or "@hourly". An empty timezone means UTC.
func Parse(expression, timezone string) (Schedule, error) {
	sched, err := parser.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("parse schedule: %w", err)
	}

	loc := time.UTC
	if timezone != "" {
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone: %w", err)
		}
	}

	return &schedule{sched: sched, loc: loc}, nil
}

type schedule struct {
	sched cron.Schedule
	loc   *time.Location
}

func (s *schedule) Next(after time.Time) time.Time {
	return s.sched.Next(after.In(s.loc))
}

// Wait blocks until the schedule's next fire time after now, or until ctx is done.
func Wait(ctx context.Context, sched Schedule, now time.Time) error {
	d := sched.Next(now).Sub(now)
	if d < 0 {
		d = 0
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
