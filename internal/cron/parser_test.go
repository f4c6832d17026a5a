package cron

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestParse_ValidExpressions(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"every 5 minutes", "*/5 * * * *"},
		{"every hour", "0 * * * *"},
		{"business hours", "0 9-17 * * 1-5"},
		{"every descriptor", "@every 5m"},
		{"hourly descriptor", "@hourly"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched, err := Parse(tt.expr, "")
			if err != nil {
				t.Errorf("Parse(%q) returned error: %v", tt.expr, err)
			}
			if sched == nil {
				t.Errorf("Parse(%q) returned nil schedule", tt.expr)
			}
		})
	}
}

func TestParse_InvalidExpressions(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"four fields", "* * * *"},
		{"six fields", "* * * * * *"},
		{"invalid minute 60", "60 * * * *"},
		{"bad descriptor", "@sometimes"},
		{"bad every", "@every soon"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.expr, "UTC"); err == nil {
				t.Errorf("Parse(%q) should return error", tt.expr)
			}
		})
	}
}

func TestParse_InvalidTimezone(t *testing.T) {
	if _, err := Parse("*/5 * * * *", "Invalid/Zone"); err == nil {
		t.Error("expected error for unknown timezone")
	}
}

func TestSchedule_Next(t *testing.T) {
	sched, err := Parse("*/5 * * * *", "UTC")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	after := time.Date(2026, 3, 1, 9, 2, 30, 0, time.UTC)
	want := time.Date(2026, 3, 1, 9, 5, 0, 0, time.UTC)
	if next := sched.Next(after); !next.Equal(want) {
		t.Errorf("Next(%v) = %v, want %v", after, next, want)
	}
}

func TestSchedule_EveryDescriptor(t *testing.T) {
	sched, err := Parse("@every 90s", "")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	after := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	if got := sched.Next(after).Sub(after); got != 90*time.Second {
		t.Errorf("interval = %v, want 90s", got)
	}
}

type fixedSchedule time.Duration

func (f fixedSchedule) Next(after time.Time) time.Time {
	return after.Add(time.Duration(f))
}

func TestWait_Fires(t *testing.T) {
	start := time.Now()
	if err := Wait(context.Background(), fixedSchedule(10*time.Millisecond), start); err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Errorf("Wait returned after %v, want at least 10ms", elapsed)
	}
}

func TestWait_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Wait(ctx, fixedSchedule(time.Hour), time.Now())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
