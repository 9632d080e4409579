package scheduler

import (
	"testing"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
)

func TestCalculateNextDue_Cron(t *testing.T) {
	sched := &domain.Schedule{
		CronExpr: "0 3 * * *", // каждый день в 03:00
		Timezone: "UTC",
	}

	from := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := time.Date(2026, 1, 16, 3, 0, 0, 0, time.UTC)
	if !next.Equal(expected) {
		t.Errorf("expected %v, got %v", expected, next)
	}
}

func TestCalculateNextDue_CronWithTimezone(t *testing.T) {
	sched := &domain.Schedule{
		CronExpr: "0 3 * * *",
		Timezone: "Europe/Moscow", // UTC+3
	}

	from := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 03:00 по Москве = 00:00 UTC
	expected := time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC)
	if !next.Equal(expected) {
		t.Errorf("expected %v, got %v", expected, next)
	}
}

func TestCalculateNextDue_InvalidTimezoneFallsBackToUTC(t *testing.T) {
	sched := &domain.Schedule{
		CronExpr: "0 3 * * *",
		Timezone: "Not/AZone",
	}

	from := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := time.Date(2026, 1, 16, 3, 0, 0, 0, time.UTC)
	if !next.Equal(expected) {
		t.Errorf("expected fallback to UTC, got %v", next)
	}
}

func TestCalculateNextDue_Interval(t *testing.T) {
	sched := &domain.Schedule{
		IntervalSec: 600,
		Timezone:    "UTC",
	}

	from := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := from.Add(10 * time.Minute)
	if !next.Equal(expected) {
		t.Errorf("expected %v, got %v", expected, next)
	}
}

func TestCalculateNextDue_NeitherCronNorInterval(t *testing.T) {
	sched := &domain.Schedule{Timezone: "UTC"}

	if _, err := CalculateNextDue(sched, time.Now()); err == nil {
		t.Error("expected error for schedule without cron_expr and interval_sec")
	}
}

func TestValidateCronExpr(t *testing.T) {
	valid := []string{
		"0 3 * * *",
		"*/5 * * * *",
		"30 2 * * 1-5",
	}
	for _, expr := range valid {
		if err := ValidateCronExpr(expr); err != nil {
			t.Errorf("expected %q to be valid: %v", expr, err)
		}
	}

	invalid := []string{
		"not a cron",
		"0 3 * *",    // 4 поля
		"61 3 * * *", // минуты вне диапазона
		"0 25 * * *", // часы вне диапазона
	}
	for _, expr := range invalid {
		if err := ValidateCronExpr(expr); err == nil {
			t.Errorf("expected %q to be invalid", expr)
		}
	}
}
