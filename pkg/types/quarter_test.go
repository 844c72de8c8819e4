package types

import (
	"testing"
	"time"
)

func TestQuarterOf(t *testing.T) {
	cases := map[string]time.Time{
		"2026-Q1": time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		"2026-Q2": time.Date(2026, 6, 30, 23, 59, 59, 0, time.UTC),
		"2026-Q3": time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		"2026-Q4": time.Date(2026, 12, 31, 12, 0, 0, 0, time.UTC),
	}
	for want, at := range cases {
		if got := QuarterOf(at); got != want {
			t.Fatalf("QuarterOf(%s) = %s, want %s", at, got, want)
		}
	}

	// 2027-01-01 01:00 in UTC+3 is still 2026 in UTC
	east := time.FixedZone("UTC+3", 3*60*60)
	if got := QuarterOf(time.Date(2027, 1, 1, 1, 0, 0, 0, east)); got != "2026-Q4" {
		t.Fatalf("expected UTC quarter, got %s", got)
	}
}
