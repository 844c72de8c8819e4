package types

import (
	"fmt"
	"time"
)

// QuarterOf returns the calendar quarter label of t in UTC, e.g. "2026-Q4".
func QuarterOf(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%d-Q%d", t.Year(), (int(t.Month())-1)/3+1)
}
