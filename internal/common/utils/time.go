package utils

import (
	"fmt"
	"time"
)

// ParseDuration reads a duration string, accepting "d" (days) and "w"
// (weeks) on top of the units time.ParseDuration understands. Retention
// windows are typically written in days, which the standard parser
// rejects.
//
// Accepted forms:
//   - anything time.ParseDuration takes: "1h30m", "500ms", "2.5h"
//   - whole days: "30d", "-1d"
//   - whole weeks: "4w", "52w"
//
// Fractional day and week counts are not supported.
func ParseDuration(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	var days int
	if n, err := fmt.Sscanf(s, "%dd", &days); err == nil && n == 1 {
		return time.Duration(days) * 24 * time.Hour, nil
	}

	var weeks int
	if n, err := fmt.Sscanf(s, "%dw", &weeks); err == nil && n == 1 {
		return time.Duration(weeks) * 7 * 24 * time.Hour, nil
	}

	return 0, fmt.Errorf("invalid duration: %s", s)
}

// FormatDuration renders a duration for log lines using the coarsest
// unit that fits: whole seconds under a minute, whole minutes under an
// hour, then hours and days with one decimal.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%.1fh", d.Hours())
	}
	return fmt.Sprintf("%.1fd", d.Hours()/24)
}
