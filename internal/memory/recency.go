package memory

import (
	"path/filepath"
	"regexp"
	"time"
)

var dateFileRe = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})\.md$`)

// RecencyWindow returns the [updated_after, updated_before] hint derived
// from ambient context file paths (§4.10). Any path matching
// memory/YYYY-MM-DD.md widens the window to the enclosing union of all
// matched dates; otherwise a present MEMORY.md defaults to a 30-day
// lookback with no upper bound; otherwise the window is empty.
func RecencyWindow(contextPaths []string, now time.Time) (after, before time.Time) {
	var sawDate, sawMemoryMD bool

	for _, p := range contextPaths {
		base := filepath.Base(p)
		if m := dateFileRe.FindStringSubmatch(base); m != nil && filepath.Base(filepath.Dir(p)) == "memory" {
			day, err := time.Parse("2006-01-02", m[1]+"-"+m[2]+"-"+m[3])
			if err != nil {
				continue
			}
			start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
			end := start.Add(24*time.Hour - time.Nanosecond)
			if !sawDate || start.Before(after) {
				after = start
			}
			if !sawDate || end.After(before) {
				before = end
			}
			sawDate = true
			continue
		}
		if base == "MEMORY.md" {
			sawMemoryMD = true
		}
	}

	if sawDate {
		return after, before
	}
	if sawMemoryMD {
		return now.Add(-30 * 24 * time.Hour), time.Time{}
	}
	return time.Time{}, time.Time{}
}
