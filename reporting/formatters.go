package reporting

import (
	"sort"
	"time"
)

// formatDuration renders a duration for table display, rounded so column
// widths stay stable.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond && d > 0 {
		return d.String()
	}
	return d.Round(time.Millisecond).String()
}

func sortedDetailKeys(details map[string]any) []string {
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
