package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// FormatDuration renders milliseconds as "2h 5m 30s". Units that are zero
// are left out; anything under a second is "0s".
func FormatDuration(ms int64) string {
	if ms < 1000 {
		return "0s"
	}
	d := time.Duration(ms) * time.Millisecond

	days := int64(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	hours := int64(d / time.Hour)
	d -= time.Duration(hours) * time.Hour
	minutes := int64(d / time.Minute)
	d -= time.Duration(minutes) * time.Minute
	seconds := int64(d / time.Second)

	var parts []string
	for _, p := range []struct {
		n    int64
		unit string
	}{{days, "d"}, {hours, "h"}, {minutes, "m"}, {seconds, "s"}} {
		if p.n > 0 {
			parts = append(parts, fmt.Sprintf("%d%s", p.n, p.unit))
		}
	}
	return strings.Join(parts, " ")
}

// FormatSeconds is FormatDuration for whole seconds.
func FormatSeconds(s int64) string {
	return FormatDuration(s * 1000)
}

// FormatTimestamp renders an epoch-millisecond instant in local time.
// Zero is shown as "-".
func FormatTimestamp(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04:05")
}

// FormatBytes renders a byte count with IEC units ("1.5 MiB").
func FormatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

// formatRelativeTime renders an epoch-millisecond instant relative to now.
func formatRelativeTime(ms int64) string {
	if ms == 0 {
		return "never"
	}
	return humanize.Time(time.UnixMilli(ms))
}

// truncate shortens s to maxLen, marking the cut with "...".
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
