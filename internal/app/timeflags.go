package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/justdice/usagestats/internal/usage"
)

// rangeFlags are the --start/--end pair shared by query commands.
type rangeFlags struct {
	start string
	end   string
}

func (f *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.start, "start", "24h", "range start: RFC3339, epoch milliseconds or a duration back from now (24h, 7d)")
	cmd.Flags().StringVar(&f.end, "end", "now", "range end (exclusive), same forms as --start")
}

func (f *rangeFlags) resolve(now time.Time) (usage.TimeRange, error) {
	start, err := parseInstant(f.start, now)
	if err != nil {
		return usage.TimeRange{}, fmt.Errorf("invalid --start: %w", err)
	}
	end, err := parseInstant(f.end, now)
	if err != nil {
		return usage.TimeRange{}, fmt.Errorf("invalid --end: %w", err)
	}
	return usage.NewTimeRange(start, end)
}

// parseInstant reads an instant as epoch milliseconds. Accepted forms are
// "now", RFC3339, a plain integer of epoch milliseconds, or a duration
// measured back from now: Go durations ("90m", "24h") plus a day suffix
// ("7d").
func parseInstant(s string, now time.Time) (int64, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "" || s == "now":
		return now.UnixMilli(), nil
	case strings.HasSuffix(s, "d"):
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil || days < 0 {
			return 0, fmt.Errorf("bad day count %q", s)
		}
		return now.AddDate(0, 0, -days).UnixMilli(), nil
	}

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UnixMilli(), nil
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return now.Add(-d).UnixMilli(), nil
	}
	return 0, fmt.Errorf("unrecognized instant %q", s)
}
