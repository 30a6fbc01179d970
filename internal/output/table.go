// Package output provides terminal output utilities for usagestats.
//
// This package includes:
//   - Table rendering for usage records, events, event statistics, app
//     activity, data usage and store status
//   - A progress bar for imports
//   - Human-readable formatting for durations, byte sizes and instants
//
// Colors come from fatih/color and are only emitted on a terminal.
package output

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/justdice/usagestats/internal/analyzer"
	"github.com/justdice/usagestats/internal/store"
	"github.com/justdice/usagestats/internal/usage"
)

var (
	headerColor = color.New(color.Bold)
	systemColor = color.New(color.FgHiBlack)
	accentColor = color.New(color.FgCyan)
	warnColor   = color.New(color.FgYellow)
)

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// paint applies c when color is enabled.
func paint(c *color.Color, text string) string {
	if !IsColorEnabled() {
		return text
	}
	c.EnableColor()
	return c.Sprint(text)
}

func header(sb *strings.Builder, width int, format string, cols ...any) {
	sb.WriteString(paint(headerColor, fmt.Sprintf(format, cols...)))
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("─", width))
	sb.WriteString("\n")
}

// appName shows the display name, or the package when they match.
func appName(pkg, display string) string {
	if display == "" || display == pkg {
		return pkg
	}
	return display
}

// RenderUsageTable renders usage records, most foreground time first.
// System apps are dimmed.
func RenderUsageTable(records map[string]usage.AppUsageRecord) string {
	if len(records) == 0 {
		return "No usage recorded in this range.\n"
	}

	sorted := make([]usage.AppUsageRecord, 0, len(records))
	for _, r := range records {
		sorted = append(sorted, r)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].TotalForegroundSeconds != sorted[j].TotalForegroundSeconds {
			return sorted[i].TotalForegroundSeconds > sorted[j].TotalForegroundSeconds
		}
		return sorted[i].PackageName < sorted[j].PackageName
	})

	var sb strings.Builder
	header(&sb, 96, "%-24s %-32s %-12s %-20s %s", "App", "Package", "Foreground", "Last Used", "System")

	for _, r := range sorted {
		system := ""
		if r.IsSystemApp {
			system = "yes"
		}
		row := fmt.Sprintf("%-24s %-32s %-12s %-20s %s",
			truncate(appName(r.PackageName, r.DisplayName), 24),
			truncate(r.PackageName, 32),
			FormatSeconds(r.TotalForegroundSeconds),
			formatRelativeTime(r.LastUsed),
			system)
		if r.IsSystemApp {
			row = paint(systemColor, row)
		}
		sb.WriteString(row)
		sb.WriteString("\n")
	}

	return sb.String()
}

// RenderEventTable renders events in the order given.
func RenderEventTable(events []usage.UsageEvent) string {
	if len(events) == 0 {
		return "No events in this range.\n"
	}

	var sb strings.Builder
	header(&sb, 80, "%-20s %-26s %s", "Time", "Event", "Package")

	for _, ev := range events {
		name := ev.EventType.String()
		if !ev.EventType.Known() {
			name = paint(warnColor, name)
		}
		sb.WriteString(fmt.Sprintf("%-20s %-26s %s\n",
			FormatTimestamp(ev.Timestamp), name, ev.PackageName))
	}

	return sb.String()
}

// RenderEventStatsTable renders per-type event statistics ordered by
// event code.
func RenderEventStatsTable(stats map[string]usage.EventStats) string {
	if len(stats) == 0 {
		return "No event statistics in this range.\n"
	}

	sorted := make([]usage.EventStats, 0, len(stats))
	for _, st := range stats {
		sorted = append(sorted, st)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].EventType < sorted[j].EventType
	})

	var sb strings.Builder
	header(&sb, 96, "%-26s %-8s %-12s %-20s %s", "Event", "Count", "Duration", "First", "Last")

	for _, st := range sorted {
		sb.WriteString(fmt.Sprintf("%-26s %-8d %-12s %-20s %s\n",
			st.EventType.String(),
			st.Count,
			FormatDuration(st.TotalDuration),
			FormatTimestamp(st.FirstSeen),
			FormatTimestamp(st.LastSeen)))
	}

	return sb.String()
}

// RenderActivityTable renders per-app activity summaries in the order given.
func RenderActivityTable(apps []analyzer.AppActivity) string {
	if len(apps) == 0 {
		return "No app activity in this range.\n"
	}

	var sb strings.Builder
	header(&sb, 96, "%-24s %-32s %-8s %-12s %s", "App", "Package", "Events", "Foreground", "Last Event")

	for _, a := range apps {
		row := fmt.Sprintf("%-24s %-32s %-8d %-12s %s (%s)",
			truncate(appName(a.PackageName, a.DisplayName), 24),
			truncate(a.PackageName, 32),
			a.Count,
			FormatDuration(a.UsageMillis),
			FormatTimestamp(a.LastEventTime),
			a.LastEventType)
		if a.IsSystemApp {
			row = paint(systemColor, row)
		}
		sb.WriteString(row)
		sb.WriteString("\n")
	}

	return sb.String()
}

// RenderDataUsage renders one package's network total.
func RenderDataUsage(pkg string, class usage.NetworkClass, tr usage.TimeRange, bytes int64) string {
	return fmt.Sprintf("%s used %s over %s (%s)\n",
		paint(accentColor, pkg), FormatBytes(bytes), strings.ToUpper(class.String()), tr)
}

// RenderStatus renders store contents and the import history.
func RenderStatus(sum *store.Summary, device *store.Device, caps usage.Capabilities, imports []*store.Import) string {
	var sb strings.Builder

	level := "unknown"
	if device.APILevel > 0 {
		level = fmt.Sprintf("%d", device.APILevel)
	}
	access := device.UsageAccess
	if access == "" {
		access = store.ModeDefault
	}

	sb.WriteString(fmt.Sprintf("Platform level: %s\n", level))
	sb.WriteString(fmt.Sprintf("Usage access:   %s\n", access))
	sb.WriteString(fmt.Sprintf("Capabilities:   %s\n", caps))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Packages:       %d\n", sum.Packages))
	sb.WriteString(fmt.Sprintf("Usage samples:  %d\n", sum.Samples))
	sb.WriteString(fmt.Sprintf("Events:         %d", sum.Events))
	if sum.Events > 0 {
		sb.WriteString(fmt.Sprintf(" (%s to %s)", FormatTimestamp(sum.FirstEvent), FormatTimestamp(sum.LastEvent)))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Event stats:    %d\n", sum.EventStats))
	sb.WriteString(fmt.Sprintf("Net buckets:    %d\n", sum.Buckets))

	if len(imports) == 0 {
		sb.WriteString("\nNo imports yet.\n")
		return sb.String()
	}

	sb.WriteString("\n")
	header(&sb, 72, "%-36s %-20s %-8s %s", "Import", "When", "Rows", "Source")
	for _, imp := range imports {
		sb.WriteString(fmt.Sprintf("%-36s %-20s %-8d %s\n",
			imp.ID, imp.ImportedAt.Local().Format("2006-01-02 15:04:05"), imp.Rows, imp.Source))
	}
	return sb.String()
}

// RenderConstants renders the platform constant table sorted by name.
func RenderConstants(constants map[string]int) string {
	names := make([]string, 0, len(constants))
	for name := range constants {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		sb.WriteString(fmt.Sprintf("%-34s %d\n", name, constants[name]))
	}
	return sb.String()
}
