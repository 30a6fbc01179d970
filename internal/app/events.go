package app

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/justdice/usagestats/internal/output"
	"github.com/justdice/usagestats/internal/usage"
)

var (
	eventsRange rangeFlags
	eventsLimit int

	eventsCmd = &cobra.Command{
		Use:   "events",
		Short: "Typed event log in chronological order",
		Long: `Stream the platform event log for a range.

Events are printed in the order the platform recorded them. Event codes
this tool does not name are shown as numbers.`,
		Example: `  # Last two hours
  usagestats events --start 2h

  # First 20 events of a day as JSON
  usagestats events --start 2024-03-01T00:00:00Z --end 2024-03-02T00:00:00Z --limit 20 --json`,
		RunE: runEvents,
	}

	eventStatsRange    rangeFlags
	eventStatsInterval string

	eventStatsCmd = &cobra.Command{
		Use:   "event-stats",
		Short: "Count and total duration per event type",
		Long: `Query per-interval event statistics, keyed by event type.

Requires platform level 28 or later.`,
		Example: `  usagestats event-stats --start 7d --interval daily`,
		RunE:    runEventStats,
	}

	activityRange rangeFlags

	activityCmd = &cobra.Command{
		Use:   "activity",
		Short: "Per-app activity summary built from the event log",
		Long: `Replay the event log and summarize it per app: number of events, the
last event and foreground time from resumed/paused activity pairs.`,
		Example: `  usagestats activity --start 24h`,
		RunE:    runActivity,
	}
)

func init() {
	eventsRange.register(eventsCmd)
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 0, "stop after this many events (0 = no limit)")
	eventStatsRange.register(eventStatsCmd)
	eventStatsCmd.Flags().StringVar(&eventStatsInterval, "interval", "best", "bucket interval: daily, weekly, monthly, yearly, best")
	activityRange.register(activityCmd)

	RootCmd.AddCommand(eventsCmd)
	RootCmd.AddCommand(eventStatsCmd)
	RootCmd.AddCommand(activityCmd)
}

func runEvents(cmd *cobra.Command, args []string) error {
	tr, err := eventsRange.resolve(time.Now())
	if err != nil {
		return err
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	stream := s.analyzer.StreamEvents(cmd.Context(), tr)
	defer stream.Close()

	events := []usage.UsageEvent{}
	for ev := range stream.All() {
		events = append(events, ev)
		if eventsLimit > 0 && len(events) >= eventsLimit {
			break
		}
	}
	if err := stream.Err(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: event log ended early after %d events: %v\n", len(events), err)
	}

	if jsonOut {
		return printJSON(cmd.OutOrStdout(), events)
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), output.RenderEventTable(events))
	return err
}

func runEventStats(cmd *cobra.Command, args []string) error {
	interval, err := usage.ParseInterval(eventStatsInterval)
	if err != nil {
		return err
	}
	tr, err := eventStatsRange.resolve(time.Now())
	if err != nil {
		return err
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	stats, err := s.analyzer.QueryEventStats(cmd.Context(), interval, tr)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(cmd.OutOrStdout(), stats)
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), output.RenderEventStatsTable(stats))
	return err
}

func runActivity(cmd *cobra.Command, args []string) error {
	tr, err := activityRange.resolve(time.Now())
	if err != nil {
		return err
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	apps := s.analyzer.SummarizeEvents(cmd.Context(), tr)

	if jsonOut {
		return printJSON(cmd.OutOrStdout(), apps)
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), output.RenderActivityTable(apps))
	return err
}
