package app

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/justdice/usagestats/internal/output"
	"github.com/justdice/usagestats/internal/usage"
)

var (
	usageRange    rangeFlags
	usageInterval string

	usageCmd = &cobra.Command{
		Use:   "usage",
		Short: "Foreground time per app, bucketed by interval",
		Long: `Query per-interval usage samples and merge them into one record per app.

Foreground time is reported in whole seconds; sub-second remainders are
truncated and apps with no full second of use are left out. When an app
appears in several buckets its seconds are summed, the earliest first-seen
and the latest last-seen and last-used instants are kept.

Intervals: daily, weekly, monthly, yearly, or best to pick one from the
length of the range.`,
		Example: `  # Last 24 hours, daily buckets
  usagestats usage

  # Last 90 days, weekly buckets
  usagestats usage --start 90d --interval weekly`,
		RunE: runUsage,
	}

	aggregateRange rangeFlags

	aggregateCmd = &cobra.Command{
		Use:   "aggregate",
		Short: "One merged usage record per app over a custom range",
		Long: `Ask the platform to aggregate usage across an arbitrary range.

Requires platform level 22 or later.`,
		Example: `  usagestats aggregate --start 2024-03-01T00:00:00Z --end 2024-03-08T00:00:00Z`,
		RunE:    runAggregate,
	}
)

func init() {
	usageRange.register(usageCmd)
	usageCmd.Flags().StringVar(&usageInterval, "interval", "best", "bucket interval: daily, weekly, monthly, yearly, best")
	aggregateRange.register(aggregateCmd)

	RootCmd.AddCommand(usageCmd)
	RootCmd.AddCommand(aggregateCmd)
}

func runUsage(cmd *cobra.Command, args []string) error {
	interval, err := usage.ParseInterval(usageInterval)
	if err != nil {
		return err
	}
	tr, err := usageRange.resolve(time.Now())
	if err != nil {
		return err
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	records, err := s.analyzer.QueryUsageStats(cmd.Context(), interval, tr)
	if err != nil {
		return err
	}
	return printRecords(cmd, records)
}

func runAggregate(cmd *cobra.Command, args []string) error {
	tr, err := aggregateRange.resolve(time.Now())
	if err != nil {
		return err
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	records, err := s.analyzer.QueryAndAggregateUsageStats(cmd.Context(), tr)
	if err != nil {
		return err
	}
	return printRecords(cmd, records)
}

func printRecords(cmd *cobra.Command, records map[string]usage.AppUsageRecord) error {
	if jsonOut {
		return printJSON(cmd.OutOrStdout(), records)
	}
	_, err := fmt.Fprint(cmd.OutOrStdout(), output.RenderUsageTable(records))
	return err
}
