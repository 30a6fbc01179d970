package app

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/justdice/usagestats/internal/output"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show imported data, capabilities and watcher state",
	Long: `Display what the database holds and how queries will behave.

Shows:
  • Recorded platform level, usage-access mode and derived capabilities
  • Row counts per kind of telemetry and the span of the event log
  • Import history
  • Whether the watch daemon is running`,
	Example: `  usagestats status
  usagestats status --json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	RootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	sum, err := s.store.Summary(ctx)
	if err != nil {
		return err
	}
	device, err := s.store.GetDevice(ctx)
	if err != nil {
		return err
	}
	imports, err := s.store.ListImports(ctx)
	if err != nil {
		return err
	}

	running, err := daemonFor(s.cfg.DBPath).Running()
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}

	caps := s.analyzer.Capabilities()
	if jsonOut {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"database":      s.cfg.DBPath,
			"apiLevel":      device.APILevel,
			"usageAccess":   device.UsageAccess,
			"capabilities":  caps,
			"summary":       sum,
			"imports":       imports,
			"daemonRunning": running,
		})
	}

	out := cmd.OutOrStdout()
	size := "unknown size"
	if fi, err := os.Stat(s.cfg.DBPath); err == nil {
		size = humanize.Bytes(uint64(fi.Size()))
	}
	fmt.Fprintf(out, "Database:       %s (%s)\n", s.cfg.DBPath, size)
	if running {
		fmt.Fprintln(out, "Watcher:        running")
	} else {
		fmt.Fprintln(out, "Watcher:        stopped  (run 'usagestats watch --daemon')")
	}
	fmt.Fprint(out, output.RenderStatus(sum, device, caps, imports))
	return nil
}
