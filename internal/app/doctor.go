package app

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/justdice/usagestats/internal/store"
	"github.com/justdice/usagestats/internal/usage"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose common issues",
	Long: `Runs diagnostic checks on your usagestats setup.

Checks:
  • Database exists and is accessible
  • A device profile (platform level, usage access) has been imported
  • Packages and usage data are present
  • The spool directory exists and the watcher is running
  • Recommends next steps

Exits with an error only for critical issues; warnings are informational.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	RootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Running usagestats diagnostics...")
	fmt.Fprintln(out)

	criticalIssues := 0
	warningIssues := 0

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(out, "✗ Configuration error:", err)
		return errors.New("diagnostics found critical issues")
	}

	// Check 1: Database exists
	if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
		fmt.Fprintln(out, "✗ Database not found at:", cfg.DBPath)
		fmt.Fprintln(out, "  Action: Run 'usagestats import <dump>' to create it")
		criticalIssues++
	} else {
		fmt.Fprintln(out, "✓ Database found:", cfg.DBPath)
	}

	// Check 2: Database contents
	if criticalIssues == 0 {
		st, err := store.Open(cfg.DBPath)
		if err != nil {
			fmt.Fprintln(out, "✗ Cannot open database:", err)
			criticalIssues++
		} else {
			defer st.Close()
			ctx := cmd.Context()

			device, err := st.GetDevice(ctx)
			switch {
			case err != nil:
				fmt.Fprintln(out, "✗ Cannot read device profile:", err)
				criticalIssues++
			case device.APILevel == 0:
				fmt.Fprintln(out, "⚠ No platform level recorded; every capability is assumed")
				fmt.Fprintln(out, "  Action: Import a dump with a device section or pass --api-level")
				warningIssues++
			default:
				fmt.Fprintf(out, "✓ Platform level %d (%s)\n", device.APILevel, usage.ProbeCapabilities(device.APILevel))
			}

			if err == nil {
				if device.UsageAccess == store.ModeAllowed {
					fmt.Fprintln(out, "✓ Usage access granted")
				} else {
					fmt.Fprintln(out, "⚠ Usage access not granted; usage queries will come back empty on device")
					fmt.Fprintln(out, "  Action: Run 'usagestats settings'")
					warningIssues++
				}
			}

			sum, err := st.Summary(ctx)
			switch {
			case err != nil:
				fmt.Fprintln(out, "✗ Cannot read database:", err)
				criticalIssues++
			case sum.Packages == 0:
				fmt.Fprintln(out, "⚠ No packages imported; apps will show package names only")
				warningIssues++
			default:
				fmt.Fprintf(out, "✓ %d packages, %d usage samples, %d events\n", sum.Packages, sum.Samples, sum.Events)
			}
		}
	}

	// Check 3: Spool directory
	if _, err := os.Stat(cfg.SpoolDir); err != nil {
		fmt.Fprintln(out, "⚠ Spool directory missing:", cfg.SpoolDir)
		fmt.Fprintln(out, "  Action: Run 'usagestats watch' to create it")
		warningIssues++
	} else {
		fmt.Fprintln(out, "✓ Spool directory:", cfg.SpoolDir)
	}

	// Check 4: Watcher running
	running, err := daemonFor(cfg.DBPath).Running()
	switch {
	case err != nil:
		fmt.Fprintln(out, "⚠ Failed to check daemon status:", err)
		warningIssues++
	case !running:
		fmt.Fprintln(out, "⚠ Watcher not running")
		fmt.Fprintln(out, "  Action: Run 'usagestats watch --daemon'")
		warningIssues++
	default:
		fmt.Fprintln(out, "✓ Watcher running")
	}

	fmt.Fprintln(out)
	if criticalIssues > 0 {
		fmt.Fprintf(out, "Found %d critical issue(s) and %d warning(s).\n", criticalIssues, warningIssues)
		return errors.New("diagnostics found critical issues")
	}
	if warningIssues > 0 {
		fmt.Fprintf(out, "Found %d warning(s).\n", warningIssues)
		return nil
	}
	fmt.Fprintln(out, "All checks passed!")
	return nil
}
