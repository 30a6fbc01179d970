package app

import (
	"fmt"

	"cdr.dev/slog/v3"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/justdice/usagestats/internal/ingest"
	"github.com/justdice/usagestats/internal/output"
)

var importCmd = &cobra.Command{
	Use:   "import <file-or-dir>...",
	Short: "Import device telemetry dumps",
	Long: `Import JSON or YAML telemetry dumps into the database.

Directories are imported file by file in name order; files other than
.json, .yaml and .yml are ignored. A dump whose exact contents were
imported before is skipped.

Dump layout (YAML shown, JSON uses the same keys):

  device: {api_level: 29, usage_access: allowed}
  packages:
    - {name: com.example.maps, label: Maps, uid: 10001}
  usage_stats:
    - {package: com.example.maps, interval: daily, first_time_stamp: 0,
       last_time_stamp: 86399999, last_time_used: 5000,
       total_time_in_foreground: 60500}
  events:
    - {package: com.example.maps, event_type: 1, timestamp: 1000}
  event_stats:
    - {interval: daily, event_type: 15, first_time_stamp: 0,
       last_time_stamp: 86399999, total_time: 3600000, count: 12}
  network:
    - {uid: 10001, network_class: wifi, start: 0, end: 3600000,
       rx_bytes: 4000, tx_bytes: 1000}`,
	Example: `  usagestats import device-2024-03-01.yaml
  usagestats import ./dumps`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

func init() {
	RootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	fs := afero.NewOsFs()
	im := ingest.New(fs, s.store, s.logger)

	var paths []string
	for _, arg := range args {
		info, err := fs.Stat(arg)
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		pending, err := im.Pending(arg)
		if err != nil {
			return err
		}
		paths = append(paths, pending...)
	}

	progress := output.NewProgress(len(paths), "Importing dumps")
	progress.SetWriter(cmd.ErrOrStderr())

	var imported, skipped, failed, rows int
	for _, path := range paths {
		progress.SetDescription(path)
		res, err := im.ImportFile(ctx, path)
		progress.Increment()
		if err != nil {
			s.logger.Error(ctx, "import failed", slog.F("path", path), slog.Error(err))
			failed++
			continue
		}
		if res.Skipped {
			skipped++
			continue
		}
		imported++
		rows += res.Rows
	}
	progress.SetDescription("Importing dumps")
	progress.Finish()

	if jsonOut {
		err = printJSON(cmd.OutOrStdout(), map[string]int{
			"imported": imported,
			"skipped":  skipped,
			"failed":   failed,
			"rows":     rows,
		})
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d dumps (%d rows), skipped %d already imported", imported, rows, skipped)
		if failed > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), ", %d failed", failed)
		}
		fmt.Fprintln(cmd.OutOrStdout())
	}
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d dumps failed to import", failed, len(paths))
	}
	return nil
}
