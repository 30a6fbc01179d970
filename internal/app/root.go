package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cdr.dev/slog/v3"
	"cdr.dev/slog/v3/sloggers/sloghuman"
	"github.com/spf13/cobra"

	"github.com/justdice/usagestats/internal/config"
)

var (
	dbPath    string
	configDir string
	logLevel  string
	apiLevel  int
	jsonOut   bool

	// RootCmd is the root command for usagestats
	RootCmd = &cobra.Command{
		Use:   "usagestats",
		Short: "Per-app usage and network statistics from device telemetry",
		Long: `usagestats aggregates application usage and network statistics from
device telemetry dumps.

Dumps are JSON or YAML exports of the platform accounting services: the
installed package registry, per-interval usage samples, the event log,
event statistics and per-uid network buckets. Import them once, or let
'usagestats watch' pick them up from a spool directory, then query.

Quick Start:
  1. usagestats import ./dumps
  2. usagestats status
  3. usagestats usage --start 7d

Capabilities follow the device's platform level: aggregate usage needs
level 22, network statistics 23 and event statistics 28. Override the
recorded level with --api-level.

Examples:
  # Foreground time per app over the last day
  usagestats usage

  # One merged record per app over a custom range
  usagestats aggregate --start 2024-03-01T00:00:00Z --end 2024-03-08T00:00:00Z

  # Raw event log as JSON
  usagestats events --start 2h --json

  # Bytes used by one app over Wi-Fi and mobile
  usagestats data-usage com.example.maps --network all --start 30d`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	// Global flags
	RootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default: <config-dir>/usagestats.db)")
	RootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default: $XDG_CONFIG_HOME/usagestats)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (default: info)")
	RootCmd.PersistentFlags().IntVar(&apiLevel, "api-level", 0, "platform level used for capability probing (default: level recorded by imports)")
	RootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print machine-readable JSON")

	// Enable cobra's built-in suggestion feature for unknown subcommands
	RootCmd.SuggestionsMinimumDistance = 2
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}

// loadConfig resolves the configuration and applies command-line flags
// on top.
func loadConfig() (*config.Config, error) {
	dir := configDir
	if dir == "" {
		d, err := config.Dir()
		if err != nil {
			return nil, fmt.Errorf("failed to locate config directory: %w", err)
		}
		dir = d
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if apiLevel != 0 {
		cfg.APILevel = apiLevel
	}
	return cfg, nil
}

// labelsDir is where the labels file is read from.
func labelsDir() string {
	if configDir != "" {
		return configDir
	}
	dir, err := config.Dir()
	if err != nil {
		return ""
	}
	return dir
}

// ensureParent creates the parent directory of path.
func ensureParent(path string) error {
	if path == ":memory:" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

// newLogger logs human-readable lines to the command's stderr.
func newLogger(cmd *cobra.Command, level string) (slog.Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return slog.Logger{}, err
	}
	return slog.Make(sloghuman.Sink(cmd.ErrOrStderr())).Leveled(lvl), nil
}
