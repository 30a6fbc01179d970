package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"cdr.dev/slog/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/justdice/usagestats/internal/ingest"
	"github.com/justdice/usagestats/internal/watcher"
)

var (
	watchDaemon      bool
	watchDaemonChild bool
	watchPIDFile     string
	watchLogFile     string
	watchStop        bool
	watchSpool       string
	watchMetricsAddr string

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Import dumps as they arrive in the spool directory",
		Long: `Watch the spool directory and import every telemetry dump dropped into it.

New files are imported as soon as they are written; the whole directory is
also rescanned periodically (rescan_interval in config.yaml, default 30s)
so partially written dumps are retried. Only one watcher may serve a spool
directory at a time.

Watch modes:
  • Foreground (default): Run in current terminal with Ctrl+C to stop
  • Daemon: Run as background process
  • Stop: Stop a running daemon

With --metrics-addr, Prometheus metrics for imports and queries are served
on /metrics.`,
		Example: `  # Run in foreground (Ctrl+C to stop)
  usagestats watch

  # Run as background daemon with metrics
  usagestats watch --daemon --metrics-addr 127.0.0.1:9464

  # Stop running daemon
  usagestats watch --stop`,
		RunE: runWatch,
	}
)

func init() {
	watchCmd.Flags().BoolVar(&watchDaemon, "daemon", false, "run as background daemon")
	watchCmd.Flags().BoolVar(&watchDaemonChild, "daemon-child", false, "internal flag for daemon child process")
	watchCmd.Flags().StringVar(&watchPIDFile, "pid-file", "", "PID file path (default: next to the database)")
	watchCmd.Flags().StringVar(&watchLogFile, "log-file", "", "log file path (default: next to the database)")
	watchCmd.Flags().BoolVar(&watchStop, "stop", false, "stop running daemon")
	watchCmd.Flags().StringVar(&watchSpool, "spool", "", "spool directory (default: spool_dir from config.yaml)")
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	// Hide the internal daemon-child flag from help
	watchCmd.Flags().MarkHidden("daemon-child")

	RootCmd.AddCommand(watchCmd)
}

// daemonFor resolves the PID and log files of the watch daemon. Both
// default to the database's directory.
func daemonFor(dbPath string) *watcher.Daemon {
	dir := filepath.Dir(dbPath)
	d := &watcher.Daemon{PIDFile: watchPIDFile, LogFile: watchLogFile}
	if d.PIDFile == "" {
		d.PIDFile = filepath.Join(dir, "watch.pid")
	}
	if d.LogFile == "" {
		d.LogFile = filepath.Join(dir, "watch.log")
	}
	return d
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	daemon := daemonFor(cfg.DBPath)

	if watchStop {
		return stopWatchDaemon(cmd, daemon)
	}
	if watchDaemon {
		return startWatchDaemon(cmd, daemon)
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	spool := watchSpool
	if spool == "" {
		spool = s.cfg.SpoolDir
	}
	if err := os.MkdirAll(spool, 0755); err != nil {
		return fmt.Errorf("failed to create spool directory: %w", err)
	}
	metricsAddr := watchMetricsAddr
	if metricsAddr == "" {
		metricsAddr = s.cfg.MetricsAddr
	}

	im := ingest.New(afero.NewOsFs(), s.store, s.logger, ingest.WithMetrics(ingest.NewMetrics(s.registry)))
	w, err := watcher.New(im, spool, s.logger, watcher.WithRescanInterval(s.cfg.RescanInterval))
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	run := func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return w.Run(gctx)
		})
		if metricsAddr != "" {
			srv := &http.Server{
				Addr:              metricsAddr,
				Handler:           metricsHandler(s),
				ReadHeaderTimeout: 10 * time.Second,
			}
			g.Go(func() error {
				s.logger.Info(gctx, "serving metrics", slog.F("addr", metricsAddr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("metrics server: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
		}
		return g.Wait()
	}

	if watchDaemonChild {
		// stdout/stderr are redirected to the log file
		return daemon.Run(cmd.Context(), run)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (press Ctrl+C to stop)...\n", spool)
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Watcher stopped")
	return nil
}

func metricsHandler(s *session) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return mux
}

func stopWatchDaemon(cmd *cobra.Command, daemon *watcher.Daemon) error {
	err := daemon.Stop()
	if errors.Is(err, watcher.ErrDaemonNotRunning) {
		fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "✓ Daemon stopped")
	return nil
}

// childArgs forwards the flags that shape the daemon's configuration.
func childArgs(pidFile string) []string {
	args := []string{"--pid-file", pidFile}
	forward := map[string]string{
		"--db":           dbPath,
		"--config-dir":   configDir,
		"--log-level":    logLevel,
		"--spool":        watchSpool,
		"--metrics-addr": watchMetricsAddr,
	}
	for _, flag := range []string{"--db", "--config-dir", "--log-level", "--spool", "--metrics-addr"} {
		if v := forward[flag]; v != "" {
			args = append(args, flag, v)
		}
	}
	if apiLevel != 0 {
		args = append(args, "--api-level", fmt.Sprint(apiLevel))
	}
	return args
}

func startWatchDaemon(cmd *cobra.Command, daemon *watcher.Daemon) error {
	if err := ensureParent(daemon.PIDFile); err != nil {
		return err
	}
	daemon.Args = childArgs(daemon.PIDFile)
	if err := daemon.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "✓ Daemon started")
	fmt.Fprintf(out, "  PID file: %s\n", daemon.PIDFile)
	fmt.Fprintf(out, "  Log file: %s\n", daemon.LogFile)
	fmt.Fprintf(out, "\nTo stop: usagestats watch --stop\n")
	return nil
}
