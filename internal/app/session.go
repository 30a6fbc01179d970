package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"cdr.dev/slog/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/justdice/usagestats/internal/analyzer"
	"github.com/justdice/usagestats/internal/config"
	"github.com/justdice/usagestats/internal/registry"
	"github.com/justdice/usagestats/internal/settings"
	"github.com/justdice/usagestats/internal/store"
	"github.com/justdice/usagestats/internal/usage"
)

// session is everything a query command needs: the store standing in for
// the platform services and an analyzer wired to it.
type session struct {
	cfg      *config.Config
	logger   slog.Logger
	store    *store.Store
	registry *prometheus.Registry
	analyzer *analyzer.Analyzer
}

// openSession loads configuration, opens the store and negotiates
// capabilities once for the lifetime of the command.
func openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cmd, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if err := ensureParent(cfg.DBPath); err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx := cmd.Context()
	caps, err := negotiate(ctx, st, cfg.APILevel)
	if err != nil {
		st.Close()
		return nil, err
	}
	logger.Debug(ctx, "capabilities negotiated", slog.F("capabilities", caps.String()))

	labels, err := config.LoadLabels(labelsDir())
	if err != nil {
		logger.Warn(ctx, "failed to read labels file", slog.Error(err))
	}

	launcher, err := settings.New(cfg.SettingsCommand)
	if err != nil {
		st.Close()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	a := analyzer.New(analyzer.Config{
		Usage:        st,
		Events:       st,
		Network:      st,
		Permission:   st,
		Settings:     launcher,
		Resolver:     registry.New(st, logger, registry.WithLabels(labels)),
		Capabilities: caps,
		Logger:       logger,
		Metrics:      analyzer.NewMetrics(reg),
	})

	return &session{cfg: cfg, logger: logger, store: st, registry: reg, analyzer: a}, nil
}

func (s *session) Close() error {
	return s.store.Close()
}

// negotiate probes capabilities from the configured level, falling back
// to the level recorded by imports. With neither known every capability
// is assumed.
func negotiate(ctx context.Context, prober usage.PlatformProber, override int) (usage.Capabilities, error) {
	level := override
	if level == 0 {
		recorded, err := prober.PlatformLevel(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read platform level: %w", err)
		}
		level = recorded
	}
	if level == 0 {
		return usage.AllCapabilities(), nil
	}
	return usage.ProbeCapabilities(level), nil
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
