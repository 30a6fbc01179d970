// Package analyzer turns raw platform accounting data into normalized
// per-application usage records, typed event streams and per-app network
// totals.
//
// Every operation is synchronous. Failures of an underlying source are
// logged and counted, and the affected sub-query contributes an empty or
// zero result instead of failing the call. Only capability gaps and
// invalid arguments are returned as errors.
package analyzer

import (
	"context"
	"fmt"

	"cdr.dev/slog/v3"

	"github.com/justdice/usagestats/internal/registry"
	"github.com/justdice/usagestats/internal/usage"
)

// Config wires an Analyzer to its sources. Nil sources behave as sources
// that return nothing.
type Config struct {
	Usage      usage.RawUsageSource
	Events     usage.RawEventSource
	Network    usage.RawNetworkSource
	Permission usage.PermissionSource
	Settings   usage.SettingsLauncher

	// Resolver defaults to a resolver with no registry behind it.
	Resolver *registry.Resolver
	// Capabilities defaults to every capability enabled.
	Capabilities usage.Capabilities

	Logger  slog.Logger
	Metrics *Metrics
}

// Analyzer is the usage and network statistics engine.
type Analyzer struct {
	usage      usage.RawUsageSource
	events     usage.RawEventSource
	network    usage.RawNetworkSource
	permission usage.PermissionSource
	settings   usage.SettingsLauncher

	resolver *registry.Resolver
	caps     usage.Capabilities
	logger   slog.Logger
	metrics  *Metrics
}

// New creates a new Analyzer.
func New(cfg Config) *Analyzer {
	logger := cfg.Logger.Named("analyzer")
	a := &Analyzer{
		usage:      cfg.Usage,
		events:     cfg.Events,
		network:    cfg.Network,
		permission: cfg.Permission,
		settings:   cfg.Settings,
		resolver:   cfg.Resolver,
		caps:       cfg.Capabilities,
		logger:     logger,
		metrics:    cfg.Metrics,
	}
	if a.resolver == nil {
		a.resolver = registry.New(nil, cfg.Logger)
	}
	if a.caps == nil {
		a.caps = usage.AllCapabilities()
	}
	return a
}

// Capabilities returns the capability set the analyzer was built with.
func (a *Analyzer) Capabilities() usage.Capabilities {
	return a.caps
}

// Resolver returns the metadata resolver used for display names.
func (a *Analyzer) Resolver() *registry.Resolver {
	return a.resolver
}

func (a *Analyzer) require(ctx context.Context, c usage.Capability) error {
	if err := a.caps.Require(c); err != nil {
		a.metrics.unsupported(c)
		a.logger.Debug(ctx, "capability not available", slog.F("capability", c))
		return err
	}
	return nil
}

// sourceFailed records a failed sub-query. The caller then continues
// with an empty contribution.
func (a *Analyzer) sourceFailed(ctx context.Context, source string, err error) {
	a.metrics.sourceFailure(source)
	a.logger.Warn(ctx, "accounting query failed",
		slog.F("source", source),
		slog.Error(fmt.Errorf("%w: %w", usage.ErrSourceUnavailable, err)))
}
