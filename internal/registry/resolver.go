// Package registry resolves package identifiers to display metadata and
// platform uids, caching every lookup for the lifetime of the Resolver.
package registry

import (
	"context"
	"errors"
	"sync"

	"cdr.dev/slog/v3"
	"golang.org/x/sync/singleflight"

	"github.com/justdice/usagestats/internal/usage"
)

type entry struct {
	meta  usage.AppMetadata
	uid   int
	found bool
}

// Resolver maps package names to AppMetadata. Lookups never fail: a
// package missing from the registry resolves to its own name as display
// name and is classified as a user app. The cache has no eviction.
type Resolver struct {
	source    usage.RegistrySource
	overrides map[string]string
	logger    slog.Logger

	mu    sync.RWMutex
	cache map[string]entry
	group singleflight.Group
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLabels sets display-name overrides that win over registry labels.
func WithLabels(labels map[string]string) Option {
	return func(r *Resolver) {
		for pkg, label := range labels {
			r.overrides[pkg] = label
		}
	}
}

// New creates a Resolver backed by source.
func New(source usage.RegistrySource, logger slog.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		source:    source,
		overrides: make(map[string]string),
		logger:    logger.Named("registry"),
		cache:     make(map[string]entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns display metadata for packageName.
func (r *Resolver) Resolve(ctx context.Context, packageName string) usage.AppMetadata {
	return r.lookup(ctx, packageName).meta
}

// UID returns the platform uid owning packageName. The boolean is false
// when the package is not installed or the registry could not be read.
func (r *Resolver) UID(ctx context.Context, packageName string) (int, bool) {
	e := r.lookup(ctx, packageName)
	if !e.found {
		return 0, false
	}
	return e.uid, true
}

// Exists reports whether packageName is installed.
func (r *Resolver) Exists(ctx context.Context, packageName string) bool {
	return r.lookup(ctx, packageName).found
}

// Len returns the number of cached packages.
func (r *Resolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

func (r *Resolver) lookup(ctx context.Context, packageName string) entry {
	r.mu.RLock()
	e, ok := r.cache[packageName]
	r.mu.RUnlock()
	if ok {
		return e
	}

	v, _, _ := r.group.Do(packageName, func() (interface{}, error) {
		return r.fetch(ctx, packageName), nil
	})
	return v.(entry)
}

func (r *Resolver) fetch(ctx context.Context, packageName string) entry {
	e := entry{
		meta: usage.AppMetadata{
			PackageName: packageName,
			DisplayName: packageName,
		},
	}

	var info usage.ApplicationInfo
	var err error
	if r.source != nil {
		info, err = r.source.ApplicationInfo(ctx, packageName)
	} else {
		err = usage.ErrNotFound
	}

	switch {
	case err == nil:
		e.found = true
		e.uid = info.UID
		e.meta.IsSystemApp = info.IsSystem()
		if info.Label != "" {
			e.meta.DisplayName = info.Label
		}
	case errors.Is(err, usage.ErrNotFound):
		r.logger.Debug(ctx, "package not in registry", slog.F("package", packageName))
	default:
		// Transient failure: answer with the fallback but leave it uncached.
		r.logger.Warn(ctx, "registry lookup failed",
			slog.F("package", packageName), slog.Error(err))
		e.meta.DisplayName = r.label(packageName, e.meta.DisplayName)
		return e
	}

	e.meta.DisplayName = r.label(packageName, e.meta.DisplayName)

	r.mu.Lock()
	r.cache[packageName] = e
	r.mu.Unlock()
	return e
}

func (r *Resolver) label(packageName, fallback string) string {
	if label, ok := r.overrides[packageName]; ok && label != "" {
		return label
	}
	return fallback
}
