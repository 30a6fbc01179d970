// Package ingest loads device telemetry dumps into the store.
//
// A dump is a JSON or YAML export of what the platform accounting
// services reported on one device: the package registry, per-interval
// usage samples, the event log, event statistics and network buckets.
// Each dump is applied at most once, keyed by the SHA-256 of its bytes.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sort"

	"cdr.dev/slog/v3"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/justdice/usagestats/internal/store"
)

// Result describes the outcome of importing one file.
type Result struct {
	Path    string
	BatchID string
	Rows    int
	// Skipped is set when an identical dump was imported before.
	Skipped bool
	// Replaced counts earlier batches from the same path that this import
	// superseded, e.g. a dump imported while it was still being written.
	Replaced int
}

// Importer reads dumps from a filesystem and writes them to a store.
type Importer struct {
	fs      afero.Fs
	store   *store.Store
	logger  slog.Logger
	metrics *Metrics
}

// Option configures an Importer.
type Option func(*Importer)

// WithMetrics records import outcomes in m.
func WithMetrics(m *Metrics) Option {
	return func(im *Importer) { im.metrics = m }
}

// New creates an Importer. fs is usually afero.NewOsFs().
func New(fs afero.Fs, st *store.Store, logger slog.Logger, opts ...Option) *Importer {
	im := &Importer{fs: fs, store: st, logger: logger.Named("ingest")}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// ImportFile decodes and applies one dump.
func (im *Importer) ImportFile(ctx context.Context, path string) (*Result, error) {
	res, err := im.importFile(ctx, path)
	switch {
	case err != nil:
		im.metrics.dump("failed", 0)
	case res.Skipped:
		im.metrics.dump("skipped", 0)
	default:
		im.metrics.dump("imported", res.Rows)
	}
	return res, err
}

func (im *Importer) importFile(ctx context.Context, path string) (*Result, error) {
	format, ok := FormatFor(path)
	if !ok {
		return nil, fmt.Errorf("%s: not a .json or .yaml dump", path)
	}

	data, err := afero.ReadFile(im.fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	sum := sha256.Sum256(data)
	checksum := hex.EncodeToString(sum[:])

	seen, err := im.store.HasImport(ctx, checksum)
	if err != nil {
		return nil, err
	}
	if seen {
		im.logger.Debug(ctx, "dump already imported", slog.F("path", path), slog.F("checksum", checksum))
		return &Result{Path: path, Skipped: true}, nil
	}

	dump, err := Decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	batch, err := dump.Batch()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	batch.ID = uuid.NewString()
	batch.Source = sourceOf(path)
	batch.Checksum = checksum

	previous, err := im.store.ImportsFrom(ctx, batch.Source)
	if err != nil {
		return nil, err
	}
	if err := im.store.InsertBatch(ctx, batch); err != nil {
		return nil, err
	}

	im.logger.Info(ctx, "imported dump",
		slog.F("path", path),
		slog.F("batch_id", batch.ID),
		slog.F("rows", batch.Rows()),
		slog.F("replaced", len(previous)),
	)
	return &Result{Path: path, BatchID: batch.ID, Rows: batch.Rows(), Replaced: len(previous)}, nil
}

// sourceOf identifies a dump by its absolute path. A later import from
// the same path replaces the earlier one.
func sourceOf(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// ImportDir imports every dump directly inside dir in name order. A file
// that fails is logged and skipped; the first such error is returned
// alongside the results of the others.
func (im *Importer) ImportDir(ctx context.Context, dir string) ([]*Result, error) {
	paths, err := im.Pending(dir)
	if err != nil {
		return nil, err
	}

	var results []*Result
	var firstErr error
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := im.ImportFile(ctx, path)
		if err != nil {
			im.logger.Warn(ctx, "failed to import dump", slog.F("path", path), slog.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		results = append(results, res)
	}
	return results, firstErr
}

// Pending lists the dump files in dir, sorted by name.
func (im *Importer) Pending(dir string) ([]string, error) {
	entries, err := afero.ReadDir(im.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := FormatFor(e.Name()); ok {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
