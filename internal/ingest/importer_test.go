package ingest

import (
	"context"
	"strings"
	"testing"

	"cdr.dev/slog/v3/sloggers/slogtest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justdice/usagestats/internal/analyzer"
	"github.com/justdice/usagestats/internal/registry"
	"github.com/justdice/usagestats/internal/store"
	"github.com/justdice/usagestats/internal/usage"
)

const yamlDump = `
device:
  api_level: 29
  usage_access: allowed
packages:
  - name: com.example.maps
    label: Maps
    uid: 10001
  - name: android
    label: Android System
    uid: 1000
    system: true
usage_stats:
  - package: com.example.maps
    interval: daily
    first_time_stamp: 0
    last_time_stamp: 86399999
    last_time_used: 5000
    total_time_in_foreground: 60500
  - package: android
    interval: daily
    first_time_stamp: 0
    last_time_stamp: 86399999
    last_time_used: 1000
    total_time_in_foreground: 999
events:
  - package: com.example.maps
    event_type: 1
    timestamp: 1000
  - package: com.example.maps
    event_type: 2
    timestamp: 4000
network:
  - uid: 10001
    network_class: mobile
    start: 0
    end: 3600000
    rx_bytes: 100
    tx_bytes: 50
  - uid: 10001
    network_class: wifi
    start: 0
    end: 3600000
    rx_bytes: 4000
    tx_bytes: 1000
`

const jsonDump = `{
  "packages": [{"name": "com.example.chat", "label": "Chat", "uid": 10002}],
  "events": [{"package": "com.example.chat", "event_type": 23, "timestamp": 7000}]
}`

type fixture struct {
	fs       afero.Fs
	store    *store.Store
	importer *Importer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	fs := afero.NewMemMapFs()
	logger := slogtest.Make(t, &slogtest.Options{IgnoreErrors: true})
	return &fixture{fs: fs, store: st, importer: New(fs, st, logger)}
}

func (f *fixture) write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(f.fs, path, []byte(content), 0o644))
}

func TestImportFile_YAML(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.write(t, "/spool/device.yaml", yamlDump)

	res, err := f.importer.ImportFile(ctx, "/spool/device.yaml")
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.NotEmpty(t, res.BatchID)
	assert.Equal(t, 8, res.Rows)

	info, err := f.store.ApplicationInfo(ctx, "android")
	require.NoError(t, err)
	assert.True(t, info.IsSystem())

	level, err := f.store.PlatformLevel(ctx)
	require.NoError(t, err)
	assert.Equal(t, 29, level)
}

func TestImportFile_SkipsDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.write(t, "/spool/a.json", jsonDump)
	f.write(t, "/spool/copy-of-a.json", jsonDump)

	first, err := f.importer.ImportFile(ctx, "/spool/a.json")
	require.NoError(t, err)
	require.False(t, first.Skipped)

	second, err := f.importer.ImportFile(ctx, "/spool/copy-of-a.json")
	require.NoError(t, err)
	assert.True(t, second.Skipped)

	sum, err := f.store.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Events)
	assert.Equal(t, 1, sum.Imports)
}

func TestImportFile_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		content string
	}{
		{"unknown extension", "/spool/dump.txt", jsonDump},
		{"malformed json", "/spool/bad.json", `{"packages": [`},
		{"unknown field", "/spool/typo.yaml", "pakages: []\n"},
		{"best interval stored", "/spool/best.yaml", "usage_stats:\n  - package: a\n    interval: best\n"},
		{"unknown interval", "/spool/hourly.yaml", "usage_stats:\n  - package: a\n    interval: hourly\n"},
		{"all network class", "/spool/all.yaml", "network:\n  - uid: 1\n    network_class: all\n"},
		{"nameless package", "/spool/noname.yaml", "packages:\n  - uid: 1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.write(t, tt.path, tt.content)

			_, err := f.importer.ImportFile(context.Background(), tt.path)
			require.Error(t, err)

			sum, err := f.store.Summary(context.Background())
			require.NoError(t, err)
			assert.Zero(t, sum.Imports)
		})
	}
}

func TestImportFile_Missing(t *testing.T) {
	f := newFixture(t)

	_, err := f.importer.ImportFile(context.Background(), "/spool/nope.json")
	require.Error(t, err)
}

func TestImportDir(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.write(t, "/spool/b.json", jsonDump)
	f.write(t, "/spool/a.yaml", yamlDump)
	f.write(t, "/spool/broken.json", "{")
	f.write(t, "/spool/notes.txt", "ignored")
	require.NoError(t, f.fs.MkdirAll("/spool/sub.json", 0o755))

	pending, err := f.importer.Pending("/spool")
	require.NoError(t, err)
	assert.Equal(t, []string{"/spool/a.yaml", "/spool/b.json", "/spool/broken.json"}, pending)

	results, err := f.importer.ImportDir(ctx, "/spool")
	require.Error(t, err, "broken.json should surface")
	require.Len(t, results, 2)
	assert.Equal(t, "/spool/a.yaml", results[0].Path)
	assert.Equal(t, "/spool/b.json", results[1].Path)

	// Re-running applies nothing new.
	results, _ = f.importer.ImportDir(ctx, "/spool")
	for _, r := range results {
		assert.True(t, r.Skipped, r.Path)
	}
}

// TestImportedDumpFeedsAnalyzer runs a dump through the store into the
// engine, covering the whole read path.
func TestImportedDumpFeedsAnalyzer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.write(t, "/spool/device.yaml", yamlDump)
	_, err := f.importer.ImportFile(ctx, "/spool/device.yaml")
	require.NoError(t, err)

	logger := slogtest.Make(t, &slogtest.Options{IgnoreErrors: true})
	a := analyzer.New(analyzer.Config{
		Usage:        f.store,
		Events:       f.store,
		Network:      f.store,
		Permission:   f.store,
		Resolver:     registry.New(f.store, logger),
		Capabilities: usage.ProbeCapabilities(29),
		Logger:       logger,
	})

	day, err := usage.NewTimeRange(0, 86400000)
	require.NoError(t, err)

	records, err := a.QueryUsageStats(ctx, usage.IntervalDaily, day)
	require.NoError(t, err)
	require.Contains(t, records, "com.example.maps")
	assert.NotContains(t, records, "android", "999ms truncates to zero seconds")
	maps := records["com.example.maps"]
	assert.Equal(t, int64(60), maps.TotalForegroundSeconds)
	assert.Equal(t, "Maps", maps.DisplayName)

	events := a.QueryEvents(ctx, day)
	require.Len(t, events, 2)
	assert.Equal(t, usage.EventActivityResumed, events[0].EventType)

	total, err := a.AppDataUsage(ctx, "com.example.maps", usage.NetworkAll, day)
	require.NoError(t, err)
	assert.Equal(t, int64(5150), total)

	assert.True(t, a.HasUsageAccess(ctx))
}

func TestImportFile_RewrittenDumpReplacesPartialImport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Cut after the first usage sample: still a valid, shorter document.
	cut := strings.Index(yamlDump, "  - package: android\n    interval: daily")
	require.Positive(t, cut)
	f.write(t, "/spool/d.yaml", yamlDump[:cut])

	partial, err := f.importer.ImportFile(ctx, "/spool/d.yaml")
	require.NoError(t, err)
	assert.Equal(t, 3, partial.Rows)
	assert.Zero(t, partial.Replaced)

	f.write(t, "/spool/d.yaml", yamlDump)
	full, err := f.importer.ImportFile(ctx, "/spool/d.yaml")
	require.NoError(t, err)
	assert.Equal(t, 8, full.Rows)
	assert.Equal(t, 1, full.Replaced)

	sum, err := f.store.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Samples)
	assert.Equal(t, 2, sum.Buckets)
	assert.Equal(t, 1, sum.Imports)

	logger := slogtest.Make(t, &slogtest.Options{IgnoreErrors: true})
	a := analyzer.New(analyzer.Config{
		Usage:        f.store,
		Network:      f.store,
		Resolver:     registry.New(f.store, logger),
		Capabilities: usage.ProbeCapabilities(29),
		Logger:       logger,
	})
	day, err := usage.NewTimeRange(0, 86400000)
	require.NoError(t, err)

	records, err := a.QueryUsageStats(ctx, usage.IntervalDaily, day)
	require.NoError(t, err)
	assert.Equal(t, int64(60), records["com.example.maps"].TotalForegroundSeconds)

	hour, err := usage.NewTimeRange(0, 3600000)
	require.NoError(t, err)
	total, err := a.AppDataUsage(ctx, "com.example.maps", usage.NetworkAll, hour)
	require.NoError(t, err)
	assert.Equal(t, int64(5150), total)
}

func TestImportFile_SameNameInOtherDirectoryIsSeparate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.write(t, "/a/device.json", jsonDump)
	f.write(t, "/b/device.json", `{"events": [{"package": "com.example.chat", "event_type": 2, "timestamp": 9000}]}`)

	_, err := f.importer.ImportFile(ctx, "/a/device.json")
	require.NoError(t, err)
	res, err := f.importer.ImportFile(ctx, "/b/device.json")
	require.NoError(t, err)
	assert.Zero(t, res.Replaced)

	sum, err := f.store.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Events)
}

func TestImporterMetrics(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	fs := afero.NewMemMapFs()
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	im := New(fs, st, slogtest.Make(t, &slogtest.Options{IgnoreErrors: true}), WithMetrics(m))
	ctx := context.Background()

	require.NoError(t, afero.WriteFile(fs, "/a.json", []byte(jsonDump), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/b.json", []byte(jsonDump), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/c.json", []byte("{"), 0o644))

	_, _ = im.ImportFile(ctx, "/a.json")
	_, _ = im.ImportFile(ctx, "/b.json")
	_, _ = im.ImportFile(ctx, "/c.json")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dumps.WithLabelValues("imported")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dumps.WithLabelValues("skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dumps.WithLabelValues("failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Rows))
}
