package analyzer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"cdr.dev/slog/v3/sloggers/slogtest"

	"github.com/justdice/usagestats/internal/registry"
	"github.com/justdice/usagestats/internal/usage"
)

var errBinder = errors.New("remote service died")

type fakeUsage struct {
	samples    []usage.RawUsageSample
	aggregated map[string]usage.RawUsageSample
	eventStats []usage.RawEventStats
	err        error

	gotInterval usage.Interval
}

func (f *fakeUsage) QueryUsageStats(_ context.Context, interval usage.Interval, _ usage.TimeRange) ([]usage.RawUsageSample, error) {
	f.gotInterval = interval
	return f.samples, f.err
}

func (f *fakeUsage) QueryAndAggregateUsageStats(context.Context, usage.TimeRange) (map[string]usage.RawUsageSample, error) {
	return f.aggregated, f.err
}

func (f *fakeUsage) QueryEventStats(context.Context, usage.Interval, usage.TimeRange) ([]usage.RawEventStats, error) {
	return f.eventStats, f.err
}

// sliceEventCursor replays a fixed event list with peek-then-advance
// semantics and records protocol violations.
type sliceEventCursor struct {
	events     []usage.RawEvent
	pos        int
	failAt     int
	err        error
	closed     int
	violations int
}

func (c *sliceEventCursor) HasNextEvent() bool {
	if c.failAt > 0 && c.pos >= c.failAt {
		c.err = errBinder
		return false
	}
	return c.pos < len(c.events)
}

func (c *sliceEventCursor) NextEvent(ev *usage.RawEvent) bool {
	if c.pos >= len(c.events) {
		c.violations++
		return false
	}
	*ev = c.events[c.pos]
	c.pos++
	return true
}

func (c *sliceEventCursor) Err() error   { return c.err }
func (c *sliceEventCursor) Close() error { c.closed++; return nil }

type fakeEvents struct {
	events  []usage.RawEvent
	failAt  int
	err     error
	cursors []*sliceEventCursor
}

func (f *fakeEvents) QueryEvents(context.Context, usage.TimeRange) (usage.EventCursor, error) {
	if f.err != nil {
		return nil, f.err
	}
	c := &sliceEventCursor{events: f.events, failAt: f.failAt}
	f.cursors = append(f.cursors, c)
	return c, nil
}

// sliceBucketCursor mimics the platform bucket cursor: NextBucket moves
// into the next bucket, HasNextBucket peeks past it.
type sliceBucketCursor struct {
	buckets []usage.NetworkBucket
	pos     int
	err     error
	closed  bool
}

func (c *sliceBucketCursor) NextBucket(b *usage.NetworkBucket) bool {
	if c.pos >= len(c.buckets) {
		return false
	}
	*b = c.buckets[c.pos]
	c.pos++
	return true
}

func (c *sliceBucketCursor) HasNextBucket() bool { return c.pos < len(c.buckets) }
func (c *sliceBucketCursor) Err() error          { return c.err }
func (c *sliceBucketCursor) Close() error        { c.closed = true; return nil }

type fakeNetwork struct {
	byClass map[usage.NetworkClass][]usage.NetworkBucket
	failFor map[usage.NetworkClass]error
	midErr  map[usage.NetworkClass]error
	queried []usage.NetworkClass
	cursors []*sliceBucketCursor
}

func (f *fakeNetwork) QuerySummary(_ context.Context, class usage.NetworkClass, _ usage.TimeRange) (usage.BucketCursor, error) {
	f.queried = append(f.queried, class)
	if err := f.failFor[class]; err != nil {
		return nil, err
	}
	c := &sliceBucketCursor{buckets: f.byClass[class], err: f.midErr[class]}
	f.cursors = append(f.cursors, c)
	return c, nil
}

type fakeRegistry map[string]usage.ApplicationInfo

func (f fakeRegistry) ApplicationInfo(_ context.Context, pkg string) (usage.ApplicationInfo, error) {
	info, ok := f[pkg]
	if !ok {
		return usage.ApplicationInfo{}, fmt.Errorf("%s: %w", pkg, usage.ErrNotFound)
	}
	return info, nil
}

type fakePermission struct {
	granted bool
	err     error
	panics  bool
	calls   int
}

func (f *fakePermission) CheckUsageAccess(context.Context) (bool, error) {
	f.calls++
	if f.panics {
		panic("security exception")
	}
	return f.granted, f.err
}

type fakeLauncher struct {
	opened []string
	err    error
}

func (f *fakeLauncher) OpenUsageAccessSettings(_ context.Context, pkg string) error {
	f.opened = append(f.opened, pkg)
	return f.err
}

func testRegistry() fakeRegistry {
	return fakeRegistry{
		"a":                {PackageName: "a", Label: "App A", UID: 7},
		"b":                {PackageName: "b", Label: "App B", UID: 8},
		"x":                {PackageName: "x", Label: "X", UID: 9},
		"com.example.maps": {PackageName: "com.example.maps", Label: "Maps", UID: 7},
		"android":          {PackageName: "android", Label: "Android System", UID: 1000, Flags: usage.FlagSystem},
	}
}

func newTestAnalyzer(t *testing.T, cfg Config) *Analyzer {
	t.Helper()
	logger := slogtest.Make(t, &slogtest.Options{IgnoreErrors: true})
	if cfg.Resolver == nil {
		cfg.Resolver = registry.New(testRegistry(), logger)
	}
	cfg.Logger = logger
	return New(cfg)
}

func mustRange(t *testing.T, start, end int64) usage.TimeRange {
	t.Helper()
	tr, err := usage.NewTimeRange(start, end)
	if err != nil {
		t.Fatalf("NewTimeRange(%d, %d): %v", start, end, err)
	}
	return tr
}
