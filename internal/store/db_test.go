package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/justdice/usagestats/internal/usage"
)

// TestListPackages_NoSchema_ReturnsErrNotInitialized verifies that calling
// ListPackages on a fresh DB (no CreateSchema) returns ErrNotInitialized.
func TestListPackages_NoSchema_ReturnsErrNotInitialized(t *testing.T) {
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer s.Close()

	_, err = s.ListPackages(context.Background())
	if err == nil {
		t.Fatal("ListPackages() should return an error on uninitialized DB")
	}
	if !errors.Is(err, ErrNotInitialized) {
		t.Errorf("ListPackages() error = %v; want errors.Is(err, ErrNotInitialized) to be true", err)
	}
}

func TestQueryEvents_NoSchema_ReturnsErrNotInitialized(t *testing.T) {
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer s.Close()

	_, err = s.QueryEvents(context.Background(), mustRange(t, 0, 10))
	if !errors.Is(err, ErrNotInitialized) {
		t.Errorf("QueryEvents() error = %v; want ErrNotInitialized", err)
	}
}

func TestErrNotInitialized_ErrorMessage(t *testing.T) {
	if !strings.Contains(ErrNotInitialized.Error(), "usagestats import") {
		t.Errorf("ErrNotInitialized message %q should mention 'usagestats import'", ErrNotInitialized)
	}
}

// Helper function to create an in-memory store for testing
func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func mustRange(t *testing.T, start, end int64) usage.TimeRange {
	t.Helper()
	tr, err := usage.NewTimeRange(start, end)
	if err != nil {
		t.Fatalf("NewTimeRange(%d, %d) failed: %v", start, end, err)
	}
	return tr
}

func insert(t *testing.T, s *Store, b *Batch) {
	t.Helper()
	if b.ID == "" {
		b.ID = b.Checksum
	}
	if err := s.InsertBatch(context.Background(), b); err != nil {
		t.Fatalf("InsertBatch() failed: %v", err)
	}
}

func TestCreateSchema(t *testing.T) {
	s := newTestStore(t)

	tables := []string{"device", "packages", "usage_samples", "usage_events", "event_stats", "network_buckets", "imports"}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not created: %v", table, err)
		}
	}

	// Idempotent
	if err := s.CreateSchema(); err != nil {
		t.Errorf("second CreateSchema() failed: %v", err)
	}
}

func TestInsertBatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	insert(t, s, &Batch{
		Source:   "dump.json",
		Checksum: "abc",
		Device:   &Device{APILevel: 29, UsageAccess: ModeAllowed},
		Packages: []Package{
			{Name: "com.example.maps", Label: "Maps", UID: 10001},
			{Name: "android", Label: "Android System", UID: 1000, Flags: usage.FlagSystem},
		},
		Samples: []UsageSample{
			{Package: "com.example.maps", Interval: usage.IntervalDaily, FirstTimeStamp: 0, LastTimeStamp: 100, LastTimeUsed: 90, TotalTimeInForeground: 5000},
		},
		Events: []Event{
			{Package: "com.example.maps", EventType: 1, TimeStamp: 10},
		},
	})

	sum, err := s.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary() failed: %v", err)
	}
	if sum.Packages != 2 || sum.Samples != 1 || sum.Events != 1 || sum.Imports != 1 {
		t.Errorf("Summary() = %+v; want 2 packages, 1 sample, 1 event, 1 import", sum)
	}
	if sum.FirstEvent != 10 || sum.LastEvent != 10 {
		t.Errorf("event span = [%d, %d]; want [10, 10]", sum.FirstEvent, sum.LastEvent)
	}

	seen, err := s.HasImport(ctx, "abc")
	if err != nil || !seen {
		t.Errorf("HasImport(abc) = %v, %v; want true", seen, err)
	}
	seen, _ = s.HasImport(ctx, "other")
	if seen {
		t.Error("HasImport(other) = true; want false")
	}

	imports, err := s.ListImports(ctx)
	if err != nil {
		t.Fatalf("ListImports() failed: %v", err)
	}
	if len(imports) != 1 || imports[0].Rows != 4 || imports[0].Source != "dump.json" {
		t.Errorf("ListImports() = %+v; want one import of 4 rows", imports)
	}
	if imports[0].ImportedAt.IsZero() {
		t.Error("ImportedAt should be set")
	}

	level, err := s.PlatformLevel(ctx)
	if err != nil || level != 29 {
		t.Errorf("PlatformLevel() = %d, %v; want 29", level, err)
	}
	granted, err := s.CheckUsageAccess(ctx)
	if err != nil || !granted {
		t.Errorf("CheckUsageAccess() = %v, %v; want true", granted, err)
	}
}

func TestInsertBatch_DuplicateChecksumRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	insert(t, s, &Batch{ID: "1", Checksum: "same", Events: []Event{{Package: "a", EventType: 1, TimeStamp: 1}}})

	err := s.InsertBatch(ctx, &Batch{ID: "2", Checksum: "same", Events: []Event{{Package: "a", EventType: 2, TimeStamp: 2}}})
	if err == nil {
		t.Fatal("InsertBatch() with a duplicate checksum should fail")
	}

	sum, _ := s.Summary(ctx)
	if sum.Events != 1 {
		t.Errorf("events = %d after rolled back batch; want 1", sum.Events)
	}
}

func TestInsertBatch_SameSourceReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sample := UsageSample{Package: "a", Interval: usage.IntervalDaily, LastTimeStamp: 100, TotalTimeInForeground: 60000}
	bucket := Bucket{UID: 1, NetworkClass: usage.NetworkWifi, EndTime: 100, RxBytes: 10}

	insert(t, s, &Batch{ID: "1", Source: "/spool/d.yaml", Checksum: "prefix",
		Samples: []UsageSample{sample}})
	insert(t, s, &Batch{ID: "2", Source: "/spool/other.yaml", Checksum: "other",
		Buckets: []Bucket{bucket}})
	insert(t, s, &Batch{ID: "3", Source: "/spool/d.yaml", Checksum: "full",
		Samples: []UsageSample{sample}, Buckets: []Bucket{bucket}})

	sum, err := s.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary() failed: %v", err)
	}
	if sum.Samples != 1 || sum.Buckets != 2 || sum.Imports != 2 {
		t.Errorf("Summary() = %+v; want 1 sample, 2 buckets, 2 imports", sum)
	}

	if seen, _ := s.HasImport(ctx, "prefix"); seen {
		t.Error("replaced batch is still recorded")
	}
	ids, err := s.ImportsFrom(ctx, "/spool/d.yaml")
	if err != nil {
		t.Fatalf("ImportsFrom() failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != "3" {
		t.Errorf("ImportsFrom() = %v; want [3]", ids)
	}
}

func TestPackageReplace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	insert(t, s, &Batch{Checksum: "1", Packages: []Package{{Name: "a", Label: "Old", UID: 1}}})
	insert(t, s, &Batch{Checksum: "2", Packages: []Package{{Name: "a", Label: "New", UID: 2}}})

	p, err := s.GetPackage(ctx, "a")
	if err != nil {
		t.Fatalf("GetPackage() failed: %v", err)
	}
	if p.Label != "New" || p.UID != 2 {
		t.Errorf("GetPackage() = %+v; want label New, uid 2", p)
	}

	pkgs, _ := s.ListPackages(ctx)
	if len(pkgs) != 1 {
		t.Errorf("ListPackages() returned %d; want 1", len(pkgs))
	}
}

func TestDevicePartialUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SetDevice(ctx, &Device{APILevel: 28, UsageAccess: ModeIgnored}); err != nil {
		t.Fatalf("SetDevice() failed: %v", err)
	}
	if err := s.SetDevice(ctx, &Device{UsageAccess: ModeAllowed}); err != nil {
		t.Fatalf("SetDevice() failed: %v", err)
	}

	d, err := s.GetDevice(ctx)
	if err != nil {
		t.Fatalf("GetDevice() failed: %v", err)
	}
	if d.APILevel != 28 || d.UsageAccess != ModeAllowed {
		t.Errorf("GetDevice() = %+v; want level 28, allowed", d)
	}
}

func TestCheckUsageAccess_NoProfile(t *testing.T) {
	s := newTestStore(t)

	granted, err := s.CheckUsageAccess(context.Background())
	if err != nil {
		t.Fatalf("CheckUsageAccess() failed: %v", err)
	}
	if granted {
		t.Error("CheckUsageAccess() = true with no recorded mode; want false")
	}
}

func TestApplicationInfo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	insert(t, s, &Batch{Checksum: "1", Packages: []Package{{Name: "android", Label: "Android System", UID: 1000, Flags: usage.FlagSystem}}})

	info, err := s.ApplicationInfo(ctx, "android")
	if err != nil {
		t.Fatalf("ApplicationInfo() failed: %v", err)
	}
	if info.UID != 1000 || !info.IsSystem() || info.Label != "Android System" {
		t.Errorf("ApplicationInfo() = %+v", info)
	}

	_, err = s.ApplicationInfo(ctx, "missing")
	if !errors.Is(err, usage.ErrNotFound) {
		t.Errorf("ApplicationInfo(missing) error = %v; want ErrNotFound", err)
	}
}

func TestQueryUsageStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	insert(t, s, &Batch{Checksum: "1", Samples: []UsageSample{
		{Package: "a", Interval: usage.IntervalDaily, FirstTimeStamp: 0, LastTimeStamp: 99, TotalTimeInForeground: 1000},
		{Package: "a", Interval: usage.IntervalDaily, FirstTimeStamp: 100, LastTimeStamp: 199, TotalTimeInForeground: 2000},
		{Package: "a", Interval: usage.IntervalWeekly, FirstTimeStamp: 0, LastTimeStamp: 199, TotalTimeInForeground: 3000},
		{Package: "b", Interval: usage.IntervalDaily, FirstTimeStamp: 500, LastTimeStamp: 599, TotalTimeInForeground: 9000},
	}})

	samples, err := s.QueryUsageStats(ctx, usage.IntervalDaily, mustRange(t, 50, 200))
	if err != nil {
		t.Fatalf("QueryUsageStats() failed: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("QueryUsageStats() returned %d samples; want 2 daily buckets of a", len(samples))
	}
	for _, u := range samples {
		if u.PackageName != "a" {
			t.Errorf("unexpected package %s", u.PackageName)
		}
	}

	// A short range resolves BEST to daily.
	best, err := s.QueryUsageStats(ctx, usage.IntervalBest, mustRange(t, 0, 1000))
	if err != nil {
		t.Fatalf("QueryUsageStats(BEST) failed: %v", err)
	}
	if len(best) != 3 {
		t.Errorf("QueryUsageStats(BEST) returned %d samples; want 3", len(best))
	}
}

func TestQueryAndAggregateUsageStats(t *testing.T) {
	s := newTestStore(t)
	insert(t, s, &Batch{Checksum: "1", Samples: []UsageSample{
		{Package: "a", Interval: usage.IntervalDaily, FirstTimeStamp: 0, LastTimeStamp: 99, LastTimeUsed: 50, TotalTimeInForeground: 1000},
		{Package: "a", Interval: usage.IntervalDaily, FirstTimeStamp: 100, LastTimeStamp: 199, LastTimeUsed: 150, TotalTimeInForeground: 2000},
	}})

	agg, err := s.QueryAndAggregateUsageStats(context.Background(), mustRange(t, 0, 1000))
	if err != nil {
		t.Fatalf("QueryAndAggregateUsageStats() failed: %v", err)
	}
	a, ok := agg["a"]
	if !ok {
		t.Fatal("package a missing from aggregate")
	}
	if a.TotalTimeInForeground != 3000 || a.FirstTimeStamp != 0 || a.LastTimeStamp != 199 || a.LastTimeUsed != 150 {
		t.Errorf("aggregate = %+v", a)
	}
}

func TestQueryEventStats(t *testing.T) {
	s := newTestStore(t)
	insert(t, s, &Batch{Checksum: "1", EventStats: []EventStat{
		{Interval: usage.IntervalDaily, EventType: 15, FirstTimeStamp: 0, LastTimeStamp: 99, TotalTime: 10, Count: 1},
		{Interval: usage.IntervalDaily, EventType: 16, FirstTimeStamp: 5000, LastTimeStamp: 5099, TotalTime: 10, Count: 1},
	}})

	stats, err := s.QueryEventStats(context.Background(), usage.IntervalDaily, mustRange(t, 0, 1000))
	if err != nil {
		t.Fatalf("QueryEventStats() failed: %v", err)
	}
	if len(stats) != 1 || stats[0].EventType != 15 {
		t.Errorf("QueryEventStats() = %+v; want only type 15", stats)
	}
}

func TestEventCursor(t *testing.T) {
	s := newTestStore(t)
	insert(t, s, &Batch{Checksum: "1", Events: []Event{
		{Package: "b", EventType: 2, TimeStamp: 20},
		{Package: "a", EventType: 1, TimeStamp: 10},
		{Package: "c", EventType: 1, TimeStamp: 20},
		{Package: "late", EventType: 1, TimeStamp: 100},
	}})

	cursor, err := s.QueryEvents(context.Background(), mustRange(t, 10, 100))
	if err != nil {
		t.Fatalf("QueryEvents() failed: %v", err)
	}
	defer cursor.Close()

	var got []string
	var ev usage.RawEvent
	for cursor.HasNextEvent() {
		if !cursor.NextEvent(&ev) {
			t.Fatal("NextEvent() = false after HasNextEvent() = true")
		}
		got = append(got, ev.PackageName)
	}
	if err := cursor.Err(); err != nil {
		t.Fatalf("cursor error: %v", err)
	}

	want := []string{"a", "b", "c"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("events = %v; want %v", got, want)
	}
	if cursor.NextEvent(&ev) {
		t.Error("NextEvent() on exhausted cursor should return false")
	}
}

func TestEventCursor_EmptyRange(t *testing.T) {
	s := newTestStore(t)

	cursor, err := s.QueryEvents(context.Background(), mustRange(t, 0, 0))
	if err != nil {
		t.Fatalf("QueryEvents() failed: %v", err)
	}
	if cursor.HasNextEvent() {
		t.Error("HasNextEvent() on empty range should be false")
	}
	if err := cursor.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
	// Closing twice is harmless.
	if err := cursor.Close(); err != nil {
		t.Errorf("second Close() failed: %v", err)
	}
}

func TestBucketCursor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	insert(t, s, &Batch{Checksum: "1", Buckets: []Bucket{
		{UID: 7, NetworkClass: usage.NetworkMobile, StartTime: 0, EndTime: 100, RxBytes: 100, TxBytes: 50},
		{UID: 8, NetworkClass: usage.NetworkMobile, StartTime: 0, EndTime: 100, RxBytes: 999, TxBytes: 999},
		{UID: 7, NetworkClass: usage.NetworkMobile, StartTime: 100, EndTime: 200, RxBytes: 10, TxBytes: 10},
		{UID: 7, NetworkClass: usage.NetworkWifi, StartTime: 0, EndTime: 100, RxBytes: 5000, TxBytes: 0},
		{UID: 7, NetworkClass: usage.NetworkMobile, StartTime: 200, EndTime: 300, RxBytes: 1, TxBytes: 1},
	}})

	cursor, err := s.QuerySummary(ctx, usage.NetworkMobile, mustRange(t, 0, 200))
	if err != nil {
		t.Fatalf("QuerySummary() failed: %v", err)
	}
	defer cursor.Close()

	var total int64
	var n int
	var b usage.NetworkBucket
	for cursor.NextBucket(&b) {
		n++
		if b.NetworkClass != usage.NetworkMobile {
			t.Errorf("bucket class = %s; want MOBILE", b.NetworkClass)
		}
		if b.UID == 7 {
			total += b.RxBytes + b.TxBytes
		}
		if !cursor.HasNextBucket() {
			break
		}
	}
	if n != 3 {
		t.Errorf("visited %d buckets; want 3", n)
	}
	if total != 170 {
		t.Errorf("uid 7 mobile total = %d; want 170", total)
	}
}

func TestQuerySummary_RejectsAll(t *testing.T) {
	s := newTestStore(t)

	_, err := s.QuerySummary(context.Background(), usage.NetworkAll, mustRange(t, 0, 10))
	if !errors.Is(err, usage.ErrUnknownNetworkClass) {
		t.Errorf("QuerySummary(ALL) error = %v; want ErrUnknownNetworkClass", err)
	}
}
