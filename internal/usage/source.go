package usage

import "context"

// RawUsageSource exposes the platform usage accounting service.
type RawUsageSource interface {
	// QueryUsageStats returns samples bucketed at the given interval. A
	// package may appear once per bucket.
	QueryUsageStats(ctx context.Context, interval Interval, tr TimeRange) ([]RawUsageSample, error)
	// QueryAndAggregateUsageStats returns one sample per package, already
	// merged by the source across the whole range.
	QueryAndAggregateUsageStats(ctx context.Context, tr TimeRange) (map[string]RawUsageSample, error)
	QueryEventStats(ctx context.Context, interval Interval, tr TimeRange) ([]RawEventStats, error)
}

// EventCursor is a stateful, single-pass cursor over the event log.
// Callers check HasNextEvent before every NextEvent.
type EventCursor interface {
	HasNextEvent() bool
	// NextEvent advances the cursor and fills ev. It returns false when
	// the cursor is exhausted or failed.
	NextEvent(ev *RawEvent) bool
	Err() error
	Close() error
}

// RawEventSource opens event cursors.
type RawEventSource interface {
	QueryEvents(ctx context.Context, tr TimeRange) (EventCursor, error)
}

// BucketCursor iterates network buckets advance-first: NextBucket moves
// into an element, the caller consumes it, then HasNextBucket decides
// whether to advance again.
type BucketCursor interface {
	NextBucket(b *NetworkBucket) bool
	HasNextBucket() bool
	Err() error
	Close() error
}

// RawNetworkSource opens a bucket cursor for exactly one network class.
type RawNetworkSource interface {
	QuerySummary(ctx context.Context, class NetworkClass, tr TimeRange) (BucketCursor, error)
}

// RegistrySource looks up installed applications. Missing packages are
// reported with an error wrapping ErrNotFound.
type RegistrySource interface {
	ApplicationInfo(ctx context.Context, packageName string) (ApplicationInfo, error)
}

// PermissionSource reports whether the usage-access grant is held.
type PermissionSource interface {
	CheckUsageAccess(ctx context.Context) (bool, error)
}

// SettingsLauncher opens the host's usage-access settings screen. An
// empty packageName opens the generic screen.
type SettingsLauncher interface {
	OpenUsageAccessSettings(ctx context.Context, packageName string) error
}

// PlatformProber reports the platform level used for capability probing.
type PlatformProber interface {
	PlatformLevel(ctx context.Context) (int, error)
}
