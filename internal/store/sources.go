package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/justdice/usagestats/internal/usage"
)

var (
	_ usage.RawUsageSource   = (*Store)(nil)
	_ usage.RawEventSource   = (*Store)(nil)
	_ usage.RawNetworkSource = (*Store)(nil)
	_ usage.RegistrySource   = (*Store)(nil)
	_ usage.PermissionSource = (*Store)(nil)
	_ usage.PlatformProber   = (*Store)(nil)
)

func resolveInterval(interval usage.Interval, tr usage.TimeRange) usage.Interval {
	if interval == usage.IntervalBest {
		return tr.BestInterval()
	}
	return interval
}

// QueryUsageStats returns every sample of the interval overlapping tr,
// one row per stored bucket.
func (s *Store) QueryUsageStats(ctx context.Context, interval usage.Interval, tr usage.TimeRange) ([]usage.RawUsageSample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT package, first_time_stamp, last_time_stamp, last_time_used, total_time_in_foreground
		FROM usage_samples
		WHERE interval = ? AND last_time_stamp >= ? AND first_time_stamp < ?
		ORDER BY package, first_time_stamp, id
	`, int(resolveInterval(interval, tr)), tr.Start(), tr.End())
	if err != nil {
		return nil, fmt.Errorf("failed to query usage samples: %w", classify(err))
	}
	defer rows.Close()

	var samples []usage.RawUsageSample
	for rows.Next() {
		var u usage.RawUsageSample
		if err := rows.Scan(&u.PackageName, &u.FirstTimeStamp, &u.LastTimeStamp, &u.LastTimeUsed, &u.TotalTimeInForeground); err != nil {
			return nil, fmt.Errorf("failed to scan usage sample row: %w", err)
		}
		samples = append(samples, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage samples: %w", err)
	}
	return samples, nil
}

// QueryAndAggregateUsageStats merges the best-fit interval's samples per
// package inside the database.
func (s *Store) QueryAndAggregateUsageStats(ctx context.Context, tr usage.TimeRange) (map[string]usage.RawUsageSample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT package,
		       MIN(first_time_stamp),
		       MAX(last_time_stamp),
		       MAX(last_time_used),
		       SUM(total_time_in_foreground)
		FROM usage_samples
		WHERE interval = ? AND last_time_stamp >= ? AND first_time_stamp < ?
		GROUP BY package
	`, int(tr.BestInterval()), tr.Start(), tr.End())
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate usage samples: %w", classify(err))
	}
	defer rows.Close()

	samples := make(map[string]usage.RawUsageSample)
	for rows.Next() {
		var u usage.RawUsageSample
		if err := rows.Scan(&u.PackageName, &u.FirstTimeStamp, &u.LastTimeStamp, &u.LastTimeUsed, &u.TotalTimeInForeground); err != nil {
			return nil, fmt.Errorf("failed to scan aggregated usage row: %w", err)
		}
		samples[u.PackageName] = u
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating aggregated usage: %w", err)
	}
	return samples, nil
}

// QueryEventStats returns the interval's event statistics overlapping tr.
func (s *Store) QueryEventStats(ctx context.Context, interval usage.Interval, tr usage.TimeRange) ([]usage.RawEventStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_type, first_time_stamp, last_time_stamp, total_time, count
		FROM event_stats
		WHERE interval = ? AND last_time_stamp >= ? AND first_time_stamp < ?
		ORDER BY event_type, first_time_stamp, id
	`, int(resolveInterval(interval, tr)), tr.Start(), tr.End())
	if err != nil {
		return nil, fmt.Errorf("failed to query event stats: %w", classify(err))
	}
	defer rows.Close()

	var stats []usage.RawEventStats
	for rows.Next() {
		var st usage.RawEventStats
		if err := rows.Scan(&st.EventType, &st.FirstTimeStamp, &st.LastTimeStamp, &st.TotalTime, &st.Count); err != nil {
			return nil, fmt.Errorf("failed to scan event stats row: %w", err)
		}
		stats = append(stats, st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event stats: %w", err)
	}
	return stats, nil
}

// QueryEvents opens a cursor over events in tr, oldest first, in
// insertion order for equal timestamps.
func (s *Store) QueryEvents(ctx context.Context, tr usage.TimeRange) (usage.EventCursor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT package, class_name, event_type, timestamp
		FROM usage_events
		WHERE timestamp >= ? AND timestamp < ?
		ORDER BY timestamp, id
	`, tr.Start(), tr.End())
	if err != nil {
		return nil, fmt.Errorf("failed to query usage events: %w", classify(err))
	}
	return newEventCursor(rows), nil
}

// QuerySummary opens a cursor over buckets of one network class that
// overlap tr. Buckets of every uid are returned.
func (s *Store) QuerySummary(ctx context.Context, class usage.NetworkClass, tr usage.TimeRange) (usage.BucketCursor, error) {
	if class != usage.NetworkMobile && class != usage.NetworkWifi {
		return nil, fmt.Errorf("%w: summary needs a single class, got %s", usage.ErrUnknownNetworkClass, class)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT uid, network_class, start_time_stamp, end_time_stamp, rx_bytes, tx_bytes
		FROM network_buckets
		WHERE network_class = ? AND end_time_stamp > ? AND start_time_stamp < ?
		ORDER BY start_time_stamp, id
	`, int(class), tr.Start(), tr.End())
	if err != nil {
		return nil, fmt.Errorf("failed to query network buckets: %w", classify(err))
	}
	return newBucketCursor(rows), nil
}

// ApplicationInfo looks a package up in the imported registry.
func (s *Store) ApplicationInfo(ctx context.Context, packageName string) (usage.ApplicationInfo, error) {
	var info usage.ApplicationInfo
	var label sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT name, label, uid, flags FROM packages WHERE name = ?
	`, packageName).Scan(&info.PackageName, &label, &info.UID, &info.Flags)
	if err == sql.ErrNoRows {
		return usage.ApplicationInfo{}, fmt.Errorf("package %s: %w", packageName, usage.ErrNotFound)
	}
	if err != nil {
		return usage.ApplicationInfo{}, fmt.Errorf("failed to get package %s: %w", packageName, classify(err))
	}
	info.Label = label.String
	return info, nil
}

// CheckUsageAccess reports whether the recorded usage-access mode is
// "allowed". A device without a recorded mode is not granted.
func (s *Store) CheckUsageAccess(ctx context.Context) (bool, error) {
	d, err := s.GetDevice(ctx)
	if err != nil {
		return false, err
	}
	return d.UsageAccess == ModeAllowed, nil
}

// PlatformLevel returns the recorded platform API level, 0 if unknown.
func (s *Store) PlatformLevel(ctx context.Context) (int, error) {
	d, err := s.GetDevice(ctx)
	if err != nil {
		return 0, err
	}
	return d.APILevel, nil
}
