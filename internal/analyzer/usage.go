package analyzer

import (
	"context"
	"fmt"

	"cdr.dev/slog/v3"

	"github.com/justdice/usagestats/internal/usage"
)

// Normalize converts one raw sample into an AppUsageRecord. Foreground
// time is truncated to whole seconds; samples that truncate to zero, or
// that carry no package name, are discarded.
func (a *Analyzer) Normalize(ctx context.Context, raw usage.RawUsageSample) (usage.AppUsageRecord, bool) {
	seconds := raw.TotalTimeInForeground / 1000
	if seconds <= 0 || raw.PackageName == "" {
		a.metrics.sampleDropped()
		return usage.AppUsageRecord{}, false
	}

	meta := a.resolver.Resolve(ctx, raw.PackageName)
	return usage.AppUsageRecord{
		PackageName:            raw.PackageName,
		DisplayName:            meta.DisplayName,
		TotalForegroundSeconds: seconds,
		FirstSeen:              raw.FirstTimeStamp,
		LastSeen:               raw.LastTimeStamp,
		LastUsed:               raw.LastTimeUsed,
		IsSystemApp:            meta.IsSystemApp,
	}, true
}

// QueryUsageStats returns per-package usage for samples bucketed at the
// given interval. A package reported in several buckets is merged into
// one record: durations are summed, FirstSeen is the earliest and
// LastSeen/LastUsed the latest across buckets.
func (a *Analyzer) QueryUsageStats(ctx context.Context, interval usage.Interval, tr usage.TimeRange) (map[string]usage.AppUsageRecord, error) {
	if !interval.Valid() {
		return nil, fmt.Errorf("%w: %d", usage.ErrUnknownInterval, interval)
	}

	result := make(map[string]usage.AppUsageRecord)
	if a.usage == nil {
		return result, nil
	}

	samples, err := a.usage.QueryUsageStats(ctx, interval, tr)
	if err != nil {
		a.sourceFailed(ctx, "usage", err)
		return result, nil
	}

	for _, raw := range samples {
		a.mergeSample(ctx, result, raw)
	}

	a.logger.Debug(ctx, "usage stats queried",
		slog.F("interval", interval),
		slog.F("range", tr.String()),
		slog.F("samples", len(samples)),
		slog.F("packages", len(result)))
	return result, nil
}

// QueryAndAggregateUsageStats returns per-package usage merged by the
// source across the whole range. It fails with ErrCapabilityUnsupported
// when the platform cannot aggregate custom ranges.
func (a *Analyzer) QueryAndAggregateUsageStats(ctx context.Context, tr usage.TimeRange) (map[string]usage.AppUsageRecord, error) {
	if err := a.require(ctx, usage.CapAggregateUsage); err != nil {
		return nil, err
	}

	result := make(map[string]usage.AppUsageRecord)
	if a.usage == nil {
		return result, nil
	}

	samples, err := a.usage.QueryAndAggregateUsageStats(ctx, tr)
	if err != nil {
		a.sourceFailed(ctx, "usage-aggregate", err)
		return result, nil
	}

	for key, raw := range samples {
		if raw.PackageName == "" {
			raw.PackageName = key
		}
		a.mergeSample(ctx, result, raw)
	}
	return result, nil
}

func (a *Analyzer) mergeSample(ctx context.Context, into map[string]usage.AppUsageRecord, raw usage.RawUsageSample) {
	rec, ok := a.Normalize(ctx, raw)
	if !ok {
		return
	}
	existing, ok := into[rec.PackageName]
	if !ok {
		into[rec.PackageName] = rec
		return
	}
	a.metrics.recordMerged()
	into[rec.PackageName] = mergeRecords(existing, rec)
}

// mergeRecords combines two records for the same package.
func mergeRecords(a, b usage.AppUsageRecord) usage.AppUsageRecord {
	a.TotalForegroundSeconds += b.TotalForegroundSeconds
	a.FirstSeen = min(a.FirstSeen, b.FirstSeen)
	a.LastSeen = max(a.LastSeen, b.LastSeen)
	a.LastUsed = max(a.LastUsed, b.LastUsed)
	return a
}
