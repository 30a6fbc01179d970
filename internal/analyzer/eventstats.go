package analyzer

import (
	"context"
	"fmt"

	"github.com/justdice/usagestats/internal/usage"
)

// QueryEventStats returns per-event-type statistics keyed by the decimal
// event code. Entries for the same type from several buckets are merged.
func (a *Analyzer) QueryEventStats(ctx context.Context, interval usage.Interval, tr usage.TimeRange) (map[string]usage.EventStats, error) {
	if err := a.require(ctx, usage.CapEventStats); err != nil {
		return nil, err
	}
	if !interval.Valid() {
		return nil, fmt.Errorf("%w: %d", usage.ErrUnknownInterval, interval)
	}

	result := make(map[string]usage.EventStats)
	if a.usage == nil {
		return result, nil
	}

	raw, err := a.usage.QueryEventStats(ctx, interval, tr)
	if err != nil {
		a.sourceFailed(ctx, "event-stats", err)
		return result, nil
	}

	for _, r := range raw {
		t := usage.EventType(r.EventType)
		stats := usage.EventStats{
			EventType:     t,
			FirstSeen:     r.FirstTimeStamp,
			LastSeen:      r.LastTimeStamp,
			TotalDuration: r.TotalTime,
			Count:         r.Count,
		}
		if existing, ok := result[t.Key()]; ok {
			stats.FirstSeen = min(existing.FirstSeen, stats.FirstSeen)
			stats.LastSeen = max(existing.LastSeen, stats.LastSeen)
			stats.TotalDuration += existing.TotalDuration
			stats.Count += existing.Count
		}
		result[t.Key()] = stats
	}
	return result, nil
}
