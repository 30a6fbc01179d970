package analyzer

import (
	"context"
	"sort"

	"github.com/justdice/usagestats/internal/usage"
)

// AppActivity summarizes the event log for one package.
type AppActivity struct {
	PackageName   string          `json:"packageName"`
	DisplayName   string          `json:"name"`
	IsSystemApp   bool            `json:"isSystem"`
	Count         int             `json:"count"`
	LastEventTime int64           `json:"eventTime"`
	LastEventType usage.EventType `json:"eventType"`
	UsageMillis   int64           `json:"usageTime"`
}

// SummarizeEvents replays the event log for tr and groups it per
// package. Foreground time is the sum of ACTIVITY_RESUMED spans closed by
// ACTIVITY_PAUSED or ACTIVITY_STOPPED; a span still open at the end of the
// stream is not counted. Results are ordered by foreground time, most
// used first, then by package name.
func (a *Analyzer) SummarizeEvents(ctx context.Context, tr usage.TimeRange) []AppActivity {
	byPkg := make(map[string]*AppActivity)
	resumedAt := make(map[string]int64)

	stream := a.StreamEvents(ctx, tr)
	defer stream.Close()

	for stream.Next() {
		ev := stream.Event()
		if ev.PackageName == "" {
			continue
		}

		act, ok := byPkg[ev.PackageName]
		if !ok {
			act = &AppActivity{PackageName: ev.PackageName}
			byPkg[ev.PackageName] = act
		}
		act.Count++
		act.LastEventTime = ev.Timestamp
		act.LastEventType = ev.EventType

		switch ev.EventType {
		case usage.EventActivityResumed:
			if _, open := resumedAt[ev.PackageName]; !open {
				resumedAt[ev.PackageName] = ev.Timestamp
			}
		case usage.EventActivityPaused, usage.EventActivityStopped:
			if start, open := resumedAt[ev.PackageName]; open {
				if ev.Timestamp > start {
					act.UsageMillis += ev.Timestamp - start
				}
				delete(resumedAt, ev.PackageName)
			}
		}
	}

	out := make([]AppActivity, 0, len(byPkg))
	for _, act := range byPkg {
		meta := a.resolver.Resolve(ctx, act.PackageName)
		act.DisplayName = meta.DisplayName
		act.IsSystemApp = meta.IsSystemApp
		out = append(out, *act)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UsageMillis != out[j].UsageMillis {
			return out[i].UsageMillis > out[j].UsageMillis
		}
		return out[i].PackageName < out[j].PackageName
	})
	return out
}
