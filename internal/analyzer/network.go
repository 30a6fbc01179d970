package analyzer

import (
	"context"
	"fmt"

	"cdr.dev/slog/v3"

	"github.com/justdice/usagestats/internal/usage"
)

// AppDataUsage returns received plus transmitted bytes for packageName
// over tr. NetworkAll runs one pass per class and sums them. A package
// that cannot be resolved to a uid yields 0.
func (a *Analyzer) AppDataUsage(ctx context.Context, packageName string, class usage.NetworkClass, tr usage.TimeRange) (int64, error) {
	if err := a.require(ctx, usage.CapNetworkStats); err != nil {
		return 0, err
	}
	switch class {
	case usage.NetworkMobile, usage.NetworkWifi, usage.NetworkAll:
	default:
		return 0, fmt.Errorf("%w: %d", usage.ErrUnknownNetworkClass, class)
	}

	uid, ok := a.resolver.UID(ctx, packageName)
	if !ok {
		a.logger.Debug(ctx, "no uid for package, reporting zero usage",
			slog.F("package", packageName))
		return 0, nil
	}

	if class == usage.NetworkAll {
		mobile := a.accumulate(ctx, uid, usage.NetworkMobile, tr)
		wifi := a.accumulate(ctx, uid, usage.NetworkWifi, tr)
		return mobile + wifi, nil
	}
	return a.accumulate(ctx, uid, class, tr), nil
}

// accumulate sums rx+tx over the buckets owned by uid for one class.
// Buckets belonging to other uids are skipped. A cursor that fails part
// way through contributes zero.
func (a *Analyzer) accumulate(ctx context.Context, uid int, class usage.NetworkClass, tr usage.TimeRange) int64 {
	if a.network == nil {
		return 0
	}

	cursor, err := a.network.QuerySummary(ctx, class, tr)
	if err != nil {
		a.sourceFailed(ctx, "network-"+class.String(), err)
		return 0
	}
	defer cursor.Close()

	var (
		total  int64
		bucket usage.NetworkBucket
	)
	// The element just advanced into is always consumed before asking
	// whether another one exists, so the final bucket is never lost.
	for cursor.NextBucket(&bucket) {
		owned := bucket.UID == uid
		if owned {
			total += max(bucket.RxBytes, 0) + max(bucket.TxBytes, 0)
		}
		a.metrics.bucket(owned)
		if !cursor.HasNextBucket() {
			break
		}
	}
	if err := cursor.Err(); err != nil {
		a.sourceFailed(ctx, "network-"+class.String(), err)
		return 0
	}
	return total
}
