package usage

import (
	"fmt"
	"math"
	"time"
)

// TimeRange is a half-open interval [Start, End) in epoch milliseconds.
// Construct it with NewTimeRange; the zero value is the empty range at 0.
type TimeRange struct {
	start int64
	end   int64
}

// NewTimeRange validates and returns the range [start, end).
func NewTimeRange(start, end int64) (TimeRange, error) {
	if start > end {
		return TimeRange{}, fmt.Errorf("%w: start=%d end=%d", ErrInvalidRange, start, end)
	}
	return TimeRange{start: start, end: end}, nil
}

// RangeFromTimes is NewTimeRange for time.Time bounds.
func RangeFromTimes(start, end time.Time) (TimeRange, error) {
	return NewTimeRange(start.UnixMilli(), end.UnixMilli())
}

func (r TimeRange) Start() int64 { return r.start }
func (r TimeRange) End() int64   { return r.end }

// Millis returns the length of the range in milliseconds. It does not
// wrap even when End-Start exceeds the int64 range.
func (r TimeRange) Millis() uint64 {
	return uint64(r.end) - uint64(r.start)
}

// Duration returns the length of the range, capped at the largest
// representable time.Duration.
func (r TimeRange) Duration() time.Duration {
	ms := r.Millis()
	if ms > uint64(math.MaxInt64/int64(time.Millisecond)) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(ms) * time.Millisecond
}

// Contains reports whether ts falls inside [Start, End).
func (r TimeRange) Contains(ts int64) bool {
	return ts >= r.start && ts < r.end
}

// Overlaps reports whether [first, last] intersects the range.
func (r TimeRange) Overlaps(first, last int64) bool {
	return last >= r.start && first < r.end
}

// BestInterval picks the coarsest granularity that still yields at least
// two buckets across the range. It is what IntervalBest resolves to.
func (r TimeRange) BestInterval() Interval {
	const day = uint64(24 * time.Hour / time.Millisecond)
	ms := r.Millis()
	switch {
	case ms >= 2*365*day:
		return IntervalYearly
	case ms >= 2*30*day:
		return IntervalMonthly
	case ms >= 2*7*day:
		return IntervalWeekly
	default:
		return IntervalDaily
	}
}

func (r TimeRange) String() string {
	return fmt.Sprintf("[%s, %s)",
		time.UnixMilli(r.start).UTC().Format(time.RFC3339),
		time.UnixMilli(r.end).UTC().Format(time.RFC3339))
}
