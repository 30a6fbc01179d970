package analyzer

import (
	"context"
	"iter"

	"github.com/justdice/usagestats/internal/usage"
)

// EventStream is a lazy, finite, one-shot sequence of usage events. It
// owns the source cursor until it is exhausted or closed and is not safe
// for concurrent use.
//
//	stream := a.StreamEvents(ctx, tr)
//	defer stream.Close()
//	for stream.Next() {
//		ev := stream.Event()
//		...
//	}
type EventStream struct {
	cursor  usage.EventCursor
	metrics *Metrics
	failed  func(error)
	raw     usage.RawEvent
	current usage.UsageEvent
	done    bool
	err     error
}

// StreamEvents opens a fresh event cursor for tr. A failing source yields
// an empty stream. A cursor that fails part way ends the stream early; the
// failure is logged and counted once, whichever way the stream is drained.
func (a *Analyzer) StreamEvents(ctx context.Context, tr usage.TimeRange) *EventStream {
	s := &EventStream{
		metrics: a.metrics,
		failed:  func(err error) { a.sourceFailed(ctx, "events", err) },
	}
	if a.events == nil {
		s.done = true
		return s
	}

	cursor, err := a.events.QueryEvents(ctx, tr)
	if err != nil {
		a.sourceFailed(ctx, "events", err)
		s.done = true
		return s
	}
	s.cursor = cursor
	return s
}

// Next advances to the next event. It returns false once the cursor is
// exhausted, after which the cursor has been released.
func (s *EventStream) Next() bool {
	if s.done {
		return false
	}
	if !s.cursor.HasNextEvent() || !s.cursor.NextEvent(&s.raw) {
		s.finish()
		return false
	}

	s.current = usage.UsageEvent{
		EventType:   usage.EventType(s.raw.EventType),
		Timestamp:   s.raw.TimeStamp,
		PackageName: s.raw.PackageName,
	}
	s.metrics.eventEmitted()
	return true
}

// Event returns the event produced by the last successful Next.
func (s *EventStream) Event() usage.UsageEvent {
	return s.current
}

// Err returns the cursor error that ended the stream, if any.
func (s *EventStream) Err() error {
	return s.err
}

// Close releases the cursor. It is safe to call more than once.
func (s *EventStream) Close() error {
	if s.cursor == nil {
		s.done = true
		return nil
	}
	s.done = true
	err := s.cursor.Close()
	s.cursor = nil
	return err
}

// All adapts the stream to a range-over-func sequence. The sequence can
// be ranged over once; the stream is closed when ranging stops.
func (s *EventStream) All() iter.Seq[usage.UsageEvent] {
	return func(yield func(usage.UsageEvent) bool) {
		defer s.Close()
		for s.Next() {
			if !yield(s.Event()) {
				return
			}
		}
	}
}

func (s *EventStream) finish() {
	if s.cursor != nil {
		s.err = s.cursor.Err()
	}
	s.Close()
	if s.err != nil && s.failed != nil {
		s.failed(s.err)
	}
}

// QueryEvents drains one event stream in cursor order. A cursor failure
// part way through keeps the events read so far.
func (a *Analyzer) QueryEvents(ctx context.Context, tr usage.TimeRange) []usage.UsageEvent {
	stream := a.StreamEvents(ctx, tr)
	defer stream.Close()

	events := []usage.UsageEvent{}
	for stream.Next() {
		events = append(events, stream.Event())
	}
	return events
}
