package store

import (
	"database/sql"
	"fmt"

	"github.com/justdice/usagestats/internal/usage"
)

// eventCursor reads one row ahead so HasNextEvent can answer without
// consuming anything.
type eventCursor struct {
	rows  *sql.Rows
	next  usage.RawEvent
	ready bool
	err   error
}

func newEventCursor(rows *sql.Rows) *eventCursor {
	c := &eventCursor{rows: rows}
	c.fetch()
	return c
}

func (c *eventCursor) fetch() {
	c.ready = false
	if c.rows == nil || c.err != nil {
		return
	}
	if !c.rows.Next() {
		c.err = c.rows.Err()
		c.Close()
		return
	}
	var className sql.NullString
	if err := c.rows.Scan(&c.next.PackageName, &className, &c.next.EventType, &c.next.TimeStamp); err != nil {
		c.err = fmt.Errorf("failed to scan usage event row: %w", err)
		c.Close()
		return
	}
	c.next.ClassName = className.String
	c.ready = true
}

func (c *eventCursor) HasNextEvent() bool {
	return c.ready
}

func (c *eventCursor) NextEvent(ev *usage.RawEvent) bool {
	if !c.ready {
		return false
	}
	*ev = c.next
	c.fetch()
	return true
}

func (c *eventCursor) Err() error {
	return c.err
}

func (c *eventCursor) Close() error {
	if c.rows == nil {
		return nil
	}
	err := c.rows.Close()
	c.rows = nil
	return err
}

// bucketCursor follows the advance-then-check protocol: NextBucket moves
// into the prefetched row, HasNextBucket reports whether one more exists.
type bucketCursor struct {
	rows  *sql.Rows
	next  usage.NetworkBucket
	ready bool
	err   error
}

func newBucketCursor(rows *sql.Rows) *bucketCursor {
	c := &bucketCursor{rows: rows}
	c.fetch()
	return c
}

func (c *bucketCursor) fetch() {
	c.ready = false
	if c.rows == nil || c.err != nil {
		return
	}
	if !c.rows.Next() {
		c.err = c.rows.Err()
		c.Close()
		return
	}
	var class int
	b := &c.next
	if err := c.rows.Scan(&b.UID, &class, &b.StartTime, &b.EndTime, &b.RxBytes, &b.TxBytes); err != nil {
		c.err = fmt.Errorf("failed to scan network bucket row: %w", err)
		c.Close()
		return
	}
	b.NetworkClass = usage.NetworkClass(class)
	c.ready = true
}

func (c *bucketCursor) NextBucket(b *usage.NetworkBucket) bool {
	if !c.ready {
		return false
	}
	*b = c.next
	c.fetch()
	return true
}

func (c *bucketCursor) HasNextBucket() bool {
	return c.ready
}

func (c *bucketCursor) Err() error {
	return c.err
}

func (c *bucketCursor) Close() error {
	if c.rows == nil {
		return nil
	}
	err := c.rows.Close()
	c.rows = nil
	return err
}
