package store

import (
	"time"

	"github.com/justdice/usagestats/internal/usage"
)

// Usage-access modes as recorded in the device profile.
const (
	ModeAllowed = "allowed"
	ModeIgnored = "ignored"
	ModeErrored = "errored"
	ModeDefault = "default"
)

// Device holds the device profile captured with a telemetry dump. Zero
// fields leave the stored value untouched.
type Device struct {
	APILevel    int    `json:"apiLevel"`
	UsageAccess string `json:"usageAccess"`
}

// Package is one installed application.
type Package struct {
	Name        string
	Label       string
	UID         int
	Flags       int
	InstalledAt int64
}

// UsageSample is one per-interval usage row.
type UsageSample struct {
	Package               string
	Interval              usage.Interval
	FirstTimeStamp        int64
	LastTimeStamp         int64
	LastTimeUsed          int64
	TotalTimeInForeground int64
}

// Event is one event-log row.
type Event struct {
	Package   string
	ClassName string
	EventType int
	TimeStamp int64
}

// EventStat is one per-interval event statistics row.
type EventStat struct {
	Interval       usage.Interval
	EventType      int
	FirstTimeStamp int64
	LastTimeStamp  int64
	TotalTime      int64
	Count          int
}

// Bucket is one network accounting row.
type Bucket struct {
	UID          int
	NetworkClass usage.NetworkClass
	StartTime    int64
	EndTime      int64
	RxBytes      int64
	TxBytes      int64
}

// Batch is everything decoded from one telemetry dump. It is written in
// a single transaction.
type Batch struct {
	ID       string
	Source   string
	Checksum string

	Device     *Device
	Packages   []Package
	Samples    []UsageSample
	Events     []Event
	EventStats []EventStat
	Buckets    []Bucket
}

// Rows returns the number of data rows in the batch.
func (b *Batch) Rows() int {
	return len(b.Packages) + len(b.Samples) + len(b.Events) + len(b.EventStats) + len(b.Buckets)
}

// Import records one applied batch.
type Import struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	Checksum   string    `json:"checksum"`
	ImportedAt time.Time `json:"importedAt"`
	Rows       int       `json:"rows"`
}

// Summary counts the rows held per table.
type Summary struct {
	Packages   int `json:"packages"`
	Samples    int `json:"usageSamples"`
	Events     int `json:"events"`
	EventStats int `json:"eventStats"`
	Buckets    int `json:"networkBuckets"`
	Imports    int `json:"imports"`

	FirstEvent int64 `json:"firstEvent"`
	LastEvent  int64 `json:"lastEvent"`
}
