package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/justdice/usagestats/internal/store"
	"github.com/justdice/usagestats/internal/usage"
)

// Dump is the on-disk shape of one device telemetry export. The same
// field names are used for JSON and YAML. Intervals and network classes
// are written by name ("daily", "wifi") or platform value.
type Dump struct {
	Device     *DeviceDump     `json:"device,omitempty" yaml:"device,omitempty"`
	Packages   []PackageDump   `json:"packages" yaml:"packages"`
	UsageStats []SampleDump    `json:"usage_stats" yaml:"usage_stats"`
	Events     []EventDump     `json:"events" yaml:"events"`
	EventStats []EventStatDump `json:"event_stats" yaml:"event_stats"`
	Network    []BucketDump    `json:"network" yaml:"network"`
}

type DeviceDump struct {
	APILevel    int    `json:"api_level" yaml:"api_level"`
	UsageAccess string `json:"usage_access" yaml:"usage_access"`
}

type PackageDump struct {
	Name        string `json:"name" yaml:"name"`
	Label       string `json:"label" yaml:"label"`
	UID         int    `json:"uid" yaml:"uid"`
	Flags       int    `json:"flags" yaml:"flags"`
	System      bool   `json:"system" yaml:"system"`
	InstalledAt int64  `json:"installed_at" yaml:"installed_at"`
}

type SampleDump struct {
	Package               string `json:"package" yaml:"package"`
	Interval              string `json:"interval" yaml:"interval"`
	FirstTimeStamp        int64  `json:"first_time_stamp" yaml:"first_time_stamp"`
	LastTimeStamp         int64  `json:"last_time_stamp" yaml:"last_time_stamp"`
	LastTimeUsed          int64  `json:"last_time_used" yaml:"last_time_used"`
	TotalTimeInForeground int64  `json:"total_time_in_foreground" yaml:"total_time_in_foreground"`
}

type EventDump struct {
	Package   string `json:"package" yaml:"package"`
	ClassName string `json:"class_name" yaml:"class_name"`
	EventType int    `json:"event_type" yaml:"event_type"`
	TimeStamp int64  `json:"timestamp" yaml:"timestamp"`
}

type EventStatDump struct {
	Interval       string `json:"interval" yaml:"interval"`
	EventType      int    `json:"event_type" yaml:"event_type"`
	FirstTimeStamp int64  `json:"first_time_stamp" yaml:"first_time_stamp"`
	LastTimeStamp  int64  `json:"last_time_stamp" yaml:"last_time_stamp"`
	TotalTime      int64  `json:"total_time" yaml:"total_time"`
	Count          int    `json:"count" yaml:"count"`
}

type BucketDump struct {
	UID          int    `json:"uid" yaml:"uid"`
	NetworkClass string `json:"network_class" yaml:"network_class"`
	StartTime    int64  `json:"start" yaml:"start"`
	EndTime      int64  `json:"end" yaml:"end"`
	RxBytes      int64  `json:"rx_bytes" yaml:"rx_bytes"`
	TxBytes      int64  `json:"tx_bytes" yaml:"tx_bytes"`
}

// Format is a dump encoding.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatFor picks the encoding from a file extension. ok is false for
// files that are not dumps.
func FormatFor(path string) (format Format, ok bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, true
	case ".yaml", ".yml":
		return FormatYAML, true
	}
	return 0, false
}

// Decode parses a dump. Unknown fields are rejected so a misspelled key
// does not silently drop data.
func Decode(data []byte, format Format) (*Dump, error) {
	var d Dump
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&d); err != nil {
			return nil, fmt.Errorf("failed to decode JSON dump: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&d); err != nil {
			return nil, fmt.Errorf("failed to decode YAML dump: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown dump format %d", format)
	}
	return &d, nil
}

// concreteInterval parses a stored interval. BEST is a query-time choice
// and never labels stored rows.
func concreteInterval(s string) (usage.Interval, error) {
	i, err := usage.ParseInterval(s)
	if err != nil {
		return 0, err
	}
	if i == usage.IntervalBest {
		return 0, fmt.Errorf("%w: stored rows need a concrete interval, got %s", usage.ErrUnknownInterval, i)
	}
	return i, nil
}

// Batch converts the dump into store rows.
func (d *Dump) Batch() (*store.Batch, error) {
	b := &store.Batch{}

	if d.Device != nil {
		b.Device = &store.Device{APILevel: d.Device.APILevel, UsageAccess: d.Device.UsageAccess}
	}

	for _, p := range d.Packages {
		if p.Name == "" {
			return nil, fmt.Errorf("package entry without a name")
		}
		flags := p.Flags
		if p.System {
			flags |= usage.FlagSystem
		}
		b.Packages = append(b.Packages, store.Package{
			Name:        p.Name,
			Label:       p.Label,
			UID:         p.UID,
			Flags:       flags,
			InstalledAt: p.InstalledAt,
		})
	}

	for _, u := range d.UsageStats {
		interval, err := concreteInterval(u.Interval)
		if err != nil {
			return nil, fmt.Errorf("usage sample for %s: %w", u.Package, err)
		}
		b.Samples = append(b.Samples, store.UsageSample{
			Package:               u.Package,
			Interval:              interval,
			FirstTimeStamp:        u.FirstTimeStamp,
			LastTimeStamp:         u.LastTimeStamp,
			LastTimeUsed:          u.LastTimeUsed,
			TotalTimeInForeground: u.TotalTimeInForeground,
		})
	}

	for _, e := range d.Events {
		b.Events = append(b.Events, store.Event{
			Package:   e.Package,
			ClassName: e.ClassName,
			EventType: e.EventType,
			TimeStamp: e.TimeStamp,
		})
	}

	for _, st := range d.EventStats {
		interval, err := concreteInterval(st.Interval)
		if err != nil {
			return nil, fmt.Errorf("event stats for type %d: %w", st.EventType, err)
		}
		b.EventStats = append(b.EventStats, store.EventStat{
			Interval:       interval,
			EventType:      st.EventType,
			FirstTimeStamp: st.FirstTimeStamp,
			LastTimeStamp:  st.LastTimeStamp,
			TotalTime:      st.TotalTime,
			Count:          st.Count,
		})
	}

	for _, bk := range d.Network {
		class, err := usage.ParseNetworkClass(bk.NetworkClass)
		if err != nil {
			return nil, fmt.Errorf("network bucket for uid %d: %w", bk.UID, err)
		}
		if class == usage.NetworkAll {
			return nil, fmt.Errorf("network bucket for uid %d: %w: buckets belong to one class", bk.UID, usage.ErrUnknownNetworkClass)
		}
		b.Buckets = append(b.Buckets, store.Bucket{
			UID:          bk.UID,
			NetworkClass: class,
			StartTime:    bk.StartTime,
			EndTime:      bk.EndTime,
			RxBytes:      bk.RxBytes,
			TxBytes:      bk.TxBytes,
		})
	}

	return b, nil
}
