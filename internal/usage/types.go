package usage

// FlagSystem is the installed-application flag bit marking an app that
// ships with the platform image.
const FlagSystem = 1 << 0

// AppUsageRecord is one normalized per-application usage entry. It is
// only ever produced with TotalForegroundSeconds > 0.
type AppUsageRecord struct {
	PackageName            string `json:"packageName"`
	DisplayName            string `json:"appName"`
	TotalForegroundSeconds int64  `json:"totalTimeInForeground"`
	FirstSeen              int64  `json:"firstTimeStamp"`
	LastSeen               int64  `json:"lastTimeStamp"`
	LastUsed               int64  `json:"lastTimeUsed"`
	IsSystemApp            bool   `json:"isSystem"`
}

// UsageEvent is one typed entry of the platform event log.
type UsageEvent struct {
	EventType   EventType `json:"eventType"`
	Timestamp   int64     `json:"timeStamp"`
	PackageName string    `json:"packageName"`
}

// AppMetadata is the display and classification data for one package.
type AppMetadata struct {
	PackageName string `json:"packageName"`
	DisplayName string `json:"appName"`
	IsSystemApp bool   `json:"isSystem"`
}

// EventStats aggregates all occurrences of one event type.
type EventStats struct {
	EventType     EventType `json:"eventType"`
	FirstSeen     int64     `json:"firstTimeStamp"`
	LastSeen      int64     `json:"lastTimeStamp"`
	TotalDuration int64     `json:"totalTime"`
	Count         int       `json:"count"`
}

// RawUsageSample is one per-interval usage entry as the source reports it.
type RawUsageSample struct {
	PackageName           string
	FirstTimeStamp        int64
	LastTimeStamp         int64
	LastTimeUsed          int64
	TotalTimeInForeground int64 // milliseconds
}

// RawEvent is the mutable slot an EventCursor fills on each advance.
type RawEvent struct {
	PackageName string
	ClassName   string
	EventType   int
	TimeStamp   int64
}

// RawEventStats is one per-interval event-stats entry from the source.
type RawEventStats struct {
	EventType      int
	FirstTimeStamp int64
	LastTimeStamp  int64
	TotalTime      int64
	Count          int
}

// NetworkBucket is one accounting record of rx/tx bytes for one uid. It
// is consumed into a running total and never retained.
type NetworkBucket struct {
	UID          int
	NetworkClass NetworkClass
	StartTime    int64
	EndTime      int64
	RxBytes      int64
	TxBytes      int64
}

// ApplicationInfo is what a RegistrySource knows about an installed package.
type ApplicationInfo struct {
	PackageName string
	Label       string
	UID         int
	Flags       int
}

// IsSystem reports whether the system bit is set.
func (i ApplicationInfo) IsSystem() bool {
	return i.Flags&FlagSystem != 0
}
