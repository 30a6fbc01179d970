package usage

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Interval is the bucket width at which the source pre-aggregates usage.
type Interval int

const (
	IntervalDaily   Interval = 0
	IntervalWeekly  Interval = 1
	IntervalMonthly Interval = 2
	IntervalYearly  Interval = 3
	IntervalBest    Interval = 4
)

var intervalNames = map[Interval]string{
	IntervalDaily:   "daily",
	IntervalWeekly:  "weekly",
	IntervalMonthly: "monthly",
	IntervalYearly:  "yearly",
	IntervalBest:    "best",
}

func (i Interval) String() string {
	if name, ok := intervalNames[i]; ok {
		return name
	}
	return strconv.Itoa(int(i))
}

// Valid reports whether i is one of the known intervals.
func (i Interval) Valid() bool {
	_, ok := intervalNames[i]
	return ok
}

// ParseInterval accepts a name (daily, weekly, monthly, yearly, best,
// best-fit) or the numeric platform value.
func ParseInterval(s string) (Interval, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "best-fit" || s == "best_fit" {
		return IntervalBest, nil
	}
	for i, name := range intervalNames {
		if name == s {
			return i, nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil && Interval(n).Valid() {
		return Interval(n), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownInterval, s)
}

// NetworkClass selects which accounting class a network query covers.
type NetworkClass int

const (
	NetworkMobile NetworkClass = 0
	NetworkWifi   NetworkClass = 1
	// NetworkAll sums Mobile and Wifi in two independent passes.
	NetworkAll NetworkClass = math.MaxInt32
)

func (c NetworkClass) String() string {
	switch c {
	case NetworkMobile:
		return "mobile"
	case NetworkWifi:
		return "wifi"
	case NetworkAll:
		return "all"
	default:
		return strconv.Itoa(int(c))
	}
}

// ParseNetworkClass accepts mobile, wifi, all or the numeric platform value.
func ParseNetworkClass(s string) (NetworkClass, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mobile", "0":
		return NetworkMobile, nil
	case "wifi", "wi-fi", "1":
		return NetworkWifi, nil
	case "all", "mobile_and_wifi", strconv.Itoa(math.MaxInt32):
		return NetworkAll, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownNetworkClass, s)
}

// EventType is the open-ended numeric event code. Codes this package
// does not name are carried through unchanged.
type EventType int

const (
	EventNone                   EventType = 0
	EventActivityResumed        EventType = 1
	EventActivityPaused         EventType = 2
	EventConfigurationChange    EventType = 5
	EventUserInteraction        EventType = 7
	EventShortcutInvocation     EventType = 8
	EventStandbyBucketChanged   EventType = 11
	EventScreenInteractive      EventType = 15
	EventScreenNonInteractive   EventType = 16
	EventKeyguardShown          EventType = 17
	EventKeyguardHidden         EventType = 18
	EventForegroundServiceStart EventType = 19
	EventForegroundServiceStop  EventType = 20
	EventActivityStopped        EventType = 23
	EventDeviceShutdown         EventType = 26
	EventDeviceStartup          EventType = 27
)

var eventTypeNames = map[EventType]string{
	EventNone:                   "NONE",
	EventActivityResumed:        "ACTIVITY_RESUMED",
	EventActivityPaused:         "ACTIVITY_PAUSED",
	EventConfigurationChange:    "CONFIGURATION_CHANGE",
	EventUserInteraction:        "USER_INTERACTION",
	EventShortcutInvocation:     "SHORTCUT_INVOCATION",
	EventStandbyBucketChanged:   "STANDBY_BUCKET_CHANGED",
	EventScreenInteractive:      "SCREEN_INTERACTIVE",
	EventScreenNonInteractive:   "SCREEN_NON_INTERACTIVE",
	EventKeyguardShown:          "KEYGUARD_SHOWN",
	EventKeyguardHidden:         "KEYGUARD_HIDDEN",
	EventForegroundServiceStart: "FOREGROUND_SERVICE_START",
	EventForegroundServiceStop:  "FOREGROUND_SERVICE_STOP",
	EventActivityStopped:        "ACTIVITY_STOPPED",
	EventDeviceShutdown:         "DEVICE_SHUTDOWN",
	EventDeviceStartup:          "DEVICE_STARTUP",
}

// String returns the symbolic name, or the decimal code when unknown.
func (t EventType) String() string {
	if name, ok := eventTypeNames[t]; ok {
		return name
	}
	return strconv.Itoa(int(t))
}

// Known reports whether the code has a symbolic name.
func (t EventType) Known() bool {
	_, ok := eventTypeNames[t]
	return ok
}

// Key is the map key used by event-stats results.
func (t EventType) Key() string {
	return strconv.Itoa(int(t))
}

// Constants returns every exposed enumeration as name -> platform value.
func Constants() map[string]int {
	c := map[string]int{
		"INTERVAL_DAILY":       int(IntervalDaily),
		"INTERVAL_WEEKLY":      int(IntervalWeekly),
		"INTERVAL_MONTHLY":     int(IntervalMonthly),
		"INTERVAL_YEARLY":      int(IntervalYearly),
		"INTERVAL_BEST":        int(IntervalBest),
		"TYPE_MOBILE":          int(NetworkMobile),
		"TYPE_WIFI":            int(NetworkWifi),
		"TYPE_MOBILE_AND_WIFI": int(NetworkAll),
	}
	for t, name := range eventTypeNames {
		c["EVENT_"+name] = int(t)
	}
	return c
}
