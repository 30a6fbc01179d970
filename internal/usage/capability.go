package usage

import (
	"fmt"
	"sort"
	"strings"
)

// Capability names an optional platform operation.
type Capability string

const (
	CapAggregateUsage Capability = "aggregate-usage"
	CapEventStats     Capability = "event-stats"
	CapNetworkStats   Capability = "network-stats"
)

// Minimum platform levels for each capability.
var capabilityLevels = map[Capability]int{
	CapAggregateUsage: 22,
	CapNetworkStats:   23,
	CapEventStats:     28,
}

// Capabilities is the set of operations the platform supports. It is
// computed once per session and then only read.
type Capabilities map[Capability]bool

// ProbeCapabilities returns the capability set for a platform level.
func ProbeCapabilities(level int) Capabilities {
	caps := make(Capabilities, len(capabilityLevels))
	for c, required := range capabilityLevels {
		caps[c] = level >= required
	}
	return caps
}

// AllCapabilities is the set with every capability enabled.
func AllCapabilities() Capabilities {
	return ProbeCapabilities(int(^uint(0) >> 1))
}

// Has reports whether c is supported.
func (c Capabilities) Has(capability Capability) bool {
	return c[capability]
}

// Require returns an ErrCapabilityUnsupported error when c lacks capability.
func (c Capabilities) Require(capability Capability) error {
	if c.Has(capability) {
		return nil
	}
	return fmt.Errorf("%w: %s requires platform level %d",
		ErrCapabilityUnsupported, capability, capabilityLevels[capability])
}

// RequiredLevel returns the minimum platform level for a capability.
func RequiredLevel(capability Capability) int {
	return capabilityLevels[capability]
}

func (c Capabilities) String() string {
	var names []string
	for name, ok := range c {
		if ok {
			names = append(names, string(name))
		}
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}
