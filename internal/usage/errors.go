package usage

import "errors"

var (
	// ErrNotFound is returned by a RegistrySource when a package is not
	// installed. Callers of the resolver never see it.
	ErrNotFound = errors.New("package not found")

	// ErrCapabilityUnsupported means the platform baseline lacks the
	// operation. It is distinct from an empty result.
	ErrCapabilityUnsupported = errors.New("capability not supported by platform")

	// ErrSourceUnavailable wraps failures of an underlying accounting query.
	ErrSourceUnavailable = errors.New("accounting source unavailable")

	// ErrInvalidRange is returned when a time range starts after it ends.
	ErrInvalidRange = errors.New("invalid time range: start is after end")

	ErrUnknownInterval     = errors.New("unknown interval")
	ErrUnknownNetworkClass = errors.New("unknown network class")
)
