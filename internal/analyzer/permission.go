package analyzer

import (
	"context"
	"fmt"

	"cdr.dev/slog/v3"
)

// HasUsageAccess reports whether the usage-access grant is held. It asks
// the source on every call and treats any failure, including a panic in
// the source, as not granted.
func (a *Analyzer) HasUsageAccess(ctx context.Context) (granted bool) {
	if a.permission == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			a.logger.Warn(ctx, "usage access check panicked", slog.F("panic", fmt.Sprint(r)))
			granted = false
		}
		a.metrics.permission(granted)
	}()

	ok, err := a.permission.CheckUsageAccess(ctx)
	if err != nil {
		a.logger.Warn(ctx, "usage access check failed", slog.Error(err))
		return false
	}
	return ok
}

// RequestUsageAccessSettings asks the host to show its usage-access
// settings screen. The package is attached only when it is installed.
// Failures are logged and otherwise ignored.
func (a *Analyzer) RequestUsageAccessSettings(ctx context.Context, packageName string) {
	if a.settings == nil {
		a.logger.Debug(ctx, "no settings launcher configured")
		return
	}

	target := ""
	if packageName != "" && a.resolver.Exists(ctx, packageName) {
		target = packageName
	}
	if err := a.settings.OpenUsageAccessSettings(ctx, target); err != nil {
		a.logger.Warn(ctx, "failed to open usage access settings",
			slog.F("package", packageName), slog.Error(err))
	}
}
