// Package settings opens the usage-access settings screen on the device
// by running a configurable host command.
package settings

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/justdice/usagestats/internal/usage"
)

// DefaultCommand opens the usage-access screen of an attached device.
const DefaultCommand = "adb shell am start -a android.settings.USAGE_ACCESS_SETTINGS {package-uri}"

// Placeholders expanded in a command template.
const (
	// PlaceholderPackage becomes the package name, or is dropped.
	PlaceholderPackage = "{package}"
	// PlaceholderPackageURI becomes "-d package:<name>", or is dropped.
	PlaceholderPackageURI = "{package-uri}"
)

var _ usage.SettingsLauncher = (*Launcher)(nil)

// Launcher runs a command template to open the settings screen.
type Launcher struct {
	template []string
	run      func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// New parses a whitespace-separated command template. An empty template
// selects DefaultCommand.
func New(template string) (*Launcher, error) {
	if strings.TrimSpace(template) == "" {
		template = DefaultCommand
	}
	fields := strings.Fields(template)
	if fields[0] == PlaceholderPackage || fields[0] == PlaceholderPackageURI {
		return nil, fmt.Errorf("settings command %q must start with a program", template)
	}
	return &Launcher{template: fields, run: runCommand}, nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Args expands the template for packageName.
func (l *Launcher) Args(packageName string) []string {
	var args []string
	for _, f := range l.template {
		switch f {
		case PlaceholderPackage:
			if packageName != "" {
				args = append(args, packageName)
			}
		case PlaceholderPackageURI:
			if packageName != "" {
				args = append(args, "-d", "package:"+packageName)
			}
		default:
			args = append(args, f)
		}
	}
	return args
}

// OpenUsageAccessSettings runs the command. An empty packageName opens
// the generic screen.
func (l *Launcher) OpenUsageAccessSettings(ctx context.Context, packageName string) error {
	args := l.Args(packageName)
	output, err := l.run(ctx, args[0], args[1:]...)
	if err != nil {
		return fmt.Errorf("%s failed: %w (output: %s)", args[0], err, strings.TrimSpace(string(output)))
	}
	return nil
}
