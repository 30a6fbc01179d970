package app

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	permissionCmd = &cobra.Command{
		Use:   "permission",
		Short: "Check whether usage access is granted",
		Long: `Report whether the usage-access grant is held. Any failure while checking
is reported as not granted.`,
		Example: `  usagestats permission --json`,
		Args:    cobra.NoArgs,
		RunE:    runPermission,
	}

	settingsPackage string

	settingsCmd = &cobra.Command{
		Use:   "settings",
		Short: "Open the usage-access settings screen",
		Long: `Run the configured settings command (settings_command in config.yaml)
to open the usage-access settings screen.

The request names --package (default: self_package from config.yaml)
only when that package is installed; otherwise the generic screen opens.
Failures are logged, never returned.`,
		Example: `  usagestats settings --package com.example.self`,
		Args:    cobra.NoArgs,
		RunE:    runSettings,
	}
)

func init() {
	settingsCmd.Flags().StringVar(&settingsPackage, "package", "", "package to open the settings screen for")

	RootCmd.AddCommand(permissionCmd)
	RootCmd.AddCommand(settingsCmd)
}

// runPermission never fails: anything that stops the check, including a
// database that cannot be opened, reports access as not granted.
func runPermission(cmd *cobra.Command, args []string) error {
	granted := false
	s, err := openSession(cmd)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: cannot check usage access: %v\n", err)
	} else {
		defer s.Close()
		granted = s.analyzer.HasUsageAccess(cmd.Context())
	}

	if jsonOut {
		return printJSON(cmd.OutOrStdout(), map[string]bool{"granted": granted})
	}
	if granted {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Usage access granted")
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "✗ Usage access not granted")
		fmt.Fprintln(cmd.OutOrStdout(), "  Action: Run 'usagestats settings' to open the settings screen")
	}
	return nil
}

func runSettings(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	pkg := settingsPackage
	if pkg == "" {
		pkg = s.cfg.SelfPackage
	}
	s.analyzer.RequestUsageAccessSettings(cmd.Context(), pkg)
	return nil
}
