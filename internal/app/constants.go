package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/justdice/usagestats/internal/output"
	"github.com/justdice/usagestats/internal/usage"
)

var constantsCmd = &cobra.Command{
	Use:   "constants",
	Short: "Print platform interval, network and event-type values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		constants := usage.Constants()
		if jsonOut {
			return printJSON(cmd.OutOrStdout(), constants)
		}
		_, err := fmt.Fprint(cmd.OutOrStdout(), output.RenderConstants(constants))
		return err
	},
}

func init() {
	RootCmd.AddCommand(constantsCmd)
}
