package app

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/justdice/usagestats/internal/output"
	"github.com/justdice/usagestats/internal/usage"
)

var (
	dataUsageRange   rangeFlags
	dataUsageNetwork string

	dataUsageCmd = &cobra.Command{
		Use:   "data-usage <package>",
		Short: "Bytes sent and received by one app",
		Long: `Sum received and transmitted bytes of every network bucket owned by the
app's uid over the range.

Network classes: mobile, wifi, or all (mobile and wifi queried
separately and added). An app that is not installed reports 0.

Requires platform level 23 or later.`,
		Example: `  usagestats data-usage com.example.maps --network wifi --start 7d`,
		Args:    cobra.ExactArgs(1),
		RunE:    runDataUsage,
	}
)

func init() {
	dataUsageRange.register(dataUsageCmd)
	dataUsageCmd.Flags().StringVar(&dataUsageNetwork, "network", "all", "network class: mobile, wifi, all")

	RootCmd.AddCommand(dataUsageCmd)
}

func runDataUsage(cmd *cobra.Command, args []string) error {
	pkg := args[0]
	class, err := usage.ParseNetworkClass(dataUsageNetwork)
	if err != nil {
		return err
	}
	tr, err := dataUsageRange.resolve(time.Now())
	if err != nil {
		return err
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	total, err := s.analyzer.AppDataUsage(cmd.Context(), pkg, class, tr)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"packageName":  pkg,
			"networkClass": class.String(),
			"start":        tr.Start(),
			"end":          tr.End(),
			"bytes":        total,
		})
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), output.RenderDataUsage(pkg, class, tr, total))
	return err
}
