package cmd

import (
	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"

	"searchreporting/internal/connections"
	"searchreporting/internal/ui"
)

var (
	joinFrom string
	joinTo   string
)

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Rebuild final_report from the loaded tables",
	Args:  cobra.NoArgs,
	RunE:  runJoin,
}

func init() {
	rootCmd.AddCommand(joinCmd)

	joinCmd.Flags().StringVar(&joinFrom, "from", "", "first day, YYYY-MM-DD (default report.since)")
	joinCmd.Flags().StringVar(&joinTo, "to", "", "last day, YYYY-MM-DD (default yesterday)")
	joinCmd.Flags().String("dataset", "adwords", "BigQuery dataset")
}

func runJoin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	since, err := civil.ParseDate(appConfig.Report.Since)
	if err != nil {
		return err
	}
	from, to, err := parseWindow(joinFrom, joinTo, since, today().AddDays(-1))
	if err != nil {
		return err
	}

	overrideString(cmd, "dataset", &appConfig.BigQuery.Dataset)

	set, err := connections.NewFactory(appConfig, logger).Open(ctx, connections.Need{BigQuery: true})
	if err != nil {
		return err
	}
	defer set.Close()

	spinner := ui.NewSpinner("Rebuilding final_report")
	spinner.Start()
	if err := newJoiner(set, appConfig).Run(ctx, from, to); err != nil {
		spinner.Stop(false, "Final report failed")
		return err
	}
	spinner.Stop(true, "Final report rebuilt for "+from.String()+" .. "+to.String())
	return nil
}

