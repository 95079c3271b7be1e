package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"searchreporting/internal/connections"
	"searchreporting/internal/ui"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Publish the offline conversion feed to Cloud Storage",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().String("dataset", "adwords", "BigQuery dataset")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	overrideString(cmd, "dataset", &appConfig.BigQuery.Dataset)

	set, err := connections.NewFactory(appConfig, logger).Open(ctx, connections.Need{BigQuery: true, Storage: true})
	if err != nil {
		return err
	}
	defer set.Close()

	result, err := newExporter(set, appConfig).Run(ctx)
	if err != nil {
		return err
	}

	ui.ShowSuccess(fmt.Sprintf("Published %d conversions to %s", result.Rows, result.URL))
	return nil
}
