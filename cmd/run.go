package cmd

import (
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"

	"searchreporting/internal/connections"
	"searchreporting/internal/pipeline"
	"searchreporting/internal/ui"
)

var (
	runFrom string
	runTo   string
)

var runCmd = &cobra.Command{
	Use:   "run <mcc>",
	Short: "Run the full extract, join and export pipeline",
	Long: `Run the pipeline for every account under the manager account <mcc>:

  1. replace snow_conversions with the converting clicks of Snowflake
  2. append ad performance, keyword and per-day click reports to BigQuery
  3. rebuild final_report from report.since up to --to
  4. publish the offline conversion feed to Cloud Storage

--from and --to default to yesterday. Click reports only cover the last
90 days; an older start is moved forward and a window ending before that
is rejected.`,
	Args: cobra.ExactArgs(1),
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFrom, "from", "", "first day, YYYY-MM-DD (default yesterday)")
	runCmd.Flags().StringVar(&runTo, "to", "", "last day, YYYY-MM-DD (default yesterday)")
	runCmd.Flags().String("dataset", "adwords", "BigQuery dataset")
	runCmd.Flags().String("google", "../googleads.yaml", "AdWords client configuration file")
	runCmd.Flags().String("snow", "../snowflake.yaml", "Snowflake credentials file")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	yesterday := today().AddDays(-1)
	from, to, err := parseWindow(runFrom, runTo, yesterday, yesterday)
	if err != nil {
		return err
	}

	ui.ShowHeader(fmt.Sprintf("Search reporting %s  %s .. %s", args[0], from, to))

	overrideString(cmd, "dataset", &appConfig.BigQuery.Dataset)
	overrideString(cmd, "google", &appConfig.AdWords.ConfigFile)
	overrideString(cmd, "snow", &appConfig.Snowflake.CredentialsFile)

	reportSince, err := civil.ParseDate(appConfig.Report.Since)
	if err != nil {
		return err
	}

	set, err := connections.NewFactory(appConfig, logger).Open(ctx, connections.All)
	if err != nil {
		return err
	}
	defer func() {
		if err := set.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close clients")
		}
	}()

	stages, err := buildStages(set, appConfig)
	if err != nil {
		return err
	}

	summary, err := pipeline.New(stages, reportSince, logger).Run(ctx, pipeline.Request{
		Root: args[0],
		From: from,
		To:   to,
	})
	if summary != nil {
		ui.RenderRunSummary(cmd.OutOrStdout(), summary)
	}
	return err
}
