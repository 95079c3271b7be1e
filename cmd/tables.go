package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"searchreporting/internal/connections"
	"searchreporting/internal/schema"
	"searchreporting/internal/ui"
	"searchreporting/pkg/errors"
)

var (
	tablesSelection schema.Selection
	tablesYes       bool
)

var tablesCmd = &cobra.Command{
	Use:   "tables <dataset>",
	Short: "Drop and recreate reporting tables",
	Long: `Drop and recreate the selected tables of <dataset> with their declared schema.
Existing rows are lost. A table that fails to be created does not stop the
others; the command exits with an error when any failed.`,
	Args: cobra.ExactArgs(1),
	RunE: runTables,
}

func init() {
	rootCmd.AddCommand(tablesCmd)

	tablesCmd.Flags().BoolVar(&tablesSelection.Gclid, "gclid", false, "recreate adw_gclid_list")
	tablesCmd.Flags().BoolVar(&tablesSelection.AdPerformance, "adperf", false, "recreate adw_keywords")
	tablesCmd.Flags().BoolVar(&tablesSelection.KeywordNames, "kwnames", false, "recreate adw_kw_names")
	tablesCmd.Flags().BoolVar(&tablesSelection.FinalReport, "final", false, "recreate final_report")
	tablesCmd.Flags().BoolVarP(&tablesYes, "yes", "y", false, "do not ask for confirmation")
}

func runTables(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dataset := args[0]

	if !tablesSelection.Any() {
		ui.ShowWarning("No table selected, pass --gclid, --adperf, --kwnames or --final")
		return nil
	}
	tables := tablesSelection.Tables()

	if !tablesYes && ui.IsInteractive() {
		names := make([]string, len(tables))
		for i, table := range tables {
			names[i] = table.Name
		}
		confirm, err := ui.Confirm(fmt.Sprintf("Drop and recreate %s in %s?", strings.Join(names, ", "), dataset), false)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInvalidInput, "Confirmation aborted")
		}
		if !confirm {
			ui.ShowWarning("Cancelled")
			return nil
		}
	}

	appConfig.BigQuery.Dataset = dataset
	set, err := connections.NewFactory(appConfig, logger).Open(ctx, connections.Need{BigQuery: true})
	if err != nil {
		return err
	}
	defer set.Close()

	manager := schema.NewManager(set.BigQuery.Dataset(dataset), logger)
	results, err := manager.EnsureTables(ctx, tables)
	ui.RenderTableResults(cmd.OutOrStdout(), dataset, results)
	return err
}
