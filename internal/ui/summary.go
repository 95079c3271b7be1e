package ui

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"searchreporting/internal/pipeline"
	"searchreporting/internal/schema"
	"searchreporting/pkg/errors"
)

// RenderRunSummary writes one row per pipeline step followed by the run totals.
func RenderRunSummary(w io.Writer, summary *pipeline.Summary) {
	fmt.Fprintf(w, "\nRun %s  mcc %s  %s .. %s\n\n", summary.RunID, summary.Root, summary.From, summary.To)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Step", "Status", "Duration", "Details"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, step := range summary.Steps {
		status := color.GreenString("OK")
		if step.Err != nil {
			status = color.RedString("FAILED")
		}
		table.Append([]string{
			step.Name,
			status,
			formatDuration(step.Duration),
			stepDetails(summary, step),
		})
	}
	table.Render()

	fmt.Fprintf(w, "\nTotal %s\n", formatDuration(summary.Duration))
}

func stepDetails(summary *pipeline.Summary, step pipeline.StepResult) string {
	if step.Err != nil {
		return string(errors.GetErrorCode(step.Err))
	}

	switch step.Name {
	case "conversions":
		return fmt.Sprintf("%d rows staged", summary.ConversionRows)
	case "ads":
		if summary.Ads == nil {
			return ""
		}
		details := fmt.Sprintf("%d accounts, %d reports, %d rows",
			len(summary.Ads.Accounts), summary.Ads.ReportsLoaded, summary.Ads.RowsLoaded)
		if summary.Ads.ReportsSkipped > 0 {
			details += color.YellowString(", %d skipped", summary.Ads.ReportsSkipped)
		}
		if summary.Ads.ClickFrom != summary.From {
			details += color.YellowString(", clicks from %s", summary.Ads.ClickFrom)
		}
		return details
	case "join":
		return fmt.Sprintf("%s .. %s", summary.ReportFrom, summary.To)
	case "export":
		if summary.Export == nil {
			return ""
		}
		return fmt.Sprintf("%d rows, %s", summary.Export.Rows, summary.Export.URL)
	default:
		return ""
	}
}

// RenderTableResults writes the outcome of a table recreation.
func RenderTableResults(w io.Writer, dataset string, results []schema.Result) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Table", "Columns", "Status"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, result := range results {
		status := color.GreenString("created")
		if result.Err != nil {
			status = color.RedString("failed")
		}
		table.Append([]string{
			dataset + "." + result.Table,
			strconv.Itoa(result.Columns),
			status,
		})
	}
	table.Render()
}
