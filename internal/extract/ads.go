package extract

import (
	"bytes"
	"context"
	"io"
	"time"

	"cloud.google.com/go/civil"

	"searchreporting/internal/adwords"
	"searchreporting/internal/observability"
	"searchreporting/internal/warehouse"
	"searchreporting/pkg/errors"
)

// ReportDownloader downloads one report for one account.
type ReportDownloader interface {
	DownloadReport(ctx context.Context, customerID string, def adwords.ReportDefinition, opts adwords.DownloadOptions) ([]byte, error)
}

// TableLoader loads CSV data into a warehouse table.
type TableLoader interface {
	LoadCSV(ctx context.Context, table string, src io.Reader, opts warehouse.LoadOptions) (int64, error)
}

// AdsConfig holds the fixed parameters of an ads extraction.
type AdsConfig struct {
	KeywordsSince      civil.Date
	ClickRetentionDays int
}

// AdsSummary reports what an ads extraction did.
type AdsSummary struct {
	Accounts       []string
	ClickFrom      civil.Date
	ClickTo        civil.Date
	ReportsLoaded  int
	ReportsSkipped int
	RowsLoaded     int64
}

// AdsExtractor pulls the three per-account reports and appends them to the
// warehouse.
type AdsExtractor struct {
	resolver *AccountResolver
	reports  ReportDownloader
	loader   TableLoader
	config   AdsConfig
	logger   *observability.Logger

	// Today returns the current date; click retention is relative to it.
	Today func() civil.Date
}

func NewAdsExtractor(resolver *AccountResolver, reports ReportDownloader, loader TableLoader, cfg AdsConfig, logger *observability.Logger) *AdsExtractor {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &AdsExtractor{
		resolver: resolver,
		reports:  reports,
		loader:   loader,
		config:   cfg,
		logger:   logger.WithField("component", "ads"),
		Today:    func() civil.Date { return civil.DateOf(time.Now()) },
	}
}

// Run extracts [from, to] for every leaf account under root. Download
// failures skip the report; load failures abort the run.
func (e *AdsExtractor) Run(ctx context.Context, root string, from, to civil.Date) (*AdsSummary, error) {
	if err := ValidateWindow(from, to); err != nil {
		return nil, err
	}

	today := e.Today()
	clickFrom, clickTo, err := ClickReportDates(from, to, today, e.config.ClickRetentionDays)
	if err != nil {
		return nil, err
	}
	if clickFrom != from {
		e.logger.WarnWithFields("Click report period reduced to the retention window", map[string]interface{}{
			"requested_from": from.String(),
			"from":           clickFrom.String(),
			"to":             clickTo.String(),
		})
	}

	accounts, err := e.resolver.ResolveLeafAccounts(ctx, root)
	if err != nil {
		return nil, err
	}

	summary := &AdsSummary{Accounts: accounts, ClickFrom: clickFrom, ClickTo: clickTo}
	days := DaysBetween(clickFrom, clickTo)

	for _, account := range accounts {
		logger := e.logger.WithField("account", account)
		logger.Info("Processing account")

		if err := e.fetchAndLoad(ctx, logger, summary, account, AdPerformanceReport(from, to), warehouse.AdPerformanceTable); err != nil {
			return summary, err
		}
		if err := e.fetchAndLoad(ctx, logger, summary, account, KeywordNamesReport(e.config.KeywordsSince, today), warehouse.KeywordNamesTable); err != nil {
			return summary, err
		}
		for _, day := range days {
			if err := e.fetchAndLoad(ctx, logger, summary, account, ClickReport(day), warehouse.GclidListTable); err != nil {
				return summary, err
			}
		}
	}

	e.logger.InfoWithFields("Ads extraction finished", map[string]interface{}{
		"accounts":        len(summary.Accounts),
		"reports_loaded":  summary.ReportsLoaded,
		"reports_skipped": summary.ReportsSkipped,
		"rows":            summary.RowsLoaded,
	})
	return summary, nil
}

func (e *AdsExtractor) fetchAndLoad(ctx context.Context, logger *observability.Logger, summary *AdsSummary, account string, def adwords.ReportDefinition, table string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	logger = logger.WithFields(map[string]interface{}{
		"report": def.Type,
		"min":    def.Min.String(),
		"max":    def.Max.String(),
	})

	body, err := e.reports.DownloadReport(ctx, account, def, adwords.HeaderlessCSV)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.GetErrorCode(err) == errors.ErrCodeReportEmpty:
		logger.Debug("Report is empty")
		summary.ReportsSkipped++
		return nil
	default:
		logger.WithError(err).Error("Could not generate report")
		summary.ReportsSkipped++
		return nil
	}

	rows, err := e.loader.LoadCSV(ctx, table, bytes.NewReader(body), warehouse.AppendCSV)
	if err != nil {
		return err
	}

	summary.ReportsLoaded++
	summary.RowsLoaded += rows
	logger.InfoWithFields("Data loaded", map[string]interface{}{"table": table, "rows": rows})
	return nil
}
