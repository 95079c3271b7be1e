package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"searchreporting/internal/observability"
	"searchreporting/internal/warehouse"
)

// CSVQuerier runs a query and writes the result as CSV with a header row.
type CSVQuerier interface {
	QueryCSV(ctx context.Context, query string, w io.Writer) (int, error)
}

// ConversionsQuery selects converting clicks from sourceTable. The click
// time is decoded from the utmz tracking cookie.
func ConversionsQuery(sourceTable, clicksSince string) string {
	return fmt.Sprintf(`SELECT
    TO_TIMESTAMP_NTZ(REGEXP_SUBSTR(TRACKING_UTMZ, '^[0-9]+\\.([0-9]+)\\.', 1, 1, 'e')) AS CLICK_TIMESTAMP,
    SALEDATE,
    TRACKING_GCLID,
    ORDERS,
    REVENUE,
    SALES_VALUE
FROM %s
WHERE
    NB_ORDERS > 0
    AND CLICK_TIMESTAMP >= '%s'`, sourceTable, clicksSince)
}

// ConversionsExtractor copies conversions from Snowflake into snow_conversions.
type ConversionsExtractor struct {
	source      CSVQuerier
	loader      TableLoader
	sourceTable string
	clicksSince string
	logger      *observability.Logger
}

func NewConversionsExtractor(source CSVQuerier, loader TableLoader, sourceTable, clicksSince string, logger *observability.Logger) *ConversionsExtractor {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &ConversionsExtractor{
		source:      source,
		loader:      loader,
		sourceTable: sourceTable,
		clicksSince: clicksSince,
		logger:      logger.WithField("component", "conversions"),
	}
}

// Run replaces snow_conversions with the current query result and returns
// the number of rows loaded.
func (e *ConversionsExtractor) Run(ctx context.Context) (int64, error) {
	e.logger.Info("Firing Snowflake query")

	var buf bytes.Buffer
	count, err := e.source.QueryCSV(ctx, ConversionsQuery(e.sourceTable, e.clicksSince), &buf)
	if err != nil {
		return 0, err
	}
	e.logger.WithField("rows", count).Info("Snowflake query finished")

	rows, err := e.loader.LoadCSV(ctx, warehouse.SnowConversionsTable, &buf, warehouse.ReplaceCSVAutoDetect)
	if err != nil {
		return 0, err
	}

	e.logger.InfoWithFields("Data loaded", map[string]interface{}{
		"table": warehouse.SnowConversionsTable,
		"rows":  rows,
	})
	return rows, nil
}
