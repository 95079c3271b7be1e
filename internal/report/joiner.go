package report

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"searchreporting/internal/observability"
	"searchreporting/internal/warehouse"
	"searchreporting/pkg/models"
)

// Campaign names follow TYPE-partner-rest. The same patterns run in
// BigQuery and in Go.
const (
	CampaignTypePattern = `^([A-Z]{2,6})-`
	PartnerPattern      = `^[A-Z]{2,6}-([A-Za-z0-9'_\.]+)-`
)

// DefaultSince is the first day of the final report when none is given.
var DefaultSince = civil.Date{Year: 2000, Month: 1, Day: 1}

// QueryRunner runs a query into a destination table, replacing its content.
type QueryRunner interface {
	QueryToTable(ctx context.Context, sql, table string, params []bigquery.QueryParameter) error
}

// Joiner rebuilds final_report from the loaded ads and conversion tables.
type Joiner struct {
	runner  QueryRunner
	dataset string
	sites   []models.SitePrefix
	logger  *observability.Logger
}

func NewJoiner(runner QueryRunner, dataset string, sites []models.SitePrefix, logger *observability.Logger) *Joiner {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Joiner{
		runner:  runner,
		dataset: dataset,
		sites:   sites,
		logger:  logger.WithField("component", "join"),
	}
}

// Run replaces final_report with ad performance rows dated in [from, to],
// enriched with keyword names and matched conversions.
func (j *Joiner) Run(ctx context.Context, from, to civil.Date) error {
	j.logger.InfoWithFields("Firing BigQuery query", map[string]interface{}{
		"from": from.String(),
		"to":   to.String(),
	})

	sql := BuildQuery(j.dataset, len(j.sites))
	if err := j.runner.QueryToTable(ctx, sql, warehouse.FinalReportTable, Params(from, to, j.sites)); err != nil {
		return err
	}

	j.logger.WithField("table", j.dataset+"."+warehouse.FinalReportTable).Info("Query results loaded")
	return nil
}

// Params binds the date window and the site prefixes of BuildQuery.
func Params(from, to civil.Date, sites []models.SitePrefix) []bigquery.QueryParameter {
	params := []bigquery.QueryParameter{
		{Name: "date_begin", Value: from},
		{Name: "date_end", Value: to},
	}
	for i, site := range sites {
		params = append(params,
			bigquery.QueryParameter{Name: fmt.Sprintf("site_prefix_%d", i), Value: site.Prefix},
			bigquery.QueryParameter{Name: fmt.Sprintf("site_code_%d", i), Value: site.Code},
		)
	}
	return params
}

// BuildQuery renders the final report query for dataset with siteCount
// prefix rules.
func BuildQuery(dataset string, siteCount int) string {
	return fmt.Sprintf(finalReportQuery,
		dataset,
		warehouse.GclidListTable,
		warehouse.SnowConversionsTable,
		warehouse.KeywordNamesTable,
		warehouse.AdPerformanceTable,
		siteExpression(siteCount),
		CampaignTypePattern,
		PartnerPattern,
	)
}

// siteExpression maps the account name to a site code. CASE needs at least
// one WHEN arm, so with no prefixes every row is 'Other'.
func siteExpression(siteCount int) string {
	if siteCount == 0 {
		return "'Other'"
	}

	var site strings.Builder
	site.WriteString("CASE\n")
	for i := 0; i < siteCount; i++ {
		fmt.Fprintf(&site, "        WHEN STARTS_WITH(kw.AccountDescriptiveName, @site_prefix_%d) THEN @site_code_%d\n", i, i)
	}
	site.WriteString("        ELSE 'Other'\n    END")
	return site.String()
}

const finalReportQuery = `WITH gclid AS (
    SELECT *
    FROM ` + "`%[1]s.%[2]s`" + ` AS a
    INNER JOIN (
        SELECT *
        FROM ` + "`%[1]s.%[3]s`" + `
        WHERE
            TRACKING_GCLID IS NOT NULL
            AND ORDERS > 0
    ) AS b
    ON a.GclId = b.TRACKING_GCLID
),
kwnames AS (
    SELECT DISTINCT
        AdGroupId,
        KeywordId,
        Keyword
    FROM ` + "`%[1]s.%[4]s`" + `
)

SELECT
    %[6]s AS Site,
    kw.AccountDescriptiveName AS AccountName,
    kw.CampaignName AS CampaignName,
    REGEXP_EXTRACT(kw.CampaignName, r"%[7]s") AS CampaignType,
    LOWER(REGEXP_EXTRACT(kw.CampaignName, r"%[8]s")) AS Partner,
    kw.AdGroupName AS AdGroupName,
    kw.CreativeId AS CreativeId,
    kwnames.Keyword AS Keyword,
    kw.Device AS Device,
    kw.Date AS Date,
    kw.Cost / 1000000 AS Cost,
    kw.Impressions AS Impressions,
    kw.Clicks AS Clicks,
    kw.Conversions AS ConversionsAdw,
    SAFE_CAST(kw.AveragePosition AS FLOAT64) AS AveragePosition,
    SUM(gclid.ORDERS) AS Orders,
    ROUND(SUM(gclid.REVENUE), 4) AS Revenue,
    ROUND(SUM(gclid.SALES_VALUE), 4) AS SalesValue

FROM ` + "`%[1]s.%[5]s`" + ` AS kw

LEFT JOIN gclid
ON
    kw.AdGroupId = gclid.AdGroupId
    AND kw.CreativeId = gclid.CreativeId
    AND kw.KeywordId = gclid.KeywordId
    AND kw.Date = gclid.Date
    AND kw.Device = gclid.Device

LEFT JOIN kwnames
ON
    kw.AdGroupId = kwnames.AdGroupId
    AND kw.KeywordId = kwnames.KeywordId

WHERE kw.Date BETWEEN @date_begin AND @date_end

GROUP BY 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15`
