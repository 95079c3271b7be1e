package extract

import (
	"cloud.google.com/go/civil"

	"searchreporting/internal/adwords"
)

const (
	AdPerformanceReportType = "AD_PERFORMANCE_REPORT"
	KeywordsReportType      = "KEYWORDS_PERFORMANCE_REPORT"
	ClickReportType         = "CLICK_PERFORMANCE_REPORT"
)

// AdPerformanceReport feeds adw_keywords. Id is the ad id and CriterionId the
// keyword id.
func AdPerformanceReport(from, to civil.Date) adwords.ReportDefinition {
	return adwords.ReportDefinition{
		Name: "Custom range AD_PERFORMANCE_REPORT",
		Type: AdPerformanceReportType,
		Fields: []string{
			"AccountDescriptiveName",
			"CampaignName",
			"CampaignId",
			"AdGroupName",
			"AdGroupId",
			"AdGroupStatus",
			"Id",
			"CriterionId",
			"Device",
			"Date",
			"Cost",
			"Impressions",
			"Clicks",
			"Conversions",
			"AveragePosition",
		},
		Min: from,
		Max: to,
	}
}

// KeywordNamesReport feeds adw_kw_names.
func KeywordNamesReport(since, today civil.Date) adwords.ReportDefinition {
	return adwords.ReportDefinition{
		Name: "Custom range KEYWORDS_PERFORMANCE_REPORT",
		Type: KeywordsReportType,
		Fields: []string{
			"AccountDescriptiveName",
			"AdGroupId",
			"Criteria",
			"KeywordMatchType",
			"Id",
		},
		Min: since,
		Max: today,
	}
}

// ClickReport feeds adw_gclid_list for a single day.
func ClickReport(day civil.Date) adwords.ReportDefinition {
	return adwords.ReportDefinition{
		Name: ClickReportType,
		Type: ClickReportType,
		Fields: []string{
			"AccountDescriptiveName",
			"CampaignName",
			"AdGroupId",
			"CreativeId",
			"CriteriaId",
			"Date",
			"Device",
			"GclId",
			"Clicks",
		},
		Min: day,
		Max: day,
	}
}
