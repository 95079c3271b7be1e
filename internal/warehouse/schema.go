package warehouse

import "cloud.google.com/go/bigquery"

// Table names inside the reporting dataset.
const (
	GclidListTable       = "adw_gclid_list"
	AdPerformanceTable   = "adw_keywords"
	KeywordNamesTable    = "adw_kw_names"
	SnowConversionsTable = "snow_conversions"
	FinalReportTable     = "final_report"
)

// GclidSchema holds one row per click, loaded from the click performance report.
var GclidSchema = bigquery.Schema{
	{Name: "AccountName", Type: bigquery.StringFieldType},
	{Name: "CampaignName", Type: bigquery.StringFieldType},
	{Name: "AdGroupId", Type: bigquery.StringFieldType},
	{Name: "CreativeId", Type: bigquery.StringFieldType},
	{Name: "KeywordId", Type: bigquery.StringFieldType},
	{Name: "Date", Type: bigquery.DateFieldType},
	{Name: "Device", Type: bigquery.StringFieldType},
	{Name: "GclId", Type: bigquery.StringFieldType},
	{Name: "Clicks", Type: bigquery.IntegerFieldType},
}

// AdPerformanceSchema holds daily ad metrics. Cost is stored in micros.
var AdPerformanceSchema = bigquery.Schema{
	{Name: "AccountDescriptiveName", Type: bigquery.StringFieldType},
	{Name: "CampaignName", Type: bigquery.StringFieldType},
	{Name: "CampaignId", Type: bigquery.StringFieldType},
	{Name: "AdGroupName", Type: bigquery.StringFieldType},
	{Name: "AdGroupId", Type: bigquery.StringFieldType},
	{Name: "AdGroupStatus", Type: bigquery.StringFieldType},
	{Name: "CreativeId", Type: bigquery.StringFieldType},
	{Name: "KeywordId", Type: bigquery.StringFieldType},
	{Name: "Device", Type: bigquery.StringFieldType},
	{Name: "Date", Type: bigquery.DateFieldType},
	{Name: "Cost", Type: bigquery.FloatFieldType},
	{Name: "Impressions", Type: bigquery.IntegerFieldType},
	{Name: "Clicks", Type: bigquery.IntegerFieldType},
	{Name: "Conversions", Type: bigquery.FloatFieldType},
	{Name: "AveragePosition", Type: bigquery.StringFieldType},
}

var KeywordNamesSchema = bigquery.Schema{
	{Name: "AccountDescriptiveName", Type: bigquery.StringFieldType},
	{Name: "AdGroupId", Type: bigquery.StringFieldType},
	{Name: "Keyword", Type: bigquery.StringFieldType},
	{Name: "MatchType", Type: bigquery.StringFieldType},
	{Name: "KeywordId", Type: bigquery.StringFieldType},
}

var FinalReportSchema = bigquery.Schema{
	{Name: "Site", Type: bigquery.StringFieldType},
	{Name: "AccountName", Type: bigquery.StringFieldType},
	{Name: "CampaignName", Type: bigquery.StringFieldType},
	{Name: "CampaignType", Type: bigquery.StringFieldType},
	{Name: "Partner", Type: bigquery.StringFieldType},
	{Name: "AdGroupName", Type: bigquery.StringFieldType},
	{Name: "CreativeId", Type: bigquery.StringFieldType},
	{Name: "Keyword", Type: bigquery.StringFieldType},
	{Name: "Device", Type: bigquery.StringFieldType},
	{Name: "Date", Type: bigquery.DateFieldType},
	{Name: "Cost", Type: bigquery.FloatFieldType},
	{Name: "Impressions", Type: bigquery.IntegerFieldType},
	{Name: "Clicks", Type: bigquery.IntegerFieldType},
	{Name: "ConversionsAdw", Type: bigquery.FloatFieldType},
	{Name: "AveragePosition", Type: bigquery.FloatFieldType},
	{Name: "Orders", Type: bigquery.IntegerFieldType},
	{Name: "Revenue", Type: bigquery.FloatFieldType},
	{Name: "SalesValue", Type: bigquery.FloatFieldType},
}

// TableDefinition pairs a managed table with its schema.
type TableDefinition struct {
	Name   string
	Schema bigquery.Schema
}

// ManagedTables lists the tables with a fixed schema, in creation order.
// snow_conversions is absent: its schema is auto-detected on every load.
func ManagedTables() []TableDefinition {
	return []TableDefinition{
		{Name: GclidListTable, Schema: GclidSchema},
		{Name: AdPerformanceTable, Schema: AdPerformanceSchema},
		{Name: KeywordNamesTable, Schema: KeywordNamesSchema},
		{Name: FinalReportTable, Schema: FinalReportSchema},
	}
}
