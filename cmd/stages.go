package cmd

import (
	"cloud.google.com/go/civil"

	"searchreporting/internal/connections"
	"searchreporting/internal/export"
	"searchreporting/internal/extract"
	"searchreporting/internal/pipeline"
	"searchreporting/internal/report"
	"searchreporting/pkg/models"
)

// newJoiner rebuilds final_report in the configured dataset.
func newJoiner(set *connections.Set, cfg *models.Config) *report.Joiner {
	dataset := set.BigQuery.Dataset(cfg.BigQuery.Dataset)
	return report.NewJoiner(dataset, dataset.Name(), cfg.Report.Sites, logger)
}

// newExporter publishes the conversion feed of the configured dataset.
func newExporter(set *connections.Set, cfg *models.Config) *export.Exporter {
	dataset := set.BigQuery.Dataset(cfg.BigQuery.Dataset)
	return export.NewExporter(dataset, set.Storage, dataset.Name(), cfg.Export, logger)
}

// buildStages wires every pipeline step to the opened clients.
func buildStages(set *connections.Set, cfg *models.Config) (pipeline.Stages, error) {
	keywordsSince, err := civil.ParseDate(cfg.AdWords.KeywordsSince)
	if err != nil {
		return pipeline.Stages{}, err
	}

	dataset := set.BigQuery.Dataset(cfg.BigQuery.Dataset)
	resolver := extract.NewAccountResolver(set.AdWords, cfg.AdWords.PageSize, logger)

	return pipeline.Stages{
		Conversions: extract.NewConversionsExtractor(set.Snowflake, dataset, cfg.Snowflake.SourceTable, cfg.Snowflake.ClicksSince, logger),
		Ads: extract.NewAdsExtractor(resolver, set.AdWords, dataset, extract.AdsConfig{
			KeywordsSince:      keywordsSince,
			ClickRetentionDays: cfg.AdWords.ClickRetentionDays,
		}, logger),
		Join:   newJoiner(set, cfg),
		Export: newExporter(set, cfg),
	}, nil
}
