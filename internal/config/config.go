package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/spf13/viper"

	"searchreporting/internal/common"
	"searchreporting/pkg/errors"
	"searchreporting/pkg/models"
)

const (
	configName = "searchreporting"
	envPrefix  = "SEARCHREPORTING"
	envConfig  = "SEARCHREPORTING_CONFIG"
)

// GetConfigPath returns the directory holding the user-level configuration.
func GetConfigPath() string {
	if configPath := os.Getenv(envConfig); configPath != "" {
		return filepath.Dir(configPath)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "."+configName)
}

// GetConfigFile returns the configuration file named by SEARCHREPORTING_CONFIG, if any.
func GetConfigFile() string {
	if configFile := os.Getenv(envConfig); configFile != "" {
		cleaned, err := common.ResolvePath(configFile)
		if err != nil {
			return ""
		}
		return cleaned
	}
	return ""
}

// SetDefaults registers the default value of every configuration key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("gcp.project", "")
	v.SetDefault("gcp.credentials_file", "")

	v.SetDefault("bigquery.dataset", "adwords")
	v.SetDefault("bigquery.location", "")

	v.SetDefault("snowflake.credentials_file", "../snowflake.yaml")
	v.SetDefault("snowflake.warehouse", "WH1")
	v.SetDefault("snowflake.database", "DB1")
	v.SetDefault("snowflake.schema", "SCH1")
	v.SetDefault("snowflake.role", "")
	v.SetDefault("snowflake.timeout", "10m")
	v.SetDefault("snowflake.source_table", "ADWORDS_GCLID_AGGREGATION")
	v.SetDefault("snowflake.clicks_since", "2018-01-01")

	v.SetDefault("adwords.config_file", "../googleads.yaml")
	v.SetDefault("adwords.api_version", "v201809")
	v.SetDefault("adwords.endpoint", "https://adwords.google.com")
	v.SetDefault("adwords.page_size", 500)
	v.SetDefault("adwords.keywords_since", "2018-01-01")
	v.SetDefault("adwords.click_retention_days", 90)

	v.SetDefault("report.since", "2000-01-01")
	v.SetDefault("report.sites", []map[string]interface{}{
		{"prefix": "Site1", "code": "ST1"},
		{"prefix": "Site2", "code": "ST2"},
	})

	v.SetDefault("export.bucket", "client_bucket")
	v.SetDefault("export.object", "adwords_conversions.csv")
	v.SetDefault("export.conversion_name", "Commissions")
	v.SetDefault("export.currency", "EUR")
	v.SetDefault("export.time_zone", "Europe/Paris")
	v.SetDefault("export.limit", 2000)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Init prepares v to read searchreporting.yaml. An explicit file wins over
// SEARCHREPORTING_CONFIG, which wins over the search path.
func Init(v *viper.Viper, explicitFile string) {
	SetDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	switch {
	case explicitFile != "":
		v.SetConfigFile(explicitFile)
	case GetConfigFile() != "":
		v.SetConfigFile(GetConfigFile())
	default:
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(GetConfigPath())
	}
}

// ReadInConfig reads the configuration file if one exists. A missing file
// on the search path is not an error, defaults apply.
func ReadInConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to read configuration file").
			WithContext("file", v.ConfigFileUsed())
	}
	return nil
}

// Load unmarshals v into a validated configuration.
func Load(v *viper.Viper) (*models.Config, error) {
	var cfg models.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to decode configuration")
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values the pipeline cannot run without.
func Validate(cfg *models.Config) error {
	if cfg.BigQuery.Dataset == "" {
		return errors.ConfigError("BigQuery dataset is required", "bigquery.dataset")
	}
	if cfg.AdWords.PageSize <= 0 {
		return errors.ConfigError("Page size must be positive", "adwords.page_size")
	}
	if cfg.AdWords.ClickRetentionDays <= 0 {
		return errors.ConfigError("Click retention must be positive", "adwords.click_retention_days")
	}
	if cfg.Export.Bucket == "" || cfg.Export.Object == "" {
		return errors.ConfigError("Export bucket and object are required", "export")
	}
	if cfg.Export.Limit <= 0 {
		return errors.ConfigError("Export limit must be positive", "export.limit")
	}

	dates := map[string]string{
		"report.since":           cfg.Report.Since,
		"adwords.keywords_since": cfg.AdWords.KeywordsSince,
		"snowflake.clicks_since": cfg.Snowflake.ClicksSince,
	}
	for field, value := range dates {
		if _, err := civil.ParseDate(value); err != nil {
			return errors.ConfigError(fmt.Sprintf("Invalid date %q, expected YYYY-MM-DD", value), field)
		}
	}

	for i, site := range cfg.Report.Sites {
		if site.Prefix == "" || site.Code == "" {
			return errors.ConfigError("Site prefix and code are required", fmt.Sprintf("report.sites[%d]", i))
		}
	}
	return nil
}
