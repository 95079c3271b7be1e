package models

import "time"

// Config is the pipeline configuration read from searchreporting.yaml.
type Config struct {
	GCP       GCP       `mapstructure:"gcp" yaml:"gcp"`
	BigQuery  BigQuery  `mapstructure:"bigquery" yaml:"bigquery"`
	Snowflake Snowflake `mapstructure:"snowflake" yaml:"snowflake"`
	AdWords   AdWords   `mapstructure:"adwords" yaml:"adwords"`
	Report    Report    `mapstructure:"report" yaml:"report"`
	Export    Export    `mapstructure:"export" yaml:"export"`
	Log       Log       `mapstructure:"log" yaml:"log"`
}

type GCP struct {
	Project         string `mapstructure:"project" yaml:"project"`
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`
}

type BigQuery struct {
	Dataset  string `mapstructure:"dataset" yaml:"dataset"`
	Location string `mapstructure:"location" yaml:"location"`
}

// Snowflake holds the session settings; credentials live in a separate file.
type Snowflake struct {
	CredentialsFile string        `mapstructure:"credentials_file" yaml:"credentials_file"`
	Warehouse       string        `mapstructure:"warehouse" yaml:"warehouse"`
	Database        string        `mapstructure:"database" yaml:"database"`
	Schema          string        `mapstructure:"schema" yaml:"schema"`
	Role            string        `mapstructure:"role" yaml:"role"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
	SourceTable     string        `mapstructure:"source_table" yaml:"source_table"`
	ClicksSince     string        `mapstructure:"clicks_since" yaml:"clicks_since"`
}

type AdWords struct {
	ConfigFile         string `mapstructure:"config_file" yaml:"config_file"`
	APIVersion         string `mapstructure:"api_version" yaml:"api_version"`
	Endpoint           string `mapstructure:"endpoint" yaml:"endpoint"`
	PageSize           int    `mapstructure:"page_size" yaml:"page_size"`
	KeywordsSince      string `mapstructure:"keywords_since" yaml:"keywords_since"`
	ClickRetentionDays int    `mapstructure:"click_retention_days" yaml:"click_retention_days"`
}

// SitePrefix maps an account-name prefix to a site code in the final report.
type SitePrefix struct {
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
	Code   string `mapstructure:"code" yaml:"code"`
}

type Report struct {
	Since string       `mapstructure:"since" yaml:"since"`
	Sites []SitePrefix `mapstructure:"sites" yaml:"sites"`
}

type Export struct {
	Bucket         string `mapstructure:"bucket" yaml:"bucket"`
	Object         string `mapstructure:"object" yaml:"object"`
	ConversionName string `mapstructure:"conversion_name" yaml:"conversion_name"`
	Currency       string `mapstructure:"currency" yaml:"currency"`
	TimeZone       string `mapstructure:"time_zone" yaml:"time_zone"`
	Limit          int    `mapstructure:"limit" yaml:"limit"`
}

type Log struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// SnowflakeCredentials mirrors the snowflake.yaml credential file.
type SnowflakeCredentials struct {
	Account  string `yaml:"sf_account"`
	User     string `yaml:"sf_user"`
	Password string `yaml:"sf_password"`
}
