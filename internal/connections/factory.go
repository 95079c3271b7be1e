package connections

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"google.golang.org/api/option"

	"searchreporting/internal/adwords"
	"searchreporting/internal/config"
	"searchreporting/internal/gcs"
	"searchreporting/internal/observability"
	"searchreporting/internal/snowflake"
	"searchreporting/internal/warehouse"
	"searchreporting/pkg/errors"
	"searchreporting/pkg/models"
)

// Need selects the clients a command requires.
type Need struct {
	BigQuery  bool
	Storage   bool
	AdWords   bool
	Snowflake bool
}

// All requests every client.
var All = Need{BigQuery: true, Storage: true, AdWords: true, Snowflake: true}

// Set holds the clients of one run. Unrequested clients are nil.
type Set struct {
	BigQuery  *warehouse.Client
	Storage   *gcs.Client
	AdWords   *adwords.Client
	Snowflake *snowflake.Service
}

// Close closes every open client and reports all failures.
func (s *Set) Close() error {
	var result error
	if s.Snowflake != nil {
		if err := s.Snowflake.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if s.Storage != nil {
		if err := s.Storage.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if s.BigQuery != nil {
		if err := s.BigQuery.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}

// Factory builds authenticated clients from the loaded configuration.
// Every constructor logs and returns a typed error instead of a nil client.
type Factory struct {
	config *models.Config
	logger *observability.Logger

	// GoogleOptions are appended to the options of the BigQuery and Cloud
	// Storage clients.
	GoogleOptions []option.ClientOption
}

func NewFactory(cfg *models.Config, logger *observability.Logger) *Factory {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Factory{
		config: cfg,
		logger: logger.WithField("component", "connections"),
	}
}

// Open builds the clients selected by need. Clients already opened are
// closed when a later one fails.
func (f *Factory) Open(ctx context.Context, need Need) (*Set, error) {
	set := &Set{}

	fail := func(err error) (*Set, error) {
		if closeErr := set.Close(); closeErr != nil {
			f.logger.WithError(closeErr).Warn("Failed to close clients")
		}
		return nil, err
	}

	var err error
	if need.BigQuery {
		if set.BigQuery, err = f.BigQuery(ctx); err != nil {
			return fail(err)
		}
	}
	if need.Storage {
		if set.Storage, err = f.Storage(ctx); err != nil {
			return fail(err)
		}
	}
	if need.AdWords {
		if set.AdWords, err = f.AdWords(ctx); err != nil {
			return fail(err)
		}
	}
	if need.Snowflake {
		if set.Snowflake, err = f.Snowflake(ctx); err != nil {
			return fail(err)
		}
	}
	return set, nil
}

func (f *Factory) googleOptions() ([]option.ClientOption, error) {
	var opts []option.ClientOption
	if path := f.config.GCP.CredentialsFile; path != "" {
		data, err := config.ReadCredentialFile(path, f.logger)
		if err != nil {
			return nil, err
		}
		opts = append(opts, option.WithCredentialsJSON(data))
	}
	return append(opts, f.GoogleOptions...), nil
}

// BigQuery creates the analytics warehouse client.
func (f *Factory) BigQuery(ctx context.Context) (*warehouse.Client, error) {
	opts, err := f.googleOptions()
	if err != nil {
		return nil, f.report("BigQuery", err)
	}

	client, err := warehouse.NewClient(ctx, f.config.GCP.Project, f.config.BigQuery.Location, f.logger, opts...)
	if err != nil {
		return nil, f.report("BigQuery", errors.ConnectionError("BigQuery", err).
			WithContext("project", f.config.GCP.Project))
	}

	f.logger.WithField("project", client.Project()).Debug("BigQuery client ready")
	return client, nil
}

// Storage creates the Cloud Storage client.
func (f *Factory) Storage(ctx context.Context) (*gcs.Client, error) {
	opts, err := f.googleOptions()
	if err != nil {
		return nil, f.report("Cloud Storage", err)
	}

	client, err := gcs.NewClient(ctx, f.logger, opts...)
	if err != nil {
		return nil, f.report("Cloud Storage", errors.ConnectionError("Cloud Storage", err))
	}

	f.logger.Debug("Cloud Storage client ready")
	return client, nil
}

// AdWords creates the ads API client from googleads.yaml.
func (f *Factory) AdWords(ctx context.Context) (*adwords.Client, error) {
	clientConfig, err := adwords.LoadClientConfig(f.config.AdWords.ConfigFile, f.logger)
	if err != nil {
		return nil, f.report("AdWords", err)
	}

	ts, err := clientConfig.TokenSource(ctx)
	if err != nil {
		return nil, f.report("AdWords", err)
	}

	client := adwords.NewClient(ctx, clientConfig, ts, adwords.Options{
		Endpoint:   f.config.AdWords.Endpoint,
		APIVersion: f.config.AdWords.APIVersion,
	}, f.logger)

	f.logger.WithField("api_version", client.Version()).Debug("AdWords client ready")
	return client, nil
}

// Snowflake connects to the secondary warehouse with the credentials of
// snowflake.yaml and the configured session context.
func (f *Factory) Snowflake(ctx context.Context) (*snowflake.Service, error) {
	creds, err := config.LoadSnowflakeCredentials(f.config.Snowflake.CredentialsFile, f.logger)
	if err != nil {
		return nil, f.report("Snowflake", err)
	}

	sfConfig := SnowflakeConfig(creds, f.config.Snowflake)
	if err := snowflake.ValidateConfig(sfConfig); err != nil {
		return nil, f.report("Snowflake", errors.Wrap(err, errors.ErrCodeConfigInvalid, "Invalid Snowflake configuration"))
	}

	service := snowflake.NewService(sfConfig, f.logger)
	if err := service.Connect(ctx); err != nil {
		return nil, f.report("Snowflake", err)
	}
	return service, nil
}

// SnowflakeConfig merges credentials with the session settings.
func SnowflakeConfig(creds *models.SnowflakeCredentials, settings models.Snowflake) snowflake.Config {
	return snowflake.Config{
		Account:   creds.Account,
		Username:  creds.User,
		Password:  creds.Password,
		Warehouse: settings.Warehouse,
		Database:  settings.Database,
		Schema:    settings.Schema,
		Role:      settings.Role,
		Timeout:   settings.Timeout,
	}
}

func (f *Factory) report(system string, err error) error {
	fields := map[string]interface{}{"system": system}
	if appErr, ok := err.(*errors.AppError); ok {
		for k, v := range appErr.Fields() {
			fields[k] = v
		}
	}
	f.logger.WithError(err).ErrorWithFields("Failed to initialize client", fields)
	return err
}
