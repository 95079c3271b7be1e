package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"searchreporting/internal/config"
	"searchreporting/internal/observability"
	"searchreporting/internal/ui"
	"searchreporting/pkg/errors"
	"searchreporting/pkg/models"
)

var (
	cfgFile string

	v         = viper.New()
	appConfig *models.Config
	logger    = observability.NewNopLogger()

	// today is the reference date of relative windows.
	today = func() civil.Date { return civil.DateOf(time.Now()) }

	rootCmd = &cobra.Command{
		Use:   "searchreporting",
		Short: "Load AdWords and Snowflake data into BigQuery reports",
		Long: `searchreporting extracts ad performance, keyword and click reports from AdWords
and converting clicks from Snowflake, loads them into BigQuery, rebuilds the
final report and publishes the offline conversion feed to Cloud Storage.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}
)

// Execute runs the root command. SIGINT and SIGTERM cancel the running step.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		ui.Output = os.Stderr
		ui.ShowError(err)
		os.Exit(1)
	}
	stop()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default searchreporting.yaml in . or ~/.searchreporting)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "text", "log format: text or json")
	flags.String("project", "", "GCP project (default detected from credentials)")

	bindFlags(flags, map[string]string{
		"log-level":  "log.level",
		"log-format": "log.format",
		"project":    "gcp.project",
	})
}

// bindFlags makes each flag, when set, override its configuration key.
func bindFlags(flags *pflag.FlagSet, keys map[string]string) {
	for flag, key := range keys {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}
}

// setup loads the configuration and creates the logger shared by every
// component of the command.
func setup(cmd *cobra.Command, args []string) error {
	config.Init(v, cfgFile)
	if err := config.ReadInConfig(v); err != nil {
		return err
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	logger = observability.NewLogger(observability.LoggerConfig{
		Level:   observability.LogLevelFromString(cfg.Log.Level),
		Output:  cmd.ErrOrStderr(),
		Format:  cfg.Log.Format,
		Service: "searchreporting",
		Version: Version,
	})
	if file := v.ConfigFileUsed(); file != "" {
		logger.WithField("file", file).Debug("Configuration loaded")
	}

	appConfig = cfg
	return nil
}

// parseDate parses a YYYY-MM-DD flag value. An empty value yields fallback.
func parseDate(flag, value string, fallback civil.Date) (civil.Date, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := civil.ParseDate(value)
	if err != nil {
		return civil.Date{}, errors.ValidationError(flag, value, "expected YYYY-MM-DD")
	}
	return d, nil
}

// parseWindow parses --from and --to. Empty values take the defaults.
func parseWindow(from, to string, defaultFrom, defaultTo civil.Date) (civil.Date, civil.Date, error) {
	start, err := parseDate("from", from, defaultFrom)
	if err != nil {
		return civil.Date{}, civil.Date{}, err
	}
	end, err := parseDate("to", to, defaultTo)
	if err != nil {
		return civil.Date{}, civil.Date{}, err
	}
	if end.Before(start) {
		return civil.Date{}, civil.Date{}, errors.New(errors.ErrCodeInvalidInput, "Start date is after end date").
			WithContext("from", start.String()).
			WithContext("to", end.String())
	}
	return start, end, nil
}

// overrideString replaces target with the flag value when the flag was set.
func overrideString(cmd *cobra.Command, flag string, target *string) {
	if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
		*target = f.Value.String()
	}
}
