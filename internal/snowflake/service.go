package snowflake

import (
	"context"
	"database/sql"
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/snowflakedb/gosnowflake"

	"searchreporting/internal/observability"
	"searchreporting/pkg/errors"
)

// Service provides Snowflake database operations
type Service struct {
	db        *sql.DB
	config    Config
	connected bool
	logger    *observability.Logger
}

// Config holds Snowflake connection configuration
type Config struct {
	Account   string
	Username  string
	Password  string
	Database  string
	Schema    string
	Warehouse string
	Role      string
	Timeout   time.Duration
}

// NewService creates a new Snowflake service
func NewService(config Config, logger *observability.Logger) *Service {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Service{
		config: config,
		logger: logger.WithField("component", "snowflake"),
	}
}

// DSN builds the driver connection string. Warehouse, database and schema
// become the session context of every connection in the pool.
func (c Config) DSN() (string, error) {
	sfConfig := &gosnowflake.Config{
		Account:   c.Account,
		User:      c.Username,
		Password:  c.Password,
		Database:  c.Database,
		Schema:    c.Schema,
		Warehouse: c.Warehouse,
		Role:      c.Role,
	}
	return gosnowflake.DSN(sfConfig)
}

// Connect establishes a connection to Snowflake
func (s *Service) Connect(ctx context.Context) error {
	if s.connected {
		return nil
	}

	dsn, err := s.config.DSN()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "Invalid Snowflake connection settings").
			WithContext("account", s.config.Account)
	}

	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return errors.ConnectionError("Snowflake", err).
			WithContext("account", s.config.Account).
			WithContext("warehouse", s.config.Warehouse)
	}

	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)

	connCtx, cancel := s.getContext(ctx)
	defer cancel()

	if err := db.PingContext(connCtx); err != nil {
		_ = db.Close()
		return s.connectError(err)
	}

	s.db = db
	s.connected = true
	s.logger.InfoWithFields("Connected to Snowflake", map[string]interface{}{
		"account":   s.config.Account,
		"warehouse": s.config.Warehouse,
		"database":  s.config.Database,
		"schema":    s.config.Schema,
	})
	return nil
}

// connectError classifies a failed ping.
func (s *Service) connectError(err error) *errors.AppError {
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "authentication") || strings.Contains(msg, "incorrect username or password"):
		return errors.Wrap(err, errors.ErrCodeAuthenticationFailed, "Snowflake authentication failed").
			WithContext("user", s.config.Username).
			WithSeverity(errors.SeverityCritical).
			WithSuggestions(
				"Verify sf_user and sf_password in the credential file",
				"Check if your account is locked",
			)
	case stderrors.Is(err, context.DeadlineExceeded) || strings.Contains(msg, "timeout"):
		return errors.Wrap(err, errors.ErrCodeConnectionTimeout, "Timed out connecting to Snowflake").
			WithContext("account", s.config.Account).
			WithContext("timeout", s.timeout().String()).
			AsRecoverable().
			WithSuggestions("Increase snowflake.timeout in the configuration")
	default:
		return errors.ConnectionError("Snowflake", err).
			WithContext("account", s.config.Account)
	}
}

// Close closes the database connection
func (s *Service) Close() error {
	if !s.connected {
		return nil
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}

	s.connected = false
	return nil
}

// ExecuteQuery executes a query and returns results. The caller owns the
// rows and the returned cancel function.
func (s *Service) ExecuteQuery(ctx context.Context, query string, args ...interface{}) (*sql.Rows, context.CancelFunc, error) {
	if !s.connected {
		return nil, nil, errors.New(errors.ErrCodeConnectionFailed, "Not connected to Snowflake").
			WithSuggestions("Call Connect() before executing queries")
	}

	queryCtx, cancel := s.getContext(ctx)
	rows, err := s.db.QueryContext(queryCtx, query, args...)
	if err != nil {
		cancel()
		return nil, nil, errors.SQLError("Failed to execute query", query, err)
	}
	return rows, cancel, nil
}

// QueryCSV runs query and writes the result set to w as CSV, header row
// first. It returns the number of data rows written.
func (s *Service) QueryCSV(ctx context.Context, query string, w io.Writer) (int, error) {
	rows, cancel, err := s.ExecuteQuery(ctx, query)
	if err != nil {
		return 0, err
	}
	defer cancel()
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeResultParsing, "Failed to read result columns")
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeResultParsing, "Failed to read result column types")
	}

	out := csv.NewWriter(w)
	if err := out.Write(columns); err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeInternal, "Failed to write CSV header")
	}

	values := make([]interface{}, len(columns))
	valuePtrs := make([]interface{}, len(columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}
	record := make([]string, len(columns))

	count := 0
	for rows.Next() {
		if err := rows.Scan(valuePtrs...); err != nil {
			return count, errors.Wrap(err, errors.ErrCodeResultParsing, "Failed to scan result row").
				WithContext("row", count+1)
		}
		for i, value := range values {
			record[i] = formatValue(value, types[i].DatabaseTypeName())
		}
		if err := out.Write(record); err != nil {
			return count, errors.Wrap(err, errors.ErrCodeInternal, "Failed to write CSV row")
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return count, errors.SQLError("Failed while reading query results", query, err)
	}

	out.Flush()
	if err := out.Error(); err != nil {
		return count, errors.Wrap(err, errors.ErrCodeInternal, "Failed to flush CSV output")
	}

	s.logger.DebugWithFields("Query serialized to CSV", map[string]interface{}{"rows": count})
	return count, nil
}

// formatValue renders a scanned column value the way the analytics
// warehouse auto-detects it.
func formatValue(value interface{}, dbType string) string {
	switch v := value.(type) {
	case nil:
		return ""
	case []byte:
		return string(v)
	case string:
		return v
	case time.Time:
		if strings.EqualFold(dbType, "DATE") {
			return v.Format("2006-01-02")
		}
		return v.Format("2006-01-02 15:04:05")
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

func (s *Service) timeout() time.Duration {
	if s.config.Timeout == 0 {
		return 30 * time.Second
	}
	return s.config.Timeout
}

func (s *Service) getContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, s.timeout())
}

// ValidateConfig validates the Snowflake configuration
func ValidateConfig(config Config) error {
	if config.Account == "" {
		return fmt.Errorf("account is required")
	}
	if config.Username == "" {
		return fmt.Errorf("username is required")
	}
	if config.Password == "" {
		return fmt.Errorf("password is required")
	}
	if config.Warehouse == "" {
		return fmt.Errorf("warehouse is required")
	}
	if config.Database == "" {
		return fmt.Errorf("database is required")
	}
	if config.Schema == "" {
		return fmt.Errorf("schema is required")
	}
	return nil
}
