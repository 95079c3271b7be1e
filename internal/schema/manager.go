package schema

import (
	"context"

	"cloud.google.com/go/bigquery"
	"github.com/hashicorp/go-multierror"

	"searchreporting/internal/observability"
	"searchreporting/internal/warehouse"
	"searchreporting/pkg/errors"
)

// TableAPI is the subset of warehouse.Dataset the manager needs.
type TableAPI interface {
	DeleteTable(ctx context.Context, table string) error
	CreateTable(ctx context.Context, table string, schema bigquery.Schema) error
}

// Manager recreates reporting tables with their declared schema.
type Manager struct {
	tables TableAPI
	logger *observability.Logger
}

func NewManager(tables TableAPI, logger *observability.Logger) *Manager {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Manager{tables: tables, logger: logger.WithField("component", "schema")}
}

// EnsureTable drops name if it exists and creates it empty with schema.
// Existing rows are lost.
func (m *Manager) EnsureTable(ctx context.Context, name string, schema bigquery.Schema) error {
	if err := m.tables.DeleteTable(ctx, name); err != nil {
		if !errors.IsNotFound(err) {
			m.logger.WithError(err).Error("Failed to drop table")
			return err
		}
		m.logger.WithField("table", name).Debug("Table did not exist")
	} else {
		m.logger.WithField("table", name).Info("Dropped table")
	}

	if err := m.tables.CreateTable(ctx, name, schema); err != nil {
		m.logger.WithError(err).Error("Failed to create table")
		return err
	}

	m.logger.InfoWithFields("Created table", map[string]interface{}{
		"table":   name,
		"columns": len(schema),
	})
	return nil
}

// Result is the outcome of recreating one table.
type Result struct {
	Table   string
	Columns int
	Err     error
}

// EnsureTables recreates every table in order. A failure on one table does
// not stop the others; all failures are returned together.
func (m *Manager) EnsureTables(ctx context.Context, tables []warehouse.TableDefinition) ([]Result, error) {
	var (
		results []Result
		merr    *multierror.Error
	)
	for _, table := range tables {
		if err := ctx.Err(); err != nil {
			return results, multierror.Append(merr, err).ErrorOrNil()
		}
		err := m.EnsureTable(ctx, table.Name, table.Schema)
		if err != nil {
			merr = multierror.Append(merr, err)
		}
		results = append(results, Result{Table: table.Name, Columns: len(table.Schema), Err: err})
	}
	return results, merr.ErrorOrNil()
}

// Selection names the managed tables a caller wants recreated.
type Selection struct {
	Gclid         bool
	AdPerformance bool
	KeywordNames  bool
	FinalReport   bool
}

// Any reports whether at least one table is selected.
func (s Selection) Any() bool {
	return s.Gclid || s.AdPerformance || s.KeywordNames || s.FinalReport
}

// Tables returns the selected definitions in creation order.
func (s Selection) Tables() []warehouse.TableDefinition {
	selected := map[string]bool{
		warehouse.GclidListTable:     s.Gclid,
		warehouse.AdPerformanceTable: s.AdPerformance,
		warehouse.KeywordNamesTable:  s.KeywordNames,
		warehouse.FinalReportTable:   s.FinalReport,
	}

	var out []warehouse.TableDefinition
	for _, table := range warehouse.ManagedTables() {
		if selected[table.Name] {
			out = append(out, table)
		}
	}
	return out
}
