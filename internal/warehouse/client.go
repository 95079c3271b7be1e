package warehouse

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"searchreporting/internal/observability"
	"searchreporting/pkg/errors"
)

// Client wraps the BigQuery client used for every table, load and query job.
type Client struct {
	bq     *bigquery.Client
	logger *observability.Logger
}

// NewClient creates a BigQuery client. An empty project is detected from the
// credentials.
func NewClient(ctx context.Context, project, location string, logger *observability.Logger, opts ...option.ClientOption) (*Client, error) {
	if project == "" {
		project = bigquery.DetectProjectID
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}

	bq, err := bigquery.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, err
	}
	if location != "" {
		bq.Location = location
	}

	return &Client{bq: bq, logger: logger.WithField("component", "bigquery")}, nil
}

// Project returns the project jobs run in.
func (c *Client) Project() string {
	return c.bq.Project()
}

// Dataset returns a handle on a dataset of the client's project.
func (c *Client) Dataset(name string) *Dataset {
	return &Dataset{
		client: c.bq,
		ds:     c.bq.Dataset(name),
		name:   name,
		logger: c.logger.WithField("dataset", name),
	}
}

func (c *Client) Close() error {
	return c.bq.Close()
}

// Dataset runs table lifecycle, load and query jobs against one dataset.
type Dataset struct {
	client *bigquery.Client
	ds     *bigquery.Dataset
	name   string
	logger *observability.Logger
}

func (d *Dataset) Name() string {
	return d.name
}

// DeleteTable drops a table. A missing table yields ErrCodeTableNotFound.
func (d *Dataset) DeleteTable(ctx context.Context, table string) error {
	if err := d.ds.Table(table).Delete(ctx); err != nil {
		if isNotFound(err) {
			return errors.Wrap(err, errors.ErrCodeTableNotFound, "Table does not exist").
				WithContext("table", table).
				WithSeverity(errors.SeverityInfo)
		}
		return errors.Wrap(err, errors.ErrCodeTableDelete, "Failed to delete table").
			WithContext("table", table)
	}
	return nil
}

// CreateTable creates an empty table with schema.
func (d *Dataset) CreateTable(ctx context.Context, table string, schema bigquery.Schema) error {
	if err := d.ds.Table(table).Create(ctx, &bigquery.TableMetadata{Schema: schema}); err != nil {
		return errors.Wrap(err, errors.ErrCodeTableCreate, "Failed to create table").
			WithContext("table", table)
	}
	return nil
}

// LoadOptions controls a CSV load job.
type LoadOptions struct {
	WriteDisposition bigquery.TableWriteDisposition
	SkipLeadingRows  int64
	AutoDetect       bool
}

// AppendCSV appends headerless CSV rows to an existing table.
var AppendCSV = LoadOptions{WriteDisposition: bigquery.WriteAppend}

// ReplaceCSVAutoDetect replaces a table with CSV data whose first row is a header.
var ReplaceCSVAutoDetect = LoadOptions{
	WriteDisposition: bigquery.WriteTruncate,
	SkipLeadingRows:  1,
	AutoDetect:       true,
}

// LoadCSV loads CSV data from src into table and waits for the job to
// finish. It returns the number of rows written.
func (d *Dataset) LoadCSV(ctx context.Context, table string, src io.Reader, opts LoadOptions) (int64, error) {
	source := bigquery.NewReaderSource(src)
	source.SourceFormat = bigquery.CSV
	source.SkipLeadingRows = opts.SkipLeadingRows
	source.AutoDetect = opts.AutoDetect

	loader := d.ds.Table(table).LoaderFrom(source)
	loader.WriteDisposition = opts.WriteDisposition
	loader.CreateDisposition = bigquery.CreateIfNeeded
	loader.JobIDConfig = bigquery.JobIDConfig{
		JobID:          "searchreporting_load_" + table,
		AddJobIDSuffix: true,
	}

	wrap := func(err error) error {
		return errors.Wrap(err, errors.ErrCodeLoadFailed, "Failed to load CSV data").
			WithContext("table", table).
			WithContext("write_disposition", string(opts.WriteDisposition))
	}

	job, err := loader.Run(ctx)
	if err != nil {
		return 0, wrap(err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return 0, wrap(err)
	}
	if err := status.Err(); err != nil {
		return 0, wrap(err)
	}

	var rows int64
	if status.Statistics != nil {
		if stats, ok := status.Statistics.Details.(*bigquery.LoadStatistics); ok {
			rows = stats.OutputRows
		}
	}

	d.logger.DebugWithFields("Load job finished", map[string]interface{}{
		"table":  table,
		"job_id": job.ID(),
		"rows":   rows,
	})
	return rows, nil
}

// QueryToTable runs sql and replaces table with the result.
func (d *Dataset) QueryToTable(ctx context.Context, sql, table string, params []bigquery.QueryParameter) error {
	q := d.client.Query(sql)
	q.Parameters = params
	q.Dst = d.ds.Table(table)
	q.WriteDisposition = bigquery.WriteTruncate
	q.CreateDisposition = bigquery.CreateIfNeeded

	wrap := func(err error) error {
		return errors.Wrap(err, errors.ErrCodeQueryFailed, "Query job failed").
			WithContext("destination", table)
	}

	job, err := q.Run(ctx)
	if err != nil {
		return wrap(err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return wrap(err)
	}
	if err := status.Err(); err != nil {
		return wrap(err)
	}

	d.logger.DebugWithFields("Query job finished", map[string]interface{}{
		"destination": table,
		"job_id":      job.ID(),
	})
	return nil
}

// Query runs sql and calls each for every result row, in order.
func (d *Dataset) Query(ctx context.Context, sql string, params []bigquery.QueryParameter, each func([]bigquery.Value) error) error {
	q := d.client.Query(sql)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeQueryFailed, "Query failed")
	}

	for {
		var row []bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeQueryFailed, "Failed to read query results")
		}
		if err := each(row); err != nil {
			return err
		}
	}
}

func isNotFound(err error) bool {
	var gapiErr *googleapi.Error
	return stderrors.As(err, &gapiErr) && gapiErr.Code == http.StatusNotFound
}
