package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"searchreporting/internal/observability"
	"searchreporting/internal/warehouse"
	"searchreporting/pkg/errors"
	"searchreporting/pkg/models"
)

const contentType = "text/csv"

// Header is the column row of the offline conversion feed.
var Header = []string{
	"Google Click ID",
	"Conversion Name",
	"Conversion Time",
	"Conversion Value",
	"Conversion Currency",
}

// endOfDay is added to the sale date to form the conversion time.
var endOfDay = civil.Time{Hour: 23, Minute: 59, Second: 59}

// RowQuerier runs a query and hands each result row to a callback.
type RowQuerier interface {
	Query(ctx context.Context, sql string, params []bigquery.QueryParameter, each func([]bigquery.Value) error) error
}

// Uploader publishes an object and returns its public URL.
type Uploader interface {
	UploadPublic(ctx context.Context, bucket, object, contentType string, data io.Reader) (string, error)
}

// Conversion is one line of the feed.
type Conversion struct {
	GclID string
	Time  civil.DateTime
	Value string
}

// Result describes a published feed.
type Result struct {
	URL  string
	Rows int
}

// Exporter publishes the latest converting clicks as an offline conversion
// import file.
type Exporter struct {
	rows     RowQuerier
	uploader Uploader
	dataset  string
	config   models.Export
	logger   *observability.Logger
}

func NewExporter(rows RowQuerier, uploader Uploader, dataset string, cfg models.Export, logger *observability.Logger) *Exporter {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Exporter{
		rows:     rows,
		uploader: uploader,
		dataset:  dataset,
		config:   cfg,
		logger:   logger.WithField("component", "export"),
	}
}

// BuildQuery selects past sales with revenue, most recent first.
func BuildQuery(dataset string) string {
	return fmt.Sprintf(`SELECT
    TRACKING_GCLID AS GclId,
    SALEDATE AS SaleDate,
    REVENUE AS ConversionValue
FROM `+"`%s.%s`"+`
WHERE
    REVENUE > 0
    AND SALEDATE < CURRENT_DATE()
ORDER BY SALEDATE DESC
LIMIT @limit`, dataset, warehouse.SnowConversionsTable)
}

// Run queries the conversions, writes the feed and uploads it.
func (e *Exporter) Run(ctx context.Context) (*Result, error) {
	e.logger.Info("Firing BigQuery query")

	var conversions []Conversion
	params := []bigquery.QueryParameter{{Name: "limit", Value: e.config.Limit}}
	err := e.rows.Query(ctx, BuildQuery(e.dataset), params, func(row []bigquery.Value) error {
		conversion, err := toConversion(row)
		if err != nil {
			return err
		}
		conversions = append(conversions, conversion)
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.WithField("rows", len(conversions)).Info("Query results saved")

	var buf bytes.Buffer
	if err := WriteFeed(&buf, e.config, conversions); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "Failed to write conversion feed")
	}

	url, err := e.uploader.UploadPublic(ctx, e.config.Bucket, e.config.Object, contentType, &buf)
	if err != nil {
		if errors.GetErrorCode(err) != errors.ErrCodeUploadFailed {
			err = errors.Wrap(err, errors.ErrCodeUploadFailed, "Failed to upload conversion feed").
				WithContext("bucket", e.config.Bucket).
				WithContext("object", e.config.Object)
		}
		return nil, err
	}

	e.logger.WithField("url", url).Info("Conversion feed published")
	return &Result{URL: url, Rows: len(conversions)}, nil
}

// WriteFeed writes the time zone line, the column header and one line per
// conversion.
func WriteFeed(w io.Writer, cfg models.Export, conversions []Conversion) error {
	out := csv.NewWriter(w)

	if err := out.Write([]string{"Parameters:TimeZone=" + cfg.TimeZone, "", "", "", ""}); err != nil {
		return err
	}
	if err := out.Write(Header); err != nil {
		return err
	}
	for _, c := range conversions {
		record := []string{
			c.GclID,
			cfg.ConversionName,
			formatDateTime(c.Time),
			c.Value,
			cfg.Currency,
		}
		if err := out.Write(record); err != nil {
			return err
		}
	}

	out.Flush()
	return out.Error()
}

func formatDateTime(dt civil.DateTime) string {
	return fmt.Sprintf("%s %02d:%02d:%02d", dt.Date, dt.Time.Hour, dt.Time.Minute, dt.Time.Second)
}

// toConversion converts a (GclId, SaleDate, ConversionValue) row.
func toConversion(row []bigquery.Value) (Conversion, error) {
	if len(row) != 3 {
		return Conversion{}, errors.New(errors.ErrCodeResultParsing, "Unexpected conversion row").
			WithContext("columns", len(row))
	}

	gclid, _ := row[0].(string)

	var day civil.Date
	switch v := row[1].(type) {
	case civil.Date:
		day = v
	case civil.DateTime:
		day = v.Date
	case time.Time:
		day = civil.DateOf(v)
	case string:
		parsed, err := civil.ParseDate(v)
		if err != nil {
			return Conversion{}, errors.Wrap(err, errors.ErrCodeResultParsing, "Invalid sale date").
				WithContext("value", v)
		}
		day = parsed
	default:
		return Conversion{}, errors.New(errors.ErrCodeResultParsing, "Unsupported sale date type").
			WithContext("type", fmt.Sprintf("%T", row[1]))
	}

	var value string
	switch v := row[2].(type) {
	case float64:
		value = strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		value = strconv.FormatInt(v, 10)
	case nil:
		value = ""
	default:
		value = fmt.Sprint(v)
	}

	return Conversion{
		GclID: gclid,
		Time:  civil.DateTime{Date: day, Time: endOfDay},
		Value: value,
	}, nil
}
