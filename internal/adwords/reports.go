package adwords

import (
	"context"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"

	"searchreporting/pkg/errors"
)

// ReportDefinition describes an ad hoc report over a custom date range.
type ReportDefinition struct {
	Name   string
	Type   string
	Fields []string
	Min    civil.Date
	Max    civil.Date
}

type reportDefinitionXML struct {
	XMLName  xml.Name `xml:"reportDefinition"`
	Xmlns    string   `xml:"xmlns,attr"`
	Selector struct {
		Fields    []string `xml:"fields"`
		DateRange struct {
			Min string `xml:"min"`
			Max string `xml:"max"`
		} `xml:"dateRange"`
	} `xml:"selector"`
	ReportName     string `xml:"reportName"`
	ReportType     string `xml:"reportType"`
	DateRangeType  string `xml:"dateRangeType"`
	DownloadFormat string `xml:"downloadFormat"`
}

// XML renders the definition as sent in the __rdxml form field.
func (d ReportDefinition) XML(version string) (string, error) {
	def := reportDefinitionXML{
		Xmlns:          "https://adwords.google.com/api/adwords/cm/" + version,
		ReportName:     d.Name,
		ReportType:     d.Type,
		DateRangeType:  "CUSTOM_DATE",
		DownloadFormat: "CSV",
	}
	def.Selector.Fields = d.Fields
	def.Selector.DateRange.Min = compactDate(d.Min)
	def.Selector.DateRange.Max = compactDate(d.Max)

	out, err := xml.Marshal(def)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func compactDate(d civil.Date) string {
	return fmt.Sprintf("%04d%02d%02d", d.Year, int(d.Month), d.Day)
}

// DownloadOptions maps to the report download headers.
type DownloadOptions struct {
	SkipReportHeader       bool
	SkipColumnHeader       bool
	SkipReportSummary      bool
	IncludeZeroImpressions bool
}

// HeaderlessCSV drops every non-data line and zero-impression rows.
var HeaderlessCSV = DownloadOptions{
	SkipReportHeader:  true,
	SkipColumnHeader:  true,
	SkipReportSummary: true,
}

// DownloadReport downloads def for customerID and returns the raw CSV body.
func (c *Client) DownloadReport(ctx context.Context, customerID string, def ReportDefinition, opts DownloadOptions) ([]byte, error) {
	customerID = NormalizeCustomerID(customerID)

	rdxml, err := def.XML(c.version)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "Failed to encode report definition").
			WithContext("report", def.Type)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(map[string]string{
			"developerToken":         c.config.DeveloperToken,
			"clientCustomerId":       customerID,
			"skipReportHeader":       strconv.FormatBool(opts.SkipReportHeader),
			"skipColumnHeader":       strconv.FormatBool(opts.SkipColumnHeader),
			"skipReportSummary":      strconv.FormatBool(opts.SkipReportSummary),
			"includeZeroImpressions": strconv.FormatBool(opts.IncludeZeroImpressions),
		}).
		SetFormData(map[string]string{"__rdxml": rdxml}).
		Post(fmt.Sprintf("/api/adwords/reportdownload/%s", c.version))

	if err := classify(resp, err, errors.ErrCodeReportDownload, errors.ErrCodeReportRejected, "Report download failed"); err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			return nil, appErr.
				WithContext("report", def.Type).
				WithContext("customer_id", customerID)
		}
		return nil, err
	}

	body := resp.Body()
	if strings.TrimSpace(string(body)) == "" {
		return nil, errors.New(errors.ErrCodeReportEmpty, "Report has no rows").
			WithContext("report", def.Type).
			WithContext("customer_id", customerID).
			WithSeverity(errors.SeverityInfo)
	}

	c.logger.DebugWithFields("Downloaded report", map[string]interface{}{
		"report":      def.Type,
		"customer_id": customerID,
		"bytes":       len(body),
	})
	return body, nil
}
