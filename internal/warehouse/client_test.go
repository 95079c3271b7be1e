package warehouse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"searchreporting/pkg/errors"
)

func newTestDataset(t *testing.T, handler http.HandlerFunc) *Dataset {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(context.Background(), "test-project", "", nil,
		option.WithEndpoint(server.URL),
		option.WithoutAuthentication(),
		option.WithHTTPClient(server.Client()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client.Dataset("adwords")
}

func writeAPIError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"code":%d,"message":%q,"errors":[{"reason":"invalid","message":%q}]}}`, code, message, message)
}

func TestDeleteTable(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantCode errors.ErrorCode
	}{
		{"deleted", http.StatusNoContent, ""},
		{"not found", http.StatusNotFound, errors.ErrCodeTableNotFound},
		{"forbidden", http.StatusForbidden, errors.ErrCodeTableDelete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotMethod, gotPath string
			ds := newTestDataset(t, func(w http.ResponseWriter, r *http.Request) {
				gotMethod, gotPath = r.Method, r.URL.Path
				if tt.status == http.StatusNoContent {
					w.WriteHeader(http.StatusNoContent)
					return
				}
				writeAPIError(w, tt.status, "table adw_keywords")
			})

			err := ds.DeleteTable(context.Background(), AdPerformanceTable)

			assert.Equal(t, http.MethodDelete, gotMethod)
			assert.True(t, strings.HasSuffix(gotPath, "/datasets/adwords/tables/adw_keywords"), gotPath)
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, errors.GetErrorCode(err))
			assert.Equal(t, tt.wantCode == errors.ErrCodeTableNotFound, errors.IsNotFound(err))
		})
	}
}

func TestCreateTableSendsSchema(t *testing.T) {
	var body map[string]interface{}
	ds := newTestDataset(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		data, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(data, &body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data)
	})

	err := ds.CreateTable(context.Background(), KeywordNamesTable, KeywordNamesSchema)
	require.NoError(t, err)

	ref := body["tableReference"].(map[string]interface{})
	assert.Equal(t, "adw_kw_names", ref["tableId"])
	assert.Equal(t, "adwords", ref["datasetId"])

	fields := body["schema"].(map[string]interface{})["fields"].([]interface{})
	require.Len(t, fields, len(KeywordNamesSchema))
	assert.Equal(t, "AccountDescriptiveName", fields[0].(map[string]interface{})["name"])
	assert.Equal(t, "STRING", fields[0].(map[string]interface{})["type"])
}

func TestCreateTableConflict(t *testing.T) {
	ds := newTestDataset(t, func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, http.StatusConflict, "Already Exists")
	})

	err := ds.CreateTable(context.Background(), FinalReportTable, FinalReportSchema)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeTableCreate, errors.GetErrorCode(err))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(&googleapi.Error{Code: http.StatusNotFound}))
	assert.True(t, isNotFound(fmt.Errorf("wrapped: %w", &googleapi.Error{Code: http.StatusNotFound})))
	assert.False(t, isNotFound(&googleapi.Error{Code: http.StatusForbidden}))
	assert.False(t, isNotFound(fmt.Errorf("boom")))
}

func TestSchemas(t *testing.T) {
	names := func(schema bigquery.Schema) []string {
		var out []string
		for _, f := range schema {
			out = append(out, f.Name)
		}
		return out
	}

	assert.Equal(t, []string{
		"AccountName", "CampaignName", "AdGroupId", "CreativeId", "KeywordId",
		"Date", "Device", "GclId", "Clicks",
	}, names(GclidSchema))
	assert.Len(t, AdPerformanceSchema, 15)
	assert.Len(t, KeywordNamesSchema, 5)
	assert.Len(t, FinalReportSchema, 18)

	assert.Equal(t, bigquery.FloatFieldType, AdPerformanceSchema[10].Type, "Cost")
	assert.Equal(t, bigquery.StringFieldType, AdPerformanceSchema[14].Type, "AveragePosition")
	assert.Equal(t, bigquery.FloatFieldType, FinalReportSchema[14].Type, "AveragePosition")
	assert.Equal(t, bigquery.DateFieldType, FinalReportSchema[9].Type, "Date")
}

func TestManagedTables(t *testing.T) {
	tables := ManagedTables()
	require.Len(t, tables, 4)
	for _, table := range tables {
		assert.NotEqual(t, SnowConversionsTable, table.Name)
		assert.NotEmpty(t, table.Schema)
	}
}

func TestLoadPresets(t *testing.T) {
	assert.Equal(t, bigquery.WriteAppend, AppendCSV.WriteDisposition)
	assert.Zero(t, AppendCSV.SkipLeadingRows)
	assert.False(t, AppendCSV.AutoDetect)

	assert.Equal(t, bigquery.WriteTruncate, ReplaceCSVAutoDetect.WriteDisposition)
	assert.Equal(t, int64(1), ReplaceCSVAutoDetect.SkipLeadingRows)
	assert.True(t, ReplaceCSVAutoDetect.AutoDetect)
}
