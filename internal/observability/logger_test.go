package observability

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"searchreporting/pkg/errors"
)

func newJSONLogger(buf *bytes.Buffer, level LogLevel) *Logger {
	return NewLogger(LoggerConfig{
		Level:   level,
		Output:  buf,
		Format:  "json",
		Service: "searchreporting",
		Version: "test",
	})
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestLoggerWritesStructuredEntries(t *testing.T) {
	var buf bytes.Buffer
	logger := newJSONLogger(&buf, InfoLevel)

	logger.WithField("account", "1234567890").InfoWithFields("report loaded", map[string]interface{}{
		"table": "adw_keywords",
	})

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "info", entries[0]["level"])
	assert.Equal(t, "report loaded", entries[0]["msg"])
	assert.Equal(t, "1234567890", entries[0]["account"])
	assert.Equal(t, "adw_keywords", entries[0]["table"])
	assert.Equal(t, "searchreporting", entries[0]["service"])
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newJSONLogger(&buf, WarnLevel)

	logger.Info("hidden")
	logger.Debugf("hidden %d", 1)
	logger.Warn("shown")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "shown", entries[0]["msg"])
}

func TestLoggerWithErrorUsesAppErrorFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newJSONLogger(&buf, InfoLevel)

	appErr := errors.New(errors.ErrCodeReportDownload, "download failed").
		WithContext("report", "CLICK_PERFORMANCE_REPORT")
	logger.WithError(appErr).Error("skipping report")
	logger.WithError(fmt.Errorf("plain failure")).Error("plain")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "SRPT4001", entries[0]["error_code"])
	assert.Equal(t, "CLICK_PERFORMANCE_REPORT", entries[0]["report"])
	assert.Equal(t, "plain failure", entries[1]["error"])
}

func TestLogLevelFromString(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
		"fatal":   FatalLevel,
		"bogus":   InfoLevel,
	}
	for input, want := range tests {
		assert.Equal(t, want, LogLevelFromString(input), input)
	}
}
