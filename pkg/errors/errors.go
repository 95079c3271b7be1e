package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode represents a unique error code for categorizing errors
type ErrorCode string

const (
	// Connection errors (1xxx)
	ErrCodeConnectionFailed     ErrorCode = "SRPT1001"
	ErrCodeConnectionTimeout    ErrorCode = "SRPT1002"
	ErrCodeAuthenticationFailed ErrorCode = "SRPT1003"

	// Configuration errors (2xxx)
	ErrCodeConfigNotFound   ErrorCode = "SRPT2001"
	ErrCodeConfigInvalid    ErrorCode = "SRPT2002"
	ErrCodeConfigMissing    ErrorCode = "SRPT2003"
	ErrCodeConfigPermission ErrorCode = "SRPT2004"

	// Analytics warehouse errors (3xxx)
	ErrCodeTableNotFound ErrorCode = "SRPT3001"
	ErrCodeTableCreate   ErrorCode = "SRPT3002"
	ErrCodeTableDelete   ErrorCode = "SRPT3003"
	ErrCodeLoadFailed    ErrorCode = "SRPT3004"
	ErrCodeQueryFailed   ErrorCode = "SRPT3005"

	// Ads API errors (4xxx)
	ErrCodeReportDownload   ErrorCode = "SRPT4001"
	ErrCodeReportRejected   ErrorCode = "SRPT4002"
	ErrCodeReportEmpty      ErrorCode = "SRPT4003"
	ErrCodeHierarchyFailed  ErrorCode = "SRPT4004"
	ErrCodeAPIQuotaExceeded ErrorCode = "SRPT4005"

	// Secondary warehouse errors (5xxx)
	ErrCodeSQLExecution  ErrorCode = "SRPT5001"
	ErrCodeSQLTimeout    ErrorCode = "SRPT5002"
	ErrCodeResultParsing ErrorCode = "SRPT5003"

	// Object storage errors (6xxx)
	ErrCodeUploadFailed ErrorCode = "SRPT6001"

	// Validation errors (7xxx)
	ErrCodeValidationFailed  ErrorCode = "SRPT7001"
	ErrCodeInvalidInput      ErrorCode = "SRPT7002"
	ErrCodeDateRangeExceeded ErrorCode = "SRPT7003"

	// System errors (9xxx)
	ErrCodeInternal ErrorCode = "SRPT9001"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	SeverityCritical ErrorSeverity = "CRITICAL" // Run must stop
	SeverityError    ErrorSeverity = "ERROR"    // Operation failed
	SeverityWarning  ErrorSeverity = "WARNING"  // Operation skipped, run continues
	SeverityInfo     ErrorSeverity = "INFO"     // Informational, not an error
)

// AppError represents a structured application error with context
type AppError struct {
	Code        ErrorCode
	Message     string
	Severity    ErrorSeverity
	Context     map[string]interface{}
	Cause       error
	Stack       string
	Timestamp   time.Time
	Recoverable bool
	Suggestions []string
}

// Error implements the error interface
func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s: %s", e.Code, e.Severity, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\nCaused by: %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\nSuggestions:")
		for i, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  %d. %s", i+1, suggestion))
		}
	}

	return b.String()
}

// Unwrap returns the cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:        code,
		Message:     message,
		Severity:    SeverityError,
		Context:     make(map[string]interface{}),
		Stack:       captureStack(),
		Timestamp:   time.Now(),
		Recoverable: false,
	}
}

// Wrap wraps an existing error with AppError
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	appErr := New(code, message)
	appErr.Cause = err

	// If wrapping another AppError, inherit its context
	var ae *AppError
	if errors.As(err, &ae) {
		for k, v := range ae.Context {
			appErr.Context[k] = v
		}
	}

	return appErr
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithSeverity sets the error severity
func (e *AppError) WithSeverity(severity ErrorSeverity) *AppError {
	e.Severity = severity
	return e
}

// WithSuggestions adds recovery suggestions
func (e *AppError) WithSuggestions(suggestions ...string) *AppError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// AsRecoverable marks the error as recoverable (transient)
func (e *AppError) AsRecoverable() *AppError {
	e.Recoverable = true
	return e
}

// Fields flattens the error into log fields.
func (e *AppError) Fields() map[string]interface{} {
	fields := make(map[string]interface{}, len(e.Context)+3)
	for k, v := range e.Context {
		fields[k] = v
	}
	fields["error_code"] = string(e.Code)
	fields["severity"] = string(e.Severity)
	fields["recoverable"] = e.Recoverable
	if e.Cause != nil {
		fields["cause"] = e.Cause.Error()
	}
	return fields
}

// captureStack captures the current stack trace
func captureStack() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])

	var b strings.Builder
	frames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			b.WriteString(fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}

	return b.String()
}

// Common error constructors

// ConnectionError creates a connection-related error
func ConnectionError(system string, cause error) *AppError {
	return Wrap(cause, ErrCodeConnectionFailed, fmt.Sprintf("Failed to initialize %s client", system)).
		WithContext("system", system).
		WithSeverity(SeverityCritical).
		WithSuggestions(
			"Check your network connection",
			"Verify the credential file referenced by the command line",
		)
}

// ConfigError creates a configuration-related error
func ConfigError(message string, field string) *AppError {
	return New(ErrCodeConfigInvalid, message).
		WithContext("field", field).
		WithSuggestions(
			fmt.Sprintf("Check the '%s' configuration value", field),
			"Refer to searchreporting.yaml.example",
		)
}

// SQLError creates a Snowflake SQL execution error
func SQLError(message string, query string, cause error) *AppError {
	err := Wrap(cause, ErrCodeSQLExecution, message).
		WithContext("query", truncateString(query, 200))

	if cause != nil && strings.Contains(strings.ToLower(cause.Error()), "timeout") {
		err.Code = ErrCodeSQLTimeout
		err.AsRecoverable()
		_ = err.WithSuggestions(
			"Increase snowflake.timeout in the configuration",
			"Check the Snowflake warehouse size",
		)
	}

	return err
}

// ValidationError creates a validation error
func ValidationError(field string, value interface{}, reason string) *AppError {
	return New(ErrCodeValidationFailed, fmt.Sprintf("Validation failed for %s: %s", field, reason)).
		WithContext("field", field).
		WithContext("value", value).
		WithSeverity(SeverityWarning)
}

// IsRecoverable checks if an error is recoverable
func IsRecoverable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Recoverable
	}
	return false
}

// IsTransient reports whether the failure may succeed on a later run.
func IsTransient(err error) bool {
	return IsRecoverable(err)
}

// IsNotFound reports whether the error describes a missing object or an empty result.
func IsNotFound(err error) bool {
	switch GetErrorCode(err) {
	case ErrCodeTableNotFound, ErrCodeConfigNotFound, ErrCodeReportEmpty:
		return true
	}
	return false
}

// IsFatal reports whether the error must abort the whole run.
func IsFatal(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Severity == SeverityCritical
	}
	return false
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// truncateString truncates a string to maxLen characters
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
