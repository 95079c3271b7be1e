package adwords

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"

	"searchreporting/internal/observability"
	"searchreporting/pkg/errors"
)

const (
	DefaultEndpoint   = "https://adwords.google.com"
	DefaultAPIVersion = "v201809"
)

// Options selects the API endpoint and version.
type Options struct {
	Endpoint   string
	APIVersion string
}

// Client talks to the AdWords API over HTTP. Every request names the
// customer it acts on explicitly.
type Client struct {
	http    *resty.Client
	config  *ClientConfig
	version string
	logger  *observability.Logger
}

// NewClient builds an authenticated client. Tokens are refreshed by ts.
func NewClient(ctx context.Context, cfg *ClientConfig, ts oauth2.TokenSource, opts Options, logger *observability.Logger) *Client {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.APIVersion == "" {
		opts.APIVersion = DefaultAPIVersion
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	logger = logger.WithField("component", "adwords")

	httpClient := resty.NewWithClient(oauth2.NewClient(ctx, ts)).
		SetBaseURL(strings.TrimSuffix(opts.Endpoint, "/")).
		SetHeader("User-Agent", cfg.UserAgent).
		SetLogger(logger)

	return &Client{
		http:    httpClient,
		config:  cfg,
		version: opts.APIVersion,
		logger:  logger,
	}
}

// Version returns the API version requests are sent to.
func (c *Client) Version() string {
	return c.version
}

// NormalizeCustomerID strips the dashes and spaces of a displayed customer id.
func NormalizeCustomerID(id string) string {
	return strings.NewReplacer("-", "", " ", "").Replace(strings.TrimSpace(id))
}

// apiError is the error body of a rejected report download.
type apiError struct {
	Type      string `xml:"ApiError>type"`
	Trigger   string `xml:"ApiError>trigger"`
	FieldPath string `xml:"ApiError>fieldPath"`
}

// classify turns a transport failure or an unsuccessful response into a
// typed error. code is used for transient failures, rejected for requests
// the API refused outright.
func classify(resp *resty.Response, err error, code, rejected errors.ErrorCode, message string) error {
	if err != nil {
		return errors.Wrap(err, code, message).AsRecoverable()
	}
	if !resp.IsError() {
		return nil
	}

	status := resp.StatusCode()
	detail := describeBody(resp.Body())
	cause := fmt.Errorf("HTTP %d: %s", status, detail)

	switch {
	case status == http.StatusTooManyRequests || strings.Contains(detail, "RateExceededError"):
		return errors.Wrap(cause, errors.ErrCodeAPIQuotaExceeded, message).
			WithContext("status", status).
			AsRecoverable().
			WithSuggestions("Wait for the API quota to reset and run again")
	case status == http.StatusUnauthorized || strings.Contains(detail, "AuthenticationError"):
		return errors.Wrap(cause, errors.ErrCodeAuthenticationFailed, message).
			WithContext("status", status).
			WithSuggestions("Check the refresh token and developer token in googleads.yaml")
	case status >= http.StatusInternalServerError && isTransientFault(detail):
		return errors.Wrap(cause, code, message).
			WithContext("status", status).
			AsRecoverable()
	default:
		return errors.Wrap(cause, rejected, message).
			WithContext("status", status)
	}
}

// describeBody extracts the API error type or SOAP fault from a response body.
func describeBody(body []byte) string {
	var reportErr apiError
	if xml.Unmarshal(body, &reportErr) == nil && reportErr.Type != "" {
		if reportErr.FieldPath != "" {
			return fmt.Sprintf("%s (field %s, trigger %q)", reportErr.Type, reportErr.FieldPath, reportErr.Trigger)
		}
		return fmt.Sprintf("%s (trigger %q)", reportErr.Type, reportErr.Trigger)
	}

	var envelope soapEnvelope
	if xml.Unmarshal(body, &envelope) == nil && envelope.Body.Fault != nil {
		return envelope.Body.Fault.FaultString
	}

	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	return text
}

// isTransientFault reports whether a server-side failure is worth running
// again. Typed API errors other than internal ones are permanent.
func isTransientFault(detail string) bool {
	if strings.Contains(detail, "InternalApiError") {
		return true
	}
	return !strings.Contains(detail, "Error.")
}
