package ingest

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// ConfigError indicates the caller asked for a collection that cannot run,
// typically a missing service key. It is not retryable.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "configuration error: " + e.Reason
}

// ServiceFailureError is a structurally valid response whose payload is the
// upstream gateway reporting failure (quota exhaustion, bad key, and so on).
type ServiceFailureError struct {
	URL     string
	Code    string
	Snippet string
}

func (e *ServiceFailureError) Error() string {
	return fmt.Sprintf("service failure from %s: %s (%s)", e.URL, e.Code, e.Snippet)
}

// UnrecognizedEnvelopeError is a response that decoded as JSON but matched
// none of the known wrapper shapes. Keys lists the top-level object keys seen.
type UnrecognizedEnvelopeError struct {
	URL  string
	Keys []string
}

func (e *UnrecognizedEnvelopeError) Error() string {
	keys := append([]string(nil), e.Keys...)
	sort.Strings(keys)
	return fmt.Sprintf("unrecognized response envelope from %s: top-level keys [%s]", e.URL, strings.Join(keys, " "))
}

// RequestError is the terminal failure bundle emitted when every retry
// attempt has been exhausted. URL is already redacted.
type RequestError struct {
	URL        string
	Attempts   int
	LastStatus int
	Body       string
	Headers    http.Header
	Hint       string
	Err        error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request to %s failed after %d attempts (last status %d): %s", e.URL, e.Attempts, e.LastStatus, e.Hint)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// remediationHint maps the final observed status to operator guidance.
func remediationHint(status int) string {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return "check the service key and its endpoint registration"
	case status == http.StatusNotFound:
		return "check the request path and operation name"
	case status == http.StatusTooManyRequests:
		return "daily call quota likely exhausted, back off and retry later"
	case status >= 500:
		return "upstream server error, retry later"
	case status == 0:
		return "network error, check connectivity and DNS"
	default:
		return "unexpected response, inspect the body snippet"
	}
}
