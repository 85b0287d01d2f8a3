// Package httputil holds helpers for talking JSON to upstream HTTP APIs.
package httputil

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

const (
	// DefaultMaxResponseBodyBytes caps upstream response bodies to 10MB.
	DefaultMaxResponseBodyBytes int64 = 10 * 1024 * 1024

	maxErrorSnippetBytes int64 = 2048
)

var ErrResponseBodyTooLarge = errors.New("response body too large")

// StatusError is a non-2xx upstream response.
type StatusError struct {
	StatusCode int
	// Body is the start of the response body, trimmed.
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status=%d, body=%s", e.StatusCode, e.Body)
}

// IsStatus reports whether err wraps a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// CheckStatus returns a *StatusError for responses outside 2xx.
func CheckStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}
	return &StatusError{StatusCode: resp.StatusCode, Body: ErrorSnippet(resp.Body)}
}

// ReadLimitedBody reads up to maxBytes from reader and returns ErrResponseBodyTooLarge when exceeded.
func ReadLimitedBody(reader io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return io.ReadAll(reader)
	}

	body, err := io.ReadAll(io.LimitReader(reader, maxBytes+1))
	if err != nil {
		return body, err
	}
	if int64(len(body)) > maxBytes {
		return body[:maxBytes], ErrResponseBodyTooLarge
	}
	return body, nil
}

// DecodeJSON reads at most maxBytes from reader and unmarshals them into out.
func DecodeJSON(reader io.Reader, maxBytes int64, out any) error {
	raw, err := ReadLimitedBody(reader, maxBytes)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ErrorSnippet returns the start of an upstream error body for diagnostics.
// Read errors are ignored; the snippet is best effort.
func ErrorSnippet(reader io.Reader) string {
	body, _ := ReadLimitedBody(reader, maxErrorSnippetBytes)
	return strings.TrimSpace(string(body))
}
