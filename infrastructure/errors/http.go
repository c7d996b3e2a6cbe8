// Package errors turns non-2xx upstream HTTP responses into structured errors.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// MinErrorStatusCode is the lowest status treated as an error.
const MinErrorStatusCode = 400

// maxErrorBody bounds how much of an error body is retained.
const maxErrorBody = 4096

// HTTPError is a failed upstream response.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP error (%d %s): %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("HTTP error: %d %s", e.StatusCode, e.Status)
}

// ParseHTTPError reads resp.Body and returns an *HTTPError when the status is
// 400 or above, nil otherwise. The message is taken from the first non-empty
// of the JSON fields error, message and msg, falling back to the raw body.
func ParseHTTPError(resp *http.Response) error {
	if resp.StatusCode < MinErrorStatusCode {
		return nil
	}

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Message:    fmt.Sprintf("failed to read error response body: %v", err),
		}
	}

	return NewHTTPError(resp.StatusCode, resp.Status, bodyBytes)
}

// NewHTTPError builds an HTTPError from an already-read body.
func NewHTTPError(statusCode int, status string, body []byte) *HTTPError {
	bodyStr := string(body)
	return &HTTPError{
		StatusCode: statusCode,
		Status:     status,
		Body:       bodyStr,
		Message:    extractMessage(body, bodyStr),
	}
}

func extractMessage(body []byte, fallback string) string {
	var jsonErr struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
		Msg     string          `json:"msg"`
	}
	if json.Unmarshal(body, &jsonErr) != nil {
		return fallback
	}

	if len(jsonErr.Error) > 0 {
		var s string
		if json.Unmarshal(jsonErr.Error, &s) == nil && s != "" {
			return s
		}
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(jsonErr.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
	}
	if jsonErr.Message != "" {
		return jsonErr.Message
	}
	if jsonErr.Msg != "" {
		return jsonErr.Msg
	}
	return fallback
}

// StatusCode extracts the status from an HTTPError anywhere in err's chain.
func StatusCode(err error) (int, bool) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode, true
	}
	return 0, false
}
