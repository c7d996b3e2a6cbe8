package errors_test

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infraerrors "github.com/waghostel/LearningSong-sub001/infrastructure/errors"
)

func response(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestParseHTTPError_SuccessIsNil(t *testing.T) {
	t.Parallel()
	assert.NoError(t, infraerrors.ParseHTTPError(response(http.StatusOK, "{}")))
}

func TestParseHTTPError_MessageFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "error string", body: `{"error":"bad key"}`, want: "bad key"},
		{name: "nested error", body: `{"error":{"type":"x","message":"overloaded"}}`, want: "overloaded"},
		{name: "message", body: `{"message":"not found"}`, want: "not found"},
		{name: "msg", body: `{"code":500,"msg":"internal failure"}`, want: "internal failure"},
		{name: "plain text", body: "gateway down", want: "gateway down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := infraerrors.ParseHTTPError(response(http.StatusBadGateway, tt.body))
			require.Error(t, err)

			var httpErr *infraerrors.HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, tt.want, httpErr.Message)
			assert.Equal(t, http.StatusBadGateway, httpErr.StatusCode)
		})
	}
}

func TestStatusCode_Wrapped(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("search: %w", infraerrors.NewHTTPError(http.StatusForbidden, "403 Forbidden", nil))
	code, ok := infraerrors.StatusCode(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusForbidden, code)

	_, ok = infraerrors.StatusCode(fmt.Errorf("plain"))
	assert.False(t, ok)
}
