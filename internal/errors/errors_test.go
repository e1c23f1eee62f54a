package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type countingRecorder struct {
	codes []string
}

func (c *countingRecorder) RecordError(code string, status int) {
	c.codes = append(c.codes, fmt.Sprintf("%s:%d", code, status))
}

func TestRespondWithEnvelope(t *testing.T) {
	recorder := &countingRecorder{}
	SetErrorRecorder(recorder)
	t.Cleanup(func() { SetErrorRecorder(nil) })

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/performance", nil)
	RespondWithEnvelope(rec, req, NewInvalidInputError("url query parameter is required"))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "INVALID_INPUT", body.Error.Code)
	require.Equal(t, "url query parameter is required", body.Error.Message)
	require.NotEmpty(t, body.Error.RequestID)
	require.Equal(t, []string{"INVALID_INPUT:400"}, recorder.codes)
}

func TestEnsureEnvelope(t *testing.T) {
	env := EnsureEnvelope(fmt.Errorf("disk full"))
	require.Equal(t, "INTERNAL_ERROR", env.Code)
	require.Equal(t, "disk full", env.Context["wrapped_error"])

	original := NewNotFoundError("missing")
	require.Same(t, original, EnsureEnvelope(original))
	require.Equal(t, "INTERNAL_ERROR", EnsureEnvelope(nil).Code)
}

func TestHTTPStatusFromCode(t *testing.T) {
	cases := map[string]int{
		"INVALID_INPUT":       http.StatusBadRequest,
		"NOT_FOUND":           http.StatusNotFound,
		"METHOD_NOT_ALLOWED":  http.StatusMethodNotAllowed,
		"SERVICE_UNAVAILABLE": http.StatusServiceUnavailable,
		"SOMETHING_ELSE":      http.StatusInternalServerError,
	}
	for code, want := range cases {
		require.Equal(t, want, HTTPStatusFromCode(code), code)
	}
	require.Equal(t, http.StatusInternalServerError, HTTPStatusFromEnvelope(nil))
}
