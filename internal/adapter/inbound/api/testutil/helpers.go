package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dgsync/internal/application/dto"

	"github.com/stretchr/testify/require"
)

// CreateJSONRequest creates an HTTP request with a JSON-encoded body.
func CreateJSONRequest(method, url string, body any) *http.Request {
	var reader io.Reader = http.NoBody
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, url, reader)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// CreateRawRequest creates an HTTP request with a literal body.
func CreateRawRequest(method, url, body string) *http.Request {
	req := httptest.NewRequest(method, url, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// DecodeResponse decodes the recorder body into T.
func DecodeResponse[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

// DecodeError decodes an error response body.
func DecodeError(t *testing.T, rec *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	return DecodeResponse[dto.ErrorResponse](t, rec)
}
