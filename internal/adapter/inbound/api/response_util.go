package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"dgsync/internal/domain/errors/domain"
)

// MaxRequestBodyBytes bounds request bodies; batch requests carry whole
// embedding vectors.
const MaxRequestBodyBytes = 32 << 20

type pooledEncoder struct {
	buf     *bytes.Buffer
	encoder *json.Encoder
}

var encoderPool = sync.Pool{
	New: func() any {
		buf := bytes.NewBuffer(make([]byte, 0, 512))
		return &pooledEncoder{buf: buf, encoder: json.NewEncoder(buf)}
	},
}

// WriteJSON encodes data and writes it with statusCode. Nothing is written
// when encoding fails.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	if statusCode == 0 {
		statusCode = http.StatusOK
	}

	pe := encoderPool.Get().(*pooledEncoder)
	defer func() {
		pe.buf.Reset()
		encoderPool.Put(pe)
	}()

	if err := pe.encoder.Encode(data); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, err := w.Write(pe.buf.Bytes())
	return err
}

// DecodeJSON reads a single JSON document from the request body into dst.
// Numbers decode as json.Number so large integer ids survive intact.
// Failures are returned as validation errors.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return domain.NewValidationError("", "request body is required")
	}
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxRequestBodyBytes))
	decoder.UseNumber()

	if err := decoder.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return domain.NewValidationError("", "request body is required")
		case errors.As(err, &maxErr):
			return domain.NewValidationError("", fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit))
		default:
			return domain.NewValidationError("", "invalid JSON: "+err.Error())
		}
	}
	if decoder.More() {
		return domain.NewValidationError("", "invalid JSON: unexpected data after the request object")
	}
	return nil
}
