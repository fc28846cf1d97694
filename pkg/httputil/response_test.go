package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/neargud/catalog/pkg/errors"
	"github.com/neargud/catalog/pkg/logger"
	"github.com/neargud/catalog/pkg/validator"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *ErrorResponse {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	return resp.Error
}

func TestWriteError_AppErrorKeepsFields(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", nil)
	req = req.WithContext(logger.WithCorrelationID(req.Context(), "req-42"))

	appErr := apperrors.Unprocessable("DUPLICATE_SIZE", "size M appears twice", nil).
		WithField("color", "Red").
		WithField("size", "M")
	WriteError(rec, req, fmt.Errorf("create product: %w", appErr), logger.Discard())

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "DUPLICATE_SIZE", body.Code)
	assert.Equal(t, map[string]string{"color": "Red", "size": "M"}, body.Fields)
	assert.Equal(t, "req-42", body.RequestID)
}

func TestWriteError_ValidationError(t *testing.T) {
	type dto struct {
		Name string `json:"name" validate:"required"`
	}
	rec := httptest.NewRecorder()
	WriteError(rec, httptest.NewRequest(http.MethodPost, "/", nil), validator.Validate(dto{}), logger.Discard())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", body.Code)
	assert.Equal(t, "is required", body.Fields["name"])
}

func TestWriteError_DecodeError(t *testing.T) {
	var dst struct{}
	err := validator.DecodeAndValidate(httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{")), &dst)

	rec := httptest.NewRecorder()
	WriteError(rec, httptest.NewRequest(http.MethodPost, "/", nil), err, logger.Discard())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "MALFORMED_INPUT", decodeError(t, rec).Code)
}

func TestWriteError_UnknownErrorIsOpaque(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("pq: password leaked"), logger.Discard())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "INTERNAL_ERROR", body.Code)
	assert.NotContains(t, body.Message, "password")
}

func TestWriteError_BareSentinel(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, httptest.NewRequest(http.MethodGet, "/", nil), fmt.Errorf("lookup: %w", apperrors.ErrNotFound), logger.Discard())
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, rec).Code)
}

func TestParseUUID(t *testing.T) {
	rec := httptest.NewRecorder()
	id, ok := ParseUUID(rec, "8f14e45f-ceea-4672-a1b3-0f0b1c0f0e11")
	assert.True(t, ok)
	assert.Equal(t, "8f14e45f-ceea-4672-a1b3-0f0b1c0f0e11", id)

	rec = httptest.NewRecorder()
	_, ok = ParseUUID(rec, "nope")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_PARAMETER", decodeError(t, rec).Code)
}
