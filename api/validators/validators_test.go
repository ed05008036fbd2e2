package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/tramar/pcbuilder-backend/pkg/errors"
)

type lineRequest struct {
	Product  string `json:"product" validate:"required,uuid"`
	Quantity int    `json:"quantity" validate:"min=1"`
}

type sampleRequest struct {
	Items  []lineRequest `json:"items" validate:"required,min=1,dive"`
	Method string        `json:"method" validate:"required,oneof=stripe cod"`
}

func TestDecodeJSONBodyValid(t *testing.T) {
	body := `{"items":[{"product":"` + uuid.NewString() + `","quantity":2}],"method":"cod"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))

	var dest sampleRequest
	require.NoError(t, DecodeJSONBody(req, &dest))
	assert.Equal(t, 2, dest.Items[0].Quantity)
}

func TestDecodeJSONBodyRejectsUnknownAndEmpty(t *testing.T) {
	var dest sampleRequest
	err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"bogus":1}`)), &dest)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	err = DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader("")), &dest)
	require.Error(t, err)
	assert.Equal(t, "request body is required", pkgerrors.As(err).Message())
}

func TestDecodeJSONBodyReportsFieldPaths(t *testing.T) {
	body := `{"items":[{"product":"not-a-uuid","quantity":0}],"method":"bitcoin"}`
	var dest sampleRequest
	err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), &dest)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be a valid id", details["items[0].product"])
	assert.Equal(t, "must be at least 1", details["items[0].quantity"])
	assert.Contains(t, details["method"], "must be one of")
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=5&bad=x", nil)

	v, err := ParseQueryInt(req, "limit", 20, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 5, v)

	v, err = ParseQueryInt(req, "missing", 20, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 20, v)

	_, err = ParseQueryInt(req, "bad", 20, 1, 100)
	assert.Error(t, err)

	_, err = ParseQueryInt(req, "limit", 20, 10, 100)
	assert.Error(t, err)
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("orderId", id.String())
	rctx.URLParams.Add("bad", "123")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	got, err := ParseUUIDParam(req, "orderId")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ParseUUIDParam(req, "bad")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = ParseUUIDParam(req, "missing")
	assert.Error(t, err)
}

func TestDecodeOptionalJSONBodyAcceptsEmpty(t *testing.T) {
	type confirmation struct {
		ID string `json:"id"`
	}
	var dest confirmation
	require.NoError(t, DecodeOptionalJSONBody(httptest.NewRequest(http.MethodPut, "/", strings.NewReader("")), &dest))
	assert.Empty(t, dest.ID)

	require.NoError(t, DecodeOptionalJSONBody(httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"id":"CAP-1"}`)), &dest))
	assert.Equal(t, "CAP-1", dest.ID)

	err := DecodeOptionalJSONBody(httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"other":1}`)), &dest)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
