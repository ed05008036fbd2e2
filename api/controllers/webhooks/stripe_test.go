package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/tramar/pcbuilder-backend/pkg/errors"
	"github.com/tramar/pcbuilder-backend/pkg/logger"
	"github.com/tramar/pcbuilder-backend/pkg/types"
)

type fakeWebhookHandler struct {
	payload []byte
	header  string
	err     error
}

func (f *fakeWebhookHandler) Handle(_ context.Context, payload []byte, header string) error {
	f.payload = payload
	f.header = header
	return f.err
}

func postWebhook(t *testing.T, handler *fakeWebhookHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/payment/webhook", bytes.NewReader([]byte(body)))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	rec := httptest.NewRecorder()
	StripeWebhook(handler, logger.Nop()).ServeHTTP(rec, req)
	return rec
}

func TestStripeWebhookPassesRawBodyAndAcks(t *testing.T) {
	handler := &fakeWebhookHandler{}
	body := `{"id":"evt_1",  "type":"payment_intent.succeeded"}`
	rec := postWebhook(t, handler, body)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())
	assert.Equal(t, body, string(handler.payload))
	assert.Equal(t, "t=1,v1=abc", handler.header)
}

func TestStripeWebhookRejectsBadSignatureWithoutDetail(t *testing.T) {
	handler := &fakeWebhookHandler{
		err: pkgerrors.Wrap(pkgerrors.CodeSignatureInvalid, errors.New("no signatures found matching the expected signature"), "verify"),
	}
	rec := postWebhook(t, handler, `{}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body types.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, string(pkgerrors.CodeSignatureInvalid), body.Code)
	assert.NotContains(t, body.Message, "expected signature")
	assert.Nil(t, body.Details)
}

func TestStripeWebhookAcksProcessingFailures(t *testing.T) {
	handler := &fakeWebhookHandler{err: pkgerrors.New(pkgerrors.CodeDependency, "database unavailable")}
	rec := postWebhook(t, handler, `{}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())
}
