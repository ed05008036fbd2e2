package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/tramar/pcbuilder-backend/api/responses"
	"github.com/tramar/pcbuilder-backend/internal/payments"
	pkgerrors "github.com/tramar/pcbuilder-backend/pkg/errors"
	"github.com/tramar/pcbuilder-backend/pkg/logger"
)

const (
	signatureHeader = "Stripe-Signature"
	maxPayloadBytes = 64 << 10
)

type webhookHandler interface {
	Handle(ctx context.Context, payload []byte, header string) error
}

// StripeWebhook verifies and reconciles a gateway event. The body is read
// raw because the signature covers the exact bytes. Only a failed
// verification is reported to the caller; everything after it is
// acknowledged with 200 so the gateway does not retry.
func StripeWebhook(handler webhookHandler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if handler == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook handler unavailable"))
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeSignatureInvalid, err, "read webhook body"))
			return
		}

		if err := handler.Handle(ctx, payload, r.Header.Get(signatureHeader)); err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeSignatureInvalid) {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if logg != nil {
				logg.Error(ctx, "stripe webhook processing failed", err)
			}
		}

		responses.WriteSuccess(w, payments.WebhookAck{Received: true})
	}
}
