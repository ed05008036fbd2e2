package payments

import (
	"net/http"

	"github.com/tramar/pcbuilder-backend/api/middleware"
	"github.com/tramar/pcbuilder-backend/api/responses"
	"github.com/tramar/pcbuilder-backend/api/validators"
	paymentsvc "github.com/tramar/pcbuilder-backend/internal/payments"
	pkgerrors "github.com/tramar/pcbuilder-backend/pkg/errors"
	"github.com/tramar/pcbuilder-backend/pkg/logger"
)

// CreatePaymentIntent returns the client secret the storefront needs to
// confirm a card payment for one of the caller's orders.
func CreatePaymentIntent(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}
		actor, err := middleware.RequireActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload paymentsvc.CreateIntentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, payload.OrderID.String())
		}
		secret, err := svc.CreatePaymentIntent(ctx, payload.OrderID, actor)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, secret)
	}
}
