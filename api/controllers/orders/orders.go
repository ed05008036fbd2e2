package orders

import (
	"net/http"

	"github.com/tramar/pcbuilder-backend/api/middleware"
	"github.com/tramar/pcbuilder-backend/api/responses"
	"github.com/tramar/pcbuilder-backend/api/validators"
	checkoutsvc "github.com/tramar/pcbuilder-backend/internal/checkout"
	internalorders "github.com/tramar/pcbuilder-backend/internal/orders"
	"github.com/tramar/pcbuilder-backend/internal/payments"
	pkgerrors "github.com/tramar/pcbuilder-backend/pkg/errors"
	"github.com/tramar/pcbuilder-backend/pkg/logger"
	"github.com/tramar/pcbuilder-backend/pkg/pagination"
)

// Place creates an order from the submitted line items. Prices come from the
// catalog; any client price is ignored.
func Place(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		actor, err := middleware.RequireActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutsvc.PlaceOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.PlaceOrder(r.Context(), payload.ToInput(actor.UserID))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, internalorders.ToDTO(*order))
	}
}

// ListMine returns the caller's orders, newest first.
func ListMine(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		actor, err := middleware.RequireActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListMine(r.Context(), actor, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// ListAll returns every order for admins.
func ListAll(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		actor, err := middleware.RequireActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListAll(r.Context(), actor, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		req, err := parseOrderRequest(r, logg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Get(req.ctx, req.orderID, req.actor)
		if err != nil {
			responses.WriteError(req.ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// ConfirmPayment handles the client-side confirmation after checkout. Card
// orders are verified against the gateway; wallet orders carry the capture
// in the body.
func ConfirmPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}
		req, err := parseOrderRequest(r, logg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload payments.ClientConfirmation
		if err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(req.ctx, logg, w, err)
			return
		}
		order, err := svc.ConfirmClientPayment(req.ctx, req.orderID, req.actor, payload)
		if err != nil {
			responses.WriteError(req.ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func Cancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		req, err := parseOrderRequest(r, logg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Cancel(req.ctx, req.orderID, req.actor)
		if err != nil {
			responses.WriteError(req.ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// Deliver marks a paid order delivered. Admin only.
func Deliver(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		req, err := parseOrderRequest(r, logg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.MarkDelivered(req.ctx, req.orderID, req.actor)
		if err != nil {
			responses.WriteError(req.ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// CollectCash records cash received for a cash-on-delivery order. Admin only.
func CollectCash(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}
		req, err := parseOrderRequest(r, logg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.CollectCash(req.ctx, req.orderID, req.actor)
		if err != nil {
			responses.WriteError(req.ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func pageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: validators.QueryString(r, "cursor"),
	}, nil
}
