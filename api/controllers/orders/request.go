package orders

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/tramar/pcbuilder-backend/api/middleware"
	"github.com/tramar/pcbuilder-backend/api/validators"
	"github.com/tramar/pcbuilder-backend/pkg/logger"
	"github.com/tramar/pcbuilder-backend/pkg/types"
)

type orderRequest struct {
	ctx     context.Context
	actor   types.Actor
	orderID uuid.UUID
}

// parseOrderRequest resolves the caller and the {orderId} path parameter and
// tags the log context with the order id.
func parseOrderRequest(r *http.Request, logg *logger.Logger) (orderRequest, error) {
	actor, err := middleware.RequireActor(r.Context())
	if err != nil {
		return orderRequest{}, err
	}
	orderID, err := validators.ParseUUIDParam(r, "orderId")
	if err != nil {
		return orderRequest{}, err
	}
	ctx := r.Context()
	if logg != nil {
		ctx = logg.WithOrderID(ctx, orderID.String())
	}
	return orderRequest{ctx: ctx, actor: actor, orderID: orderID}, nil
}
