package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/tramar/pcbuilder-backend/api/middleware"
	"github.com/tramar/pcbuilder-backend/api/responses"
	"github.com/tramar/pcbuilder-backend/api/validators"
	"github.com/tramar/pcbuilder-backend/internal/inventory"
	pkgerrors "github.com/tramar/pcbuilder-backend/pkg/errors"
	"github.com/tramar/pcbuilder-backend/pkg/logger"
	"github.com/tramar/pcbuilder-backend/pkg/types"
)

type restocker interface {
	Restock(ctx context.Context, productID uuid.UUID, qty int, actor types.Actor) (*inventory.RestockResult, error)
}

type restockRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1,max=100000"`
}

// AdminRestockProduct adds units back to a product's stock.
func AdminRestockProduct(svc restocker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		actor, err := middleware.RequireActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload restockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Restock(r.Context(), productID, payload.Quantity, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
