package payments

import (
	"context"

	"github.com/google/uuid"

	"github.com/tramar/pcbuilder-backend/pkg/types"
)

// Intent statuses the reconciler cares about.
const (
	IntentStatusSucceeded = "succeeded"
	IntentStatusCanceled  = "canceled"
)

// IntentRequest describes a payment intent for one order.
type IntentRequest struct {
	OrderID        uuid.UUID
	UserID         uuid.UUID
	Amount         types.Money
	Currency       string
	IdempotencyKey string
}

// Intent is the gateway-neutral view of a payment intent.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	Amount       types.Money
	Currency     string
	Metadata     map[string]string
	ReceiptEmail string
}

// Gateway is the card payment provider.
type Gateway interface {
	CreatePaymentIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	RetrievePaymentIntent(ctx context.Context, id string) (*Intent, error)
	CancelPaymentIntent(ctx context.Context, id string) error
}

// IntentIdempotencyKey is stable per order so retried creates return the
// same intent.
func IntentIdempotencyKey(orderID uuid.UUID) string {
	return "order-" + orderID.String() + "-intent"
}
