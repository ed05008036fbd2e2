package payments

import (
	"context"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/tramar/pcbuilder-backend/pkg/errors"
	pkgstripe "github.com/tramar/pcbuilder-backend/pkg/stripe"
	"github.com/tramar/pcbuilder-backend/pkg/types"
)

const (
	metadataOrderID = "orderId"
	metadataUserID  = "userId"
)

// StripeGateway implements Gateway over the Stripe payment intent API.
type StripeGateway struct {
	api pkgstripe.PaymentIntentAPI
}

func NewStripeGateway(api pkgstripe.PaymentIntentAPI) (*StripeGateway, error) {
	if api == nil {
		return nil, errors.New("stripe payment intent api required")
	}
	return &StripeGateway{api: api}, nil
}

func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if req.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount.Cents()),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata(metadataOrderID, req.OrderID.String())
	params.AddMetadata(metadataUserID, req.UserID.String())
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := g.api.Create(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stripe payment intent")
	}
	return intentFromStripe(pi), nil
}

func (g *StripeGateway) RetrievePaymentIntent(ctx context.Context, id string) (*Intent, error) {
	if strings.TrimSpace(id) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id required")
	}
	pi, err := g.api.Get(ctx, id, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve stripe payment intent")
	}
	return intentFromStripe(pi), nil
}

func (g *StripeGateway) CancelPaymentIntent(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment intent id required")
	}
	if _, err := g.api.Cancel(ctx, id, nil); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel stripe payment intent")
	}
	return nil
}

func intentFromStripe(pi *stripe.PaymentIntent) *Intent {
	if pi == nil {
		return nil
	}
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Amount:       types.Money(pi.Amount),
		Currency:     string(pi.Currency),
		Metadata:     pi.Metadata,
		ReceiptEmail: pi.ReceiptEmail,
	}
}
