package payments

import "github.com/google/uuid"

// CreateIntentRequest is the body of POST /payment/create-payment-intent.
type CreateIntentRequest struct {
	OrderID uuid.UUID `json:"orderId" validate:"required"`
}

type ClientSecretResponse struct {
	ClientSecret string `json:"clientSecret"`
}

// ClientConfirmation is what the browser reports after a wallet checkout.
// Card payments ignore it and ask the gateway instead.
type ClientConfirmation struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	UpdateTime string `json:"update_time"`
	Payer      Payer  `json:"payer"`
}

type Payer struct {
	EmailAddress string `json:"email_address"`
}

// WebhookAck is always returned once a webhook signature verifies.
type WebhookAck struct {
	Received bool `json:"received"`
}
