package stripe

import (
	"errors"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
)

var errVerifierNotConfigured = errors.New("stripe webhook verifier not configured")

// SignatureVerifier checks the Stripe-Signature header over the raw request
// body and decodes the event.
type SignatureVerifier struct {
	secret string
}

func NewSignatureVerifier(secret string) *SignatureVerifier {
	return &SignatureVerifier{secret: secret}
}

// ConstructEvent verifies the signature and timestamp tolerance. The payload
// must be the exact bytes received; re-encoded JSON will not verify.
func (v *SignatureVerifier) ConstructEvent(payload []byte, header string) (stripe.Event, error) {
	if v == nil || v.secret == "" {
		return stripe.Event{}, errVerifierNotConfigured
	}
	return webhook.ConstructEventWithOptions(payload, header, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}
