package enums

// PaymentSource records which path settled an order.
type PaymentSource string

const (
	PaymentSourceWebhook PaymentSource = "webhook"
	PaymentSourceClient  PaymentSource = "client"
	PaymentSourceCash    PaymentSource = "cash"
)

func (p PaymentSource) String() string {
	return string(p)
}
