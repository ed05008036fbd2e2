package enums

import "fmt"

// CancelReason explains why an unpaid order was closed.
type CancelReason string

const (
	CancelReasonCustomer CancelReason = "customer_canceled"
	CancelReasonAdmin    CancelReason = "admin_canceled"
	CancelReasonExpired  CancelReason = "payment_window_expired"
)

var validCancelReasons = []CancelReason{
	CancelReasonCustomer,
	CancelReasonAdmin,
	CancelReasonExpired,
}

func (c CancelReason) String() string {
	return string(c)
}

func (c CancelReason) IsValid() bool {
	for _, candidate := range validCancelReasons {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCancelReason converts raw input into a CancelReason.
func ParseCancelReason(value string) (CancelReason, error) {
	for _, candidate := range validCancelReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cancel reason %q", value)
}
