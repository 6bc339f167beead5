package enums

import "fmt"

// BookingPaymentMethod maps to the booking_payment_method enum in Postgres.
type BookingPaymentMethod string

const (
	BookingPaymentMethodWallet BookingPaymentMethod = "wallet"
	BookingPaymentMethodCash   BookingPaymentMethod = "cash"
)

// IsValid reports whether the value matches the canonical booking_payment_method enum.
func (m BookingPaymentMethod) IsValid() bool {
	return m == BookingPaymentMethodWallet || m == BookingPaymentMethodCash
}

// ParseBookingPaymentMethod converts raw input into BookingPaymentMethod.
func ParseBookingPaymentMethod(value string) (BookingPaymentMethod, error) {
	m := BookingPaymentMethod(value)
	if !m.IsValid() {
		return "", fmt.Errorf("invalid booking payment method %q", value)
	}
	return m, nil
}
