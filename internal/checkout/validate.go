package checkout

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrInvalidBuyer is returned when the name or phone does not validate.
	ErrInvalidBuyer = errors.New("invalid buyer name or phone")
	// ErrEmptyCart is returned when there is nothing to order.
	ErrEmptyCart = errors.New("cart is empty")
)

var (
	namePattern  = regexp.MustCompile(`^[A-Za-z ]+$`)
	phonePattern = regexp.MustCompile(`^[0-9]{5,}$`)
)

// IsValidName accepts letters and spaces only.
func IsValidName(s string) bool {
	return namePattern.MatchString(strings.TrimSpace(s))
}

// IsValidPhone accepts five or more digits and nothing else.
func IsValidPhone(s string) bool {
	return phonePattern.MatchString(strings.TrimSpace(s))
}

// CanCheckout reports whether the checkout button should be enabled.
func CanCheckout(cartLen int, name, phone string, submitting bool) bool {
	return cartLen > 0 && IsValidName(name) && IsValidPhone(phone) && !submitting
}

// Validate reports why an order cannot be submitted, checking the buyer
// details before the cart.
func Validate(cartLen int, name, phone string) error {
	if !IsValidName(name) || !IsValidPhone(phone) {
		return ErrInvalidBuyer
	}
	if cartLen == 0 {
		return ErrEmptyCart
	}
	return nil
}

// Message is the text shown to the buyer for a validation error.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrInvalidBuyer):
		return "Please enter a valid name and phone number."
	case errors.Is(err, ErrEmptyCart):
		return "Cart is empty."
	case err == nil:
		return ""
	}
	return err.Error()
}
