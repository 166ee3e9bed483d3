package validation

import (
	"regexp"
	"strings"
	"unicode"

	"lark/internal/errors"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// expiry is MM/YY or MM/YYYY
var cardExpiryPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/(\d{2}|\d{4})$`)

var cardCVCPattern = regexp.MustCompile(`^\d{3,4}$`)

// Email checks address syntax only; deliverability is the notification
// service's problem.
func Email(address string) error {
	if address == "" {
		return errors.New(errors.KindValidation, "email address is required")
	}
	if !emailPattern.MatchString(address) {
		return errors.Newf(errors.KindValidation, "%q is not a valid email address", address)
	}
	return nil
}

// Name checks that a buyer name is present.
func Name(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New(errors.KindValidation, "name is required")
	}
	return nil
}

// Password enforces the minimum-strength policy for account creation:
// at least 8 characters with at least one letter and one digit.
func Password(password string) error {
	if len(password) < 8 {
		return errors.New(errors.KindValidation, "password must be at least 8 characters")
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return errors.New(errors.KindValidation, "password must contain at least one letter and one digit")
	}
	return nil
}

// Card format-checks manual card entry. No Luhn check: anything beyond
// format is delegated to the payment gateway.
func Card(number, expiry, cvc string) error {
	digits := strings.ReplaceAll(strings.ReplaceAll(number, " ", ""), "-", "")
	if len(digits) < 12 || len(digits) > 19 {
		return errors.New(errors.KindValidation, "card number must be 12 to 19 digits")
	}
	for _, r := range digits {
		if !unicode.IsDigit(r) {
			return errors.New(errors.KindValidation, "card number may contain only digits")
		}
	}
	if !cardExpiryPattern.MatchString(expiry) {
		return errors.New(errors.KindValidation, "card expiry must be MM/YY")
	}
	if !cardCVCPattern.MatchString(cvc) {
		return errors.New(errors.KindValidation, "card security code must be 3 or 4 digits")
	}
	return nil
}
