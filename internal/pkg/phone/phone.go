// internal/pkg/phone/phone.go
package phone

import (
	"errors"
	"strings"
)

// ErrInvalidPhone is returned for anything that is not a Kenyan mobile number.
var ErrInvalidPhone = errors.New("invalid phone number: expected a Kenyan number like 0712345678 or +254712345678")

const countryCode = "254"

// Normalize converts a user-entered Kenyan number to +254XXXXXXXXX.
//
// Accepted shapes after stripping non-digits:
//
//	0XXXXXXXXX    (10 digits, trunk prefix)
//	7XXXXXXXX     (9 digits, subscriber number)
//	1XXXXXXXX     (9 digits, subscriber number)
//	254XXXXXXXXX  (12 digits, international)
func Normalize(raw string) (string, error) {
	digits := stripNonDigits(raw)

	var subscriber string
	switch {
	case len(digits) == 10 && digits[0] == '0':
		subscriber = digits[1:]
	case len(digits) == 9 && (digits[0] == '7' || digits[0] == '1'):
		subscriber = digits
	case len(digits) == 12 && strings.HasPrefix(digits, countryCode):
		subscriber = digits[3:]
	default:
		return "", ErrInvalidPhone
	}

	return "+" + countryCode + subscriber, nil
}

// MSISDN returns the provider form of a canonical number (no leading +).
func MSISDN(canonical string) string {
	return strings.TrimPrefix(canonical, "+")
}

// Mask hides the middle digits for logs: +2547****5678.
func Mask(canonical string) string {
	if len(canonical) < 9 {
		return canonical
	}
	return canonical[:5] + "****" + canonical[len(canonical)-4:]
}

func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
