// Package phone normalises the phone numbers customers type at checkout.
package phone

import (
	"errors"
	"regexp"
	"strings"
)

// CountryCode is the dialing code of Cameroon.
const CountryCode = "237"

var (
	ErrRequired      = errors.New("phone: phone number is required")
	ErrInvalidFormat = errors.New("phone: invalid phone number format, use 237xxxxxxxxx")
)

var (
	e164Regex          = regexp.MustCompile(`^\+([1-9]{1,3})(\d{4,14})$`)
	localMobileRegex   = regexp.MustCompile(`^6\d{8}$`)
	doubleZeroRegex    = regexp.MustCompile(`^00\d{6,15}$`)
	internationalRegex = regexp.MustCompile(`^[1-9]\d{5,14}$`)
	checkoutRegex      = regexp.MustCompile(`^237[0-9]{9}$`)
	separatorsRegex    = regexp.MustCompile(`[\s\-()]`)
)

// Format converts a number to E.164, assuming Cameroon when no country code is present.
//
//	Format("612345678")      // +237612345678
//	Format("00237612345678") // +237612345678
func Format(number string) string {
	switch {
	case e164Regex.MatchString(number):
		return number
	case localMobileRegex.MatchString(number):
		return "+" + CountryCode + number
	case doubleZeroRegex.MatchString(number):
		return "+" + number[2:]
	case internationalRegex.MatchString(number):
		return "+" + number
	default:
		return "+" + CountryCode + strings.TrimLeft(number, "0")
	}
}

// Extract strips separators from raw and formats every number it contains. Several numbers may be separated by a
// slash, e.g. "6 12 34 56 78 / 6 99 99 99 99".
func Extract(raw string) []string {
	cleaned := separatorsRegex.ReplaceAllString(raw, "")

	parts := strings.Split(cleaned, "/")
	numbers := make([]string, 0, len(parts))

	for _, p := range parts {
		if p == "" {
			continue
		}
		numbers = append(numbers, Format(p))
	}

	return numbers
}

// Validate checks the number entered in the checkout form, which must look like 237xxxxxxxxx.
func Validate(number string) error {
	number = strings.TrimSpace(number)

	if number == "" {
		return ErrRequired
	}

	if !checkoutRegex.MatchString(number) {
		return ErrInvalidFormat
	}

	return nil
}
