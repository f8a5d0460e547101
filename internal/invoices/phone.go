package invoices

import (
	"github.com/ttacon/libphonenumber"

	"github.com/oceangate/oceangate/internal/shared"
)

// normalizePhone parses raw in region and formats it as E.164.
func normalizePhone(raw, region string) (string, error) {
	if raw == "" {
		return "", nil
	}
	num, err := libphonenumber.Parse(raw, region)
	if err != nil {
		return "", shared.Validation("customer.phone %q is not a valid phone number", raw)
	}
	if !libphonenumber.IsValidNumber(num) {
		return "", shared.Validation("customer.phone %q is not a valid phone number", raw)
	}
	return libphonenumber.Format(num, libphonenumber.E164), nil
}
