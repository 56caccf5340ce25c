package notify

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// NormalizePhone converts a local or international number to E.164. Numbers
// without a country prefix are read in the region of defaultCountryCode.
func NormalizePhone(raw, defaultCountryCode string) (string, error) {
	number := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "whatsapp:"))
	if number == "" {
		return "", fmt.Errorf("%w: empty phone number", ErrInvalidRecipient)
	}

	cc, err := strconv.Atoi(strings.TrimPrefix(defaultCountryCode, "+"))
	if err != nil {
		return "", fmt.Errorf("invalid default country code %q: %w", defaultCountryCode, err)
	}
	region := phonenumbers.GetRegionCodeForCountryCode(cc)

	parsed, err := phonenumbers.Parse(number, region)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidRecipient, raw, err)
	}
	if !phonenumbers.IsPossibleNumber(parsed) {
		return "", fmt.Errorf("%w: %q is not a possible phone number", ErrInvalidRecipient, raw)
	}

	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}
