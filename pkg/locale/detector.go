package locale

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// InferCountryFromPhone resolves an E.164 number to one of Countries, or nil.
func InferCountryFromPhone(phone string) *Country {
	phone = strings.TrimSpace(phone)
	if !strings.HasPrefix(phone, "+") {
		return nil
	}

	num, err := phonenumbers.Parse(phone, "")
	if err != nil {
		return nil
	}

	country, ok := Countries[phonenumbers.GetRegionCodeForNumber(num)]
	if !ok {
		return nil
	}
	return &country
}

// InferTimezoneFromPhone returns "" when the country is unknown, leaving the caller's default in place.
func InferTimezoneFromPhone(phone string) string {
	if c := InferCountryFromPhone(phone); c != nil {
		return c.DefaultTimezone
	}
	return ""
}
