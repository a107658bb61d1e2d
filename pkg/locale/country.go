// Package locale maps phone numbers to the country and IANA time zone a doctor most likely works in.
package locale

type Country struct {
	Code            string // ISO 3166-1 alpha-2
	Name            string
	DefaultTimezone string // IANA identifier
}

// Countries lists the regions whose doctors get a time zone inferred from their phone.
// Regions spanning several zones use the capital's.
var Countries = map[string]Country{
	"BD": {Code: "BD", Name: "Bangladesh", DefaultTimezone: "Asia/Dhaka"},
	"IN": {Code: "IN", Name: "India", DefaultTimezone: "Asia/Kolkata"},
	"PK": {Code: "PK", Name: "Pakistan", DefaultTimezone: "Asia/Karachi"},
	"NP": {Code: "NP", Name: "Nepal", DefaultTimezone: "Asia/Kathmandu"},
	"LK": {Code: "LK", Name: "Sri Lanka", DefaultTimezone: "Asia/Colombo"},
	"AE": {Code: "AE", Name: "United Arab Emirates", DefaultTimezone: "Asia/Dubai"},
	"SA": {Code: "SA", Name: "Saudi Arabia", DefaultTimezone: "Asia/Riyadh"},
	"MY": {Code: "MY", Name: "Malaysia", DefaultTimezone: "Asia/Kuala_Lumpur"},
	"SG": {Code: "SG", Name: "Singapore", DefaultTimezone: "Asia/Singapore"},
	"IL": {Code: "IL", Name: "Israel", DefaultTimezone: "Asia/Jerusalem"},
	"GB": {Code: "GB", Name: "United Kingdom", DefaultTimezone: "Europe/London"},
	"US": {Code: "US", Name: "United States", DefaultTimezone: "America/New_York"},
}
