package sanitizer

import (
	"strings"
	"unicode"
)

func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)

	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

func NormalizeName(name string) string {
	return TrimAndNormalize(name)
}

func NormalizeEmail(email string) string {
	return Pipeline{strings.TrimSpace, strings.ToLower}.Apply(email)
}

// NormalizeSpecialty makes "Cardiology " and "cardiology" the same specialty.
func NormalizeSpecialty(specialty string) string {
	return Pipeline{TrimAndNormalize, strings.ToLower}.Apply(specialty)
}

// NormalizeNotes cleans free text written by patients and doctors on a booking.
func NormalizeNotes(notes string) string {
	return Pipeline{
		func(s string) string { return strings.ReplaceAll(s, "\r\n", "\n") },
		StripControl,
		CollapseBlankLines,
		strings.TrimSpace,
	}.Apply(notes)
}
