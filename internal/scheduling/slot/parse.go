package slot

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"docslot/pkg/model"
)

var (
	reClock     = `(\d{1,2})(?:[:.](\d{2}))?\s*([AaPp]\.?\s*[Mm]\.?)?`
	reTextRange = regexp.MustCompile(`^` + reClock + `\s*(?:-|–|—|to|TO|To)\s*` + reClock + `$`)
	reDayPrefix = regexp.MustCompile(`^([A-Za-z]{3,9})\.?(?:\s*(?:-|–|to)\s*([A-Za-z]{3,9})\.?)?\s*:?\s+(.+)$`)

	weekdayPrefixes = map[string]int{
		"sun": 0, "mon": 1, "tue": 2, "wed": 3, "thu": 4, "fri": 5, "sat": 6,
	}
)

// ParseAvailabilityText converts a free-text working-hours description such as
// "9:00 AM - 5:00 PM" or "Sat-Thu 09:00-13:00, 16:00-20:00" into weekday rules.
// Segments are separated by commas or semicolons; a segment without a day prefix
// reuses the days of the previous segment, and the first one defaults to every day.
func ParseAvailabilityText(text string) ([]model.AvailabilityRule, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty availability text", ErrInvalidRule)
	}

	days := model.AllWeekdays
	var rules []model.AvailabilityRule

	segments := strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == ';' })
	for _, segment := range segments {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}

		if m := reDayPrefix.FindStringSubmatch(segment); m != nil {
			if parsed, ok := parseDayRange(m[1], m[2]); ok {
				days = parsed
				segment = strings.TrimSpace(m[3])
			}
		}

		start, end, err := parseTextRange(segment)
		if err != nil {
			return nil, err
		}
		for _, d := range days {
			rules = append(rules, model.AvailabilityRule{
				Weekday: d,
				Start:   model.FormatClock(start),
				End:     model.FormatClock(end),
			})
		}
	}

	if len(rules) == 0 {
		return nil, fmt.Errorf("%w: no time ranges in %q", ErrInvalidRule, text)
	}
	if err := ValidateRules(rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func lookupWeekday(word string) (int, bool) {
	word = strings.ToLower(word)
	if len(word) < 3 {
		return 0, false
	}
	idx, ok := weekdayPrefixes[word[:3]]
	return idx, ok
}

func parseDayRange(from, to string) ([]model.Weekday, bool) {
	first, ok := lookupWeekday(from)
	if !ok {
		return nil, false
	}
	if to == "" {
		return []model.Weekday{model.AllWeekdays[first]}, true
	}
	last, ok := lookupWeekday(to)
	if !ok {
		return nil, false
	}
	var out []model.Weekday
	for i := first; ; i = (i + 1) % 7 {
		out = append(out, model.AllWeekdays[i])
		if i == last {
			break
		}
	}
	return out, true
}

func parseTextRange(s string) (int, int, error) {
	m := reTextRange.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, fmt.Errorf("%w: cannot parse time range %q", ErrInvalidRule, s)
	}
	start, err := textClock(m[1], m[2], m[3])
	if err != nil {
		return 0, 0, err
	}
	end, err := textClock(m[4], m[5], m[6])
	if err != nil {
		return 0, 0, err
	}
	if end == 0 {
		end = model.MinutesPerDay
	}
	return start, end, nil
}

func textClock(hh, mm, meridiem string) (int, error) {
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("%w: bad hour %q", ErrInvalidRule, hh)
	}
	m := 0
	if mm != "" {
		if m, err = strconv.Atoi(mm); err != nil || m > 59 {
			return 0, fmt.Errorf("%w: bad minute %q", ErrInvalidRule, mm)
		}
	}

	meridiem = strings.ToLower(strings.NewReplacer(".", "", " ", "").Replace(meridiem))
	switch meridiem {
	case "":
		if h > 24 || (h == 24 && m != 0) {
			return 0, fmt.Errorf("%w: bad hour %q", ErrInvalidRule, hh)
		}
	case "am", "pm":
		if h < 1 || h > 12 {
			return 0, fmt.Errorf("%w: bad 12-hour clock %s:%02d %s", ErrInvalidRule, hh, m, meridiem)
		}
		h %= 12
		if meridiem == "pm" {
			h += 12
		}
	}
	return h*60 + m, nil
}
