// Package slot turns a doctor's structured working hours into bookable time units.
//
// All functions are pure: the same rules, date and granularity always yield the same slots,
// and every returned sequence may be iterated any number of times.
package slot

import (
	"errors"
	"fmt"
	"iter"
	"sort"
	"time"

	"docslot/pkg/model"
)

var ErrInvalidRule = errors.New("invalid availability rule")

type window struct {
	start, end int
}

func parseRule(r model.AvailabilityRule) (window, error) {
	if (r.Weekday == "") == (r.Date == "") {
		return window{}, fmt.Errorf("%w: exactly one of weekday and date must be set", ErrInvalidRule)
	}
	start, err := model.ParseClock(r.Start)
	if err != nil {
		return window{}, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	if start == model.MinutesPerDay {
		return window{}, fmt.Errorf("%w: start cannot be 24:00", ErrInvalidRule)
	}
	end, err := model.ParseClock(r.End)
	if err != nil {
		return window{}, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	if start == end {
		return window{}, fmt.Errorf("%w: start and end are equal (%s)", ErrInvalidRule, r.Start)
	}
	return window{start: start, end: end}, nil
}

// ValidateRules reports the first rule that cannot be turned into a window.
func ValidateRules(rules []model.AvailabilityRule) error {
	for i, r := range rules {
		if _, err := parseRule(r); err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
		if r.Date != "" {
			if _, err := model.ParseDate(r.Date); err != nil {
				return fmt.Errorf("rule %d: %w: %v", i, ErrInvalidRule, err)
			}
		}
	}
	return nil
}

// rulesFor selects the rules governing a day. Date-specific rules replace the weekday rules
// for that date entirely.
func rulesFor(rules []model.AvailabilityRule, day time.Time) []model.AvailabilityRule {
	date := day.Format(model.DateLayout)
	var dated, weekly []model.AvailabilityRule
	for _, r := range rules {
		switch {
		case r.Date == date:
			dated = append(dated, r)
		case r.Date == "" && r.Weekday == model.Weekday(day.Weekday().String()):
			weekly = append(weekly, r)
		}
	}
	if len(dated) > 0 {
		return dated
	}
	return weekly
}

// Windows returns the sorted, merged working windows of the given date.
//
// Overnight rules (end before start) are split at midnight: the part before midnight belongs to the
// rule's own day, the remainder to the following day.
func Windows(rules []model.AvailabilityRule, date time.Time) ([]model.Interval, error) {
	if err := ValidateRules(rules); err != nil {
		return nil, err
	}

	var out []model.Interval
	for _, r := range rulesFor(rules, date) {
		w, _ := parseRule(r)
		if w.start < w.end {
			out = append(out, model.NewInterval(w.start, w.end))
		} else {
			out = append(out, model.NewInterval(w.start, model.MinutesPerDay))
		}
	}
	for _, r := range rulesFor(rules, date.AddDate(0, 0, -1)) {
		w, _ := parseRule(r)
		if w.end < w.start && w.end > 0 {
			out = append(out, model.NewInterval(0, w.end))
		}
	}

	return merge(out), nil
}

func merge(in []model.Interval) []model.Interval {
	if len(in) == 0 {
		return nil
	}
	sort.Slice(in, func(i, j int) bool { return in[i].Start < in[j].Start })
	out := []model.Interval{in[0]}
	for _, iv := range in[1:] {
		last := &out[len(out)-1]
		if iv.Start <= last.End {
			last.End = max(last.End, iv.End)
			continue
		}
		out = append(out, iv)
	}
	return out
}

// Slots enumerates fixed-size slots inside each window, stepping by granularity minutes.
// A trailing remainder shorter than one slot is not offered.
func Slots(windows []model.Interval, granularity int) iter.Seq[model.Interval] {
	return func(yield func(model.Interval) bool) {
		if granularity <= 0 {
			return
		}
		for _, w := range windows {
			for s := w.Start; s+granularity <= w.End; s += granularity {
				if !yield(model.NewInterval(s, s+granularity)) {
					return
				}
			}
		}
	}
}

// Bookable trims every window to the whole slots it holds. The result is the union of what Slots
// yields for the same windows and granularity; a trailing remainder is dropped.
func Bookable(windows []model.Interval, granularity int) []model.Interval {
	if granularity <= 0 {
		return nil
	}
	out := make([]model.Interval, 0, len(windows))
	for _, w := range windows {
		if n := (w.End - w.Start) / granularity; n > 0 {
			out = append(out, model.NewInterval(w.Start, w.Start+n*granularity))
		}
	}
	return out
}

// Generate is Windows followed by Slots. Invalid rules produce an empty sequence.
func Generate(rules []model.AvailabilityRule, date time.Time, granularity int) iter.Seq[model.Interval] {
	windows, err := Windows(rules, date)
	if err != nil {
		return func(func(model.Interval) bool) {}
	}
	return Slots(windows, granularity)
}

// Contains reports whether iv lies entirely inside one window. A zero-width interval must start
// strictly before the window closes.
func Contains(windows []model.Interval, iv model.Interval) bool {
	for _, w := range windows {
		if iv.IsZeroWidth() {
			if w.Start <= iv.Start && iv.Start < w.End {
				return true
			}
			continue
		}
		if w.Start <= iv.Start && iv.End <= w.End {
			return true
		}
	}
	return false
}
