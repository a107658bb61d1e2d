package slot

import (
	"errors"
	"slices"
	"testing"
	"time"

	"docslot/pkg/model"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := model.ParseDate(s)
	if err != nil {
		t.Fatalf("bad test date %q: %v", s, err)
	}
	return d
}

func clock(t *testing.T, s string) int {
	t.Helper()
	m, err := model.ParseClock(s)
	if err != nil {
		t.Fatalf("bad test clock %q: %v", s, err)
	}
	return m
}

func TestWindows(t *testing.T) {
	// 2025-06-02 is a Monday
	rules := []model.AvailabilityRule{
		{Weekday: model.Monday, Start: "09:00", End: "12:00"},
		{Weekday: model.Monday, Start: "11:00", End: "13:00"},
		{Weekday: model.Monday, Start: "15:00", End: "17:00"},
		{Weekday: model.Tuesday, Start: "22:00", End: "02:00"},
		{Date: "2025-06-09", Start: "10:00", End: "11:00"},
	}

	tests := []struct {
		name string
		date string
		want []string
	}{
		{
			name: "weekday rules merged and sorted",
			date: "2025-06-02",
			want: []string{"09:00-13:00", "15:00-17:00"},
		},
		{
			name: "overnight rule keeps evening part on its own day",
			date: "2025-06-03",
			want: []string{"22:00-24:00"},
		},
		{
			name: "overnight rule spills into the next morning",
			date: "2025-06-04",
			want: []string{"00:00-02:00"},
		},
		{
			name: "date rule replaces weekday rules",
			date: "2025-06-09",
			want: []string{"10:00-11:00"},
		},
		{
			name: "day without rules",
			date: "2025-06-07",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Windows(rules, mustDate(t, tt.date))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			var gotStr []string
			for _, iv := range got {
				gotStr = append(gotStr, iv.String())
			}
			if !slices.Equal(gotStr, tt.want) {
				t.Errorf("Windows(%s) = %v, want %v", tt.date, gotStr, tt.want)
			}
		})
	}
}

func TestWindows_InvalidRules(t *testing.T) {
	tests := []struct {
		name string
		rule model.AvailabilityRule
	}{
		{name: "equal start and end", rule: model.AvailabilityRule{Weekday: model.Monday, Start: "09:00", End: "09:00"}},
		{name: "start at 24:00", rule: model.AvailabilityRule{Weekday: model.Monday, Start: "24:00", End: "02:00"}},
		{name: "bad clock", rule: model.AvailabilityRule{Weekday: model.Monday, Start: "9am", End: "17:00"}},
		{name: "neither weekday nor date", rule: model.AvailabilityRule{Start: "09:00", End: "17:00"}},
		{name: "both weekday and date", rule: model.AvailabilityRule{Weekday: model.Monday, Date: "2025-06-02", Start: "09:00", End: "17:00"}},
		{name: "bad date", rule: model.AvailabilityRule{Date: "2025-13-40", Start: "09:00", End: "17:00"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Windows([]model.AvailabilityRule{tt.rule}, mustDate(t, "2025-06-02"))
			if !errors.Is(err, ErrInvalidRule) {
				t.Errorf("expected ErrInvalidRule, got %v", err)
			}
		})
	}
}

func TestGenerate(t *testing.T) {
	rules := []model.AvailabilityRule{{Weekday: model.Monday, Start: "09:00", End: "12:00"}}
	date := mustDate(t, "2025-06-02")

	seq := Generate(rules, date, 30)

	var first []model.Interval
	for iv := range seq {
		first = append(first, iv)
	}
	if len(first) != 6 {
		t.Fatalf("expected 6 slots, got %d", len(first))
	}
	if first[0].String() != "09:00-09:30" || first[5].String() != "11:30-12:00" {
		t.Errorf("unexpected bounds: %v .. %v", first[0], first[5])
	}

	var second []model.Interval
	for iv := range seq {
		second = append(second, iv)
	}
	if !slices.Equal(first, second) {
		t.Error("sequence is not restartable")
	}

	count := 0
	for range seq {
		count++
		if count == 2 {
			break
		}
	}
	if count != 2 {
		t.Errorf("early break not honoured, got %d", count)
	}
}

func TestGenerate_TrailingRemainderDropped(t *testing.T) {
	rules := []model.AvailabilityRule{{Weekday: model.Monday, Start: "09:00", End: "10:40"}}

	var got []string
	for iv := range Generate(rules, mustDate(t, "2025-06-02"), 45) {
		got = append(got, iv.String())
	}
	want := []string{"09:00-09:45", "09:45-10:30"}
	if !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestGenerate_EmptyCases(t *testing.T) {
	rules := []model.AvailabilityRule{{Weekday: model.Monday, Start: "09:00", End: "12:00"}}
	invalid := []model.AvailabilityRule{{Weekday: model.Monday, Start: "09:00", End: "09:00"}}

	tests := []struct {
		name        string
		rules       []model.AvailabilityRule
		date        string
		granularity int
	}{
		{name: "date outside working days", rules: rules, date: "2025-06-03", granularity: 30},
		{name: "non-positive granularity", rules: rules, date: "2025-06-02", granularity: 0},
		{name: "invalid configuration", rules: invalid, date: "2025-06-02", granularity: 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for iv := range Generate(tt.rules, mustDate(t, tt.date), tt.granularity) {
				t.Fatalf("expected no slots, got %v", iv)
			}
		})
	}
}

func TestContains(t *testing.T) {
	windows := []model.Interval{
		model.NewInterval(clock(t, "09:00"), clock(t, "12:00")),
		model.NewInterval(clock(t, "14:00"), clock(t, "16:00")),
	}

	tests := []struct {
		name  string
		start string
		end   string
		want  bool
	}{
		{name: "inside first window", start: "09:00", end: "09:30", want: true},
		{name: "unaligned but inside", start: "09:10", end: "09:30", want: true},
		{name: "touching window end", start: "11:15", end: "12:00", want: true},
		{name: "crossing window end", start: "11:45", end: "12:15", want: false},
		{name: "between windows", start: "12:30", end: "13:00", want: false},
		{name: "outside all windows", start: "13:00", end: "13:30", want: false},
		{name: "zero width at open", start: "09:00", end: "09:00", want: true},
		{name: "zero width at close", start: "12:00", end: "12:00", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iv := model.NewInterval(clock(t, tt.start), clock(t, tt.end))
			if got := Contains(windows, iv); got != tt.want {
				t.Errorf("Contains(%v) = %v, want %v", iv, got, tt.want)
			}
		})
	}
}

func TestBookable(t *testing.T) {
	windows := []model.Interval{
		model.NewInterval(clock(t, "09:00"), clock(t, "10:10")),
		model.NewInterval(clock(t, "14:00"), clock(t, "14:20")),
		model.NewInterval(clock(t, "16:00"), clock(t, "17:00")),
	}

	got := Bookable(windows, 30)
	want := []model.Interval{
		model.NewInterval(clock(t, "09:00"), clock(t, "10:00")),
		model.NewInterval(clock(t, "16:00"), clock(t, "17:00")),
	}
	if !slices.Equal(got, want) {
		t.Fatalf("Bookable = %v, want %v", got, want)
	}

	var fromSlots []model.Interval
	for iv := range Slots(windows, 30) {
		if !Contains(got, iv) {
			t.Errorf("slot %v is not covered by %v", iv, got)
		}
		fromSlots = append(fromSlots, iv)
	}
	if len(fromSlots) != 4 {
		t.Errorf("expected 4 slots, got %v", fromSlots)
	}

	if Contains(got, model.NewInterval(clock(t, "09:50"), clock(t, "10:10"))) {
		t.Error("the trailing remainder of a window must not be bookable")
	}
	if Bookable(windows, 0) != nil {
		t.Error("zero granularity holds no slots")
	}
}
