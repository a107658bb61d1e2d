// Package availability answers which intervals of a doctor's working hours are still free.
//
// A projection is the Slot Model output for each date minus the slots occupied by pending or
// confirmed bookings. It is recomputed on demand; the optional cache is keyed on (doctor, date)
// and dropped whenever a booking for that key changes.
package availability

import (
	"context"
	"fmt"
	"time"

	"docslot/internal/scheduling/conflict"
	"docslot/internal/scheduling/policy"
	"docslot/internal/scheduling/slot"
	"docslot/pkg/config"
	apperrors "docslot/pkg/errors"
	"docslot/pkg/logger"
	"docslot/pkg/metrics"
	"docslot/pkg/model"
)

type DoctorDirectory interface {
	GetByID(ctx context.Context, id string) (*model.Doctor, error)
}

type BookingReader interface {
	ListActiveInRange(ctx context.Context, doctorID string, from, to string) ([]*model.Booking, error)
}

type Projector struct {
	doctors  DoctorDirectory
	bookings BookingReader
	cache    Cache
	policy   policy.Policy
	cfg      *config.Config
	log      *logger.Logger
	metrics  *metrics.SchedulerMetrics
	now      func() time.Time
}

type Option func(*Projector)

func WithCache(c Cache) Option {
	return func(p *Projector) { p.cache = c }
}

func WithMetrics(m *metrics.SchedulerMetrics) Option {
	return func(p *Projector) { p.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(p *Projector) { p.now = now }
}

func NewProjector(doctors DoctorDirectory, bookings BookingReader, pol policy.Policy, cfg *config.Config, opts ...Option) *Projector {
	p := &Projector{
		doctors:  doctors,
		bookings: bookings,
		cache:    NoopCache{},
		policy:   pol,
		cfg:      cfg,
		log:      cfg.Log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Project returns one entry per date in the inclusive range [from, to].
//
// When service is a timed service the slots have that service's length, so every returned
// interval can be booked as-is. Otherwise the doctor's slot granularity applies and a free slot
// may be shorter than the service a client later asks for.
func (p *Projector) Project(ctx context.Context, doctorID, from, to string, service model.ServiceKind) ([]model.DayAvailability, error) {
	if service != "" && !service.IsValid() {
		return nil, apperrors.InvalidInput("Unknown service: " + string(service))
	}
	first, last, err := p.dateRange(from, to)
	if err != nil {
		return nil, err
	}

	doctor, err := p.doctors.GetByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	days := make([]model.DayAvailability, 0, int(last.Sub(first).Hours()/24)+1)
	if !doctor.AcceptsBookings() {
		for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
			days = append(days, model.DayAvailability{Date: d.Format(model.DateLayout), FreeIntervals: []model.Interval{}})
		}
		return days, nil
	}

	granularity := p.granularity(doctor, service)
	loc := doctor.Loc(p.cfg.Location())

	// Generations are read before the bookings so that a booking committed in between makes
	// the computed projection unstorable instead of stale.
	var misses []miss
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		date := d.Format(model.DateLayout)
		key := EntryKey{DoctorID: doctorID, Date: date, Version: doctor.UpdatedAt, Granularity: granularity, Service: service}

		if free, hit := p.cached(ctx, key); hit {
			days = append(days, model.DayAvailability{Date: date, FreeIntervals: p.dropPast(free, d, loc)})
			continue
		}

		m := miss{index: len(days), day: d, key: key, cacheable: true}
		gen, err := p.cache.Generation(ctx, doctorID, date)
		if err != nil {
			p.log.Warn("Availability cache generation read failed, not caching", "doctor_id", doctorID, "date", date, "error", err)
			m.cacheable = false
		}
		m.generation = gen
		misses = append(misses, m)
		days = append(days, model.DayAvailability{Date: date})
	}
	if len(misses) == 0 {
		return days, nil
	}

	all, err := p.bookings.ListActiveInRange(ctx, doctorID,
		misses[0].key.Date, misses[len(misses)-1].key.Date)
	if err != nil {
		return nil, apperrors.Internal("Failed to load bookings", err)
	}
	busy := groupByDate(all)

	for _, m := range misses {
		free, err := Free(doctor, m.day, granularity, service, busy[m.key.Date])
		if err != nil {
			return nil, apperrors.Internal("Doctor availability is misconfigured", err)
		}
		if m.cacheable {
			p.store(ctx, m.key, m.generation, free)
		}
		days[m.index].FreeIntervals = p.dropPast(free, m.day, loc)
	}

	return days, nil
}

type miss struct {
	index      int
	day        time.Time
	key        EntryKey
	generation int64
	cacheable  bool
}

// Invalidate drops every cached projection of (doctorID, date).
func (p *Projector) Invalidate(ctx context.Context, doctorID, date string) error {
	if err := p.cache.Invalidate(ctx, doctorID, date); err != nil {
		return fmt.Errorf("failed to invalidate availability for %s on %s: %w", doctorID, date, err)
	}
	return nil
}

func (p *Projector) dateRange(from, to string) (time.Time, time.Time, error) {
	first, err := model.ParseDate(from)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.InvalidInput("Invalid 'from' date: " + from)
	}
	if to == "" {
		to = from
	}
	last, err := model.ParseDate(to)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.InvalidInput("Invalid 'to' date: " + to)
	}
	if last.Before(first) {
		return time.Time{}, time.Time{}, apperrors.InvalidInput("'to' must not be before 'from'")
	}
	if days := int(last.Sub(first).Hours()/24) + 1; days > p.cfg.AvailabilityMaxRangeDays {
		return time.Time{}, time.Time{}, apperrors.InvalidInput(
			fmt.Sprintf("Date range of %d days exceeds the maximum of %d", days, p.cfg.AvailabilityMaxRangeDays))
	}
	return first, last, nil
}

func (p *Projector) granularity(doctor *model.Doctor, service model.ServiceKind) int {
	return SlotLength(doctor, service, p.policy, p.cfg.DefaultSlotGranularityMin)
}

// SlotLength is the slot size used for service: the service's own length for timed services,
// otherwise the doctor's granularity, otherwise fallback.
func SlotLength(doctor *model.Doctor, service model.ServiceKind, pol policy.Policy, fallback int) int {
	if service != "" && !service.ExemptFromConflicts() {
		if m := pol.Minutes(service); m > 0 {
			return m
		}
	}
	if doctor.SlotGranularityMin > 0 {
		return doctor.SlotGranularityMin
	}
	return fallback
}

func (p *Projector) cached(ctx context.Context, key EntryKey) ([]model.Interval, bool) {
	free, hit, err := p.cache.Get(ctx, key)
	switch {
	case err != nil:
		p.log.Warn("Availability cache read failed, recomputing", "doctor_id", key.DoctorID, "date", key.Date, "error", err)
		p.metrics.ObserveCache("error")
		return nil, false
	case hit:
		p.metrics.ObserveCache("hit")
	default:
		p.metrics.ObserveCache("miss")
	}
	return free, hit
}

func (p *Projector) store(ctx context.Context, key EntryKey, generation int64, free []model.Interval) {
	if err := p.cache.Set(ctx, key, generation, free); err != nil {
		p.log.Warn("Availability cache write failed", "doctor_id", key.DoctorID, "date", key.Date, "error", err)
	}
}

// dropPast removes slots that have already started in the doctor's zone.
func (p *Projector) dropPast(free []model.Interval, day time.Time, loc *time.Location) []model.Interval {
	now := p.now()
	out := make([]model.Interval, 0, len(free))
	for _, iv := range free {
		if !InPast(day, iv.Start, now, loc) {
			out = append(out, iv)
		}
	}
	return out
}

// InPast reports whether the wall-clock minute start of day lies before now in loc.
func InPast(day time.Time, start int, now time.Time, loc *time.Location) bool {
	at := time.Date(day.Year(), day.Month(), day.Day(), 0, start, 0, 0, loc)
	return at.Before(now)
}

// Free lists the slots of one day that no active booking overlaps.
func Free(doctor *model.Doctor, day time.Time, granularity int, service model.ServiceKind, active []*model.Booking) ([]model.Interval, error) {
	windows, err := slot.Windows(doctor.Availability, day)
	if err != nil {
		return nil, err
	}
	if service == "" {
		service = model.ServiceConsultation
	}

	date := day.Format(model.DateLayout)
	free := make([]model.Interval, 0)
	for iv := range slot.Slots(windows, granularity) {
		candidate := conflict.Candidate{DoctorID: doctor.ID, Date: date, Interval: iv, Service: service}
		if _, busy := conflict.Detect(candidate, active); !busy {
			free = append(free, iv)
		}
	}
	return free, nil
}

// InsideSlots reports whether iv lies within the slots of length granularity that the doctor's
// working windows on day hold. Minutes past the last whole slot of a window are not bookable.
func InsideSlots(doctor *model.Doctor, day time.Time, granularity int, iv model.Interval) (bool, error) {
	windows, err := slot.Windows(doctor.Availability, day)
	if err != nil {
		return false, err
	}
	return slot.Contains(slot.Bookable(windows, granularity), iv), nil
}

func groupByDate(bookings []*model.Booking) map[string][]*model.Booking {
	out := make(map[string][]*model.Booking)
	for _, b := range bookings {
		out[b.Date] = append(out[b.Date], b)
	}
	return out
}

