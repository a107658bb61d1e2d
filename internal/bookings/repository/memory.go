package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	bookingserrors "docslot/internal/bookings/errors"
	"docslot/pkg/model"
)

// memoryBookingRepository keeps bookings in process. It backs single-instance deployments and tests;
// ExecuteTransaction offers no rollback, so callers rely on the booking lock for isolation.
type memoryBookingRepository struct {
	mu       sync.RWMutex
	bookings map[string]*model.Booking
	order    []string
}

func NewMemoryBookingRepository() BookingRepository {
	return &memoryBookingRepository{
		bookings: make(map[string]*model.Booking),
	}
}

func (r *memoryBookingRepository) Create(_ context.Context, booking *model.Booking) error {
	stampCreated(booking)
	booking.ID = uuid.NewString()

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *booking
	r.bookings[booking.ID] = &stored
	r.order = append(r.order, booking.ID)
	return nil
}

func (r *memoryBookingRepository) FindByID(_ context.Context, id string) (*model.Booking, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	out := *b
	return &out, nil
}

func (r *memoryBookingRepository) ListActive(ctx context.Context, doctorID string, date string) ([]*model.Booking, error) {
	return r.ListActiveInRange(ctx, doctorID, date, date)
}

func (r *memoryBookingRepository) ListActiveInRange(_ context.Context, doctorID string, from, to string) ([]*model.Booking, error) {
	out := r.filter(func(b *model.Booking) bool {
		return b.DoctorID == doctorID && b.Status.Occupies() && b.Date >= from && b.Date <= to
	})
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out, nil
}

func (r *memoryBookingRepository) FindByDoctor(_ context.Context, doctorID string, limit int, offset int64) ([]*model.Booking, error) {
	return page(r.newestFirst(func(b *model.Booking) bool { return b.DoctorID == doctorID }), limit, offset), nil
}

func (r *memoryBookingRepository) CountByDoctor(_ context.Context, doctorID string) (int64, error) {
	return int64(len(r.filter(func(b *model.Booking) bool { return b.DoctorID == doctorID }))), nil
}

func (r *memoryBookingRepository) FindByPatient(_ context.Context, patientID string, limit int, offset int64) ([]*model.Booking, error) {
	return page(r.newestFirst(func(b *model.Booking) bool { return b.PatientID == patientID }), limit, offset), nil
}

func (r *memoryBookingRepository) CountByPatient(_ context.Context, patientID string) (int64, error) {
	return int64(len(r.filter(func(b *model.Booking) bool { return b.PatientID == patientID }))), nil
}

func (r *memoryBookingRepository) UpdateStatus(_ context.Context, booking *model.Booking, previous model.BookingStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.bookings[booking.ID]
	if !ok {
		return bookingserrors.ErrNotFound
	}
	if stored.Status != previous {
		return fmt.Errorf("%w: %s is no longer %s", bookingserrors.ErrStatusChanged, booking.ID, previous)
	}

	stored.Status = booking.Status
	stored.UpdatedAt = booking.UpdatedAt
	if booking.DoctorNotes != "" {
		stored.DoctorNotes = booking.DoctorNotes
	}
	if booking.PatientNotes != "" {
		stored.PatientNotes = booking.PatientNotes
	}
	return nil
}

func (r *memoryBookingRepository) Stats(_ context.Context, doctorID string) (*model.DoctorStats, error) {
	stats := newStats(doctorID)
	for _, b := range r.filter(func(b *model.Booking) bool { return b.DoctorID == doctorID }) {
		stats.add(b.Status, 1, b.Price)
	}
	return stats.DoctorStats, nil
}

func (r *memoryBookingRepository) ExecuteTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// filter returns copies in insertion order.
func (r *memoryBookingRepository) filter(keep func(*model.Booking) bool) []*model.Booking {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.Booking, 0)
	for _, id := range r.order {
		b := r.bookings[id]
		if keep(b) {
			c := *b
			out = append(out, &c)
		}
	}
	return out
}

func (r *memoryBookingRepository) newestFirst(keep func(*model.Booking) bool) []*model.Booking {
	out := r.filter(keep)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func page(in []*model.Booking, limit int, offset int64) []*model.Booking {
	if offset >= int64(len(in)) {
		return []*model.Booking{}
	}
	in = in[offset:]
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}
