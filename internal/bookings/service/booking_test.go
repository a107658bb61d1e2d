package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docslot/internal/availability"
	bookingserrors "docslot/internal/bookings/errors"
	"docslot/internal/bookings/locker"
	"docslot/internal/bookings/repository"
	"docslot/internal/bookings/validator"
	"docslot/internal/scheduling/policy"
	"docslot/pkg/config"
	apperrors "docslot/pkg/errors"
	"docslot/pkg/logger"
	"docslot/pkg/model"
)

// ────────────────────────────────────────────────
// Collaborator mocks
// ────────────────────────────────────────────────

type mockDoctors struct {
	getByIDFunc func(ctx context.Context, id string) (*model.Doctor, error)
}

func (m *mockDoctors) GetByID(ctx context.Context, id string) (*model.Doctor, error) {
	return m.getByIDFunc(ctx, id)
}

type mockLocker struct {
	acquireFunc func(ctx context.Context, key locker.Key) (locker.Lease, error)
}

func (m *mockLocker) Acquire(ctx context.Context, key locker.Key) (locker.Lease, error) {
	return m.acquireFunc(ctx, key)
}

func (m *mockLocker) Backend() string { return "mock" }

type recorder struct {
	mu          sync.Mutex
	invalidated []string
	events      []string
}

func (r *recorder) Invalidate(_ context.Context, doctorID, date string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidated = append(r.invalidated, doctorID+"/"+date)
	return nil
}

func (r *recorder) BookingCreated(_ context.Context, b *model.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "created:"+string(b.Status))
	return nil
}

func (r *recorder) StatusChanged(_ context.Context, b *model.Booking, previous model.BookingStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, string(previous)+"->"+string(b.Status))
	return nil
}

// ────────────────────────────────────────────────
// Fixture
// ────────────────────────────────────────────────

const (
	doctorID = "doc-1"
	monday   = "2025-06-02"
)

type fixture struct {
	svc       BookingService
	repo      repository.BookingRepository
	doctor    *model.Doctor
	directory *mockDoctors
	now       time.Time
	recorder  *recorder
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	log := logger.New(logger.Config{Output: io.Discard})
	cfg := &config.Config{DefaultTimeZone: "UTC", DefaultSlotGranularityMin: 30, Log: log}

	f := &fixture{
		repo: repository.NewMemoryBookingRepository(),
		doctor: &model.Doctor{
			ID:              doctorID,
			Name:            "Dr. Farhana Akter",
			ConsultationFee: 1000,
			IsActive:        true,
			IsAvailable:     true,
			Availability:    []model.AvailabilityRule{{Weekday: model.Monday, Start: "09:00", End: "12:00"}},
		},
		now:      time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
		recorder: &recorder{},
	}
	doctors := &mockDoctors{getByIDFunc: func(_ context.Context, id string) (*model.Doctor, error) {
		if id != f.doctor.ID {
			return nil, apperrors.NotFoundWithID("Doctor", id)
		}
		d := *f.doctor
		return &d, nil
	}}

	f.directory = doctors

	opts = append([]Option{
		WithClock(func() time.Time { return f.now }),
		WithInvalidator(f.recorder),
		WithPublisher(f.recorder),
	}, opts...)
	f.svc = NewBookingService(f.repo, doctors, locker.NewMemoryLocker(time.Second), validator.NewBookingValidator(log), policy.Default(), cfg, opts...)
	return f
}

func request(at string, service model.ServiceKind) *model.BookingRequest {
	return &model.BookingRequest{
		DoctorID:  doctorID,
		PatientID: "pat-1",
		Date:      monday,
		Time:      at,
		Service:   service,
	}
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, code), "want %s, got %v", code, err)
}

// ────────────────────────────────────────────────
// RequestBooking
// ────────────────────────────────────────────────

func TestRequestBooking_ConflictsAndChatExemption(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.RequestBooking(ctx, request("09:00", model.ServiceConsultation))
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, model.StatusPending, first.Status)
	assert.Equal(t, "09:00", first.StartTime)
	assert.Equal(t, "09:30", first.EndTime)
	assert.Equal(t, int64(1000), first.Price)
	assert.Equal(t, "Dr. Farhana Akter", first.DoctorName)

	_, err = f.svc.RequestBooking(ctx, request("09:10", model.ServiceVoice))
	requireCode(t, err, apperrors.CodeSlotConflict)

	chat, err := f.svc.RequestBooking(ctx, request("09:00", model.ServiceChat))
	require.NoError(t, err)
	assert.Equal(t, "09:00", chat.EndTime, "chat is zero-width")
	assert.Equal(t, int64(600), chat.Price)

	adjacent, err := f.svc.RequestBooking(ctx, request("09:30", model.ServiceVoice))
	require.NoError(t, err, "touching intervals do not overlap")
	assert.Equal(t, int64(800), adjacent.Price)

	assert.Equal(t, []string{"created:pending", "created:pending", "created:pending"}, f.recorder.events)
	assert.Len(t, f.recorder.invalidated, 3)
}

func TestRequestBooking_TrailingRemainderIsNotBookable(t *testing.T) {
	f := newFixture(t)
	f.doctor.Availability = []model.AvailabilityRule{{Weekday: model.Monday, Start: "09:00", End: "10:10"}}
	ctx := context.Background()

	_, err := f.svc.RequestBooking(ctx, request("09:50", model.ServiceVoice))
	requireCode(t, err, apperrors.CodeOutsideAvailability)

	_, err = f.svc.RequestBooking(ctx, request("09:40", model.ServiceConsultation))
	requireCode(t, err, apperrors.CodeOutsideAvailability)

	b, err := f.svc.RequestBooking(ctx, request("09:40", model.ServiceVoice))
	require.NoError(t, err)
	assert.Equal(t, "10:00", b.EndTime)
}

func TestRequestBooking_AcceptsEveryProjectedSlot(t *testing.T) {
	f := newFixture(t)
	f.doctor.Availability = []model.AvailabilityRule{
		{Weekday: model.Monday, Start: "09:00", End: "10:10"},
		{Weekday: model.Monday, Start: "14:00", End: "15:05"},
	}
	ctx := context.Background()
	cfg := &config.Config{
		DefaultTimeZone:           "UTC",
		DefaultSlotGranularityMin: 30,
		AvailabilityMaxRangeDays:  31,
		Log:                       logger.New(logger.Config{Output: io.Discard}),
	}
	projector := availability.NewProjector(f.directory, f.repo, policy.Default(), cfg,
		availability.WithClock(func() time.Time { return f.now }))

	for _, service := range []model.ServiceKind{model.ServiceConsultation, model.ServiceVoice, model.ServiceVisit} {
		t.Run(string(service), func(t *testing.T) {
			days, err := projector.Project(ctx, doctorID, monday, "", service)
			require.NoError(t, err)
			require.Len(t, days, 1)
			require.NotEmpty(t, days[0].FreeIntervals)

			// Each booking is cancelled so the next service sees the same free day.
			for _, iv := range days[0].FreeIntervals {
				req := request(model.FormatClock(iv.Start), service)
				req.PatientID = fmt.Sprintf("pat-%s-%d", service, iv.Start)
				b, err := f.svc.RequestBooking(ctx, req)
				require.NoError(t, err, "%s slot %s was projected free", service, iv)
				_, err = f.svc.TransitionBooking(ctx, b.ID, transition(model.StatusCancelled, model.ActorPatient))
				require.NoError(t, err)
			}
		})
	}
}

func TestRequestBooking_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(f *fixture, req *model.BookingRequest)
		wantCode string
	}{
		{
			name:     "outside working hours",
			mutate:   func(_ *fixture, req *model.BookingRequest) { req.Time = "13:00" },
			wantCode: apperrors.CodeOutsideAvailability,
		},
		{
			name:     "runs past the end of the window",
			mutate:   func(_ *fixture, req *model.BookingRequest) { req.Time, req.Service = "11:30", model.ServiceVisit },
			wantCode: apperrors.CodeOutsideAvailability,
		},
		{
			name:     "day without rules",
			mutate:   func(_ *fixture, req *model.BookingRequest) { req.Date = "2025-06-03" },
			wantCode: apperrors.CodeOutsideAvailability,
		},
		{
			name: "already started",
			mutate: func(f *fixture, _ *model.BookingRequest) {
				f.now = time.Date(2025, 6, 2, 9, 5, 0, 0, time.UTC)
			},
			wantCode: apperrors.CodeOutsideAvailability,
		},
		{
			name: "past midnight",
			mutate: func(f *fixture, req *model.BookingRequest) {
				f.doctor.Availability = []model.AvailabilityRule{{Weekday: model.Monday, Start: "22:00", End: "02:00"}}
				req.Time, req.Service = "23:45", model.ServiceConsultation
			},
			wantCode: apperrors.CodeOutsideAvailability,
		},
		{
			name:     "unknown doctor",
			mutate:   func(_ *fixture, req *model.BookingRequest) { req.DoctorID = "doc-404" },
			wantCode: apperrors.CodeDoctorUnavailable,
		},
		{
			name:     "inactive doctor",
			mutate:   func(f *fixture, _ *model.BookingRequest) { f.doctor.IsActive = false },
			wantCode: apperrors.CodeDoctorUnavailable,
		},
		{
			name:     "offline doctor",
			mutate:   func(f *fixture, _ *model.BookingRequest) { f.doctor.IsAvailable = false },
			wantCode: apperrors.CodeDoctorUnavailable,
		},
		{
			name:     "missing patient",
			mutate:   func(_ *fixture, req *model.BookingRequest) { req.PatientID = " " },
			wantCode: apperrors.CodeValidation,
		},
		{
			name:     "malformed time",
			mutate:   func(_ *fixture, req *model.BookingRequest) { req.Time = "9am" },
			wantCode: apperrors.CodeValidation,
		},
		{
			name:     "unknown service",
			mutate:   func(_ *fixture, req *model.BookingRequest) { req.Service = "surgery" },
			wantCode: apperrors.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := request("09:00", model.ServiceConsultation)
			tt.mutate(f, req)

			_, err := f.svc.RequestBooking(context.Background(), req)
			requireCode(t, err, tt.wantCode)
			assert.Empty(t, f.recorder.events)
		})
	}
}

func TestRequestBooking_NoDoubleBookingUnderConcurrency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	starts := []string{"09:00", "09:10", "09:20", "09:05", "09:15"}

	const workers = 25
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := request(starts[i%len(starts)], model.ServiceConsultation)
			req.PatientID = fmt.Sprintf("pat-%d", i)

			_, err := f.svc.RequestBooking(ctx, req)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case apperrors.HasCode(err, apperrors.CodeSlotConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, workers-1, conflicts)

	active, err := f.repo.ListActive(ctx, doctorID, monday)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestRequestBooking_PriceIsASnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	booking, err := f.svc.RequestBooking(ctx, request("10:00", model.ServiceVisit))
	require.NoError(t, err)
	assert.Equal(t, int64(1500), booking.Price)

	f.doctor.ConsultationFee = 5000

	stored, err := f.svc.GetByID(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), stored.Price)
}

func TestRequestBooking_SanitizesPatientFields(t *testing.T) {
	f := newFixture(t)
	req := request("09:00", model.ServiceConsultation)
	req.PatientName = "  Rahim   Uddin "
	req.PatientEmail = " Rahim@Example.com"
	req.PatientPhone = "01712-345678"
	req.Notes = "  chest pain  "

	booking, err := f.svc.RequestBooking(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Rahim Uddin", booking.PatientName)
	assert.Equal(t, "rahim@example.com", booking.PatientEmail)
	assert.Equal(t, "+8801712345678", booking.PatientPhone)
	assert.Equal(t, "chest pain", booking.PatientNotes)
}

func TestRequestBooking_LockTimeout(t *testing.T) {
	busy := &mockLocker{acquireFunc: func(_ context.Context, key locker.Key) (locker.Lease, error) {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrLockTimeout, key)
	}}
	f := newFixture(t)
	f.svc.(*bookingService).locks = busy

	_, err := f.svc.RequestBooking(context.Background(), request("09:00", model.ServiceConsultation))
	requireCode(t, err, apperrors.CodeTimeout)
	assert.True(t, apperrors.AsAppError(err).Retryable())
}

func TestRequestBooking_DifferentDatesDoNotBlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := locker.NewMemoryLocker(50 * time.Millisecond)
	f.svc.(*bookingService).locks = l

	held, err := l.Acquire(ctx, locker.Key{DoctorID: doctorID, Date: "2025-06-09"})
	require.NoError(t, err)
	defer func() { _ = held.Release(ctx) }()

	_, err = f.svc.RequestBooking(ctx, request("09:00", model.ServiceConsultation))
	require.NoError(t, err)

	req := request("09:00", model.ServiceConsultation)
	req.Date = "2025-06-09"
	_, err = f.svc.RequestBooking(ctx, req)
	requireCode(t, err, apperrors.CodeTimeout)
}

// ────────────────────────────────────────────────
// TransitionBooking
// ────────────────────────────────────────────────

func transition(status model.BookingStatus, actor model.ActorRole) *model.TransitionRequest {
	return &model.TransitionRequest{Status: status, ActorRole: actor}
}

func TestTransitionBooking_Lifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	booking, err := f.svc.RequestBooking(ctx, request("09:00", model.ServiceConsultation))
	require.NoError(t, err)

	_, err = f.svc.TransitionBooking(ctx, booking.ID, transition(model.StatusConfirmed, model.ActorPatient))
	requireCode(t, err, apperrors.CodeInvalidTransition)

	confirmTo := transition(model.StatusConfirmed, model.ActorDoctor)
	confirmTo.Notes = "bring reports"
	confirmed, err := f.svc.TransitionBooking(ctx, booking.ID, confirmTo)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, confirmed.Status)
	assert.Equal(t, "bring reports", confirmed.DoctorNotes)

	_, err = f.svc.TransitionBooking(ctx, booking.ID, transition(model.StatusCompleted, model.ActorDoctor))
	requireCode(t, err, apperrors.CodeInvalidTransition)

	f.now = time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	completed, err := f.svc.TransitionBooking(ctx, booking.ID, transition(model.StatusCompleted, model.ActorDoctor))
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, completed.Status)
	assert.Equal(t, f.now, completed.UpdatedAt)

	_, err = f.svc.TransitionBooking(ctx, booking.ID, transition(model.StatusCancelled, model.ActorDoctor))
	requireCode(t, err, apperrors.CodeInvalidTransition)

	stored, err := f.svc.GetByID(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, stored.Status)
	assert.Equal(t, "bring reports", stored.DoctorNotes)

	assert.Equal(t, []string{"created:pending", "pending->confirmed", "confirmed->completed"}, f.recorder.events)
}

func TestTransitionBooking_CancellationReleasesSlotAndIsNotIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	booking, err := f.svc.RequestBooking(ctx, request("10:00", model.ServiceConsultation))
	require.NoError(t, err)

	cancel := transition(model.StatusCancelled, model.ActorPatient)
	cancel.Notes = "feeling better"
	cancelled, err := f.svc.TransitionBooking(ctx, booking.ID, cancel)
	require.NoError(t, err)
	assert.Equal(t, "feeling better", cancelled.PatientNotes)

	_, err = f.svc.TransitionBooking(ctx, booking.ID, transition(model.StatusCancelled, model.ActorPatient))
	requireCode(t, err, apperrors.CodeInvalidTransition)

	rebooked, err := f.svc.RequestBooking(ctx, request("10:00", model.ServiceConsultation))
	require.NoError(t, err)
	assert.NotEqual(t, booking.ID, rebooked.ID)

	assert.Contains(t, f.recorder.invalidated, doctorID+"/"+monday)
}

func TestTransitionBooking_NoShowAndLateCancellation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	booking, err := f.svc.RequestBooking(ctx, request("11:00", model.ServiceConsultation))
	require.NoError(t, err)
	_, err = f.svc.TransitionBooking(ctx, booking.ID, transition(model.StatusConfirmed, model.ActorDoctor))
	require.NoError(t, err)

	_, err = f.svc.TransitionBooking(ctx, booking.ID, transition(model.StatusNoShow, model.ActorDoctor))
	requireCode(t, err, apperrors.CodeInvalidTransition)

	f.now = time.Date(2025, 6, 2, 11, 10, 0, 0, time.UTC)
	_, err = f.svc.TransitionBooking(ctx, booking.ID, transition(model.StatusCancelled, model.ActorPatient))
	requireCode(t, err, apperrors.CodeInvalidTransition)

	noShow, err := f.svc.TransitionBooking(ctx, booking.ID, transition(model.StatusNoShow, model.ActorDoctor))
	require.NoError(t, err)
	assert.Equal(t, model.StatusNoShow, noShow.Status)
}

func TestTransitionBooking_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.TransitionBooking(ctx, "", transition(model.StatusConfirmed, model.ActorDoctor))
	requireCode(t, err, apperrors.CodeInvalidInput)

	_, err = f.svc.TransitionBooking(ctx, "not-a-uuid", transition(model.StatusConfirmed, model.ActorDoctor))
	requireCode(t, err, apperrors.CodeNotFound)

	_, err = f.svc.TransitionBooking(ctx, "2b1f9c52-5d0e-4f3c-9a4e-3d2f1b0c9e8a", transition(model.StatusConfirmed, model.ActorDoctor))
	requireCode(t, err, apperrors.CodeNotFound)

	booking, err := f.svc.RequestBooking(ctx, request("09:00", model.ServiceConsultation))
	require.NoError(t, err)
	_, err = f.svc.TransitionBooking(ctx, booking.ID, transition("archived", model.ActorDoctor))
	requireCode(t, err, apperrors.CodeValidation)
}

type racingRepository struct {
	repository.BookingRepository
}

func (r racingRepository) UpdateStatus(context.Context, *model.Booking, model.BookingStatus) error {
	return fmt.Errorf("%w: someone else won", bookingserrors.ErrStatusChanged)
}

func TestTransitionBooking_ConcurrentModification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	booking, err := f.svc.RequestBooking(ctx, request("09:00", model.ServiceConsultation))
	require.NoError(t, err)

	svc := f.svc.(*bookingService)
	svc.repo = racingRepository{BookingRepository: f.repo}

	_, err = f.svc.TransitionBooking(ctx, booking.ID, transition(model.StatusConfirmed, model.ActorDoctor))
	requireCode(t, err, apperrors.CodeConflict)
}

// ────────────────────────────────────────────────
// Reads
// ────────────────────────────────────────────────

func TestListByDoctorAndPatient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i, at := range []string{"09:00", "09:30", "10:00"} {
		req := request(at, model.ServiceConsultation)
		req.PatientID = fmt.Sprintf("pat-%d", i%2)
		_, err := f.svc.RequestBooking(ctx, req)
		require.NoError(t, err)
	}

	page, total, err := f.svc.ListByDoctor(ctx, doctorID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page, 2)

	page, total, err = f.svc.ListByPatient(ctx, "pat-0", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, page, 2)

	page, total, err = f.svc.ListByPatient(ctx, "pat-9", 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NotNil(t, page)

	_, _, err = f.svc.ListByDoctor(ctx, "", 10, 0)
	requireCode(t, err, apperrors.CodeInvalidInput)
}

type failingCounts struct {
	repository.BookingRepository
}

func (failingCounts) CountByDoctor(context.Context, string) (int64, error) {
	return 0, errors.New("connection reset")
}

func TestListByDoctor_RepositoryFailure(t *testing.T) {
	f := newFixture(t)
	f.svc.(*bookingService).repo = failingCounts{BookingRepository: f.repo}

	_, _, err := f.svc.ListByDoctor(context.Background(), doctorID, 10, 0)
	requireCode(t, err, apperrors.CodeInternal)
}

func TestDoctorStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.RequestBooking(ctx, request("09:00", model.ServiceConsultation))
	require.NoError(t, err)
	_, err = f.svc.RequestBooking(ctx, request("10:00", model.ServiceVisit))
	require.NoError(t, err)

	_, err = f.svc.TransitionBooking(ctx, a.ID, transition(model.StatusConfirmed, model.ActorDoctor))
	require.NoError(t, err)
	f.now = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	_, err = f.svc.TransitionBooking(ctx, a.ID, transition(model.StatusCompleted, model.ActorSystem))
	require.NoError(t, err)

	stats, err := f.svc.DoctorStats(ctx, doctorID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.ByStatus[model.StatusCompleted])
	assert.Equal(t, int64(1), stats.ByStatus[model.StatusPending])
	assert.Equal(t, int64(0), stats.ByStatus[model.StatusCancelled])
	assert.Equal(t, int64(1000), stats.Earnings)

	_, err = f.svc.DoctorStats(ctx, "doc-404")
	requireCode(t, err, apperrors.CodeNotFound)
}
