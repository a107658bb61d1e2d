package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"docslot/internal/availability"
	bookingserrors "docslot/internal/bookings/errors"
	"docslot/internal/bookings/events"
	"docslot/internal/bookings/lifecycle"
	"docslot/internal/bookings/locker"
	"docslot/internal/bookings/repository"
	"docslot/internal/bookings/validator"
	"docslot/internal/scheduling/conflict"
	"docslot/internal/scheduling/policy"
	"docslot/pkg/config"
	apperrors "docslot/pkg/errors"
	"docslot/pkg/metrics"
	"docslot/pkg/model"
	"docslot/pkg/sanitizer"
)

const tracerName = "docslot/internal/bookings/service"

type BookingService interface {
	RequestBooking(ctx context.Context, req *model.BookingRequest) (*model.Booking, error)
	TransitionBooking(ctx context.Context, id string, req *model.TransitionRequest) (*model.Booking, error)
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	ListByDoctor(ctx context.Context, doctorID string, limit int, offset int64) ([]*model.Booking, int64, error)
	ListByPatient(ctx context.Context, patientID string, limit int, offset int64) ([]*model.Booking, int64, error)
	DoctorStats(ctx context.Context, doctorID string) (*model.DoctorStats, error)
}

type DoctorDirectory interface {
	GetByID(ctx context.Context, id string) (*model.Doctor, error)
}

type Invalidator interface {
	Invalidate(ctx context.Context, doctorID, date string) error
}

type bookingService struct {
	repo         repository.BookingRepository
	doctors      DoctorDirectory
	locks        locker.Locker
	validator    *validator.BookingValidator
	policy       policy.Policy
	cfg          *config.Config
	publisher    events.Publisher
	availability Invalidator
	metrics      *metrics.SchedulerMetrics
	tracer       trace.Tracer
	now          func() time.Time
}

type Option func(*bookingService)

func WithClock(now func() time.Time) Option {
	return func(s *bookingService) { s.now = now }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *bookingService) { s.publisher = p }
}

// WithInvalidator registers the availability cache to drop after every committed write.
func WithInvalidator(i Invalidator) Option {
	return func(s *bookingService) { s.availability = i }
}

func WithMetrics(m *metrics.SchedulerMetrics) Option {
	return func(s *bookingService) { s.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *bookingService) { s.tracer = t }
}

func NewBookingService(
	repo repository.BookingRepository,
	doctors DoctorDirectory,
	locks locker.Locker,
	validator *validator.BookingValidator,
	pol policy.Policy,
	cfg *config.Config,
	opts ...Option,
) BookingService {
	s := &bookingService{
		repo:         repo,
		doctors:      doctors,
		locks:        locks,
		validator:    validator,
		policy:       pol,
		cfg:          cfg,
		publisher:    events.NoopPublisher{},
		availability: availability.NoopCache{},
		tracer:       otel.Tracer(tracerName),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestBooking creates a pending booking.
//
// Availability is checked before locking. The conflict check and the insert run inside the
// per-(doctor, date) critical section so that two requests can never both pass against the same
// snapshot of bookings.
func (s *bookingService) RequestBooking(ctx context.Context, req *model.BookingRequest) (booking *model.Booking, err error) {
	ctx, span := s.tracer.Start(ctx, "bookings.RequestBooking", trace.WithAttributes(
		attribute.String("doctor_id", req.DoctorID),
		attribute.String("date", req.Date),
		attribute.String("time", req.Time),
		attribute.String("service", string(req.Service)),
	))
	defer func() {
		endSpan(span, err)
		s.metrics.ObserveBookingRequest(outcome(err, "created"))
	}()

	s.sanitize(req)
	if err := s.validate(s.validator.ValidateRequest(req), "Invalid booking request"); err != nil {
		return nil, err
	}

	doctor, err := s.bookableDoctor(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}

	// Both parse after validation.
	day, _ := model.ParseDate(req.Date)
	start, _ := model.ParseClock(req.Time)
	interval := s.policy.Interval(req.Service, start)

	if err := s.checkWorkingHours(doctor, day, req, interval); err != nil {
		s.cfg.Log.Info("Booking request outside availability",
			"doctor_id", doctor.ID,
			"date", req.Date,
			"time", req.Time,
			"service", req.Service,
		)
		return nil, err
	}

	key := locker.Key{DoctorID: doctor.ID, Date: req.Date}
	lease, err := s.acquire(ctx, key)
	if err != nil {
		return nil, err
	}
	defer s.release(ctx, lease, key)

	now := s.now().UTC()
	booking = &model.Booking{
		DoctorID:     doctor.ID,
		DoctorName:   doctor.Name,
		PatientID:    req.PatientID,
		PatientName:  req.PatientName,
		PatientEmail: req.PatientEmail,
		PatientPhone: req.PatientPhone,
		Date:         req.Date,
		StartTime:    model.FormatClock(interval.Start),
		EndTime:      model.FormatClock(interval.End),
		Service:      req.Service,
		Status:       model.StatusPending,
		Price:        s.policy.Price(req.Service, doctor.ConsultationFee),
		PatientNotes: req.Notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
		active, err := s.repo.ListActive(ctx, doctor.ID, req.Date)
		if err != nil {
			return apperrors.Internal("Failed to load existing bookings", err)
		}
		candidate := conflict.Candidate{DoctorID: doctor.ID, Date: req.Date, Interval: interval, Service: req.Service}
		if err := conflict.Check(candidate, active); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, booking); err != nil {
			return apperrors.Internal("Failed to create booking", err)
		}
		return nil
	})
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeSlotConflict) {
			s.cfg.Log.Info("Booking request conflicts with an existing booking",
				"doctor_id", doctor.ID,
				"date", req.Date,
				"time", req.Time,
				"service", req.Service,
			)
		} else {
			s.cfg.Log.Error("Failed to create booking", "doctor_id", doctor.ID, "date", req.Date, "error", err)
		}
		return nil, err
	}

	span.SetAttributes(attribute.String("booking_id", booking.ID))
	s.cfg.Log.Info("Booking created successfully",
		"id", booking.ID,
		"doctor_id", booking.DoctorID,
		"patient_id", booking.PatientID,
		"date", booking.Date,
		"start_time", booking.StartTime,
		"service", booking.Service,
	)
	s.committed(ctx, booking, "")
	return booking, nil
}

// TransitionBooking moves a booking through the lifecycle. The booking is re-read under the same
// lock new requests take, and the write only succeeds if the status is still the one read.
func (s *bookingService) TransitionBooking(ctx context.Context, id string, req *model.TransitionRequest) (booking *model.Booking, err error) {
	ctx, span := s.tracer.Start(ctx, "bookings.TransitionBooking", trace.WithAttributes(
		attribute.String("booking_id", id),
		attribute.String("status", string(req.Status)),
		attribute.String("actor_role", string(req.ActorRole)),
	))
	var from model.BookingStatus
	defer func() {
		endSpan(span, err)
		s.metrics.ObserveTransition(string(from), string(req.Status), outcome(err, "ok"))
	}()

	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}
	req.Notes = sanitizer.NormalizeNotes(req.Notes)
	if err := s.validate(s.validator.ValidateTransition(req), "Invalid transition request"); err != nil {
		return nil, err
	}

	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from = current.Status
	loc, err := s.location(ctx, current.DoctorID)
	if err != nil {
		return nil, err
	}

	key := locker.Key{DoctorID: current.DoctorID, Date: current.Date}
	lease, err := s.acquire(ctx, key)
	if err != nil {
		return nil, err
	}
	defer s.release(ctx, lease, key)

	err = s.repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
		fresh, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return s.lookupError(id, err)
		}
		from = fresh.Status

		next, err := lifecycle.Transition(fresh, req.Status, req.ActorRole, s.now().UTC(), loc)
		if err != nil {
			return err
		}
		attachNotes(next, req)

		if err := s.repo.UpdateStatus(ctx, next, fresh.Status); err != nil {
			if errors.Is(err, bookingserrors.ErrStatusChanged) {
				return apperrors.Conflict("Booking was modified concurrently, reload it and retry")
			}
			return s.lookupError(id, err)
		}
		booking = next
		return nil
	})
	if err != nil {
		switch {
		case apperrors.HasCode(err, apperrors.CodeInvalidTransition):
			s.cfg.Log.Warn("Rejected booking transition",
				"id", id,
				"from", from,
				"to", req.Status,
				"actor_role", req.ActorRole,
				"error", err,
			)
		case apperrors.HasCode(err, apperrors.CodeInternal) || !apperrors.IsAppError(err):
			s.cfg.Log.Error("Failed to transition booking", "id", id, "to", req.Status, "error", err)
		}
		return nil, err
	}

	s.cfg.Log.Info("Booking status changed",
		"id", booking.ID,
		"doctor_id", booking.DoctorID,
		"date", booking.Date,
		"from", from,
		"to", booking.Status,
		"actor_role", req.ActorRole,
	)
	s.committed(ctx, booking, from)
	return booking, nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.lookupError(id, err)
	}
	return booking, nil
}

func (s *bookingService) ListByDoctor(ctx context.Context, doctorID string, limit int, offset int64) ([]*model.Booking, int64, error) {
	if doctorID == "" {
		return nil, 0, apperrors.InvalidInput("Doctor ID cannot be empty")
	}
	return s.list(ctx, "doctor_id", doctorID, limit, offset, s.repo.CountByDoctor, s.repo.FindByDoctor)
}

func (s *bookingService) ListByPatient(ctx context.Context, patientID string, limit int, offset int64) ([]*model.Booking, int64, error) {
	if patientID == "" {
		return nil, 0, apperrors.InvalidInput("Patient ID cannot be empty")
	}
	return s.list(ctx, "patient_id", patientID, limit, offset, s.repo.CountByPatient, s.repo.FindByPatient)
}

func (s *bookingService) DoctorStats(ctx context.Context, doctorID string) (*model.DoctorStats, error) {
	if doctorID == "" {
		return nil, apperrors.InvalidInput("Doctor ID cannot be empty")
	}
	if _, err := s.doctors.GetByID(ctx, doctorID); err != nil {
		return nil, err
	}

	stats, err := s.repo.Stats(ctx, doctorID)
	if err != nil {
		s.cfg.Log.Error("Failed to compute doctor stats", "doctor_id", doctorID, "error", err)
		return nil, apperrors.Internal("Failed to compute doctor stats", err)
	}
	return stats, nil
}

// --- Helpers ---

func (s *bookingService) sanitize(req *model.BookingRequest) {
	req.DoctorID = strings.TrimSpace(req.DoctorID)
	req.PatientID = strings.TrimSpace(req.PatientID)
	req.PatientName = sanitizer.NormalizeName(req.PatientName)
	req.PatientEmail = sanitizer.NormalizeEmail(req.PatientEmail)
	req.PatientPhone = sanitizer.NormalizePhone(req.PatientPhone)
	req.Date = strings.TrimSpace(req.Date)
	req.Time = strings.TrimSpace(req.Time)
	req.Notes = sanitizer.NormalizeNotes(req.Notes)
}

func (s *bookingService) validate(err error, message string) error {
	if err == nil {
		return nil
	}
	s.cfg.Log.Warn("Booking validation failed", "error", err)

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		return apperrors.Validation(message, fieldErrs.Details())
	}
	return apperrors.Validation(message, map[string]any{"error": err.Error()})
}

// bookableDoctor resolves the doctor and rejects unknown, inactive and offline doctors alike.
func (s *bookingService) bookableDoctor(ctx context.Context, id string) (*model.Doctor, error) {
	doctor, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeNotFound) {
			s.cfg.Log.Info("Booking requested for unknown doctor", "doctor_id", id)
			return nil, apperrors.DoctorUnavailable(id)
		}
		return nil, err
	}
	if !doctor.AcceptsBookings() {
		s.cfg.Log.Info("Booking requested for unavailable doctor",
			"doctor_id", id,
			"is_active", doctor.IsActive,
			"is_available", doctor.IsAvailable,
		)
		return nil, apperrors.DoctorUnavailable(id)
	}
	return doctor, nil
}

func (s *bookingService) checkWorkingHours(doctor *model.Doctor, day time.Time, req *model.BookingRequest, iv model.Interval) error {
	details := map[string]any{
		"doctor_id": doctor.ID,
		"date":      req.Date,
		"time":      req.Time,
		"service":   req.Service,
	}

	if iv.End > model.MinutesPerDay {
		return apperrors.OutsideAvailability(
			fmt.Sprintf("A %s starting at %s would run past midnight", req.Service, req.Time),
		).WithDetails(details)
	}

	granularity := availability.SlotLength(doctor, req.Service, s.policy, s.cfg.DefaultSlotGranularityMin)
	ok, err := availability.InsideSlots(doctor, day, granularity, iv)
	if err != nil {
		return apperrors.Internal("Doctor availability is misconfigured", err)
	}
	if !ok {
		return apperrors.OutsideAvailability(
			fmt.Sprintf("Requested time %s on %s is outside the doctor's bookable slots", iv, req.Date),
		).WithDetails(details)
	}

	if availability.InPast(day, iv.Start, s.now(), doctor.Loc(s.cfg.Location())) {
		return apperrors.OutsideAvailability(
			fmt.Sprintf("Requested time %s on %s has already passed", req.Time, req.Date),
		).WithDetails(details)
	}
	return nil
}

// location is the zone the booking's wall-clock times are read in. A doctor that has since
// disappeared from the directory falls back to the default zone.
func (s *bookingService) location(ctx context.Context, doctorID string) (*time.Location, error) {
	doctor, err := s.doctors.GetByID(ctx, doctorID)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeNotFound) {
			return s.cfg.Location(), nil
		}
		return nil, err
	}
	return doctor.Loc(s.cfg.Location()), nil
}

func (s *bookingService) acquire(ctx context.Context, key locker.Key) (locker.Lease, error) {
	started := time.Now()
	lease, err := s.locks.Acquire(ctx, key)
	s.metrics.ObserveLockWait(s.locks.Backend(), time.Since(started))
	if err == nil {
		return lease, nil
	}

	if errors.Is(err, bookingserrors.ErrLockTimeout) {
		s.cfg.Log.Warn("Timed out waiting for booking lock",
			"doctor_id", key.DoctorID,
			"date", key.Date,
			"backend", s.locks.Backend(),
			"waited", time.Since(started),
		)
		return nil, apperrors.Timeout(
			fmt.Sprintf("Bookings for this doctor on %s are busy, retry shortly", key.Date),
		).WithDetails(map[string]any{"doctor_id": key.DoctorID, "date": key.Date})
	}
	s.cfg.Log.Error("Failed to acquire booking lock", "doctor_id", key.DoctorID, "date", key.Date, "error", err)
	return nil, apperrors.Internal("Failed to acquire booking lock", err)
}

func (s *bookingService) release(ctx context.Context, lease locker.Lease, key locker.Key) {
	if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
		level := s.cfg.Log.Warn
		if errors.Is(err, bookingserrors.ErrLockLost) {
			level = s.cfg.Log.Error
		}
		level("Failed to release booking lock", "doctor_id", key.DoctorID, "date", key.Date, "error", err)
	}
}

// committed runs the side effects of a stored write. The write stands even if they fail.
func (s *bookingService) committed(ctx context.Context, b *model.Booking, previous model.BookingStatus) {
	ctx = context.WithoutCancel(ctx)

	if err := s.availability.Invalidate(ctx, b.DoctorID, b.Date); err != nil {
		s.cfg.Log.Warn("Failed to invalidate availability", "doctor_id", b.DoctorID, "date", b.Date, "error", err)
	}

	var err error
	if previous == "" {
		err = s.publisher.BookingCreated(ctx, b)
	} else {
		err = s.publisher.StatusChanged(ctx, b, previous)
	}
	if err != nil {
		s.cfg.Log.Error("Failed to publish booking event", "id", b.ID, "status", b.Status, "error", err)
	}
}

func (s *bookingService) lookupError(id string, err error) error {
	if errors.Is(err, bookingserrors.ErrNotFound) || errors.Is(err, bookingserrors.ErrInvalidID) {
		return apperrors.NotFoundWithID("Booking", id)
	}
	if apperrors.IsAppError(err) {
		return err
	}
	return apperrors.Internal("Failed to retrieve booking", err)
}

func (s *bookingService) list(
	ctx context.Context,
	field, value string,
	limit int,
	offset int64,
	count func(ctx context.Context, id string) (int64, error),
	find func(ctx context.Context, id string, limit int, offset int64) ([]*model.Booking, error),
) ([]*model.Booking, int64, error) {
	var (
		total    int64
		bookings []*model.Booking
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := count(gctx, value)
		if err != nil {
			s.cfg.Log.Error("Failed to count bookings", field, value, "error", err)
			return apperrors.Internal("Failed to count bookings", err)
		}
		total = n
		return nil
	})
	g.Go(func() error {
		page, err := find(gctx, value, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to list bookings", field, value, "limit", limit, "offset", offset, "error", err)
			return apperrors.Internal("Failed to retrieve bookings", err)
		}
		bookings = page
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	if bookings == nil {
		bookings = []*model.Booking{}
	}
	return bookings, total, nil
}

// attachNotes stores transition notes on the side of the actor who wrote them.
func attachNotes(b *model.Booking, req *model.TransitionRequest) {
	if req.Notes == "" {
		return
	}
	if req.ActorRole == model.ActorPatient {
		b.PatientNotes = req.Notes
		return
	}
	b.DoctorNotes = req.Notes
}

func outcome(err error, success string) string {
	if err == nil {
		return success
	}
	if appErr := (*apperrors.AppError)(nil); errors.As(err, &appErr) {
		return strings.ToLower(appErr.Code)
	}
	return "error"
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
