package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	doctorserrors "docslot/internal/doctors/errors"
	"docslot/internal/doctors/repository"
	"docslot/internal/doctors/validator"
	"docslot/internal/scheduling/slot"
	"docslot/pkg/config"
	apperrors "docslot/pkg/errors"
	"docslot/pkg/locale"
	"docslot/pkg/model"
	"docslot/pkg/sanitizer"
)

type DoctorService interface {
	Create(ctx context.Context, doctor *model.Doctor) error
	GetByID(ctx context.Context, id string) (*model.Doctor, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Doctor, int64, error)
	Update(ctx context.Context, id string, updates *model.DoctorUpdate) (*model.Doctor, error)
}

type doctorService struct {
	repo      repository.DoctorRepository
	validator *validator.DoctorValidator
	cfg       *config.Config
	now       func() time.Time
}

func NewDoctorService(
	repo repository.DoctorRepository,
	validator *validator.DoctorValidator,
	cfg *config.Config,
) DoctorService {
	return &doctorService{
		repo:      repo,
		validator: validator,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *doctorService) Create(ctx context.Context, doctor *model.Doctor) error {
	s.sanitize(doctor)
	if doctor.TimeZone == "" {
		doctor.TimeZone = locale.InferTimezoneFromPhone(doctor.Phone)
	}
	if err := s.expandAvailabilityText(doctor); err != nil {
		return err
	}

	if err := s.validator.Validate(doctor); err != nil {
		s.cfg.Log.Warn("Doctor validation failed",
			"name", doctor.Name,
			"error", err,
		)
		return validationError(err)
	}

	now := s.now().UTC()
	doctor.ID = ""
	doctor.CreatedAt = now
	doctor.UpdatedAt = now

	if err := s.repo.Create(ctx, doctor); err != nil {
		if errors.Is(err, doctorserrors.ErrDuplicate) {
			return apperrors.Conflict("A doctor with this email already exists")
		}
		s.cfg.Log.Error("Failed to create doctor",
			"name", doctor.Name,
			"error", err,
		)
		return apperrors.Internal("Failed to create doctor", err)
	}

	s.cfg.Log.Info("Doctor created successfully",
		"id", doctor.ID,
		"name", doctor.Name,
		"specialty", doctor.Specialty,
		"rules", len(doctor.Availability),
	)
	return nil
}

func (s *doctorService) GetByID(ctx context.Context, id string) (*model.Doctor, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperrors.InvalidInput("Doctor ID cannot be empty")
	}

	doctor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.lookupError(id, err)
	}
	return doctor, nil
}

func (s *doctorService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Doctor, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var doctors []*model.Doctor
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		var err error
		ctx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
		defer cancel()
		count, err = s.repo.Count(ctx)
		if err != nil {
			s.cfg.Log.Error("Failed to count doctors", "error", err)
			errCount = apperrors.Internal("Failed to count doctors", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		ctx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
		defer cancel()
		doctors, err = s.repo.FindAll(ctx, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to get all doctors",
				"limit", limit,
				"offset", offset,
				"error", err,
			)
			errFind = apperrors.Internal("Failed to retrieve doctors", err)
		}
	}()
	wg.Wait()

	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	if doctors == nil {
		doctors = []*model.Doctor{}
	}

	return doctors, count, nil
}

// Update applies a partial change. Bumping updated_at also retires every cached projection of
// the doctor, since cache entries are versioned by it.
func (s *doctorService) Update(ctx context.Context, id string, updates *model.DoctorUpdate) (*model.Doctor, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperrors.InvalidInput("Doctor ID cannot be empty")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.lookupError(id, err)
	}

	s.sanitizeUpdate(updates)
	if err := s.validator.ValidateUpdate(updates); err != nil {
		s.cfg.Log.Warn("Doctor update validation failed", "id", id, "error", err)
		return nil, validationError(err)
	}

	merged := mergeDoctorUpdates(existing, updates)
	if updates.AvailabilityText != "" && updates.Availability == nil {
		merged.Availability = nil
		if err := s.expandAvailabilityText(merged); err != nil {
			return nil, err
		}
	}
	if err := s.validator.Validate(merged); err != nil {
		s.cfg.Log.Warn("Doctor validation failed", "id", id, "error", err)
		return nil, validationError(err)
	}

	merged.UpdatedAt = s.now().UTC()
	if !merged.UpdatedAt.After(existing.UpdatedAt) {
		merged.UpdatedAt = existing.UpdatedAt.Add(time.Millisecond)
	}

	if err := s.repo.Update(ctx, id, merged); err != nil {
		if errors.Is(err, doctorserrors.ErrDuplicate) {
			return nil, apperrors.Conflict("A doctor with this email already exists")
		}
		if errors.Is(err, doctorserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Doctor", id)
		}
		s.cfg.Log.Error("Failed to update doctor",
			"id", id,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to update doctor", err)
	}

	s.cfg.Log.Info("Doctor updated successfully",
		"id", id,
		"name", merged.Name,
		"is_active", merged.IsActive,
		"is_available", merged.IsAvailable,
	)
	return merged, nil
}

func (s *doctorService) lookupError(id string, err error) error {
	if errors.Is(err, doctorserrors.ErrNotFound) || errors.Is(err, doctorserrors.ErrInvalidID) {
		return apperrors.NotFoundWithID("Doctor", id)
	}
	s.cfg.Log.Error("Failed to get doctor by ID",
		"id", id,
		"error", err,
	)
	return apperrors.Internal("Failed to retrieve doctor", err)
}

// expandAvailabilityText fills structured rules from the free-text description when none were given.
func (s *doctorService) expandAvailabilityText(doctor *model.Doctor) error {
	if len(doctor.Availability) > 0 || doctor.AvailabilityText == "" {
		return nil
	}

	rules, err := slot.ParseAvailabilityText(doctor.AvailabilityText)
	if err != nil {
		s.cfg.Log.Warn("Could not parse availability text",
			"availability_text", doctor.AvailabilityText,
			"error", err,
		)
		return apperrors.Validation("Doctor validation failed", map[string]any{
			"availability_text": err.Error(),
		})
	}
	doctor.Availability = rules
	return nil
}

func (s *doctorService) sanitize(doctor *model.Doctor) {
	doctor.Name = sanitizer.NormalizeName(doctor.Name)
	doctor.Email = sanitizer.NormalizeEmail(doctor.Email)
	doctor.Phone = sanitizer.NormalizePhone(doctor.Phone)
	doctor.Specialty = sanitizer.NormalizeSpecialty(doctor.Specialty)
	doctor.Hospital = sanitizer.TrimAndNormalize(doctor.Hospital)
	doctor.Location = sanitizer.TrimAndNormalize(doctor.Location)
	doctor.AvailabilityText = sanitizer.TrimAndNormalize(doctor.AvailabilityText)
	doctor.TimeZone = strings.TrimSpace(doctor.TimeZone)
}

func (s *doctorService) sanitizeUpdate(updates *model.DoctorUpdate) {
	if updates.Name != "" {
		updates.Name = sanitizer.NormalizeName(updates.Name)
	}
	if updates.Email != "" {
		updates.Email = sanitizer.NormalizeEmail(updates.Email)
	}
	if updates.Phone != "" {
		updates.Phone = sanitizer.NormalizePhone(updates.Phone)
	}
	if updates.Specialty != "" {
		updates.Specialty = sanitizer.NormalizeSpecialty(updates.Specialty)
	}
	updates.Hospital = sanitizer.TrimAndNormalize(updates.Hospital)
	updates.Location = sanitizer.TrimAndNormalize(updates.Location)
	updates.AvailabilityText = sanitizer.TrimAndNormalize(updates.AvailabilityText)
	updates.TimeZone = strings.TrimSpace(updates.TimeZone)
}

func mergeDoctorUpdates(existing *model.Doctor, updates *model.DoctorUpdate) *model.Doctor {
	merged := *existing

	if updates.Name != "" {
		merged.Name = updates.Name
	}
	if updates.Email != "" {
		merged.Email = updates.Email
	}
	if updates.Phone != "" {
		merged.Phone = updates.Phone
	}
	if updates.Specialty != "" {
		merged.Specialty = updates.Specialty
	}
	if updates.Hospital != "" {
		merged.Hospital = updates.Hospital
	}
	if updates.Location != "" {
		merged.Location = updates.Location
	}
	if updates.ConsultationFee != nil {
		merged.ConsultationFee = *updates.ConsultationFee
	}
	if updates.IsAvailable != nil {
		merged.IsAvailable = *updates.IsAvailable
	}
	if updates.IsActive != nil {
		merged.IsActive = *updates.IsActive
	}
	if updates.IsEmergencyAvailable != nil {
		merged.IsEmergencyAvailable = *updates.IsEmergencyAvailable
	}
	if updates.Availability != nil {
		merged.Availability = append([]model.AvailabilityRule(nil), (*updates.Availability)...)
	}
	if updates.AvailabilityText != "" {
		merged.AvailabilityText = updates.AvailabilityText
	}
	if updates.SlotGranularityMin != nil {
		merged.SlotGranularityMin = *updates.SlotGranularityMin
	}
	if updates.TimeZone != "" {
		merged.TimeZone = updates.TimeZone
	}

	return &merged
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		return apperrors.Validation("Doctor validation failed", fieldErrs.Details())
	}
	return apperrors.Validation("Doctor validation failed", map[string]any{"error": err.Error()})
}
