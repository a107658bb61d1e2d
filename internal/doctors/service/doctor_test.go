package service

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docslot/internal/doctors/repository"
	"docslot/internal/doctors/validator"
	"docslot/pkg/config"
	apperrors "docslot/pkg/errors"
	"docslot/pkg/logger"
	"docslot/pkg/model"
)

var t0 = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

// ────────────────────────────────────────────────
// Mock repository for testing
// ────────────────────────────────────────────────

type mockDoctorRepository struct {
	repository.DoctorRepository
	findAllFunc func(ctx context.Context, limit int, offset int64) ([]*model.Doctor, error)
	countFunc   func(ctx context.Context) (int64, error)
	findFunc    func(ctx context.Context, id string) (*model.Doctor, error)
}

func (m *mockDoctorRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Doctor, error) {
	if m.findAllFunc != nil {
		return m.findAllFunc(ctx, limit, offset)
	}
	return nil, nil
}

func (m *mockDoctorRepository) Count(ctx context.Context) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx)
	}
	return 0, nil
}

func (m *mockDoctorRepository) FindByID(ctx context.Context, id string) (*model.Doctor, error) {
	if m.findFunc != nil {
		return m.findFunc(ctx, id)
	}
	return nil, errors.New("not configured")
}

func testConfig() *config.Config {
	return &config.Config{
		Log:         logger.New(logger.Config{Output: io.Discard, Level: logger.ERROR}),
		ReadTimeout: 5 * time.Second,
	}
}

func newService(repo repository.DoctorRepository) *doctorService {
	cfg := testConfig()
	svc := NewDoctorService(repo, validator.NewDoctorValidator(cfg.Log), cfg).(*doctorService)
	svc.now = func() time.Time { return t0 }
	return svc
}

func newDoctor() *model.Doctor {
	return &model.Doctor{
		Name:            "  Dr.   Rahman ",
		Email:           " Rahman@Example.COM ",
		Phone:           "01712345678",
		Specialty:       " Cardiology ",
		ConsultationFee: 1000,
		IsActive:        true,
		IsAvailable:     true,
		Availability: []model.AvailabilityRule{
			{Weekday: model.Monday, Start: "09:00", End: "12:00"},
		},
	}
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, code), "expected %s, got %v", code, err)
}

// ────────────────────────────────────────────────
// Create
// ────────────────────────────────────────────────

func TestCreate_SanitizesAndStamps(t *testing.T) {
	svc := newService(repository.NewMemoryDoctorRepository())
	ctx := context.Background()

	d := newDoctor()
	require.NoError(t, svc.Create(ctx, d))

	assert.NotEmpty(t, d.ID)
	assert.Equal(t, "Dr. Rahman", d.Name)
	assert.Equal(t, "rahman@example.com", d.Email)
	assert.Equal(t, "+8801712345678", d.Phone)
	assert.Equal(t, "Asia/Dhaka", d.TimeZone, "time zone inferred from the phone's country")
	assert.Equal(t, "cardiology", d.Specialty)
	assert.Equal(t, t0, d.CreatedAt)
	assert.Equal(t, t0, d.UpdatedAt)

	got, err := svc.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.Name, got.Name)
}

func TestCreate_FromAvailabilityText(t *testing.T) {
	svc := newService(repository.NewMemoryDoctorRepository())

	d := newDoctor()
	d.Availability = nil
	d.AvailabilityText = "Sat-Thu 09:00-13:00"
	require.NoError(t, svc.Create(context.Background(), d))

	require.Len(t, d.Availability, 6)
	for _, r := range d.Availability {
		assert.NotEqual(t, model.Friday, r.Weekday)
		assert.Equal(t, "09:00", r.Start)
		assert.Equal(t, "13:00", r.End)
	}
}

func TestCreate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *model.Doctor)
		code   string
	}{
		{"missing name", func(d *model.Doctor) { d.Name = " " }, apperrors.CodeValidation},
		{"unparsable phone", func(d *model.Doctor) { d.Phone = "call me" }, apperrors.CodeValidation},
		{"no availability", func(d *model.Doctor) { d.Availability = nil }, apperrors.CodeValidation},
		{"bad availability text", func(d *model.Doctor) {
			d.Availability = nil
			d.AvailabilityText = "whenever"
		}, apperrors.CodeValidation},
		{"overnight equal bounds", func(d *model.Doctor) { d.Availability[0].End = "09:00" }, apperrors.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newService(repository.NewMemoryDoctorRepository())
			d := newDoctor()
			tt.mutate(d)
			requireCode(t, svc.Create(context.Background(), d), tt.code)
		})
	}
}

func TestCreate_DuplicateEmail(t *testing.T) {
	svc := newService(repository.NewMemoryDoctorRepository())
	ctx := context.Background()

	require.NoError(t, svc.Create(ctx, newDoctor()))
	requireCode(t, svc.Create(ctx, newDoctor()), apperrors.CodeConflict)
}

// ────────────────────────────────────────────────
// GetByID / GetAll
// ────────────────────────────────────────────────

func TestGetByID_Errors(t *testing.T) {
	svc := newService(repository.NewMemoryDoctorRepository())
	ctx := context.Background()

	requireCode(t, func() error { _, err := svc.GetByID(ctx, ""); return err }(), apperrors.CodeInvalidInput)
	requireCode(t, func() error { _, err := svc.GetByID(ctx, "not-an-id"); return err }(), apperrors.CodeNotFound)
	requireCode(t, func() error {
		_, err := svc.GetByID(ctx, "6f1c2a64-1d1e-4c0e-9a43-3f3f4c1c2b10")
		return err
	}(), apperrors.CodeNotFound)

	broken := newService(&mockDoctorRepository{
		findFunc: func(context.Context, string) (*model.Doctor, error) { return nil, errors.New("connection reset") },
	})
	requireCode(t, func() error { _, err := broken.GetByID(ctx, "x"); return err }(), apperrors.CodeInternal)
}

func TestGetAll_ConcurrentAccess(t *testing.T) {
	mockRepo := &mockDoctorRepository{
		countFunc: func(ctx context.Context) (int64, error) {
			time.Sleep(10 * time.Millisecond)
			return 100, nil
		},
		findAllFunc: func(ctx context.Context, limit int, offset int64) ([]*model.Doctor, error) {
			time.Sleep(10 * time.Millisecond)
			return []*model.Doctor{{ID: "1", Name: "Dr. A"}, {ID: "2", Name: "Dr. B"}}, nil
		},
	}
	svc := newService(mockRepo)

	for i := range 10 {
		doctors, count, err := svc.GetAll(context.Background(), 10, 0)
		require.NoError(t, err, "iteration %d", i)
		assert.Equal(t, int64(100), count)
		assert.Len(t, doctors, 2)
	}
}

func TestGetAll_LimitNormalization(t *testing.T) {
	tests := []struct {
		name       string
		limit      int
		offset     int64
		wantLimit  int
		wantOffset int64
	}{
		{"zero limit uses default", 0, 0, 10, 0},
		{"negative limit uses default", -5, 0, 10, 0},
		{"limit is capped", 1000, 0, config.DefaultPaginationLimit, 0},
		{"negative offset becomes zero", 20, -3, 20, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotLimit int
			var gotOffset int64
			svc := newService(&mockDoctorRepository{
				findAllFunc: func(_ context.Context, limit int, offset int64) ([]*model.Doctor, error) {
					gotLimit, gotOffset = limit, offset
					return nil, nil
				},
			})

			doctors, _, err := svc.GetAll(context.Background(), tt.limit, tt.offset)
			require.NoError(t, err)
			assert.NotNil(t, doctors, "an empty page is an empty slice")
			assert.Equal(t, tt.wantLimit, gotLimit)
			assert.Equal(t, tt.wantOffset, gotOffset)
		})
	}
}

func TestGetAll_CountFailure(t *testing.T) {
	var finds atomic.Int32
	svc := newService(&mockDoctorRepository{
		countFunc: func(context.Context) (int64, error) { return 0, errors.New("boom") },
		findAllFunc: func(context.Context, int, int64) ([]*model.Doctor, error) {
			finds.Add(1)
			return []*model.Doctor{}, nil
		},
	})

	_, _, err := svc.GetAll(context.Background(), 10, 0)
	requireCode(t, err, apperrors.CodeInternal)
	assert.Equal(t, int32(1), finds.Load())
}

// ────────────────────────────────────────────────
// Update
// ────────────────────────────────────────────────

func TestUpdate_MergesAndBumpsVersion(t *testing.T) {
	svc := newService(repository.NewMemoryDoctorRepository())
	ctx := context.Background()

	d := newDoctor()
	require.NoError(t, svc.Create(ctx, d))

	svc.now = func() time.Time { return t0.Add(time.Hour) }
	unavailable := false
	fee := int64(1500)
	updated, err := svc.Update(ctx, d.ID, &model.DoctorUpdate{
		Hospital:        "  Dhaka   Medical ",
		IsAvailable:     &unavailable,
		ConsultationFee: &fee,
	})
	require.NoError(t, err)

	assert.Equal(t, "Dhaka Medical", updated.Hospital)
	assert.False(t, updated.IsAvailable)
	assert.Equal(t, int64(1500), updated.ConsultationFee)
	assert.Equal(t, "Dr. Rahman", updated.Name, "untouched fields survive")
	assert.Len(t, updated.Availability, 1)
	assert.Equal(t, t0.Add(time.Hour), updated.UpdatedAt)
	assert.Equal(t, t0, updated.CreatedAt)

	stored, err := svc.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.False(t, stored.AcceptsBookings())
}

func TestUpdate_VersionAlwaysAdvances(t *testing.T) {
	svc := newService(repository.NewMemoryDoctorRepository())
	ctx := context.Background()

	d := newDoctor()
	require.NoError(t, svc.Create(ctx, d))

	updated, err := svc.Update(ctx, d.ID, &model.DoctorUpdate{Location: "Gulshan"})
	require.NoError(t, err)
	assert.True(t, updated.UpdatedAt.After(d.UpdatedAt), "a same-instant edit still changes the version")
}

func TestUpdate_AvailabilityText(t *testing.T) {
	svc := newService(repository.NewMemoryDoctorRepository())
	ctx := context.Background()

	d := newDoctor()
	require.NoError(t, svc.Create(ctx, d))

	updated, err := svc.Update(ctx, d.ID, &model.DoctorUpdate{AvailabilityText: "Fri 16:00-20:00"})
	require.NoError(t, err)
	require.Len(t, updated.Availability, 1)
	assert.Equal(t, model.Friday, updated.Availability[0].Weekday)
	assert.Equal(t, "Fri 16:00-20:00", updated.AvailabilityText)
}

func TestUpdate_Errors(t *testing.T) {
	svc := newService(repository.NewMemoryDoctorRepository())
	ctx := context.Background()

	d := newDoctor()
	require.NoError(t, svc.Create(ctx, d))

	_, err := svc.Update(ctx, "", &model.DoctorUpdate{})
	requireCode(t, err, apperrors.CodeInvalidInput)

	_, err = svc.Update(ctx, "6f1c2a64-1d1e-4c0e-9a43-3f3f4c1c2b10", &model.DoctorUpdate{Name: "Dr. X"})
	requireCode(t, err, apperrors.CodeNotFound)

	bad := []model.AvailabilityRule{{Weekday: model.Monday, Start: "10:00", End: "10:00"}}
	_, err = svc.Update(ctx, d.ID, &model.DoctorUpdate{Availability: &bad})
	requireCode(t, err, apperrors.CodeValidation)

	other := newDoctor()
	other.Email = "other@example.com"
	require.NoError(t, svc.Create(ctx, other))
	_, err = svc.Update(ctx, other.ID, &model.DoctorUpdate{Email: "RAHMAN@example.com"})
	requireCode(t, err, apperrors.CodeConflict)
}
