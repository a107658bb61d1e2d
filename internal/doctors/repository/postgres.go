package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	doctorserrors "docslot/internal/doctors/errors"
	"docslot/pkg/db/postgres"
	"docslot/pkg/model"
)

const TableName = "doctors"

var doctorColumns = []string{
	"id",
	"name",
	"email",
	"phone",
	"specialty",
	"hospital",
	"location",
	"consultation_fee",
	"is_available",
	"is_active",
	"is_emergency_available",
	"availability",
	"availability_text",
	"slot_granularity_min",
	"time_zone",
	"created_at",
	"updated_at",
}

type postgresDoctorRepository struct {
	db *sql.DB
}

// NewPostgresDoctorRepository stores doctors in a table whose availability column is JSONB.
func NewPostgresDoctorRepository(db *sql.DB) DoctorRepository {
	return &postgresDoctorRepository{db: db}
}

func (r *postgresDoctorRepository) Create(ctx context.Context, doctor *model.Doctor) error {
	executor := postgres.GetExecutor(ctx, r.db)

	rules, err := json.Marshal(doctor.Availability)
	if err != nil {
		return fmt.Errorf("failed to encode availability: %w", err)
	}

	stampCreated(doctor)
	id := uuid.NewString()

	query, args, err := postgres.Builder.Insert(TableName).
		Columns(doctorColumns...).
		Values(
			id,
			doctor.Name,
			doctor.Email,
			doctor.Phone,
			doctor.Specialty,
			doctor.Hospital,
			doctor.Location,
			doctor.ConsultationFee,
			doctor.IsAvailable,
			doctor.IsActive,
			doctor.IsEmergencyAvailable,
			rules,
			doctor.AvailabilityText,
			doctor.SlotGranularityMin,
			doctor.TimeZone,
			doctor.CreatedAt,
			doctor.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build doctor insert: %w", err)
	}

	if _, err := executor.ExecContext(ctx, query, args...); err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s", doctorserrors.ErrDuplicate, doctor.Email)
		}
		return fmt.Errorf("failed to create doctor: %w", err)
	}

	doctor.ID = id
	return nil
}

func (r *postgresDoctorRepository) FindByID(ctx context.Context, id string) (*model.Doctor, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", doctorserrors.ErrInvalidID, id)
	}

	doctors, err := r.query(ctx, postgres.Builder.Select(doctorColumns...).
		From(TableName).
		Where(squirrel.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	if len(doctors) == 0 {
		return nil, fmt.Errorf("%w: %s", doctorserrors.ErrNotFound, id)
	}
	return doctors[0], nil
}

func (r *postgresDoctorRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Doctor, error) {
	return r.query(ctx, postgres.Builder.Select(doctorColumns...).
		From(TableName).
		OrderBy("name ASC", "id ASC").
		Limit(uint64(limit)).
		Offset(uint64(offset)))
}

func (r *postgresDoctorRepository) Count(ctx context.Context) (int64, error) {
	executor := postgres.GetExecutor(ctx, r.db)

	query, args, err := postgres.Builder.Select("COUNT(*)").From(TableName).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build doctor count: %w", err)
	}

	var count int64
	if err := executor.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count doctors: %w", err)
	}
	return count, nil
}

func (r *postgresDoctorRepository) Update(ctx context.Context, id string, doctor *model.Doctor) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s", doctorserrors.ErrInvalidID, id)
	}
	executor := postgres.GetExecutor(ctx, r.db)

	rules, err := json.Marshal(doctor.Availability)
	if err != nil {
		return fmt.Errorf("failed to encode availability: %w", err)
	}

	query, args, err := postgres.Builder.Update(TableName).
		SetMap(map[string]any{
			"name":                   doctor.Name,
			"email":                  doctor.Email,
			"phone":                  doctor.Phone,
			"specialty":              doctor.Specialty,
			"hospital":               doctor.Hospital,
			"location":               doctor.Location,
			"consultation_fee":       doctor.ConsultationFee,
			"is_available":           doctor.IsAvailable,
			"is_active":              doctor.IsActive,
			"is_emergency_available": doctor.IsEmergencyAvailable,
			"availability":           rules,
			"availability_text":      doctor.AvailabilityText,
			"slot_granularity_min":   doctor.SlotGranularityMin,
			"time_zone":              doctor.TimeZone,
			"updated_at":             doctor.UpdatedAt,
		}).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build doctor update: %w", err)
	}

	result, err := executor.ExecContext(ctx, query, args...)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s", doctorserrors.ErrDuplicate, doctor.Email)
		}
		return fmt.Errorf("failed to update doctor: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update doctor: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", doctorserrors.ErrNotFound, id)
	}
	return nil
}

func (r *postgresDoctorRepository) query(ctx context.Context, q squirrel.SelectBuilder) ([]*model.Doctor, error) {
	executor := postgres.GetExecutor(ctx, r.db)

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build doctor query: %w", err)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query doctors: %w", err)
	}
	defer rows.Close()

	doctors := make([]*model.Doctor, 0)
	for rows.Next() {
		var (
			d     model.Doctor
			rules []byte
		)
		err := rows.Scan(
			&d.ID,
			&d.Name,
			&d.Email,
			&d.Phone,
			&d.Specialty,
			&d.Hospital,
			&d.Location,
			&d.ConsultationFee,
			&d.IsAvailable,
			&d.IsActive,
			&d.IsEmergencyAvailable,
			&rules,
			&d.AvailabilityText,
			&d.SlotGranularityMin,
			&d.TimeZone,
			&d.CreatedAt,
			&d.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan doctor: %w", err)
		}
		if err := json.Unmarshal(rules, &d.Availability); err != nil {
			return nil, fmt.Errorf("failed to decode availability of doctor %s: %w", d.ID, err)
		}
		doctors = append(doctors, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate doctors: %w", err)
	}

	return doctors, nil
}
