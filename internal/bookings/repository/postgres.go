package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	bookingserrors "docslot/internal/bookings/errors"
	"docslot/pkg/db/postgres"
	"docslot/pkg/model"
)

const TableName = "bookings"

var bookingColumns = []string{
	"id",
	"doctor_id",
	"doctor_name",
	"patient_id",
	"patient_name",
	"patient_email",
	"patient_phone",
	"to_char(date, 'YYYY-MM-DD')",
	"start_time",
	"end_time",
	"service",
	"status",
	"price",
	"patient_notes",
	"doctor_notes",
	"created_at",
	"updated_at",
}

type postgresBookingRepository struct {
	db        *sql.DB
	txManager *postgres.TransactionManager
}

func NewPostgresBookingRepository(db *sql.DB) BookingRepository {
	return &postgresBookingRepository{
		db:        db,
		txManager: postgres.NewTransactionManager(db),
	}
}

func (r *postgresBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	executor := postgres.GetExecutor(ctx, r.db)

	stampCreated(booking)
	id := uuid.NewString()

	query, args, err := postgres.Builder.Insert(TableName).
		Columns(
			"id",
			"doctor_id",
			"doctor_name",
			"patient_id",
			"patient_name",
			"patient_email",
			"patient_phone",
			"date",
			"start_time",
			"end_time",
			"service",
			"status",
			"price",
			"patient_notes",
			"doctor_notes",
			"created_at",
			"updated_at",
		).
		Values(
			id,
			booking.DoctorID,
			booking.DoctorName,
			booking.PatientID,
			booking.PatientName,
			booking.PatientEmail,
			booking.PatientPhone,
			booking.Date,
			booking.StartTime,
			booking.EndTime,
			booking.Service,
			booking.Status,
			booking.Price,
			booking.PatientNotes,
			booking.DoctorNotes,
			booking.CreatedAt,
			booking.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build booking insert: %w", err)
	}

	if _, err := executor.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	booking.ID = id
	return nil
}

func (r *postgresBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	bookings, err := r.query(ctx, postgres.Builder.Select(bookingColumns...).
		From(TableName).
		Where(squirrel.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	if len(bookings) == 0 {
		return nil, bookingserrors.ErrNotFound
	}
	return bookings[0], nil
}

func (r *postgresBookingRepository) ListActive(ctx context.Context, doctorID string, date string) ([]*model.Booking, error) {
	return r.ListActiveInRange(ctx, doctorID, date, date)
}

// ListActiveInRange locks the returned rows when called inside a transaction, so a concurrent
// transition cannot slip between the conflict check and the insert.
func (r *postgresBookingRepository) ListActiveInRange(ctx context.Context, doctorID string, from, to string) ([]*model.Booking, error) {
	q := postgres.Builder.Select(bookingColumns...).
		From(TableName).
		Where(squirrel.Eq{"doctor_id": doctorID, "status": statusStrings(model.ActiveStatuses)}).
		Where(squirrel.GtOrEq{"date": from}).
		Where(squirrel.LtOrEq{"date": to}).
		OrderBy("date ASC", "start_time ASC")

	if postgres.IsInTransaction(ctx) {
		q = q.Suffix("FOR UPDATE")
	}
	return r.query(ctx, q)
}

func (r *postgresBookingRepository) FindByDoctor(ctx context.Context, doctorID string, limit int, offset int64) ([]*model.Booking, error) {
	return r.query(ctx, r.page(squirrel.Eq{"doctor_id": doctorID}, limit, offset))
}

func (r *postgresBookingRepository) CountByDoctor(ctx context.Context, doctorID string) (int64, error) {
	return r.count(ctx, squirrel.Eq{"doctor_id": doctorID})
}

func (r *postgresBookingRepository) FindByPatient(ctx context.Context, patientID string, limit int, offset int64) ([]*model.Booking, error) {
	return r.query(ctx, r.page(squirrel.Eq{"patient_id": patientID}, limit, offset))
}

func (r *postgresBookingRepository) CountByPatient(ctx context.Context, patientID string) (int64, error) {
	return r.count(ctx, squirrel.Eq{"patient_id": patientID})
}

func (r *postgresBookingRepository) page(where squirrel.Eq, limit int, offset int64) squirrel.SelectBuilder {
	return postgres.Builder.Select(bookingColumns...).
		From(TableName).
		Where(where).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset))
}

func (r *postgresBookingRepository) count(ctx context.Context, where squirrel.Eq) (int64, error) {
	executor := postgres.GetExecutor(ctx, r.db)

	query, args, err := postgres.Builder.Select("COUNT(*)").From(TableName).Where(where).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build booking count: %w", err)
	}

	var n int64
	if err := executor.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return n, nil
}

func (r *postgresBookingRepository) UpdateStatus(ctx context.Context, booking *model.Booking, previous model.BookingStatus) error {
	if _, err := uuid.Parse(booking.ID); err != nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, booking.ID)
	}
	executor := postgres.GetExecutor(ctx, r.db)

	q := postgres.Builder.Update(TableName).
		Set("status", booking.Status).
		Set("updated_at", booking.UpdatedAt).
		Where(squirrel.Eq{"id": booking.ID, "status": previous})
	if booking.DoctorNotes != "" {
		q = q.Set("doctor_notes", booking.DoctorNotes)
	}
	if booking.PatientNotes != "" {
		q = q.Set("patient_notes", booking.PatientNotes)
	}

	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build booking status update: %w", err)
	}

	result, err := executor.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected > 0 {
		return nil
	}

	n, err := r.count(ctx, squirrel.Eq{"id": booking.ID})
	if err != nil {
		return err
	}
	if n == 0 {
		return bookingserrors.ErrNotFound
	}
	return fmt.Errorf("%w: %s is no longer %s", bookingserrors.ErrStatusChanged, booking.ID, previous)
}

func (r *postgresBookingRepository) Stats(ctx context.Context, doctorID string) (*model.DoctorStats, error) {
	executor := postgres.GetExecutor(ctx, r.db)

	query, args, err := postgres.Builder.Select("status", "COUNT(*)", "COALESCE(SUM(price), 0)").
		From(TableName).
		Where(squirrel.Eq{"doctor_id": doctorID}).
		GroupBy("status").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build booking stats query: %w", err)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query booking stats: %w", err)
	}
	defer rows.Close()

	stats := newStats(doctorID)
	for rows.Next() {
		var (
			status model.BookingStatus
			count  int64
			sum    int64
		)
		if err := rows.Scan(&status, &count, &sum); err != nil {
			return nil, fmt.Errorf("failed to scan booking stats: %w", err)
		}
		stats.add(status, count, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate booking stats: %w", err)
	}
	return stats.DoctorStats, nil
}

func (r *postgresBookingRepository) ExecuteTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}

func (r *postgresBookingRepository) query(ctx context.Context, q squirrel.SelectBuilder) ([]*model.Booking, error) {
	executor := postgres.GetExecutor(ctx, r.db)

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build booking query: %w", err)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	bookings := make([]*model.Booking, 0)
	for rows.Next() {
		var b model.Booking
		err := rows.Scan(
			&b.ID,
			&b.DoctorID,
			&b.DoctorName,
			&b.PatientID,
			&b.PatientName,
			&b.PatientEmail,
			&b.PatientPhone,
			&b.Date,
			&b.StartTime,
			&b.EndTime,
			&b.Service,
			&b.Status,
			&b.Price,
			&b.PatientNotes,
			&b.DoctorNotes,
			&b.CreatedAt,
			&b.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}

	return bookings, nil
}

func statusStrings(statuses []model.BookingStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
