package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bookingserrors "docslot/internal/bookings/errors"
	"docslot/pkg/model"
)

var t0 = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

func newBooking(doctorID, date, start, end string, status model.BookingStatus) *model.Booking {
	return &model.Booking{
		DoctorID:  doctorID,
		PatientID: "p1",
		Date:      date,
		StartTime: start,
		EndTime:   end,
		Service:   model.ServiceConsultation,
		Status:    status,
		Price:     1000,
		CreatedAt: t0,
	}
}

func TestMemoryRepository_CreateAndFind(t *testing.T) {
	repo := NewMemoryBookingRepository()
	ctx := context.Background()

	b := newBooking("d1", "2025-06-02", "09:00", "09:30", model.StatusPending)
	require.NoError(t, repo.Create(ctx, b))
	require.NotEmpty(t, b.ID)
	assert.Equal(t, b.CreatedAt, b.UpdatedAt)

	got, err := repo.FindByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "09:00", got.StartTime)

	got.Status = model.StatusCancelled
	again, _ := repo.FindByID(ctx, b.ID)
	assert.Equal(t, model.StatusPending, again.Status, "callers receive copies")

	_, err = repo.FindByID(ctx, "not-a-uuid")
	assert.True(t, errors.Is(err, bookingserrors.ErrInvalidID))

	_, err = repo.FindByID(ctx, uuid.NewString())
	assert.True(t, errors.Is(err, bookingserrors.ErrNotFound))
}

func TestMemoryRepository_ListActive(t *testing.T) {
	repo := NewMemoryBookingRepository()
	ctx := context.Background()

	for _, b := range []*model.Booking{
		newBooking("d1", "2025-06-02", "10:00", "10:30", model.StatusConfirmed),
		newBooking("d1", "2025-06-02", "09:00", "09:30", model.StatusPending),
		newBooking("d1", "2025-06-02", "11:00", "11:30", model.StatusCancelled),
		newBooking("d1", "2025-06-03", "09:00", "09:30", model.StatusPending),
		newBooking("d2", "2025-06-02", "09:00", "09:30", model.StatusPending),
	} {
		require.NoError(t, repo.Create(ctx, b))
	}

	active, err := repo.ListActive(ctx, "d1", "2025-06-02")
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "09:00", active[0].StartTime)
	assert.Equal(t, "10:00", active[1].StartTime)

	ranged, err := repo.ListActiveInRange(ctx, "d1", "2025-06-01", "2025-06-03")
	require.NoError(t, err)
	assert.Len(t, ranged, 3)
}

func TestMemoryRepository_PaginationNewestFirst(t *testing.T) {
	repo := NewMemoryBookingRepository()
	ctx := context.Background()

	for i := range 5 {
		b := newBooking("d1", "2025-06-02", model.FormatClock(540+30*i), model.FormatClock(570+30*i), model.StatusPending)
		b.CreatedAt = t0.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Create(ctx, b))
	}

	first, err := repo.FindByDoctor(ctx, "d1", 2, 0)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "11:00", first[0].StartTime)
	assert.Equal(t, "10:30", first[1].StartTime)

	last, err := repo.FindByDoctor(ctx, "d1", 2, 4)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, "09:00", last[0].StartTime)

	empty, err := repo.FindByDoctor(ctx, "d1", 2, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)

	n, err := repo.CountByPatient(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestMemoryRepository_UpdateStatusCompareAndSet(t *testing.T) {
	repo := NewMemoryBookingRepository()
	ctx := context.Background()

	b := newBooking("d1", "2025-06-02", "09:00", "09:30", model.StatusPending)
	require.NoError(t, repo.Create(ctx, b))

	next := *b
	next.Status = model.StatusConfirmed
	next.UpdatedAt = t0.Add(time.Hour)
	next.DoctorNotes = "bring reports"
	require.NoError(t, repo.UpdateStatus(ctx, &next, model.StatusPending))

	stale := *b
	stale.Status = model.StatusCancelled
	err := repo.UpdateStatus(ctx, &stale, model.StatusPending)
	assert.True(t, errors.Is(err, bookingserrors.ErrStatusChanged))

	got, _ := repo.FindByID(ctx, b.ID)
	assert.Equal(t, model.StatusConfirmed, got.Status)
	assert.Equal(t, "bring reports", got.DoctorNotes)

	missing := *b
	missing.ID = uuid.NewString()
	assert.True(t, errors.Is(repo.UpdateStatus(ctx, &missing, model.StatusPending), bookingserrors.ErrNotFound))
}

func TestMemoryRepository_Stats(t *testing.T) {
	repo := NewMemoryBookingRepository()
	ctx := context.Background()

	for _, s := range []model.BookingStatus{model.StatusCompleted, model.StatusCompleted, model.StatusCancelled, model.StatusPending} {
		require.NoError(t, repo.Create(ctx, newBooking("d1", "2025-06-02", "09:00", "09:30", s)))
	}

	stats, err := repo.Stats(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.Total)
	assert.Equal(t, int64(2000), stats.Earnings)
	assert.Equal(t, int64(2), stats.ByStatus[model.StatusCompleted])
	assert.Equal(t, int64(0), stats.ByStatus[model.StatusNoShow], "every status is reported")
}

func newPostgresRepo(t *testing.T) (BookingRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewPostgresBookingRepository(db), mock
}

var rowColumns = []string{
	"id", "doctor_id", "doctor_name", "patient_id", "patient_name", "patient_email", "patient_phone",
	"date", "start_time", "end_time", "service", "status", "price", "patient_notes", "doctor_notes",
	"created_at", "updated_at",
}

func bookingRow(rows *sqlmock.Rows, id, start, end string, status model.BookingStatus) *sqlmock.Rows {
	return rows.AddRow(id, "d1", "Dr. Rahman", "p1", "", "", "", "2025-06-02", start, end,
		"consultation", string(status), int64(1000), "", "", t0, t0)
}

func TestPostgresRepository_Create(t *testing.T) {
	repo, mock := newPostgresRepo(t)

	mock.ExpectExec(`INSERT INTO bookings \(id,doctor_id,`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	b := newBooking("d1", "2025-06-02", "09:00", "09:30", model.StatusPending)
	require.NoError(t, repo.Create(context.Background(), b))

	_, err := uuid.Parse(b.ID)
	assert.NoError(t, err)
}

func TestPostgresRepository_FindByID(t *testing.T) {
	repo, mock := newPostgresRepo(t)
	ctx := context.Background()
	id := uuid.NewString()

	mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(bookingRow(sqlmock.NewRows(rowColumns), id, "09:00", "09:30", model.StatusConfirmed))

	got, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, model.StatusConfirmed, got.Status)
	assert.Equal(t, model.ServiceConsultation, got.Service)
	assert.Equal(t, "2025-06-02", got.Date)

	missing := uuid.NewString()
	mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id = \$1`).
		WithArgs(missing).
		WillReturnRows(sqlmock.NewRows(rowColumns))

	_, err = repo.FindByID(ctx, missing)
	assert.True(t, errors.Is(err, bookingserrors.ErrNotFound))

	_, err = repo.FindByID(ctx, "42")
	assert.True(t, errors.Is(err, bookingserrors.ErrInvalidID), "malformed ids never reach the database")
}

func TestPostgresRepository_ListActiveLocksRowsInsideTransaction(t *testing.T) {
	repo, mock := newPostgresRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE doctor_id = \$1 AND status IN \(\$2,\$3\)(.+)ORDER BY date ASC, start_time ASC FOR UPDATE`).
		WithArgs("d1", "pending", "confirmed", "2025-06-02", "2025-06-02").
		WillReturnRows(bookingRow(sqlmock.NewRows(rowColumns), uuid.NewString(), "09:00", "09:30", model.StatusPending))
	mock.ExpectCommit()

	var active []*model.Booking
	err := repo.ExecuteTransaction(context.Background(), func(ctx context.Context) error {
		var err error
		active, err = repo.ListActive(ctx, "d1", "2025-06-02")
		return err
	})
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestPostgresRepository_TransactionRollsBackOnError(t *testing.T) {
	repo, mock := newPostgresRepo(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := repo.ExecuteTransaction(context.Background(), func(context.Context) error { return boom })
	assert.True(t, errors.Is(err, boom))
}

func TestPostgresRepository_UpdateStatus(t *testing.T) {
	repo, mock := newPostgresRepo(t)
	ctx := context.Background()

	b := newBooking("d1", "2025-06-02", "09:00", "09:30", model.StatusConfirmed)
	b.ID = uuid.NewString()
	b.UpdatedAt = t0.Add(time.Hour)

	mock.ExpectExec(`UPDATE bookings SET status = \$1, updated_at = \$2 WHERE id = \$3 AND status = \$4`).
		WithArgs("confirmed", sqlmock.AnyArg(), b.ID, "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateStatus(ctx, b, model.StatusPending))

	mock.ExpectExec(`UPDATE bookings SET status`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM bookings WHERE id = \$1`).
		WithArgs(b.ID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))

	err := repo.UpdateStatus(ctx, b, model.StatusPending)
	assert.True(t, errors.Is(err, bookingserrors.ErrStatusChanged))
}

func TestPostgresRepository_Stats(t *testing.T) {
	repo, mock := newPostgresRepo(t)

	mock.ExpectQuery(`SELECT status, COUNT\(\*\), COALESCE\(SUM\(price\), 0\) FROM bookings WHERE doctor_id = \$1 GROUP BY status`).
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count", "sum"}).
			AddRow("completed", int64(3), int64(4500)).
			AddRow("cancelled", int64(1), int64(1500)))

	stats, err := repo.Stats(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.Total)
	assert.Equal(t, int64(4500), stats.Earnings)
	assert.Equal(t, int64(1), stats.ByStatus[model.StatusCancelled])
}
