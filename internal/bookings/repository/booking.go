package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	bookingserrors "docslot/internal/bookings/errors"
	"docslot/pkg/config"
	mongotx "docslot/pkg/db/mongo"
	"docslot/pkg/model"
)

const (
	CollectionName = "Bookings"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	// ListActive returns the doctor's pending and confirmed bookings on date, ordered by start time.
	ListActive(ctx context.Context, doctorID string, date string) ([]*model.Booking, error)
	// ListActiveInRange is ListActive over the inclusive date range [from, to].
	ListActiveInRange(ctx context.Context, doctorID string, from, to string) ([]*model.Booking, error)
	FindByDoctor(ctx context.Context, doctorID string, limit int, offset int64) ([]*model.Booking, error)
	CountByDoctor(ctx context.Context, doctorID string) (int64, error)
	FindByPatient(ctx context.Context, patientID string, limit int, offset int64) ([]*model.Booking, error)
	CountByPatient(ctx context.Context, patientID string) (int64, error)
	// UpdateStatus persists booking's status, notes and updated_at, but only while the stored
	// status still equals previous. Otherwise it returns ErrStatusChanged.
	UpdateStatus(ctx context.Context, booking *model.Booking, previous model.BookingStatus) error
	Stats(ctx context.Context, doctorID string) (*model.DoctorStats, error)
	ExecuteTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type mongoBookingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout if not already in a transaction.
// A SessionContext is returned unchanged: wrapping it would detach the operation from its session.
func (r *mongoBookingRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline && time.Until(deadline) < timeout {
		return context.WithDeadline(ctx, deadline)
	}

	return context.WithTimeout(ctx, timeout)
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	stampCreated(booking)
	result, err := r.collection.InsertOne(ctx, booking)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		booking.ID = oid.Hex()
	}
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	var booking model.Booking
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}

	return &booking, nil
}

func (r *mongoBookingRepository) ListActive(ctx context.Context, doctorID string, date string) ([]*model.Booking, error) {
	return r.ListActiveInRange(ctx, doctorID, date, date)
}

func (r *mongoBookingRepository) ListActiveInRange(ctx context.Context, doctorID string, from, to string) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"doctor_id": doctorID,
		"status":    bson.M{"$in": model.ActiveStatuses},
	}
	if from == to {
		filter["date"] = from
	} else {
		filter["date"] = bson.M{"$gte": from, "$lte": to}
	}

	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "start_time", Value: 1}})
	return r.find(ctx, filter, opts)
}

func (r *mongoBookingRepository) FindByDoctor(ctx context.Context, doctorID string, limit int, offset int64) ([]*model.Booking, error) {
	return r.findPage(ctx, bson.M{"doctor_id": doctorID}, limit, offset)
}

func (r *mongoBookingRepository) CountByDoctor(ctx context.Context, doctorID string) (int64, error) {
	return r.count(ctx, bson.M{"doctor_id": doctorID})
}

func (r *mongoBookingRepository) FindByPatient(ctx context.Context, patientID string, limit int, offset int64) ([]*model.Booking, error) {
	return r.findPage(ctx, bson.M{"patient_id": patientID}, limit, offset)
}

func (r *mongoBookingRepository) CountByPatient(ctx context.Context, patientID string) (int64, error) {
	return r.count(ctx, bson.M{"patient_id": patientID})
}

func (r *mongoBookingRepository) findPage(ctx context.Context, filter bson.M, limit int, offset int64) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	return r.find(ctx, filter, opts)
}

func (r *mongoBookingRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.Booking, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	bookings := make([]*model.Booking, 0)
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}

	return bookings, nil
}

func (r *mongoBookingRepository) count(ctx context.Context, filter bson.M) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

func (r *mongoBookingRepository) UpdateStatus(ctx context.Context, booking *model.Booking, previous model.BookingStatus) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(booking.ID)
	if err != nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, booking.ID)
	}

	set := bson.M{
		"status":     booking.Status,
		"updated_at": booking.UpdatedAt,
	}
	if booking.DoctorNotes != "" {
		set["doctor_notes"] = booking.DoctorNotes
	}
	if booking.PatientNotes != "" {
		set["patient_notes"] = booking.PatientNotes
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID, "status": previous}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	if result.MatchedCount > 0 {
		return nil
	}

	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to check booking existence: %w", err)
	}
	if n == 0 {
		return bookingserrors.ErrNotFound
	}
	return fmt.Errorf("%w: %s is no longer %s", bookingserrors.ErrStatusChanged, booking.ID, previous)
}

type statusBucket struct {
	Status model.BookingStatus `bson:"_id"`
	Count  int64               `bson:"count"`
	Sum    int64               `bson:"sum"`
}

func (r *mongoBookingRepository) Stats(ctx context.Context, doctorID string) (*model.DoctorStats, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"doctor_id": doctorID}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$status",
			"count": bson.M{"$sum": 1},
			"sum":   bson.M{"$sum": "$price"},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate booking stats: %w", err)
	}
	defer cursor.Close(ctx)

	var buckets []statusBucket
	if err := cursor.All(ctx, &buckets); err != nil {
		return nil, fmt.Errorf("failed to decode booking stats: %w", err)
	}

	stats := newStats(doctorID)
	for _, b := range buckets {
		stats.add(b.Status, b.Count, b.Sum)
	}
	return stats.DoctorStats, nil
}

func (r *mongoBookingRepository) ExecuteTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}

func stampCreated(b *model.Booking) {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	b.CreatedAt = b.CreatedAt.Truncate(time.Millisecond)
	if b.UpdatedAt.IsZero() || b.UpdatedAt.Before(b.CreatedAt) {
		b.UpdatedAt = b.CreatedAt
	}
}

type statsBuilder struct {
	*model.DoctorStats
}

func newStats(doctorID string) statsBuilder {
	byStatus := make(map[model.BookingStatus]int64, len(model.AllStatuses))
	for _, s := range model.AllStatuses {
		byStatus[s] = 0
	}
	return statsBuilder{&model.DoctorStats{DoctorID: doctorID, ByStatus: byStatus}}
}

// add folds one status bucket in. Only completed bookings count towards earnings.
func (s statsBuilder) add(status model.BookingStatus, count, priceSum int64) {
	s.ByStatus[status] += count
	s.Total += count
	if status == model.StatusCompleted {
		s.Earnings += priceSum
	}
}
