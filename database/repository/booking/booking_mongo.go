package bookingRepo

import (
	"context"
	"fmt"
	"time"

	"soko/database"
	"soko/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoBookingRepo implements BookingRepository using MongoDB.
type MongoBookingRepo struct {
	bookingColl *mongo.Collection
}

// NewMongoBookingRepo constructs a new instance of MongoBookingRepo.
func NewMongoBookingRepo() BookingRepository {
	db := database.DB()
	repo := &MongoBookingRepo{
		bookingColl: db.Collection("bookings"),
	}
	if err := repo.ensureIndexes(); err != nil {
		panic(fmt.Sprintf("booking repo: %v", err))
	}
	return repo
}

// GetBookingByID retrieves a booking document by ID.
func (repo *MongoBookingRepo) GetBookingByID(ctx context.Context, bookingID string) (*models.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var booking models.Booking
	filter := bson.M{"id": bookingID}
	if err := repo.bookingColl.FindOne(ctx, filter).Decode(&booking); err != nil {
		return nil, fmt.Errorf("error fetching booking with id %s: %w", bookingID, err)
	}
	return &booking, nil
}

// activeFilter matches bookings that still count toward slot occupancy.
func activeFilter(serviceID string, windowStart, windowEnd, pendingCutoff time.Time) bson.M {
	return bson.M{
		"service_id":     serviceID,
		"scheduled_at":   bson.M{"$lt": windowEnd},
		"occupied_until": bson.M{"$gt": windowStart},
		"$or": bson.A{
			bson.M{"status": bson.M{"$in": bson.A{models.BookingStatusConfirmed, models.BookingStatusCheckedIn}}},
			bson.M{"status": models.BookingStatusPending, "created_at": bson.M{"$gte": pendingCutoff}},
		},
	}
}

func (repo *MongoBookingRepo) ListActiveInRange(ctx context.Context, serviceID string, from, to time.Time, pendingCutoff time.Time) ([]models.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cursor, err := repo.bookingColl.Find(ctx, activeFilter(serviceID, from, to, pendingCutoff))
	if err != nil {
		return nil, fmt.Errorf("error fetching bookings for service %s: %w", serviceID, err)
	}
	defer cursor.Close(ctx)

	var bookings []models.Booking
	for cursor.Next(ctx) {
		var b models.Booking
		if err := cursor.Decode(&b); err != nil {
			return nil, fmt.Errorf("error decoding booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return bookings, nil
}

func (repo *MongoBookingRepo) CountActiveOverlapping(ctx context.Context, serviceID string, windowStart, windowEnd, pendingCutoff time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	count, err := repo.bookingColl.CountDocuments(ctx, activeFilter(serviceID, windowStart, windowEnd, pendingCutoff))
	if err != nil {
		return 0, fmt.Errorf("error counting overlapping bookings: %w", err)
	}
	return int(count), nil
}

// ReserveSlotTransactionally performs the capacity re-check and the insert in
// one mongo transaction, so two racing reservations cannot both observe free
// capacity and both insert.
func (repo *MongoBookingRepo) ReserveSlotTransactionally(ctx context.Context, booking *models.Booking, capacity int, overbook bool, pendingCutoff time.Time) error {
	client := repo.bookingColl.Database().Client()
	sess, err := client.StartSession()
	if err != nil {
		return fmt.Errorf("could not start mongo session: %w", err)
	}
	defer sess.EndSession(ctx)

	txnFn := func(sc mongo.SessionContext) error {
		if !overbook {
			count, err := repo.bookingColl.CountDocuments(sc,
				activeFilter(booking.ServiceID, booking.ScheduledAt, booking.OccupiedUntil, pendingCutoff))
			if err != nil {
				return fmt.Errorf("capacity re-check failed: %w", err)
			}
			if int(count) >= capacity {
				return ErrCapacityExhausted
			}
		}
		if _, err := repo.bookingColl.InsertOne(sc, booking); err != nil {
			return fmt.Errorf("insert booking failed: %w", err)
		}
		return nil
	}

	if err := mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
		if err := sc.StartTransaction(); err != nil {
			return err
		}
		if err := txnFn(sc); err != nil {
			_ = sc.AbortTransaction(sc)
			return err
		}
		return sc.CommitTransaction(sc)
	}); err != nil {
		return err
	}
	return nil
}

func (repo *MongoBookingRepo) UpdateStatusIf(ctx context.Context, bookingID string, from []string, to string, checkedInAt *time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"id": bookingID, "status": bson.M{"$in": from}}
	set := bson.M{"status": to, "updated_at": time.Now()}
	if checkedInAt != nil {
		set["checked_in_at"] = *checkedInAt
	}

	res, err := repo.bookingColl.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return false, fmt.Errorf("error updating booking %s status: %w", bookingID, err)
	}
	return res.MatchedCount > 0, nil
}

func (repo *MongoBookingRepo) ExpireStalePending(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	filter := bson.M{
		"status":     models.BookingStatusPending,
		"created_at": bson.M{"$lt": cutoff},
	}
	res, err := repo.bookingColl.UpdateMany(ctx, filter,
		bson.M{"$set": bson.M{"status": models.BookingStatusExpired, "updated_at": time.Now()}})
	if err != nil {
		return 0, fmt.Errorf("error expiring stale pending bookings: %w", err)
	}
	return res.ModifiedCount, nil
}
