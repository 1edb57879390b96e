package paymentRepo

import (
	"context"
	"fmt"
	"time"

	"soko/database"
	"soko/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoPaymentRepo implements PaymentRepository using MongoDB.
type MongoPaymentRepo struct {
	paymentColl *mongo.Collection
}

// NewMongoPaymentRepo constructs a new instance of MongoPaymentRepo.
func NewMongoPaymentRepo() PaymentRepository {
	db := database.DB()
	repo := &MongoPaymentRepo{
		paymentColl: db.Collection("payments"),
	}
	if err := repo.ensureIndexes(); err != nil {
		panic(fmt.Sprintf("payment repo: %v", err))
	}
	return repo
}

// ensureIndexes creates the uniqueness constraints reconciliation relies on:
// one document per gateway correlation id, one per unique code, and at most
// one successful payment per booking.
func (repo *MongoPaymentRepo) ensureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "checkout_request_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "unique_code", Value: 1}}, Options: options.Index().SetUnique(true)},
		{
			Keys: bson.D{{Key: "booking_id", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": models.PaymentStatusSuccessful}),
		},
	}

	_, err := repo.paymentColl.Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (repo *MongoPaymentRepo) CreatePayment(ctx context.Context, payment *models.Payment) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := repo.paymentColl.InsertOne(ctx, payment); err != nil {
		return fmt.Errorf("error creating payment: %w", err)
	}
	return nil
}

func (repo *MongoPaymentRepo) findOne(ctx context.Context, filter bson.M) (*models.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var payment models.Payment
	if err := repo.paymentColl.FindOne(ctx, filter).Decode(&payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (repo *MongoPaymentRepo) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.Payment, error) {
	payment, err := repo.findOne(ctx, bson.M{"checkout_request_id": checkoutRequestID})
	if err != nil {
		return nil, fmt.Errorf("error fetching payment for correlation id %s: %w", checkoutRequestID, err)
	}
	return payment, nil
}

func (repo *MongoPaymentRepo) GetByUniqueCode(ctx context.Context, code string) (*models.Payment, error) {
	payment, err := repo.findOne(ctx, bson.M{"unique_code": code})
	if err != nil {
		return nil, fmt.Errorf("error fetching payment for code %s: %w", code, err)
	}
	return payment, nil
}

func (repo *MongoPaymentRepo) GetByBookingID(ctx context.Context, bookingID string) (*models.Payment, error) {
	payment, err := repo.findOne(ctx, bson.M{"booking_id": bookingID})
	if err != nil {
		return nil, fmt.Errorf("error fetching payment for booking %s: %w", bookingID, err)
	}
	return payment, nil
}

func (repo *MongoPaymentRepo) MarkTerminal(ctx context.Context, checkoutRequestID, status, resultDesc string, paymentDate *time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"checkout_request_id": checkoutRequestID,
		"status":              models.PaymentStatusPending,
	}
	set := bson.M{"status": status, "result_desc": resultDesc, "updated_at": time.Now()}
	if paymentDate != nil {
		set["payment_date"] = *paymentDate
	}

	res, err := repo.paymentColl.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return false, fmt.Errorf("error marking payment %s terminal: %w", checkoutRequestID, err)
	}
	return res.MatchedCount > 0, nil
}

func (repo *MongoPaymentRepo) MarkSettled(ctx context.Context, paymentID string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := repo.paymentColl.UpdateOne(ctx,
		bson.M{"id": paymentID},
		bson.M{"$set": bson.M{"settled_at": at, "updated_at": time.Now()}})
	if err != nil {
		return fmt.Errorf("error marking payment %s settled: %w", paymentID, err)
	}
	return nil
}

func (repo *MongoPaymentRepo) FlagAnomaly(ctx context.Context, paymentID, desc string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := repo.paymentColl.UpdateOne(ctx,
		bson.M{"id": paymentID},
		bson.M{"$set": bson.M{"anomaly_flag": true, "result_desc": desc, "updated_at": time.Now()}})
	if err != nil {
		return fmt.Errorf("error flagging payment %s anomaly: %w", paymentID, err)
	}
	return nil
}

func (repo *MongoPaymentRepo) ListUnsettledSuccessful(ctx context.Context, olderThan time.Time) ([]models.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// Anomaly-flagged payments are parked for manual review, not retried.
	filter := bson.M{
		"status":       models.PaymentStatusSuccessful,
		"settled_at":   bson.M{"$exists": false},
		"anomaly_flag": bson.M{"$ne": true},
		"updated_at":   bson.M{"$lt": olderThan},
	}
	cursor, err := repo.paymentColl.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error fetching unsettled payments: %w", err)
	}
	defer cursor.Close(ctx)

	var payments []models.Payment
	for cursor.Next(ctx) {
		var p models.Payment
		if err := cursor.Decode(&p); err != nil {
			return nil, fmt.Errorf("error decoding payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return payments, nil
}
