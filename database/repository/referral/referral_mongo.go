package referralRepo

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

// MongoReferralRepo implements ReferralRepository using MongoDB.
type MongoReferralRepo struct {
	earningColl *mongo.Collection
}

// NewMongoReferralRepo constructs a new instance of MongoReferralRepo.
func NewMongoReferralRepo() ReferralRepository {
	db := database.DB()
	repo := &MongoReferralRepo{
		earningColl: db.Collection("referral_earnings"),
	}
	if err := repo.ensureIndexes(); err != nil {
		panic(fmt.Sprintf("referral repo: %v", err))
	}
	return repo
}

func (repo *MongoReferralRepo) ensureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "booking_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "referrer_id", Value: 1}, {Key: "created_at", Value: -1}}},
	}

	_, err := repo.earningColl.Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (repo *MongoReferralRepo) CreateEarning(ctx context.Context, earning *models.ReferralEarning) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := repo.earningColl.InsertOne(ctx, earning); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrAlreadyCredited
		}
		return fmt.Errorf("error creating referral earning: %w", err)
	}
	return nil
}

func (repo *MongoReferralRepo) GetByBookingID(ctx context.Context, bookingID string) (*models.ReferralEarning, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var earning models.ReferralEarning
	if err := repo.earningColl.FindOne(ctx, bson.M{"booking_id": bookingID}).Decode(&earning); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("error fetching earning for booking %s: %w", bookingID, err)
	}
	return &earning, nil
}

func (repo *MongoReferralRepo) ListByReferrer(ctx context.Context, referrerID string) ([]models.ReferralEarning, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cursor, err := repo.earningColl.Find(ctx, bson.M{"referrer_id": referrerID})
	if err != nil {
		return nil, fmt.Errorf("error fetching earnings for referrer %s: %w", referrerID, err)
	}
	defer cursor.Close(ctx)

	var earnings []models.ReferralEarning
	for cursor.Next(ctx) {
		var e models.ReferralEarning
		if err := cursor.Decode(&e); err != nil {
			return nil, fmt.Errorf("error decoding earning: %w", err)
		}
		earnings = append(earnings, e)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return earnings, nil
}
