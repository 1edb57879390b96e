package customerRepo

import (
	"context"
	"fmt"
	"time"

	"soko/database"
	"soko/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoCustomerRepo implements CustomerRepository using MongoDB.
type MongoCustomerRepo struct {
	customerColl *mongo.Collection
}

// NewMongoCustomerRepo constructs a new instance of MongoCustomerRepo.
func NewMongoCustomerRepo() CustomerRepository {
	db := database.DB()
	return &MongoCustomerRepo{
		customerColl: db.Collection("customers"),
	}
}

// GetCustomerByID retrieves a customer document by ID.
func (repo *MongoCustomerRepo) GetCustomerByID(ctx context.Context, customerID string) (*models.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var customer models.Customer
	filter := bson.M{"id": customerID}
	if err := repo.customerColl.FindOne(ctx, filter).Decode(&customer); err != nil {
		return nil, fmt.Errorf("error fetching customer with id %s: %w", customerID, err)
	}
	return &customer, nil
}
