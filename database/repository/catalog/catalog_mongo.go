package catalogRepo

import (
	"context"
	"fmt"
	"time"

	"soko/database"
	"soko/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoCatalogRepo implements CatalogRepository using MongoDB.
type MongoCatalogRepo struct {
	serviceColl *mongo.Collection
}

// NewMongoCatalogRepo constructs a new instance of MongoCatalogRepo.
func NewMongoCatalogRepo() CatalogRepository {
	db := database.DB()
	return &MongoCatalogRepo{
		serviceColl: db.Collection("services"),
	}
}

// GetServiceByID retrieves a service document by ID.
func (repo *MongoCatalogRepo) GetServiceByID(ctx context.Context, serviceID string) (*models.Service, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var svc models.Service
	filter := bson.M{"id": serviceID}
	if err := repo.serviceColl.FindOne(ctx, filter).Decode(&svc); err != nil {
		return nil, fmt.Errorf("error fetching service with id %s: %w", serviceID, err)
	}
	return &svc, nil
}

// ListServicesByStore retrieves all services offered by a store.
func (repo *MongoCatalogRepo) ListServicesByStore(ctx context.Context, storeID string) ([]models.Service, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cursor, err := repo.serviceColl.Find(ctx, bson.M{"store_id": storeID})
	if err != nil {
		return nil, fmt.Errorf("error fetching services for store %s: %w", storeID, err)
	}
	defer cursor.Close(ctx)

	var services []models.Service
	for cursor.Next(ctx) {
		var svc models.Service
		if err := cursor.Decode(&svc); err != nil {
			return nil, fmt.Errorf("error decoding service: %w", err)
		}
		services = append(services, svc)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return services, nil
}
