package catalogRepo

import (
	"context"

	"soko/models"
)

// CatalogRepository exposes read access to the store service catalog. The
// booking core never writes services; merchant CRUD lives elsewhere.
type CatalogRepository interface {
	GetServiceByID(ctx context.Context, serviceID string) (*models.Service, error)
	ListServicesByStore(ctx context.Context, storeID string) ([]models.Service, error)
}
