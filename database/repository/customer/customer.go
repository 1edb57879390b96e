package customerRepo

import (
	"context"

	"soko/models"
)

// CustomerRepository exposes the minimal customer reads the booking core
// needs. Account management and authentication live elsewhere.
type CustomerRepository interface {
	GetCustomerByID(ctx context.Context, customerID string) (*models.Customer, error)
}
