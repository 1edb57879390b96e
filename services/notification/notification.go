package notification

import (
	"context"
	"fmt"

	customerRepo "soko/database/repository/customer"
	"soko/models"
	"soko/utils"

	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
)

// Service delivers fire-and-forget notifications after state transitions.
// Callers never depend on delivery mechanics; failures are logged, not
// propagated into the booking or payment flow.
type Service interface {
	Notify(ctx context.Context, event string, payload models.NotificationPayload) error
}

// DefaultService pushes over FCM when the customer has a token, otherwise it
// only logs the event.
type DefaultService struct {
	Customers customerRepo.CustomerRepository
}

func NewDefaultService(customers customerRepo.CustomerRepository) *DefaultService {
	return &DefaultService{Customers: customers}
}

func (s *DefaultService) Notify(ctx context.Context, event string, payload models.NotificationPayload) error {
	logger := utils.GetLogger()
	logger.Info("notify", zap.String("event", event), zap.String("customerID", payload.CustomerID), zap.String("body", payload.Body))

	if payload.CustomerID == "" || utils.FCMClient == nil {
		return nil
	}

	customer, err := s.Customers.GetCustomerByID(ctx, payload.CustomerID)
	if err != nil {
		return fmt.Errorf("notify %s: could not find customer %s: %w", event, payload.CustomerID, err)
	}
	if customer.FCMToken == "" {
		return nil
	}

	data := payload.Data
	if data == nil {
		data = map[string]string{}
	}
	data["event"] = event

	msg := &messaging.Message{
		Token: customer.FCMToken,
		Notification: &messaging.Notification{
			Title: payload.Title,
			Body:  payload.Body,
		},
		Data: data,
	}

	if _, err := utils.FCMClient.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify %s: failed to send FCM message: %w", event, err)
	}
	return nil
}
