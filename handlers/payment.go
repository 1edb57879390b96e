package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	paymentRepo "soko/database/repository/payment"
	referralRepo "soko/database/repository/referral"
	"soko/models"
	"soko/services/payment"
	"soko/utils"

	"go.uber.org/zap"
)

// Wired at startup in main.
var (
	Coordinator  payment.SettlementCoordinator
	PaymentRepo  paymentRepo.PaymentRepository
	ReferralRepo referralRepo.ReferralRepository
)

func paymentErrorStatus(err error, fallback int) int {
	if payment.HasCode(err, payment.ErrCodeGatewayUnavailable) {
		return http.StatusBadGateway
	}
	if payment.HasCode(err, payment.ErrCodePaymentNotFound) {
		return http.StatusNotFound
	}
	return fallback
}

// stkCallback is the gateway webhook envelope.
type stkCallback struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string      `json:"Name"`
					Value interface{} `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// paidAt extracts the transaction date from callback metadata, if present.
func (cb *stkCallback) paidAt() *time.Time {
	for _, item := range cb.Body.StkCallback.CallbackMetadata.Item {
		if item.Name != "TransactionDate" {
			continue
		}
		// The gateway sends the date as a numeric yyyymmddhhmmss value.
		num, ok := item.Value.(float64)
		if !ok {
			return nil
		}
		t, err := time.ParseInLocation("20060102150405", fmt.Sprintf("%.0f", num), time.Local)
		if err != nil {
			return nil
		}
		return &t
	}
	return nil
}

// GatewayCallback receives the asynchronous payment outcome from the gateway.
// The gateway expects a ResultCode 0 acknowledgement regardless of our own
// processing outcome; reconciliation failures are logged and retried by the
// poll task.
func GatewayCallback(c *gin.Context) {
	logger := utils.GetLogger()

	var cb stkCallback
	if err := c.ShouldBindJSON(&cb); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid callback payload"})
		return
	}

	outcome := models.PaymentOutcome{
		CheckoutRequestID: cb.Body.StkCallback.CheckoutRequestID,
		Success:           cb.Body.StkCallback.ResultCode == 0,
		ResultDesc:        cb.Body.StkCallback.ResultDesc,
		PaidAt:            cb.paidAt(),
	}
	if outcome.Success && outcome.PaidAt == nil {
		now := time.Now()
		outcome.PaidAt = &now
	}

	if err := Coordinator.Reconcile(c.Request.Context(), outcome); err != nil {
		logger.Error("callback reconciliation failed",
			zap.String("checkoutRequestID", outcome.CheckoutRequestID), zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
}

// GetPaymentStatus returns a payment looked up by its unique code.
func GetPaymentStatus(c *gin.Context) {
	code := c.Param("code")
	p, err := PaymentRepo.GetByUniqueCode(c.Request.Context(), code)
	if err != nil {
		utils.JSONError(c, http.StatusNotFound, "payment not found", code)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"booking_id":  p.BookingID,
		"unique_code": p.UniqueCode,
		"status":      p.Status,
		"amount":      p.Amount,
		"result_desc": p.ResultDesc,
		"settled":     p.SettledAt != nil,
	})
}

// GetReferralEarnings lists the authenticated customer's referral commissions.
func GetReferralEarnings(c *gin.Context) {
	customerID := c.GetString("customerID")
	earnings, err := ReferralRepo.ListByReferrer(c.Request.Context(), customerID)
	if err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "failed to list earnings", err.Error())
		return
	}
	var total float64
	for _, e := range earnings {
		total += e.Amount
	}
	c.JSON(http.StatusOK, gin.H{"earnings": earnings, "total": total})
}
