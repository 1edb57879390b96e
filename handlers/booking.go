package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"soko/services/booking"
)

// BookingService is wired at startup in main.
var BookingService booking.BookingService

// bookingErrorStatus maps booking error codes to HTTP statuses.
func bookingErrorStatus(err error) int {
	switch {
	case booking.HasCode(err, booking.CodeSlotUnavailable),
		booking.HasCode(err, booking.CodeCancellationWindowClosed),
		booking.HasCode(err, booking.CodeInvalidTransition):
		return http.StatusConflict
	case booking.HasCode(err, booking.CodeServiceNotBookable),
		booking.HasCode(err, booking.CodeOutsideBookingWindow):
		return http.StatusUnprocessableEntity
	case booking.HasCode(err, booking.CodeNotAllowed):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// GetAvailability returns the bookable slots for a service in a window.
func GetAvailability(c *gin.Context) {
	serviceID := c.Param("id")
	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'from' timestamp, want RFC3339"})
		return
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'to' timestamp, want RFC3339"})
		return
	}
	if !to.After(from) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "'to' must be after 'from'"})
		return
	}

	slots, err := BookingService.ListAvailability(c.Request.Context(), serviceID, from, to)
	if err != nil {
		c.JSON(bookingErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"slots": slots})
}

// ReserveBooking places a pending hold on a slot for the authenticated customer.
func ReserveBooking(c *gin.Context) {
	customerID := c.GetString("customerID")
	var input struct {
		ServiceID string    `json:"service_id" binding:"required"`
		SlotStart time.Time `json:"slot_start" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	bk, err := BookingService.Reserve(c.Request.Context(), input.ServiceID, customerID, input.SlotStart)
	if err != nil {
		c.JSON(bookingErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"booking": bk})
}

// PayBooking triggers the mobile-money prompt for a pending booking.
func PayBooking(c *gin.Context) {
	customerID := c.GetString("customerID")
	bookingID := c.Param("id")
	var input struct {
		PhoneNumber string `json:"phone_number" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "details": err.Error()})
		return
	}

	payment, err := BookingService.ConfirmPayment(c.Request.Context(), bookingID, customerID, input.PhoneNumber)
	if err != nil {
		c.JSON(paymentErrorStatus(err, bookingErrorStatus(err)), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"payment_id":  payment.ID,
		"unique_code": payment.UniqueCode,
		"status":      payment.Status,
	})
}

// CancelBooking cancels a booking owned by the authenticated customer.
func CancelBooking(c *gin.Context) {
	customerID := c.GetString("customerID")
	bookingID := c.Param("id")

	bk, err := BookingService.Cancel(c.Request.Context(), bookingID, customerID)
	if err != nil {
		c.JSON(bookingErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": bk})
}

// CheckInBooking records arrival for a confirmed booking.
func CheckInBooking(c *gin.Context) {
	bookingID := c.Param("id")

	bk, err := BookingService.CheckIn(c.Request.Context(), bookingID)
	if err != nil {
		c.JSON(bookingErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": bk})
}
