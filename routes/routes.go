package routes

import (
	"github.com/gin-gonic/gin"

	"soko/handlers"
	"soko/middleware"
)

// RegisterRoutes wires all HTTP endpoints.
func RegisterRoutes(r *gin.Engine) {
	services := r.Group("/api/services")
	{
		services.GET("/:id/availability", handlers.GetAvailability)
	}

	bookings := r.Group("/api/bookings")
	bookings.Use(middleware.CustomerAuthMiddleware())
	{
		bookings.POST("", handlers.ReserveBooking)
		bookings.POST("/:id/pay", handlers.PayBooking)
		bookings.POST("/:id/cancel", handlers.CancelBooking)
		bookings.POST("/:id/checkin", handlers.CheckInBooking)
	}

	payments := r.Group("/api/payments")
	{
		// The gateway posts outcomes here; it cannot carry our auth.
		payments.POST("/callback", handlers.GatewayCallback)
		payments.GET("/:code", middleware.CustomerAuthMiddleware(), handlers.GetPaymentStatus)
	}

	referrals := r.Group("/api/referrals")
	referrals.Use(middleware.CustomerAuthMiddleware())
	{
		referrals.GET("/earnings", handlers.GetReferralEarnings)
	}
}
