package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"soko/config"
	"soko/cron"
	"soko/database"
	bookingRepoPkg "soko/database/repository/booking"
	catalogRepoPkg "soko/database/repository/catalog"
	customerRepoPkg "soko/database/repository/customer"
	paymentRepoPkg "soko/database/repository/payment"
	referralRepoPkg "soko/database/repository/referral"
	"soko/handlers"
	"soko/middleware"
	"soko/routes"
	"soko/services/booking"
	"soko/services/notification"
	"soko/services/payment"
	"soko/services/referral"
	"soko/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	database.InitDB()
	utils.InitCache()
	utils.FirebaseInit()

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())
	router.Use(middleware.RateLimitMiddleware())
	router.Use(cors.Default())

	// repositories.
	catalogRepo := catalogRepoPkg.NewMongoCatalogRepo()
	bookingRepo := bookingRepoPkg.NewMongoBookingRepo()
	paymentRepo := paymentRepoPkg.NewMongoPaymentRepo()
	referralRepo := referralRepoPkg.NewMongoReferralRepo()
	customerRepo := customerRepoPkg.NewMongoCustomerRepo()

	// services.
	notificationService := notification.NewDefaultService(customerRepo)

	ledger := &referral.DefaultLedger{
		Customers:      customerRepo,
		Earnings:       referralRepo,
		CommissionRate: config.AppConfig.ReferralCommissionRate,
	}

	gatewayCfg := config.Gateway()
	gatewayClient := payment.NewDarajaClient(gatewayCfg, utils.GetCacheClient())

	queueClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	})
	defer queueClient.Close()

	bookingService := &booking.DefaultBookingService{
		CatalogRepo: catalogRepo,
		BookingRepo: bookingRepo,
		Engine:      booking.NewReservationEngine(bookingRepo),
		Notifier:    notificationService,
	}

	coordinator := &payment.DefaultSettlementCoordinator{
		Gateway:   gatewayClient,
		Payments:  paymentRepo,
		Bookings:  bookingRepo,
		Settler:   bookingService,
		Ledger:    ledger,
		Notifier:  notificationService,
		Queue:     queueClient,
		PollDelay: gatewayCfg.PollDelay,
	}
	bookingService.Payments = coordinator

	// handlers.
	handlers.BookingService = bookingService
	handlers.Coordinator = coordinator
	handlers.PaymentRepo = paymentRepo
	handlers.ReferralRepo = referralRepo

	routes.RegisterRoutes(router)

	// background worker: gateway polling, stale-hold sweep, settlement retries.
	cron.InitPaymentWorker(coordinator, bookingRepo)

	// Start the HTTP server.
	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Fatalf("main: server forced to shutdown: %v", err)
	}

	logger.Sugar().Info("main: server stopped gracefully")
}
