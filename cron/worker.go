package cron

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"soko/config"
	bookingRepo "soko/database/repository/booking"
	"soko/services/booking"
	"soko/services/payment"
	"soko/utils"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// SweepInterval is how often stale pending bookings are persisted as expired
// and interrupted settlements retried. Availability math never waits for the
// sweep; it already discounts stale holds.
const SweepInterval = time.Minute

// SettlementRetryAge is how old a successful-but-unsettled payment must be
// before the sweep retries its settlement.
const SettlementRetryAge = 2 * time.Minute

// InitPaymentWorker runs the async worker and the periodic sweep in background.
func InitPaymentWorker(coordinator payment.SettlementCoordinator, bookings bookingRepo.BookingRepository) {
	redisOpts := asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}

	srv := asynq.NewServer(
		redisOpts,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(payment.TaskPollPayment, handlePollTask(coordinator))

	// Start async worker with retry logic.
	go func() {
		log.Println("[PaymentWorker] starting async worker...")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			if err := srv.Run(mux); err != nil {
				log.Printf("[PaymentWorker] attempt %d/%d failed to start worker: %v", attempts, maxAttempts, err)

				if attempts == maxAttempts {
					log.Fatal("[PaymentWorker] max retry attempts reached. Exiting.")
				}
				time.Sleep(time.Duration(attempts*2) * time.Second)
			} else {
				break
			}
		}
	}()

	go runSweep(coordinator, bookings)
}

func handlePollTask(coordinator payment.SettlementCoordinator) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p payment.PollPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			log.Printf("[PollHandler] invalid payload: %v", err)
			return err
		}
		// A non-nil return makes asynq retry with backoff, which doubles as
		// the re-poll schedule while the gateway is still processing.
		return coordinator.PollStatus(ctx, p.CheckoutRequestID)
	}
}

// runSweep periodically persists expired status on stale pending bookings and
// retries settlements that stopped between payment success and the settled
// stamp.
func runSweep(coordinator payment.SettlementCoordinator, bookings bookingRepo.BookingRepository) {
	logger := utils.GetLogger()
	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

		cutoff := time.Now().Add(-booking.HoldGracePeriod)
		if n, err := bookings.ExpireStalePending(ctx, cutoff); err != nil {
			logger.Error("sweep: failed to expire stale bookings", zap.Error(err))
		} else if n > 0 {
			logger.Info("sweep: expired stale pending bookings", zap.Int64("count", n))
		}

		if err := coordinator.RetrySettlement(ctx, time.Now().Add(-SettlementRetryAge)); err != nil {
			logger.Error("sweep: settlement retry pass failed", zap.Error(err))
		}

		cancel()
	}
}
