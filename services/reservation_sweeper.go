package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	apperrors "commerce-core/errors"
	"commerce-core/models"
	"commerce-core/repository"
)

const sweepBatchSize = 100

// ReservationSweeper cancels orders whose stock claims have passed their
// expiry. Expired orders go through the normal cancellation path so every
// ledger side effect and audit entry applies exactly as if an operator had
// cancelled them.
type ReservationSweeper struct {
	reservations repository.ReservationRepository
	orders       OrderService
	interval     time.Duration
	logger       *zap.Logger
	stop         chan struct{}
	done         chan struct{}
}

// NewReservationSweeper creates a sweeper that runs every interval.
func NewReservationSweeper(
	reservations repository.ReservationRepository,
	orders OrderService,
	interval time.Duration,
	logger *zap.Logger,
) *ReservationSweeper {
	return &ReservationSweeper{
		reservations: reservations,
		orders:       orders,
		interval:     interval,
		logger:       logger,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start launches the sweep loop in its own goroutine.
func (s *ReservationSweeper) Start() {
	go s.run()
	s.logger.Info("Reservation sweeper started", zap.Duration("interval", s.interval))
}

// Stop signals the loop to exit and waits for the in-flight sweep to finish.
func (s *ReservationSweeper) Stop() {
	close(s.stop)
	<-s.done
	s.logger.Info("Reservation sweeper stopped")
}

func (s *ReservationSweeper) run() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.Sweep(context.Background())
		}
	}
}

// Sweep cancels one batch of orders with expired claims. Exported so an
// operator endpoint or a test can trigger a pass directly.
func (s *ReservationSweeper) Sweep(ctx context.Context) {
	orderIDs, err := s.reservations.FindExpiredOrders(ctx, sweepBatchSize)
	if err != nil {
		s.logger.Error("Expired reservation scan failed", zap.Error(err))
		return
	}
	if len(orderIDs) == 0 {
		return
	}

	s.logger.Info("Cancelling orders with expired reservations", zap.Int("count", len(orderIDs)))
	for _, orderID := range orderIDs {
		req := &models.UpdateOrderStatusRequest{
			Status: models.OrderStatusCancelled,
			Actor:  "system",
			Note:   "reservation expired",
		}
		if _, err := s.orders.UpdateOrderStatus(ctx, orderID, req); err != nil {
			// The order may have moved on between the scan and the cancel.
			// A transition rejection here means a racing operator won.
			switch err.Code {
			case apperrors.CodeInvalidTransition, apperrors.CodeOrderNotFound:
				s.logger.Debug("Skipping expired reservation, order already settled",
					zap.String("order_id", orderID),
					zap.String("code", err.Code))
			default:
				s.logger.Error("Failed to cancel expired order",
					zap.Error(err),
					zap.String("order_id", orderID))
			}
		}
	}
}
