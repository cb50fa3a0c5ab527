package services

import (
	"context"

	"go.uber.org/zap"

	apperrors "commerce-core/errors"
	"commerce-core/models"
	"commerce-core/repository"
)

// CustomerMetricsService maintains the denormalized purchase aggregate on a
// customer. Metrics are always recomputed by replaying the customer's full
// order history, never patched incrementally, so a repeated recompute for the
// same history is idempotent.
type CustomerMetricsService interface {
	GetCustomer(ctx context.Context, customerID string) (*models.Customer, *apperrors.Error)
	Recompute(ctx context.Context, customerID string) (*models.Customer, *apperrors.Error)
}

type customerMetricsServiceImpl struct {
	customerRepo repository.CustomerRepository
	orderRepo    repository.OrderRepository
	logger       *zap.Logger
}

// NewCustomerMetricsService creates a new CustomerMetricsService.
func NewCustomerMetricsService(
	customerRepo repository.CustomerRepository,
	orderRepo repository.OrderRepository,
	logger *zap.Logger,
) CustomerMetricsService {
	return &customerMetricsServiceImpl{
		customerRepo: customerRepo,
		orderRepo:    orderRepo,
		logger:       logger,
	}
}

// GetCustomer loads a customer with its current metrics.
func (s *customerMetricsServiceImpl) GetCustomer(ctx context.Context, customerID string) (*models.Customer, *apperrors.Error) {
	customer, err := s.customerRepo.FindByID(ctx, customerID)
	if err != nil {
		return nil, asAppError(err, "Failed to fetch customer")
	}
	return customer, nil
}

// Recompute replays the customer's order history into fresh metrics and
// persists them along with the loyalty tier derived from the current points
// balance.
//
// Counting rules: cancelled and failed orders never count as orders placed;
// refunded orders still count as placed but their amount leaves the spend
// totals.
func (s *customerMetricsServiceImpl) Recompute(ctx context.Context, customerID string) (*models.Customer, *apperrors.Error) {
	customer, err := s.customerRepo.FindByID(ctx, customerID)
	if err != nil {
		return nil, asAppError(err, "Failed to fetch customer")
	}

	orders, err := s.orderRepo.FindAllByCustomer(ctx, customerID)
	if err != nil {
		return nil, asAppError(err, "Failed to fetch order history")
	}

	metrics := replayMetrics(orders)
	tier := models.DeriveLoyaltyTier(metrics.TotalSpent)
	if err := s.customerRepo.UpdateMetrics(ctx, customerID, metrics, tier); err != nil {
		return nil, asAppError(err, "Failed to persist customer metrics")
	}

	customer.Metrics = metrics
	customer.LoyaltyTier = tier
	s.logger.Debug("Customer metrics recomputed",
		zap.String("customer_id", customerID),
		zap.Int("total_orders", metrics.TotalOrders),
		zap.Float64("total_spent", metrics.TotalSpent),
		zap.String("tier", string(tier)))
	return customer, nil
}

func replayMetrics(orders []models.Order) models.CustomerMetrics {
	var (
		metrics      models.CustomerMetrics
		revenueCount int
	)
	for i := range orders {
		order := &orders[i]
		switch order.Status {
		case models.OrderStatusCancelled:
			metrics.CancelledOrders++
			continue
		case models.OrderStatusFailed:
			continue
		}

		metrics.TotalOrders++
		if order.CreatedAt.After(metrics.LastOrderAt) {
			metrics.LastOrderAt = order.CreatedAt
		}

		if order.Status == models.OrderStatusRefunded {
			metrics.ReturnedOrders++
			continue
		}
		metrics.TotalSpent += order.TotalAmount
		revenueCount++
	}
	if revenueCount > 0 {
		metrics.AverageOrderValue = metrics.TotalSpent / float64(revenueCount)
	}
	return metrics
}
