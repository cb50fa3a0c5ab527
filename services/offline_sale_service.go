package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"commerce-core/cache"
	apperrors "commerce-core/errors"
	"commerce-core/kafka"
	"commerce-core/models"
	"commerce-core/repository"
)

// OfflineSaleService records sales that already happened at a point of sale.
// There is no reservation phase: the goods left the shelf, so the ledger is
// decremented directly and the order lands terminal in a single step.
type OfflineSaleService interface {
	RecordOfflineSale(ctx context.Context, req *models.OfflineSaleRequest) (*models.Order, *apperrors.Error)
}

type offlineSaleServiceImpl struct {
	orderRepo    repository.OrderRepository
	productRepo  repository.ProductRepository
	customerRepo repository.CustomerRepository
	tx           repository.TxRunner
	metrics      CustomerMetricsService
	cache        *cache.ProductCache
	producer     kafka.ProducerAPI
	logger       *zap.Logger
}

// NewOfflineSaleService creates a new OfflineSaleService.
func NewOfflineSaleService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	customerRepo repository.CustomerRepository,
	tx repository.TxRunner,
	metrics CustomerMetricsService,
	productCache *cache.ProductCache,
	producer kafka.ProducerAPI,
	logger *zap.Logger,
) OfflineSaleService {
	return &offlineSaleServiceImpl{
		orderRepo:    orderRepo,
		productRepo:  productRepo,
		customerRepo: customerRepo,
		tx:           tx,
		metrics:      metrics,
		cache:        productCache,
		producer:     producer,
		logger:       logger,
	}
}

// RecordOfflineSale prices the sold items, verifies availability against
// outstanding reservations, decrements the ledger and persists a DELIVERED,
// PAID order in one unit of work. The customer is optional; when known they
// get loyalty points and a metrics refresh.
func (s *offlineSaleServiceImpl) RecordOfflineSale(ctx context.Context, req *models.OfflineSaleRequest) (*models.Order, *apperrors.Error) {
	if req.CustomerID != "" {
		if _, err := s.customerRepo.FindByID(ctx, req.CustomerID); err != nil {
			return nil, asAppError(err, "Failed to fetch customer")
		}
	}

	productIDs := make([]string, 0, len(req.Items))
	for _, it := range req.Items {
		productIDs = append(productIDs, it.ProductID)
	}
	products, err := s.productRepo.FindByIDs(ctx, productIDs)
	if err != nil {
		return nil, asAppError(err, "Failed to fetch products")
	}

	now := time.Now().UTC()
	order := &models.Order{
		ID:            uuid.NewString(),
		OrderNumber:   newOrderNumber(now),
		CustomerID:    req.CustomerID,
		CustomerName:  req.CustomerName,
		Status:        models.OrderStatusDelivered,
		PaymentStatus: models.PaymentStatusPaid,
		PaymentMethod: req.PaymentMethod,
		Offline:       true,
		SalesCounted:  true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, it := range req.Items {
		product, ok := products[it.ProductID]
		if !ok {
			return nil, apperrors.ProductNotFound(it.ProductID)
		}
		order.Items = append(order.Items, models.OrderItem{
			ProductID:    product.ID,
			SKU:          product.SKU,
			Name:         product.Name,
			QuantitySold: it.Quantity,
			UnitPrice:    product.Price,
		})
	}
	order.ComputeTotals()
	order.AppendTimeline(models.OrderStatusDelivered, "pos", "sale recorded at point of sale")

	txErr := s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		var deducted, counted []models.OrderItem
		rollback := func() {
			s.restoreStock(txCtx, deducted)
			s.restoreSalesCounts(txCtx, counted)
		}
		for _, item := range order.Items {
			product, err := s.productRepo.FindByID(txCtx, item.ProductID)
			if err != nil {
				rollback()
				return err
			}
			if product.TrackInventory {
				// Units promised to open online orders are not sellable
				// over the counter.
				if !product.AllowBackorder && product.Available() < item.QuantitySold {
					rollback()
					return apperrors.InsufficientStock(item.ProductID, item.QuantitySold, product.Available())
				}
				if err := s.productRepo.AdjustStock(txCtx, item.ProductID, item.QuantitySold, models.AdjustOpSubtract); err != nil {
					rollback()
					return err
				}
				deducted = append(deducted, item)
			}
			if err := s.productRepo.IncrementSalesCount(txCtx, item.ProductID, item.QuantitySold); err != nil {
				rollback()
				return err
			}
			counted = append(counted, item)
		}

		if err := s.orderRepo.Create(txCtx, order); err != nil {
			rollback()
			return err
		}

		if req.CustomerID != "" {
			if err := s.customerRepo.AddLoyaltyPoints(txCtx, req.CustomerID, order.LoyaltyPointsEarned()); err != nil {
				// A vanished customer must not void a sale that already
				// happened at the counter.
				if apperrors.CodeOf(err) == apperrors.CodeCustomerNotFound {
					s.logger.Warn("Skipping loyalty accrual, customer missing",
						zap.String("order_id", order.ID),
						zap.String("customer_id", req.CustomerID))
					return nil
				}
				rollback()
				return err
			}
		}
		return nil
	})
	if txErr != nil {
		return nil, asAppError(txErr, "Failed to record offline sale")
	}

	ids := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		ids = append(ids, item.ProductID)
	}
	s.cache.Invalidate(ctx, ids...)
	s.publishSale(ctx, order)
	if req.CustomerID != "" && s.metrics != nil {
		if _, err := s.metrics.Recompute(ctx, req.CustomerID); err != nil {
			s.logger.Warn("Customer metrics recompute failed",
				zap.Error(err),
				zap.String("customer_id", req.CustomerID))
		}
	}

	s.logger.Info("Offline sale recorded",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Int("items", len(order.Items)),
		zap.Float64("total", order.TotalAmount))
	return order, nil
}

// restoreStock adds back quantity for already-deducted lines. Best effort:
// under a real transaction the abort discards everything anyway.
func (s *offlineSaleServiceImpl) restoreStock(ctx context.Context, items []models.OrderItem) {
	for _, item := range items {
		if err := s.productRepo.AdjustStock(ctx, item.ProductID, item.QuantitySold, models.AdjustOpAdd); err != nil {
			s.logger.Error("Failed to roll back stock deduction",
				zap.Error(err),
				zap.String("product_id", item.ProductID),
				zap.Int("quantity", item.QuantitySold))
		}
	}
}

func (s *offlineSaleServiceImpl) restoreSalesCounts(ctx context.Context, items []models.OrderItem) {
	for _, item := range items {
		if err := s.productRepo.DecrementSalesCount(ctx, item.ProductID, item.QuantitySold); err != nil {
			s.logger.Error("Failed to roll back sales count",
				zap.Error(err),
				zap.String("product_id", item.ProductID))
		}
	}
}

func (s *offlineSaleServiceImpl) publishSale(ctx context.Context, order *models.Order) {
	if s.producer == nil {
		return
	}
	event := models.OrderEvent{
		EventType:   models.EventOfflineSaleRecord,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		CustomerID:  order.CustomerID,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
		OccurredAt:  time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("Failed to marshal sale event", zap.Error(err), zap.String("order_id", order.ID))
		return
	}
	if err := s.producer.Publish(ctx, order.ID, payload); err != nil {
		s.logger.Warn("Kafka publish failed", zap.Error(err), zap.String("order_id", order.ID))
	}
}
