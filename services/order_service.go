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
	aws_pkg "commerce-core/pkg/aws"
	"commerce-core/repository"
)

// Retry policy for optimistic-lock misses on status transitions. A conflict
// is a transient race, not a business-rule violation, so a few retries are
// expected to succeed.
const (
	conflictRetries = 3
	conflictBackoff = 50 * time.Millisecond
)

// OrderListResponse is a page of orders plus pagination metadata.
type OrderListResponse struct {
	Orders []models.Order `json:"orders"`
	Meta   MetaData       `json:"meta"`
}

// MetaData describes a result page.
type MetaData struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	TotalOrders int64 `json:"total_orders"`
	TotalPages  int64 `json:"total_pages"`
	HasMore     bool  `json:"has_more"`
}

// OrderService orchestrates order creation and lifecycle transitions. It is
// the only component that drives stock ledger mutations as a side effect of
// an order event.
type OrderService interface {
	CreateOrder(ctx context.Context, req *models.CreateOrderRequest) (*models.Order, *apperrors.Error)
	UpdateOrderStatus(ctx context.Context, orderID string, req *models.UpdateOrderStatusRequest) (*models.Order, *apperrors.Error)
	GetOrder(ctx context.Context, orderID string) (*models.Order, *apperrors.Error)
	ListOrders(ctx context.Context, customerID string, page, limit int) (*OrderListResponse, *apperrors.Error)
}

type orderServiceImpl struct {
	orderRepo       repository.OrderRepository
	productRepo     repository.ProductRepository
	customerRepo    repository.CustomerRepository
	reservationRepo repository.ReservationRepository
	tx              repository.TxRunner
	metrics         CustomerMetricsService
	cache           *cache.ProductCache
	producer        kafka.ProducerAPI
	snsClient       aws_pkg.SNSPublisher
	snsTopicArn     string
	reservationTTL  time.Duration
	logger          *zap.Logger
}

// NewOrderService creates a new OrderService.
func NewOrderService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	customerRepo repository.CustomerRepository,
	reservationRepo repository.ReservationRepository,
	tx repository.TxRunner,
	metrics CustomerMetricsService,
	productCache *cache.ProductCache,
	producer kafka.ProducerAPI,
	snsClient aws_pkg.SNSPublisher,
	snsTopicArn string,
	reservationTTL time.Duration,
	logger *zap.Logger,
) OrderService {
	return &orderServiceImpl{
		orderRepo:       orderRepo,
		productRepo:     productRepo,
		customerRepo:    customerRepo,
		reservationRepo: reservationRepo,
		tx:              tx,
		metrics:         metrics,
		cache:           productCache,
		producer:        producer,
		snsClient:       snsClient,
		snsTopicArn:     snsTopicArn,
		reservationTTL:  reservationTTL,
		logger:          logger,
	}
}

// CreateOrder validates customer eligibility, prices the items, then reserves
// stock for every line and persists the order inside one unit of work. The
// reservation pass is all-or-nothing: a shortage on any line releases what
// was already reserved for this order and aborts with InsufficientStock.
func (s *orderServiceImpl) CreateOrder(ctx context.Context, req *models.CreateOrderRequest) (*models.Order, *apperrors.Error) {
	customer, err := s.customerRepo.FindByID(ctx, req.CustomerID)
	if err != nil {
		return nil, asAppError(err, "Failed to fetch customer")
	}
	if !customer.CanPurchase() {
		return nil, apperrors.CustomerIneligible(customer.ID, "account is "+string(customer.Status))
	}

	order, buildErr := s.buildOrder(ctx, req.CustomerID, req.Items, req.PaymentMethod, req.ShippingAddress)
	if buildErr != nil {
		return nil, buildErr
	}

	txErr := s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		reserved := make([]models.OrderItem, 0, len(order.Items))
		for _, item := range order.Items {
			if err := s.productRepo.ReserveStock(txCtx, item.ProductID, item.QuantitySold); err != nil {
				// Compensate lines already reserved before surfacing the
				// failure; under a real transaction this is redundant, with
				// a saga-style runner it is what keeps line A untouched
				// when line B is short.
				s.releaseItems(txCtx, reserved)
				return err
			}
			reserved = append(reserved, item)
		}

		if err := s.reservationRepo.CreateMany(txCtx, s.claimsFor(order)); err != nil {
			s.releaseItems(txCtx, reserved)
			return err
		}
		if err := s.orderRepo.Create(txCtx, order); err != nil {
			s.releaseItems(txCtx, reserved)
			return err
		}
		return nil
	})
	if txErr != nil {
		return nil, asAppError(txErr, "Failed to create order")
	}

	s.invalidateProducts(ctx, order)
	s.publishEvent(ctx, models.EventOrderCreated, order, "")
	s.recomputeMetrics(ctx, order.CustomerID)

	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("customer_id", order.CustomerID),
		zap.Int("items", len(order.Items)),
		zap.Float64("total", order.TotalAmount))
	return order, nil
}

// buildOrder prices the requested items from the product collection and
// assembles a PENDING order with its initial timeline entry. Prices come from
// the store, never from the client.
func (s *orderServiceImpl) buildOrder(ctx context.Context, customerID string, items []models.OrderItemRequest, paymentMethod, shippingAddress string) (*models.Order, *apperrors.Error) {
	productIDs := make([]string, 0, len(items))
	for _, it := range items {
		productIDs = append(productIDs, it.ProductID)
	}
	products, err := s.productRepo.FindByIDs(ctx, productIDs)
	if err != nil {
		return nil, asAppError(err, "Failed to fetch products")
	}

	now := time.Now().UTC()
	order := &models.Order{
		ID:              uuid.NewString(),
		OrderNumber:     newOrderNumber(now),
		CustomerID:      customerID,
		Status:          models.OrderStatusPending,
		PaymentStatus:   models.PaymentStatusPending,
		PaymentMethod:   paymentMethod,
		ShippingAddress: shippingAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	for _, it := range items {
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
	order.AppendTimeline(models.OrderStatusPending, customerID, "order placed")
	return order, nil
}

// UpdateOrderStatus validates the requested transition, applies its ledger
// side effects and the order update in one unit of work, and retries a
// bounded number of times when a concurrent transition wins the optimistic
// lock.
func (s *orderServiceImpl) UpdateOrderStatus(ctx context.Context, orderID string, req *models.UpdateOrderStatusRequest) (*models.Order, *apperrors.Error) {
	if !models.IsValidOrderStatus(req.Status) {
		return nil, apperrors.Validation("unknown order status: " + string(req.Status))
	}

	var lastErr *apperrors.Error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * conflictBackoff)
		}

		order, svcErr := s.applyTransition(ctx, orderID, req)
		if svcErr == nil {
			return order, nil
		}
		if svcErr.Code != apperrors.CodeConcurrencyConflict {
			return nil, svcErr
		}
		lastErr = svcErr
		s.logger.Warn("Status transition lost optimistic lock, retrying",
			zap.String("order_id", orderID),
			zap.Int("attempt", attempt+1))
	}
	return nil, lastErr
}

func (s *orderServiceImpl) applyTransition(ctx context.Context, orderID string, req *models.UpdateOrderStatusRequest) (*models.Order, *apperrors.Error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, asAppError(err, "Failed to fetch order")
	}

	from, to := order.Status, req.Status
	if !models.CanTransition(from, to) {
		return nil, apperrors.InvalidTransition(string(from), string(to))
	}
	if to == models.OrderStatusCancelled && !order.CanBeCancelled() {
		return nil, apperrors.InvalidTransition(string(from), string(to))
	}
	if to == models.OrderStatusRefunded && !order.CanBeRefunded() {
		return nil, apperrors.InvalidTransition(string(from), string(to))
	}

	actor := req.Actor
	if actor == "" {
		actor = "admin"
	}

	upd := repository.StatusUpdate{
		Status: to,
		Timeline: models.TimelineEntry{
			Status:    to,
			Timestamp: time.Now().UTC(),
			Actor:     actor,
			Note:      req.Note,
		},
	}

	txErr := s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		switch to {
		case models.OrderStatusCancelled:
			if err := s.effectCancel(txCtx, order, &upd); err != nil {
				return err
			}
		case models.OrderStatusRefunded:
			if err := s.effectRefund(txCtx, order, &upd); err != nil {
				return err
			}
		case models.OrderStatusDelivered:
			if err := s.effectDeliver(txCtx, order, &upd); err != nil {
				return err
			}
		case models.OrderStatusFailed:
			failed := models.PaymentStatusFailed
			upd.PaymentStatus = &failed
			if err := s.effectCancelStock(txCtx, order); err != nil {
				return err
			}
		}
		return s.orderRepo.CompareAndSetStatus(txCtx, order.ID, from, upd)
	})
	if txErr != nil {
		return nil, asAppError(txErr, "Failed to update order status")
	}

	updated, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, asAppError(err, "Failed to reload order")
	}

	s.invalidateProducts(ctx, updated)
	s.publishEvent(ctx, models.EventOrderStatusChanged, updated, from)
	switch to {
	case models.OrderStatusDelivered, models.OrderStatusCancelled, models.OrderStatusRefunded:
		s.recomputeMetrics(ctx, updated.CustomerID)
	}

	s.logger.Info("Order status updated",
		zap.String("order_id", order.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("actor", actor))
	return updated, nil
}

// effectCancel releases every reserved line and, when the sale was already
// counted, takes it back out of the sales counters.
func (s *orderServiceImpl) effectCancel(ctx context.Context, order *models.Order, upd *repository.StatusUpdate) error {
	if err := s.effectCancelStock(ctx, order); err != nil {
		return err
	}
	if order.SalesCounted {
		for _, item := range order.Items {
			if err := s.productRepo.DecrementSalesCount(ctx, item.ProductID, item.QuantitySold); err != nil {
				return err
			}
		}
		counted := false
		upd.SalesCounted = &counted
	}
	return nil
}

func (s *orderServiceImpl) effectCancelStock(ctx context.Context, order *models.Order) error {
	claims, err := s.reservationRepo.ReleaseByOrder(ctx, order.ID)
	if err != nil {
		return err
	}
	released := make([]models.Reservation, 0, len(claims))
	for _, claim := range claims {
		if err := s.productRepo.ReleaseReservedStock(ctx, claim.ProductID, claim.Quantity); err != nil {
			s.reReserve(ctx, released)
			return err
		}
		released = append(released, claim)
	}
	return nil
}

// effectRefund releases whatever claims are still open. After a delivery the
// claims were already converted, so the release finds nothing and the refund
// is a pure payment/status change.
func (s *orderServiceImpl) effectRefund(ctx context.Context, order *models.Order, upd *repository.StatusUpdate) error {
	refunded := models.PaymentStatusRefunded
	upd.PaymentStatus = &refunded
	return s.effectCancelStock(ctx, order)
}

// effectDeliver converts the order's claims to sold, counts the sale and
// accrues loyalty points on the customer. Delivery also settles payment:
// refunds are only reachable for paid orders.
func (s *orderServiceImpl) effectDeliver(ctx context.Context, order *models.Order, upd *repository.StatusUpdate) error {
	paid := models.PaymentStatusPaid
	upd.PaymentStatus = &paid

	claims, err := s.reservationRepo.ConvertByOrder(ctx, order.ID)
	if err != nil {
		return err
	}
	for _, claim := range claims {
		if err := s.productRepo.ConvertReservedToSold(ctx, claim.ProductID, claim.Quantity); err != nil {
			return err
		}
	}
	for _, item := range order.Items {
		if err := s.productRepo.IncrementSalesCount(ctx, item.ProductID, item.QuantitySold); err != nil {
			return err
		}
	}
	counted := true
	upd.SalesCounted = &counted

	if order.CustomerID != "" {
		points := order.LoyaltyPointsEarned()
		if err := s.customerRepo.AddLoyaltyPoints(ctx, order.CustomerID, points); err != nil {
			// A vanished customer must not block the delivery itself.
			if apperrors.CodeOf(err) == apperrors.CodeCustomerNotFound {
				s.logger.Warn("Skipping loyalty accrual, customer missing",
					zap.String("order_id", order.ID),
					zap.String("customer_id", order.CustomerID))
				return nil
			}
			return err
		}
	}
	return nil
}

// GetOrder loads a single order.
func (s *orderServiceImpl) GetOrder(ctx context.Context, orderID string) (*models.Order, *apperrors.Error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, asAppError(err, "Failed to fetch order")
	}
	return order, nil
}

// ListOrders returns a page of orders, optionally scoped to one customer.
func (s *orderServiceImpl) ListOrders(ctx context.Context, customerID string, page, limit int) (*OrderListResponse, *apperrors.Error) {
	var (
		orders []models.Order
		total  int64
		err    error
	)
	if customerID != "" {
		orders, total, err = s.orderRepo.FindByCustomerID(ctx, customerID, page, limit)
	} else {
		orders, total, err = s.orderRepo.FindAll(ctx, page, limit)
	}
	if err != nil {
		return nil, asAppError(err, "Failed to fetch orders")
	}

	return &OrderListResponse{
		Orders: orders,
		Meta: MetaData{
			Page:        page,
			Limit:       limit,
			TotalOrders: total,
			TotalPages:  calculateTotalPages(total, limit),
			HasMore:     total > int64(page*limit),
		},
	}, nil
}

// claimsFor builds one reservation claim per order line.
func (s *orderServiceImpl) claimsFor(order *models.Order) []models.Reservation {
	now := time.Now().UTC()
	claims := make([]models.Reservation, 0, len(order.Items))
	for _, item := range order.Items {
		claims = append(claims, models.Reservation{
			ID:        uuid.NewString(),
			OrderID:   order.ID,
			ProductID: item.ProductID,
			Quantity:  item.QuantitySold,
			Status:    models.ReservationStatusReserved,
			ExpiresAt: now.Add(s.reservationTTL),
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return claims
}

// releaseItems issues inverse releases for already-reserved lines. Best
// effort: inside an aborting transaction the writes are discarded anyway.
func (s *orderServiceImpl) releaseItems(ctx context.Context, items []models.OrderItem) {
	for _, item := range items {
		if err := s.productRepo.ReleaseReservedStock(ctx, item.ProductID, item.QuantitySold); err != nil {
			s.logger.Error("Failed to release stock during rollback",
				zap.Error(err),
				zap.String("product_id", item.ProductID),
				zap.Int("quantity", item.QuantitySold))
		}
	}
}

// reReserve is the inverse of a partial release pass.
func (s *orderServiceImpl) reReserve(ctx context.Context, claims []models.Reservation) {
	for _, claim := range claims {
		if err := s.productRepo.ReserveStock(ctx, claim.ProductID, claim.Quantity); err != nil {
			s.logger.Error("Failed to re-reserve stock during rollback",
				zap.Error(err),
				zap.String("product_id", claim.ProductID),
				zap.Int("quantity", claim.Quantity))
		}
	}
}

func (s *orderServiceImpl) invalidateProducts(ctx context.Context, order *models.Order) {
	ids := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		ids = append(ids, item.ProductID)
	}
	s.cache.Invalidate(ctx, ids...)
}

// publishEvent emits the lifecycle event to Kafka and SNS. Both are
// fire-and-forget: a broker outage never rolls back a committed order.
func (s *orderServiceImpl) publishEvent(ctx context.Context, eventType string, order *models.Order, prev models.OrderStatus) {
	event := models.OrderEvent{
		EventType:   eventType,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		CustomerID:  order.CustomerID,
		Status:      order.Status,
		PrevStatus:  prev,
		TotalAmount: order.TotalAmount,
		OccurredAt:  time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("Failed to marshal order event", zap.Error(err), zap.String("order_id", order.ID))
		return
	}

	if s.producer != nil {
		if err := s.producer.Publish(ctx, order.ID, payload); err != nil {
			s.logger.Warn("Kafka publish failed", zap.Error(err), zap.String("order_id", order.ID))
		}
	}
	if s.snsClient != nil && s.snsTopicArn != "" {
		if err := s.snsClient.Publish(ctx, s.snsTopicArn, payload); err != nil {
			s.logger.Warn("SNS publish failed", zap.Error(err), zap.String("order_id", order.ID))
		}
	}
}

// recomputeMetrics refreshes the customer's denormalized aggregate. Purely a
// reporting convenience; failures are logged and never surfaced.
func (s *orderServiceImpl) recomputeMetrics(ctx context.Context, customerID string) {
	if s.metrics == nil || customerID == "" {
		return
	}
	if _, err := s.metrics.Recompute(ctx, customerID); err != nil {
		s.logger.Warn("Customer metrics recompute failed",
			zap.Error(err),
			zap.String("customer_id", customerID))
	}
}

func newOrderNumber(now time.Time) string {
	return "ORD-" + now.Format("20060102-150405") + "-" + uuid.NewString()[:8]
}

func calculateTotalPages(total int64, limit int) int64 {
	if limit == 0 {
		return 0
	}
	return (total + int64(limit) - 1) / int64(limit)
}
