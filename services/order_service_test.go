package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"commerce-core/cache"
	apperrors "commerce-core/errors"
	"commerce-core/models"
	"commerce-core/services"
)

// --- Helpers ---

type harness struct {
	products  *mockProductRepo
	orders    *mockOrderRepo
	customers *mockCustomerRepo
	claims    *mockReservationRepo
	producer  *mockProducer
	sns       *mockSNSPublisher
	orderSvc  services.OrderService
	metrics   services.CustomerMetricsService
}

func newHarness() *harness {
	logger := zap.NewNop()
	h := &harness{
		products:  newMockProductRepo(),
		orders:    newMockOrderRepo(),
		customers: newMockCustomerRepo(),
		claims:    newMockReservationRepo(),
		producer:  &mockProducer{},
		sns:       &mockSNSPublisher{},
	}
	h.metrics = services.NewCustomerMetricsService(h.customers, h.orders, logger)
	h.orderSvc = services.NewOrderService(
		h.orders,
		h.products,
		h.customers,
		h.claims,
		&mockTxRunner{},
		h.metrics,
		cache.NewProductCache(nil, logger),
		h.producer,
		h.sns,
		"arn:aws:sns:us-east-1:000000000000:order-events",
		30*time.Minute,
		logger,
	)
	return h
}

func (h *harness) seedProduct(id string, price float64, qty int) {
	h.products.put(&models.Product{
		ID:                id,
		SKU:               "SKU-" + id,
		Name:              "Product " + id,
		Price:             price,
		Quantity:          qty,
		LowStockThreshold: 2,
		TrackInventory:    true,
	})
}

func (h *harness) seedCustomer(id string, status models.CustomerStatus) {
	h.customers.put(&models.Customer{ID: id, Status: status})
}

func (h *harness) createOrder(t *testing.T, customerID string, items ...models.OrderItemRequest) *models.Order {
	t.Helper()
	order, svcErr := h.orderSvc.CreateOrder(context.Background(), &models.CreateOrderRequest{
		CustomerID:    customerID,
		Items:         items,
		PaymentMethod: "card",
	})
	assert.Nil(t, svcErr)
	assert.NotNil(t, order)
	return order
}

func (h *harness) advance(t *testing.T, orderID string, statuses ...models.OrderStatus) *models.Order {
	t.Helper()
	var order *models.Order
	for _, st := range statuses {
		var svcErr *apperrors.Error
		order, svcErr = h.orderSvc.UpdateOrderStatus(context.Background(), orderID, &models.UpdateOrderStatusRequest{
			Status: st,
		})
		assert.Nil(t, svcErr, "transition to %s", st)
	}
	return order
}

func item(productID string, qty int) models.OrderItemRequest {
	return models.OrderItemRequest{ProductID: productID, Quantity: qty}
}

// --- CreateOrder ---

func TestOrderService_CreateOrder_ReservesStock(t *testing.T) {
	h := newHarness()
	h.seedCustomer("c1", models.CustomerStatusActive)
	h.seedProduct("p1", 25, 10)

	order := h.createOrder(t, "c1", item("p1", 3))

	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, 75.0, order.TotalAmount)
	assert.NotEmpty(t, order.OrderNumber)
	assert.Len(t, order.Timeline, 1)

	p := h.products.get("p1")
	assert.Equal(t, 10, p.Quantity)
	assert.Equal(t, 3, p.ReservedQuantity)
	assert.Equal(t, 7, p.AvailableQuantity)
	assert.Equal(t, 0, p.SalesCount, "sales count only moves on delivery")

	claims := h.claims.byOrder(order.ID)
	assert.Len(t, claims, 1)
	assert.Equal(t, models.ReservationStatusReserved, claims[0].Status)
	assert.Equal(t, 3, claims[0].Quantity)
	assert.True(t, claims[0].ExpiresAt.After(time.Now()))

	assert.Equal(t, 1, h.producer.count(), "should publish order.created")
}

func TestOrderService_CreateOrder_InsufficientStock(t *testing.T) {
	h := newHarness()
	h.seedCustomer("c1", models.CustomerStatusActive)
	h.seedProduct("p1", 10, 2)

	_, svcErr := h.orderSvc.CreateOrder(context.Background(), &models.CreateOrderRequest{
		CustomerID:    "c1",
		Items:         []models.OrderItemRequest{item("p1", 5)},
		PaymentMethod: "card",
	})

	assert.NotNil(t, svcErr)
	assert.Equal(t, apperrors.CodeInsufficientStock, svcErr.Code)

	p := h.products.get("p1")
	assert.Equal(t, 0, p.ReservedQuantity)
	assert.Equal(t, 0, h.producer.count())
}

func TestOrderService_CreateOrder_MultiItemAllOrNothing(t *testing.T) {
	h := newHarness()
	h.seedCustomer("c1", models.CustomerStatusActive)
	h.seedProduct("p1", 10, 10)
	h.seedProduct("p2", 10, 1)

	_, svcErr := h.orderSvc.CreateOrder(context.Background(), &models.CreateOrderRequest{
		CustomerID:    "c1",
		Items:         []models.OrderItemRequest{item("p1", 2), item("p2", 5)},
		PaymentMethod: "card",
	})

	assert.NotNil(t, svcErr)
	assert.Equal(t, apperrors.CodeInsufficientStock, svcErr.Code)

	// The line that succeeded must be rolled back.
	p1 := h.products.get("p1")
	assert.Equal(t, 0, p1.ReservedQuantity)
	p2 := h.products.get("p2")
	assert.Equal(t, 0, p2.ReservedQuantity)
}

func TestOrderService_CreateOrder_BlockedCustomer(t *testing.T) {
	h := newHarness()
	h.seedCustomer("c1", models.CustomerStatusBlocked)
	h.seedProduct("p1", 10, 10)

	_, svcErr := h.orderSvc.CreateOrder(context.Background(), &models.CreateOrderRequest{
		CustomerID:    "c1",
		Items:         []models.OrderItemRequest{item("p1", 1)},
		PaymentMethod: "card",
	})

	assert.NotNil(t, svcErr)
	assert.Equal(t, apperrors.CodeCustomerIneligible, svcErr.Code)

	p := h.products.get("p1")
	assert.Equal(t, 0, p.ReservedQuantity)
}

func TestOrderService_CreateOrder_UnknownCustomer(t *testing.T) {
	h := newHarness()
	h.seedProduct("p1", 10, 10)

	_, svcErr := h.orderSvc.CreateOrder(context.Background(), &models.CreateOrderRequest{
		CustomerID:    "ghost",
		Items:         []models.OrderItemRequest{item("p1", 1)},
		PaymentMethod: "card",
	})

	assert.NotNil(t, svcErr)
	assert.Equal(t, apperrors.CodeCustomerNotFound, svcErr.Code)
}

func TestOrderService_CreateOrder_UnknownProduct(t *testing.T) {
	h := newHarness()
	h.seedCustomer("c1", models.CustomerStatusActive)

	_, svcErr := h.orderSvc.CreateOrder(context.Background(), &models.CreateOrderRequest{
		CustomerID:    "c1",
		Items:         []models.OrderItemRequest{item("ghost", 1)},
		PaymentMethod: "card",
	})

	assert.NotNil(t, svcErr)
	assert.Equal(t, apperrors.CodeProductNotFound, svcErr.Code)
}

func TestOrderService_CreateOrder_BackorderBypassesGuard(t *testing.T) {
	h := newHarness()
	h.seedCustomer("c1", models.CustomerStatusActive)
	h.products.put(&models.Product{
		ID: "p1", Price: 10, Quantity: 1, TrackInventory: true, AllowBackorder: true,
	})

	order := h.createOrder(t, "c1", item("p1", 5))
	assert.Equal(t, models.OrderStatusPending, order.Status)

	p := h.products.get("p1")
	assert.Equal(t, 5, p.ReservedQuantity)
}

// Concurrent orders for the last units must never oversell. With 10 available
// units and 20 one-unit orders racing, exactly 10 succeed.
func TestOrderService_CreateOrder_ConcurrentNoOversell(t *testing.T) {
	h := newHarness()
	h.seedCustomer("c1", models.CustomerStatusActive)
	h.seedProduct("p1", 10, 10)

	const workers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, insufficient := 0, 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, svcErr := h.orderSvc.CreateOrder(context.Background(), &models.CreateOrderRequest{
				CustomerID:    "c1",
				Items:         []models.OrderItemRequest{item("p1", 1)},
				PaymentMethod: "card",
			})
			mu.Lock()
			defer mu.Unlock()
			if svcErr == nil {
				succeeded++
			} else if svcErr.Code == apperrors.CodeInsufficientStock {
				insufficient++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	assert.Equal(t, 10, insufficient)

	p := h.products.get("p1")
	assert.Equal(t, 10, p.ReservedQuantity)
	assert.Equal(t, 0, p.AvailableQuantity)
	assert.Equal(t, models.StockStatusOutOfStock, p.StockStatus)
}

// --- UpdateOrderStatus ---

func TestOrderService_UpdateOrderStatus_HappyPath(t *testing.T) {
	h := newHarness()
	h.seedCustomer("c1", models.CustomerStatusActive)
	h.seedProduct("p1", 10, 10)
	order := h.createOrder(t, "c1", item("p1", 2))

	updated, svcErr := h.orderSvc.UpdateOrderStatus(context.Background(), order.ID, &models.UpdateOrderStatusRequest{
		Status: models.OrderStatusConfirmed,
		Actor:  "ops",
		Note:   "payment verified",
	})

	assert.Nil(t, svcErr)
	assert.Equal(t, models.OrderStatusConfirmed, updated.Status)
	assert.Len(t, updated.Timeline, 2)
	last := updated.Timeline[len(updated.Timeline)-1]
	assert.Equal(t, "ops", last.Actor)
	assert.Equal(t, "payment verified", last.Note)

	// Confirming does not touch the ledger.
	p := h.products.get("p1")
	assert.Equal(t, 2, p.ReservedQuantity)
}

func TestOrderService_UpdateOrderStatus_InvalidTransition(t *testing.T) {
	h := newHarness()
	h.seedCustomer("c1", models.CustomerStatusActive)
	h.seedProduct("p1", 10, 10)
	order := h.createOrder(t, "c1", item("p1", 1))

	_, svcErr := h.orderSvc.UpdateOrderStatus(context.Background(), order.ID, &models.UpdateOrderStatusRequest{
		Status: models.OrderStatusDelivered,
	})

	assert.NotNil(t, svcErr)
	assert.Equal(t, apperrors.CodeInvalidTransition, svcErr.Code)
}

func TestOrderService_UpdateOrderStatus_UnknownStatus(t *testing.T) {
	h := newHarness()
	h.seedCustomer("c1", models.CustomerStatusActive)
	h.seedProduct("p1", 10, 10)
	order := h.createOrder(t, "c1", item("p1", 1))

	_, svcErr := h.orderSvc.UpdateOrderStatus(context.Background(), order.ID, &models.UpdateOrderStatusRequest{
		Status: "ARCHIVED",
	})

	assert.NotNil(t, svcErr)
	assert.Equal(t, apperrors.CodeValidation, svcErr.Code)
}

func TestOrderService_UpdateOrderStatus_OrderNotFound(t *testing.T) {
	h := newHarness()

	_, svcErr := h.orderSvc.UpdateOrderStatus(context.Background(), "ghost", &models.UpdateOrderStatusRequest{
		Status: models.OrderStatusConfirmed,
	})

	assert.NotNil(t, svcErr)
	assert.Equal(t, apperrors.CodeOrderNotFound, svcErr.Code)
}

func TestOrderService_Cancel_ReleasesStock(t *testing.T) {
	h := newHarness()
	h.seedCustomer("c1", models.CustomerStatusActive)
	h.seedProduct("p1", 10, 10)
	order := h.createOrder(t, "c1", item("p1", 4))

	updated := h.advance(t, order.ID, models.OrderStatusCancelled)
	assert.Equal(t, models.OrderStatusCancelled, updated.Status)

	p := h.products.get("p1")
	assert.Equal(t, 10, p.Quantity)
	assert.Equal(t, 0, p.ReservedQuantity)
	assert.Equal(t, 10, p.AvailableQuantity)
	assert.Equal(t, 0, p.SalesCount, "never-delivered order leaves sales count alone")

	claims := h.claims.byOrder(order.ID)
	assert.Len(t, claims, 1)
	assert.Equal(t, models.ReservationStatusReleased, claims[0].Status)
}

func TestOrderService_Fail_ReleasesStock(t *testing.T) {
	h := newHarness()
	h.seedCustomer("c1", models.CustomerStatusActive)
	h.seedProduct("p1", 10, 10)
	order := h.createOrder(t, "c1", item("p1", 4))

	updated := h.advance(t, order.ID, models.OrderStatusFailed)
	assert.Equal(t, models.OrderStatusFailed, updated.Status)
	assert.Equal(t, models.PaymentStatusFailed, updated.PaymentStatus)

	// FAILED is terminal, so its claims are released here or never.
	p := h.products.get("p1")
	assert.Equal(t, 10, p.Quantity)
	assert.Equal(t, 0, p.ReservedQuantity)
	assert.Equal(t, 10, p.AvailableQuantity)
	assert.Equal(t, 0, p.SalesCount)

	claims := h.claims.byOrder(order.ID)
	assert.Len(t, claims, 1)
	assert.Equal(t, models.ReservationStatusReleased, claims[0].Status)
}

func TestOrderService_Cancel_AfterShippedRejected(t *testing.T) {
	h := newHarness()
	h.seedCustomer("c1", models.CustomerStatusActive)
	h.seedProduct("p1", 10, 10)
	order := h.createOrder(t, "c1", item("p1", 1))
	h.advance(t, order.ID, models.OrderStatusConfirmed, models.OrderStatusProcessing, models.OrderStatusShipped)

	_, svcErr := h.orderSvc.UpdateOrderStatus(context.Background(), order.ID, &models.UpdateOrderStatusRequest{
		Status: models.OrderStatusCancelled,
	})

	assert.NotNil(t, svcErr)
	assert.Equal(t, apperrors.CodeInvalidTransition, svcErr.Code)

	p := h.products.get("p1")
	assert.Equal(t, 1, p.ReservedQuantity, "rejected cancel must not release stock")
}

func TestOrderService_Deliver_ConvertsReservationAndAccrues(t *testing.T) {
	h := newHarness()
	h.seedCustomer("c1", models.CustomerStatusActive)
	h.seedProduct("p1", 100, 10)
	order := h.createOrder(t, "c1", item("p1", 6))

	updated := h.advance(t, order.ID,
		models.OrderStatusConfirmed,
		models.OrderStatusProcessing,
		models.OrderStatusShipped,
		models.OrderStatusDelivered,
	)

	assert.Equal(t, models.OrderStatusDelivered, updated.Status)
	assert.Equal(t, models.PaymentStatusPaid, updated.PaymentStatus)
	assert.True(t, updated.SalesCounted)
	assert.Len(t, updated.Timeline, 5)

	// Conversion retires the reservation without touching quantity.
	p := h.products.get("p1")
	assert.Equal(t, 10, p.Quantity)
	assert.Equal(t, 0, p.ReservedQuantity)
	assert.Equal(t, 10, p.AvailableQuantity)
	assert.Equal(t, 6, p.SalesCount)

	claims := h.claims.byOrder(order.ID)
	assert.Equal(t, models.ReservationStatusConverted, claims[0].Status)

	// 6 * 100 = 600 total, one point per 10 units.
	c := h.customers.get("c1")
	assert.Equal(t, 60, c.LoyaltyPoints)
}

func TestOrderService_Refund_AfterDeliveryLeavesLedgerAlone(t *testing.T) {
	h := newHarness()
	h.seedCustomer("c1", models.CustomerStatusActive)
	h.seedProduct("p1", 50, 10)
	order := h.createOrder(t, "c1", item("p1", 2))
	h.advance(t, order.ID,
		models.OrderStatusConfirmed,
		models.OrderStatusProcessing,
		models.OrderStatusShipped,
		models.OrderStatusDelivered,
	)

	before := h.products.get("p1")
	updated := h.advance(t, order.ID, models.OrderStatusRefunded)

	assert.Equal(t, models.OrderStatusRefunded, updated.Status)
	assert.Equal(t, models.PaymentStatusRefunded, updated.PaymentStatus)

	// Claims were already converted, so the refund releases nothing.
	after := h.products.get("p1")
	assert.Equal(t, before.Quantity, after.Quantity)
	assert.Equal(t, before.ReservedQuantity, after.ReservedQuantity)
	assert.Equal(t, before.SalesCount, after.SalesCount, "refund keeps the historical sale")
}

func TestOrderService_Refund_RecordedInCustomerMetrics(t *testing.T) {
	h := newHarness()
	h.seedCustomer("c1", models.CustomerStatusActive)
	h.seedProduct("p1", 50, 10)
	order := h.createOrder(t, "c1", item("p1", 2))
	h.advance(t, order.ID,
		models.OrderStatusConfirmed,
		models.OrderStatusProcessing,
		models.OrderStatusShipped,
		models.OrderStatusDelivered,
		models.OrderStatusRefunded,
	)

	c := h.customers.get("c1")
	assert.Equal(t, 1, c.Metrics.TotalOrders, "refunded order still counts as placed")
	assert.Equal(t, 1, c.Metrics.ReturnedOrders)
	assert.Equal(t, 0.0, c.Metrics.TotalSpent, "refunded amount leaves the spend totals")
}

// Two operators racing to move the same order: exactly one transition wins,
// the other either retries onto a now-invalid transition or conflicts out.
func TestOrderService_UpdateOrderStatus_ConcurrentSingleWinner(t *testing.T) {
	h := newHarness()
	h.seedCustomer("c1", models.CustomerStatusActive)
	h.seedProduct("p1", 10, 10)
	order := h.createOrder(t, "c1", item("p1", 2))

	var wg sync.WaitGroup
	results := make([]*apperrors.Error, 2)
	targets := []models.OrderStatus{models.OrderStatusConfirmed, models.OrderStatusCancelled}
	for i := range targets {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = h.orderSvc.UpdateOrderStatus(context.Background(), order.ID, &models.UpdateOrderStatusRequest{
				Status: targets[i],
			})
		}(i)
	}
	wg.Wait()

	final, err := h.orders.FindByID(context.Background(), order.ID)
	assert.NoError(t, err)

	p := h.products.get("p1")
	switch final.Status {
	case models.OrderStatusCancelled:
		assert.Equal(t, 0, p.ReservedQuantity)
	case models.OrderStatusConfirmed:
		assert.Equal(t, 2, p.ReservedQuantity)
	default:
		t.Fatalf("unexpected final status %s", final.Status)
	}
	assert.GreaterOrEqual(t, p.ReservedQuantity, 0)
}
