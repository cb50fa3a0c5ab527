package services_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "commerce-core/errors"
	"commerce-core/models"
	"commerce-core/repository"
)

// --- Mock Product Repository ---

// mockProductRepo enforces the same conditional semantics as the real
// repository under a mutex, so concurrency tests with real goroutines observe
// honest serialization on each product.
type mockProductRepo struct {
	mu       sync.Mutex
	products map[string]*models.Product
}

func newMockProductRepo() *mockProductRepo {
	return &mockProductRepo{products: make(map[string]*models.Product)}
}

func (m *mockProductRepo) put(p *models.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.Recompute()
	m.products[p.ID] = p
}

func (m *mockProductRepo) get(id string) models.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.products[id]
}

func (m *mockProductRepo) FindByID(_ context.Context, productID string) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return nil, apperrors.ProductNotFound(productID)
	}
	clone := *p
	return &clone, nil
}

func (m *mockProductRepo) FindByIDs(_ context.Context, productIDs []string) (map[string]*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make(map[string]*models.Product, len(productIDs))
	for _, id := range productIDs {
		if p, ok := m.products[id]; ok {
			clone := *p
			result[id] = &clone
		}
	}
	return result, nil
}

func (m *mockProductRepo) Create(_ context.Context, product *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	product.Recompute()
	clone := *product
	m.products[product.ID] = &clone
	return nil
}

func (m *mockProductRepo) ReserveStock(_ context.Context, productID string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return apperrors.ProductNotFound(productID)
	}
	if p.TrackInventory && !p.AllowBackorder && p.Available() < qty {
		return apperrors.InsufficientStock(productID, qty, p.Available())
	}
	p.ReservedQuantity += qty
	p.Version++
	p.Recompute()
	return nil
}

func (m *mockProductRepo) ReleaseReservedStock(_ context.Context, productID string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return apperrors.ProductNotFound(productID)
	}
	p.ReservedQuantity -= qty
	if p.ReservedQuantity < 0 {
		p.ReservedQuantity = 0
	}
	p.Version++
	p.Recompute()
	return nil
}

func (m *mockProductRepo) ConvertReservedToSold(_ context.Context, productID string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return apperrors.ProductNotFound(productID)
	}
	p.ReservedQuantity -= qty
	if p.ReservedQuantity < 0 {
		p.ReservedQuantity = 0
	}
	p.Version++
	p.Recompute()
	return nil
}

func (m *mockProductRepo) AdjustStock(_ context.Context, productID string, qty int, op models.AdjustOp) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return apperrors.ProductNotFound(productID)
	}
	switch op {
	case models.AdjustOpAdd:
		p.Quantity += qty
	case models.AdjustOpSubtract:
		if p.Quantity < qty {
			return apperrors.InsufficientStock(productID, qty, p.Available())
		}
		p.Quantity -= qty
	default:
		return apperrors.Validation("unknown adjust op")
	}
	p.Version++
	p.Recompute()
	return nil
}

func (m *mockProductRepo) IncrementSalesCount(_ context.Context, productID string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return apperrors.ProductNotFound(productID)
	}
	p.SalesCount += qty
	return nil
}

func (m *mockProductRepo) DecrementSalesCount(_ context.Context, productID string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return apperrors.ProductNotFound(productID)
	}
	p.SalesCount -= qty
	if p.SalesCount < 0 {
		p.SalesCount = 0
	}
	return nil
}

// --- Mock Order Repository ---

type mockOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*models.Order
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[string]*models.Order)}
}

func (m *mockOrderRepo) put(o *models.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *o
	m.orders[o.ID] = &clone
}

func (m *mockOrderRepo) Create(_ context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *order
	m.orders[order.ID] = &clone
	return nil
}

func (m *mockOrderRepo) FindByID(_ context.Context, orderID string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, apperrors.OrderNotFound(orderID)
	}
	clone := *o
	return &clone, nil
}

func (m *mockOrderRepo) FindByCustomerID(_ context.Context, customerID string, _, _ int) ([]models.Order, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []models.Order
	for _, o := range m.orders {
		if o.CustomerID == customerID {
			result = append(result, *o)
		}
	}
	return result, int64(len(result)), nil
}

func (m *mockOrderRepo) FindAll(_ context.Context, _, _ int) ([]models.Order, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []models.Order
	for _, o := range m.orders {
		result = append(result, *o)
	}
	return result, int64(len(result)), nil
}

func (m *mockOrderRepo) FindAllByCustomer(_ context.Context, customerID string) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []models.Order
	for _, o := range m.orders {
		if o.CustomerID == customerID {
			result = append(result, *o)
		}
	}
	return result, nil
}

func (m *mockOrderRepo) CompareAndSetStatus(_ context.Context, orderID string, expected models.OrderStatus, upd repository.StatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return apperrors.OrderNotFound(orderID)
	}
	if o.Status != expected {
		return apperrors.ConcurrencyConflict("order", orderID)
	}
	o.Status = upd.Status
	if upd.PaymentStatus != nil {
		o.PaymentStatus = *upd.PaymentStatus
	}
	if upd.SalesCounted != nil {
		o.SalesCounted = *upd.SalesCounted
	}
	o.Timeline = append(o.Timeline, upd.Timeline)
	o.Version++
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// --- Mock Customer Repository ---

type mockCustomerRepo struct {
	mu        sync.Mutex
	customers map[string]*models.Customer
}

func newMockCustomerRepo() *mockCustomerRepo {
	return &mockCustomerRepo{customers: make(map[string]*models.Customer)}
}

func (m *mockCustomerRepo) put(c *models.Customer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *c
	m.customers[c.ID] = &clone
}

func (m *mockCustomerRepo) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.customers, id)
}

func (m *mockCustomerRepo) get(id string) models.Customer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.customers[id]
}

func (m *mockCustomerRepo) FindByID(_ context.Context, customerID string) (*models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[customerID]
	if !ok {
		return nil, apperrors.CustomerNotFound(customerID)
	}
	clone := *c
	return &clone, nil
}

func (m *mockCustomerRepo) UpdateMetrics(_ context.Context, customerID string, metrics models.CustomerMetrics, tier models.LoyaltyTier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[customerID]
	if !ok {
		return apperrors.CustomerNotFound(customerID)
	}
	c.Metrics = metrics
	c.LoyaltyTier = tier
	return nil
}

func (m *mockCustomerRepo) AddLoyaltyPoints(_ context.Context, customerID string, points int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[customerID]
	if !ok {
		return apperrors.CustomerNotFound(customerID)
	}
	c.LoyaltyPoints += points
	return nil
}

// --- Mock Reservation Repository ---

type mockReservationRepo struct {
	mu     sync.Mutex
	claims map[string]*models.Reservation
}

func newMockReservationRepo() *mockReservationRepo {
	return &mockReservationRepo{claims: make(map[string]*models.Reservation)}
}

func (m *mockReservationRepo) byOrder(orderID string) []models.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []models.Reservation
	for _, c := range m.claims {
		if c.OrderID == orderID {
			result = append(result, *c)
		}
	}
	return result
}

// expire backdates every claim of an order so sweeper tests see it as stale.
func (m *mockReservationRepo) expire(orderID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.claims {
		if c.OrderID == orderID {
			c.ExpiresAt = time.Now().UTC().Add(-time.Minute)
		}
	}
}

func (m *mockReservationRepo) CreateMany(_ context.Context, reservations []models.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range reservations {
		r := reservations[i]
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		m.claims[r.ID] = &r
	}
	return nil
}

func (m *mockReservationRepo) ReleaseByOrder(_ context.Context, orderID string) ([]models.Reservation, error) {
	return m.retire(orderID, models.ReservationStatusReleased), nil
}

func (m *mockReservationRepo) ConvertByOrder(_ context.Context, orderID string) ([]models.Reservation, error) {
	return m.retire(orderID, models.ReservationStatusConverted), nil
}

func (m *mockReservationRepo) retire(orderID string, to models.ReservationStatus) []models.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	var flipped []models.Reservation
	for _, c := range m.claims {
		if c.OrderID == orderID && c.Status == models.ReservationStatusReserved {
			c.Status = to
			c.UpdatedAt = time.Now().UTC()
			flipped = append(flipped, *c)
		}
	}
	return flipped
}

func (m *mockReservationRepo) FindExpiredOrders(_ context.Context, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	seen := make(map[string]bool)
	var result []string
	for _, c := range m.claims {
		if c.Status == models.ReservationStatusReserved && c.ExpiresAt.Before(now) && !seen[c.OrderID] {
			seen[c.OrderID] = true
			result = append(result, c.OrderID)
			if len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

// --- Mock Transaction Runner ---

// mockTxRunner runs the callback directly. The services carry their own
// compensation for partially applied steps, which is what these tests verify.
type mockTxRunner struct{}

func (m *mockTxRunner) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// hookTxRunner lets a test mutate shared state between a service's
// pre-checks and the transactional body.
type hookTxRunner struct {
	before func()
}

func (h *hookTxRunner) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if h.before != nil {
		h.before()
	}
	return fn(ctx)
}

// --- Mock Kafka Producer ---

type mockProducer struct {
	mu        sync.Mutex
	published []string
}

func (m *mockProducer) Publish(_ context.Context, key string, _ []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, key)
	return nil
}

func (m *mockProducer) Close() error { return nil }

func (m *mockProducer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.published)
}

// --- Mock SNS Publisher ---

type mockSNSPublisher struct {
	mu        sync.Mutex
	published []string
}

func (m *mockSNSPublisher) Publish(_ context.Context, topicArn string, _ []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, topicArn)
	return nil
}
