package repository

import (
	"context"

	"commerce-core/models"
)

// TxRunner executes fn inside one atomic unit of work. Every multi-step
// ledger-touching operation must go through it; there is no non-transactional
// variant.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ProductRepository is the stock ledger's data access. Each mutating call is
// atomic with respect to a single product document: the availability check,
// the counter change and the derived-field recompute happen in one
// conditional write, so concurrent callers serialize on the document.
type ProductRepository interface {
	FindByID(ctx context.Context, productID string) (*models.Product, error)
	FindByIDs(ctx context.Context, productIDs []string) (map[string]*models.Product, error)
	Create(ctx context.Context, product *models.Product) error

	// ReserveStock promises qty units to an order. Fails with
	// InsufficientStock when available < qty and backorder is disallowed.
	ReserveStock(ctx context.Context, productID string, qty int) error
	// ReleaseReservedStock returns qty units to the sellable pool, clamping
	// reserved_quantity at zero.
	ReleaseReservedStock(ctx context.Context, productID string, qty int) error
	// ConvertReservedToSold retires a reservation on fulfillment without
	// touching quantity; the physical unit was consumed at fulfillment time.
	ConvertReservedToSold(ctx context.Context, productID string, qty int) error
	// AdjustStock mutates quantity directly, independent of reservations.
	AdjustStock(ctx context.Context, productID string, qty int, op models.AdjustOp) error
	IncrementSalesCount(ctx context.Context, productID string, qty int) error
	// DecrementSalesCount floors the counter at zero.
	DecrementSalesCount(ctx context.Context, productID string, qty int) error
}

// StatusUpdate carries the fields a lifecycle transition writes on an order.
type StatusUpdate struct {
	Status        models.OrderStatus
	PaymentStatus *models.PaymentStatus
	SalesCounted  *bool
	Timeline      models.TimelineEntry
}

// OrderRepository is the order aggregate's data access.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, orderID string) (*models.Order, error)
	FindByCustomerID(ctx context.Context, customerID string, page, limit int) ([]models.Order, int64, error)
	FindAll(ctx context.Context, page, limit int) ([]models.Order, int64, error)
	// FindAllByCustomer returns the customer's complete order history, used
	// by the metrics recompute.
	FindAllByCustomer(ctx context.Context, customerID string) ([]models.Order, error)
	// CompareAndSetStatus applies upd only if the order is still in the
	// expected status, appending the timeline entry and bumping the version.
	// A miss surfaces as ConcurrencyConflict.
	CompareAndSetStatus(ctx context.Context, orderID string, expected models.OrderStatus, upd StatusUpdate) error
}

// CustomerRepository is the customer collaborator's data access.
type CustomerRepository interface {
	FindByID(ctx context.Context, customerID string) (*models.Customer, error)
	// UpdateMetrics overwrites the denormalized aggregate.
	UpdateMetrics(ctx context.Context, customerID string, metrics models.CustomerMetrics, tier models.LoyaltyTier) error
	// AddLoyaltyPoints increments the points counter atomically.
	AddLoyaltyPoints(ctx context.Context, customerID string, points int) error
}

// ReservationRepository tracks explicit per-order stock claims.
type ReservationRepository interface {
	CreateMany(ctx context.Context, reservations []models.Reservation) error
	// ReleaseByOrder flips the order's RESERVED claims to RELEASED and
	// returns the claims it flipped. Already-released claims are skipped, so
	// a double release is a detectable no-op.
	ReleaseByOrder(ctx context.Context, orderID string) ([]models.Reservation, error)
	// ConvertByOrder flips the order's RESERVED claims to CONVERTED and
	// returns them.
	ConvertByOrder(ctx context.Context, orderID string) ([]models.Reservation, error)
	// FindExpiredOrders returns ids of orders holding RESERVED claims whose
	// expiry has passed.
	FindExpiredOrders(ctx context.Context, limit int) ([]string, error)
}
