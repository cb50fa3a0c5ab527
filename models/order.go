package models

import (
	"math"
	"time"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
	OrderStatusRefunded   OrderStatus = "REFUNDED"
	OrderStatusFailed     OrderStatus = "FAILED"
)

// PaymentStatus tracks the payment side of an order.
type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "PENDING"
	PaymentStatusPaid              PaymentStatus = "PAID"
	PaymentStatusFailed            PaymentStatus = "FAILED"
	PaymentStatusRefunded          PaymentStatus = "REFUNDED"
	PaymentStatusPartiallyRefunded PaymentStatus = "PARTIALLY_REFUNDED"
)

// validTransitions is the order state machine. CANCELLED, REFUNDED and FAILED
// are terminal.
var validTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled, OrderStatusFailed},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {OrderStatusRefunded},
	OrderStatusCancelled:  {},
	OrderStatusRefunded:   {},
	OrderStatusFailed:     {},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsValidOrderStatus reports whether s names a known lifecycle state.
func IsValidOrderStatus(s OrderStatus) bool {
	_, ok := validTransitions[s]
	return ok
}

// OrderItem is a single line of an order. Line fields are immutable after
// creation in the online path.
type OrderItem struct {
	ProductID    string  `json:"product_id" bson:"product_id"`
	SKU          string  `json:"sku" bson:"sku"`
	Name         string  `json:"name" bson:"name"`
	QuantitySold int     `json:"quantity_sold" bson:"quantity_sold"`
	UnitPrice    float64 `json:"unit_price" bson:"unit_price"`
	Discount     float64 `json:"discount" bson:"discount"`
	Tax          float64 `json:"tax" bson:"tax"`
	LineTotal    float64 `json:"line_total" bson:"line_total"`
}

// TimelineEntry is one audit record of a status change. The timeline is
// append-only; entries are never rewritten or pruned.
type TimelineEntry struct {
	Status    OrderStatus `json:"status" bson:"status"`
	Timestamp time.Time   `json:"timestamp" bson:"timestamp"`
	Actor     string      `json:"actor" bson:"actor"`
	Note      string      `json:"note,omitempty" bson:"note,omitempty"`
}

// Order is the order aggregate. It references products by id and never
// mutates them directly; ledger side effects belong to the lifecycle service.
type Order struct {
	ID              string          `json:"id" bson:"_id"`
	OrderNumber     string          `json:"order_number" bson:"order_number"`
	CustomerID      string          `json:"customer_id,omitempty" bson:"customer_id,omitempty"`
	CustomerName    string          `json:"customer_name,omitempty" bson:"customer_name,omitempty"`
	Items           []OrderItem     `json:"items" bson:"items"`
	Status          OrderStatus     `json:"status" bson:"status"`
	PaymentStatus   PaymentStatus   `json:"payment_status" bson:"payment_status"`
	PaymentMethod   string          `json:"payment_method" bson:"payment_method"`
	ShippingAddress string          `json:"shipping_address,omitempty" bson:"shipping_address,omitempty"`
	Subtotal        float64         `json:"subtotal" bson:"subtotal"`
	Tax             float64         `json:"tax" bson:"tax"`
	Discount        float64         `json:"discount" bson:"discount"`
	ShippingFee     float64         `json:"shipping_fee" bson:"shipping_fee"`
	TotalAmount     float64         `json:"total_amount" bson:"total_amount"`
	Offline         bool            `json:"offline" bson:"offline"`
	SalesCounted    bool            `json:"sales_counted" bson:"sales_counted"`
	Timeline        []TimelineEntry `json:"timeline" bson:"timeline"`
	Version         int64           `json:"version" bson:"version"`
	CreatedAt       time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" bson:"updated_at"`
}

// ComputeTotals recalculates line totals and the order totals from the items
// and adjustments. TotalAmount is always subtotal + tax - discount + shipping.
func (o *Order) ComputeTotals() {
	var subtotal, tax, discount float64
	for i := range o.Items {
		it := &o.Items[i]
		it.LineTotal = float64(it.QuantitySold)*it.UnitPrice - it.Discount + it.Tax
		subtotal += float64(it.QuantitySold) * it.UnitPrice
		tax += it.Tax
		discount += it.Discount
	}
	o.Subtotal = subtotal
	o.Tax = tax
	o.Discount = discount
	o.TotalAmount = o.Subtotal + o.Tax - o.Discount + o.ShippingFee
}

// CanBeCancelled reports whether cancellation is still allowed.
func (o *Order) CanBeCancelled() bool {
	switch o.Status {
	case OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded:
		return false
	default:
		return true
	}
}

// CanBeRefunded reports whether a refund is allowed.
func (o *Order) CanBeRefunded() bool {
	return o.PaymentStatus == PaymentStatusPaid && o.Status != OrderStatusRefunded
}

// HoldsReservation reports whether the order still claims reserved stock.
func (o *Order) HoldsReservation() bool {
	switch o.Status {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing, OrderStatusShipped:
		return true
	default:
		return false
	}
}

// LoyaltyPointsEarned returns the points accrued when this order is
// delivered: one point per 10 currency units, floored.
func (o *Order) LoyaltyPointsEarned() int {
	return int(math.Floor(o.TotalAmount / 10))
}

// AppendTimeline adds one audit entry for a status change.
func (o *Order) AppendTimeline(status OrderStatus, actor, note string) {
	o.Timeline = append(o.Timeline, TimelineEntry{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Actor:     actor,
		Note:      note,
	})
}
