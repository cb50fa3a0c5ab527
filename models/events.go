package models

import "time"

// Event types published to the order lifecycle topic and SNS.
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventOfflineSaleRecord  = "sale.recorded"
)

// OrderEvent is the payload published after a lifecycle change commits.
// Publishing is fire-and-forget; consumers that need exact state re-query.
type OrderEvent struct {
	EventType   string      `json:"event_type"`
	OrderID     string      `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	CustomerID  string      `json:"customer_id,omitempty"`
	Status      OrderStatus `json:"status"`
	PrevStatus  OrderStatus `json:"prev_status,omitempty"`
	TotalAmount float64     `json:"total_amount"`
	OccurredAt  time.Time   `json:"occurred_at"`
}
