package models

import (
	"time"
)

// ReservationStatus is the lifecycle of a single stock claim.
type ReservationStatus string

const (
	ReservationStatusReserved  ReservationStatus = "RESERVED"
	ReservationStatusReleased  ReservationStatus = "RELEASED"
	ReservationStatusConverted ReservationStatus = "CONVERTED"
)

// Reservation is an explicit claim one order holds on one product's stock.
// Release and conversion reference the claim instead of trusting callers to
// pass the right quantity back, so a double release degrades to a no-op.
// ExpiresAt lets the sweeper cancel orders whose claims went stale.
type Reservation struct {
	ID        string            `json:"id" bson:"_id"`
	OrderID   string            `json:"order_id" bson:"order_id"`
	ProductID string            `json:"product_id" bson:"product_id"`
	Quantity  int               `json:"quantity" bson:"quantity"`
	Status    ReservationStatus `json:"status" bson:"status"`
	ExpiresAt time.Time         `json:"expires_at" bson:"expires_at"`
	CreatedAt time.Time         `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time         `json:"updated_at" bson:"updated_at"`
}
