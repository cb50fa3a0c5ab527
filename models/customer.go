package models

import (
	"time"
)

// CustomerStatus gates whether a customer may place orders.
type CustomerStatus string

const (
	CustomerStatusActive  CustomerStatus = "ACTIVE"
	CustomerStatusBlocked CustomerStatus = "BLOCKED"
)

// LoyaltyTier buckets customers by lifetime spend.
type LoyaltyTier string

const (
	LoyaltyTierBronze   LoyaltyTier = "BRONZE"
	LoyaltyTierSilver   LoyaltyTier = "SILVER"
	LoyaltyTierGold     LoyaltyTier = "GOLD"
	LoyaltyTierPlatinum LoyaltyTier = "PLATINUM"
)

// CustomerMetrics is a denormalized aggregate recomputed from order history.
// It is eventually consistent with order state and never a source of truth.
type CustomerMetrics struct {
	TotalOrders       int       `json:"total_orders" bson:"total_orders"`
	TotalSpent        float64   `json:"total_spent" bson:"total_spent"`
	AverageOrderValue float64   `json:"average_order_value" bson:"average_order_value"`
	CancelledOrders   int       `json:"cancelled_orders" bson:"cancelled_orders"`
	ReturnedOrders    int       `json:"returned_orders" bson:"returned_orders"`
	LastOrderAt       time.Time `json:"last_order_at,omitempty" bson:"last_order_at,omitempty"`
}

// Customer is the external collaborator aggregate the order lifecycle reads
// for eligibility and writes loyalty/metrics back to.
type Customer struct {
	ID            string          `json:"id" bson:"_id"`
	Email         string          `json:"email" bson:"email"`
	Name          string          `json:"name" bson:"name"`
	Status        CustomerStatus  `json:"status" bson:"status"`
	LoyaltyPoints int             `json:"loyalty_points" bson:"loyalty_points"`
	LoyaltyTier   LoyaltyTier     `json:"loyalty_tier" bson:"loyalty_tier"`
	Metrics       CustomerMetrics `json:"metrics" bson:"metrics"`
	CreatedAt     time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" bson:"updated_at"`
}

// CanPurchase reports whether the customer is eligible to place orders.
func (c *Customer) CanPurchase() bool {
	return c.Status == CustomerStatusActive
}

// DeriveLoyaltyTier maps lifetime spend to a tier.
func DeriveLoyaltyTier(totalSpent float64) LoyaltyTier {
	switch {
	case totalSpent >= 10000:
		return LoyaltyTierPlatinum
	case totalSpent >= 5000:
		return LoyaltyTierGold
	case totalSpent >= 1000:
		return LoyaltyTierSilver
	default:
		return LoyaltyTierBronze
	}
}
