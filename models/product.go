package models

import (
	"time"
)

// StockStatus is the derived stock state of a product.
type StockStatus string

const (
	StockStatusInStock    StockStatus = "IN_STOCK"
	StockStatusLowStock   StockStatus = "LOW_STOCK"
	StockStatusOutOfStock StockStatus = "OUT_OF_STOCK"
	StockStatusPreOrder   StockStatus = "PRE_ORDER"
)

// AdjustOp is the direction of a manual stock adjustment.
type AdjustOp string

const (
	AdjustOpAdd      AdjustOp = "ADD"
	AdjustOpSubtract AdjustOp = "SUBTRACT"
)

// Product carries the stock ledger for a single sellable item.
//
// Quantity is the number of units physically owned, ReservedQuantity the units
// promised to pending orders. AvailableQuantity and StockStatus are derived
// and must be recomputed in the same write as any counter mutation; they are
// never updated on their own.
type Product struct {
	ID                string      `json:"id" bson:"_id"`
	SKU               string      `json:"sku" bson:"sku"`
	Name              string      `json:"name" bson:"name"`
	Price             float64     `json:"price" bson:"price"`
	Quantity          int         `json:"quantity" bson:"quantity"`
	ReservedQuantity  int         `json:"reserved_quantity" bson:"reserved_quantity"`
	AvailableQuantity int         `json:"available_quantity" bson:"available_quantity"`
	LowStockThreshold int         `json:"low_stock_threshold" bson:"low_stock_threshold"`
	TrackInventory    bool        `json:"track_inventory" bson:"track_inventory"`
	AllowBackorder    bool        `json:"allow_backorder" bson:"allow_backorder"`
	StockStatus       StockStatus `json:"stock_status" bson:"stock_status"`
	SalesCount        int         `json:"sales_count" bson:"sales_count"`
	Version           int64       `json:"version" bson:"version"`
	CreatedAt         time.Time   `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at" bson:"updated_at"`
	DeletedAt         *time.Time  `json:"deleted_at,omitempty" bson:"deleted_at,omitempty"`
}

// Available returns quantity minus reserved quantity.
func (p *Product) Available() int {
	return p.Quantity - p.ReservedQuantity
}

// DeriveStockStatus computes the stock status from the current counters.
func (p *Product) DeriveStockStatus() StockStatus {
	return DeriveStockStatus(p.TrackInventory, p.Available(), p.LowStockThreshold)
}

// DeriveStockStatus maps counters to a stock status. Untracked products are
// always IN_STOCK.
func DeriveStockStatus(trackInventory bool, available, threshold int) StockStatus {
	if !trackInventory {
		return StockStatusInStock
	}
	switch {
	case available <= 0:
		return StockStatusOutOfStock
	case available <= threshold:
		return StockStatusLowStock
	default:
		return StockStatusInStock
	}
}

// Recompute refreshes the derived fields in place.
func (p *Product) Recompute() {
	p.AvailableQuantity = p.Available()
	p.StockStatus = p.DeriveStockStatus()
}

// CanReserve reports whether qty units can be promised right now.
func (p *Product) CanReserve(qty int) bool {
	if !p.TrackInventory || p.AllowBackorder {
		return true
	}
	return p.Available() >= qty
}
