package models

// OrderItemRequest is one line of an incoming order.
type OrderItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

// CreateOrderRequest is the payload for POST /orders.
type CreateOrderRequest struct {
	CustomerID      string             `json:"customer_id" binding:"required"`
	Items           []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	PaymentMethod   string             `json:"payment_method" binding:"required"`
	ShippingAddress string             `json:"shipping_address"`
}

// UpdateOrderStatusRequest is the payload for PATCH /orders/:id/status.
type UpdateOrderStatusRequest struct {
	Status OrderStatus `json:"status" binding:"required"`
	Note   string      `json:"note"`
	Actor  string      `json:"actor"`
}

// OfflineSaleRequest records a walk-in sale that is already complete.
// CustomerID is optional; walk-in customers may be anonymous.
type OfflineSaleRequest struct {
	CustomerID    string             `json:"customer_id"`
	CustomerName  string             `json:"customer_name"`
	Items         []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	PaymentMethod string             `json:"payment_method" binding:"required"`
}

// CreateProductRequest seeds a product with its initial ledger settings.
type CreateProductRequest struct {
	SKU               string  `json:"sku" binding:"required"`
	Name              string  `json:"name" binding:"required"`
	Price             float64 `json:"price" binding:"required,gt=0"`
	Quantity          int     `json:"quantity" binding:"gte=0"`
	LowStockThreshold int     `json:"low_stock_threshold" binding:"gte=0"`
	TrackInventory    *bool   `json:"track_inventory"`
	AllowBackorder    bool    `json:"allow_backorder"`
}

// AdjustStockRequest is the payload for POST /inventory/adjust.
type AdjustStockRequest struct {
	ProductID string   `json:"product_id" binding:"required"`
	Quantity  int      `json:"quantity" binding:"required,min=1"`
	Op        AdjustOp `json:"op" binding:"required,oneof=ADD SUBTRACT"`
	Reason    string   `json:"reason"`
}

// BulkAdjustStockRequest adjusts many products; outcomes are independent and
// partial success is allowed.
type BulkAdjustStockRequest struct {
	Updates []AdjustStockRequest `json:"updates" binding:"required,min=1,dive"`
}

// BulkAdjustResult is the per-item outcome of a bulk adjustment.
type BulkAdjustResult struct {
	ProductID string   `json:"product_id"`
	OK        bool     `json:"ok"`
	ErrorCode string   `json:"error_code,omitempty"`
	Error     string   `json:"error,omitempty"`
	Product   *Product `json:"product,omitempty"`
}
