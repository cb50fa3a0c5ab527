package services

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"commerce-core/cache"
	apperrors "commerce-core/errors"
	"commerce-core/models"
	"commerce-core/repository"
)

// InventoryService exposes the stock ledger's admin operations.
type InventoryService interface {
	GetStock(ctx context.Context, productID string) (*models.Product, *apperrors.Error)
	CreateProduct(ctx context.Context, req *models.CreateProductRequest) (*models.Product, *apperrors.Error)
	AdjustInventory(ctx context.Context, req *models.AdjustStockRequest) (*models.Product, *apperrors.Error)
	BulkAdjustInventory(ctx context.Context, req *models.BulkAdjustStockRequest) []models.BulkAdjustResult
}

type inventoryServiceImpl struct {
	productRepo repository.ProductRepository
	cache       *cache.ProductCache
	logger      *zap.Logger
}

// NewInventoryService creates a new InventoryService.
func NewInventoryService(productRepo repository.ProductRepository, productCache *cache.ProductCache, logger *zap.Logger) InventoryService {
	return &inventoryServiceImpl{
		productRepo: productRepo,
		cache:       productCache,
		logger:      logger,
	}
}

// GetStock returns the current ledger view of a product, cache-first.
func (s *inventoryServiceImpl) GetStock(ctx context.Context, productID string) (*models.Product, *apperrors.Error) {
	if product, ok := s.cache.Get(ctx, productID); ok {
		return product, nil
	}

	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, asAppError(err, "Failed to fetch product")
	}
	s.cache.SetAsync(product)
	return product, nil
}

// CreateProduct seeds a new product with its initial ledger settings.
func (s *inventoryServiceImpl) CreateProduct(ctx context.Context, req *models.CreateProductRequest) (*models.Product, *apperrors.Error) {
	trackInventory := true
	if req.TrackInventory != nil {
		trackInventory = *req.TrackInventory
	}

	now := time.Now().UTC()
	product := &models.Product{
		ID:                uuid.NewString(),
		SKU:               req.SKU,
		Name:              req.Name,
		Price:             req.Price,
		Quantity:          req.Quantity,
		LowStockThreshold: req.LowStockThreshold,
		TrackInventory:    trackInventory,
		AllowBackorder:    req.AllowBackorder,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	product.Recompute()

	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, asAppError(err, "Failed to create product")
	}

	s.logger.Info("Product created",
		zap.String("product_id", product.ID),
		zap.String("sku", product.SKU),
		zap.Int("quantity", product.Quantity))
	return product, nil
}

// AdjustInventory applies a manual stock correction to one product.
func (s *inventoryServiceImpl) AdjustInventory(ctx context.Context, req *models.AdjustStockRequest) (*models.Product, *apperrors.Error) {
	if err := s.productRepo.AdjustStock(ctx, req.ProductID, req.Quantity, req.Op); err != nil {
		return nil, asAppError(err, "Failed to adjust stock")
	}
	s.cache.Invalidate(ctx, req.ProductID)

	product, err := s.productRepo.FindByID(ctx, req.ProductID)
	if err != nil {
		return nil, asAppError(err, "Failed to fetch product after adjustment")
	}

	s.logger.Info("Stock adjusted",
		zap.String("product_id", req.ProductID),
		zap.String("op", string(req.Op)),
		zap.Int("quantity", req.Quantity),
		zap.String("reason", req.Reason),
		zap.Int("available", product.AvailableQuantity))
	s.warnIfLow(product)
	return product, nil
}

// BulkAdjustInventory applies many adjustments with independent per-item
// outcomes. Unlike order creation, partial success is allowed: one failing
// item never rolls back its siblings.
func (s *inventoryServiceImpl) BulkAdjustInventory(ctx context.Context, req *models.BulkAdjustStockRequest) []models.BulkAdjustResult {
	results := make([]models.BulkAdjustResult, 0, len(req.Updates))
	for i := range req.Updates {
		upd := &req.Updates[i]
		product, svcErr := s.AdjustInventory(ctx, upd)
		if svcErr != nil {
			results = append(results, models.BulkAdjustResult{
				ProductID: upd.ProductID,
				OK:        false,
				ErrorCode: svcErr.Code,
				Error:     svcErr.Message,
			})
			continue
		}
		results = append(results, models.BulkAdjustResult{
			ProductID: upd.ProductID,
			OK:        true,
			Product:   product,
		})
	}
	return results
}

// warnIfLow logs when a mutation left the product low or out of stock.
func (s *inventoryServiceImpl) warnIfLow(product *models.Product) {
	switch product.StockStatus {
	case models.StockStatusLowStock:
		s.logger.Warn("Product low on stock",
			zap.String("product_id", product.ID),
			zap.Int("available", product.AvailableQuantity),
			zap.Int("threshold", product.LowStockThreshold))
	case models.StockStatusOutOfStock:
		s.logger.Warn("Product out of stock", zap.String("product_id", product.ID))
	}
}

// asAppError passes typed application errors through and wraps anything else
// as an internal error, so the enumerated kinds always keep their codes.
func asAppError(err error, fallback string) *apperrors.Error {
	var appErr *apperrors.Error
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return apperrors.Internal(fallback, err)
}
