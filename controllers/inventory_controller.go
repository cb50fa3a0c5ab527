package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"commerce-core/models"
	"commerce-core/services"
)

// InventoryController handles HTTP requests for stock ledger operations.
type InventoryController struct {
	inventoryService services.InventoryService
}

// NewInventoryController creates a new InventoryController.
func NewInventoryController(inventoryService services.InventoryService) *InventoryController {
	return &InventoryController{inventoryService: inventoryService}
}

// CreateProduct handles POST /inventory/products.
func (ic *InventoryController) CreateProduct(ctx *gin.Context) {
	var req models.CreateProductRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	product, svcErr := ic.inventoryService.CreateProduct(ctx.Request.Context(), &req)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message, "code": svcErr.Code})
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"product": product})
}

// GetStock handles GET /inventory/:productId.
func (ic *InventoryController) GetStock(ctx *gin.Context) {
	productID := ctx.Param("productId")
	if productID == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Product id is required"})
		return
	}

	product, svcErr := ic.inventoryService.GetStock(ctx.Request.Context(), productID)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message, "code": svcErr.Code})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"product": product})
}

// AdjustStock handles POST /inventory/adjust.
func (ic *InventoryController) AdjustStock(ctx *gin.Context) {
	var req models.AdjustStockRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	product, svcErr := ic.inventoryService.AdjustInventory(ctx.Request.Context(), &req)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message, "code": svcErr.Code})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"product": product})
}

// BulkAdjustStock handles POST /inventory/bulk-adjust. Each adjustment has an
// independent outcome; the response carries per-product results.
func (ic *InventoryController) BulkAdjustStock(ctx *gin.Context) {
	var req models.BulkAdjustStockRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	results := ic.inventoryService.BulkAdjustInventory(ctx.Request.Context(), &req)

	status := http.StatusOK
	for _, r := range results {
		if !r.OK {
			status = http.StatusMultiStatus
			break
		}
	}
	ctx.JSON(status, gin.H{"results": results})
}
