package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"commerce-core/controllers"
)

// Register sets up all HTTP routes.
func Register(r *gin.Engine, oc *controllers.OrderController, ic *controllers.InventoryController, cc *controllers.CustomerController) {
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	orderRoutes := r.Group("/orders")
	orderRoutes.POST("", oc.CreateOrder)
	orderRoutes.POST("/offline", oc.RecordOfflineSale)
	orderRoutes.GET("", oc.ListOrders)
	orderRoutes.GET("/:id", oc.GetOrder)
	orderRoutes.PATCH("/:id/status", oc.UpdateOrderStatus)

	inventoryRoutes := r.Group("/inventory")
	inventoryRoutes.POST("/products", ic.CreateProduct)
	inventoryRoutes.POST("/adjust", ic.AdjustStock)
	inventoryRoutes.POST("/bulk-adjust", ic.BulkAdjustStock)
	inventoryRoutes.GET("/:productId", ic.GetStock)

	customerRoutes := r.Group("/customers")
	customerRoutes.GET("/:id/metrics", cc.GetMetrics)
	customerRoutes.POST("/:id/metrics/recompute", cc.RecomputeMetrics)
}
