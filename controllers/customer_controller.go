package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"commerce-core/services"
)

// CustomerController handles HTTP requests for customer metrics.
type CustomerController struct {
	metricsService services.CustomerMetricsService
}

// NewCustomerController creates a new CustomerController.
func NewCustomerController(metricsService services.CustomerMetricsService) *CustomerController {
	return &CustomerController{metricsService: metricsService}
}

// GetMetrics handles GET /customers/:id/metrics.
func (cc *CustomerController) GetMetrics(ctx *gin.Context) {
	customerID := ctx.Param("id")
	if customerID == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Customer id is required"})
		return
	}

	customer, svcErr := cc.metricsService.GetCustomer(ctx.Request.Context(), customerID)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message, "code": svcErr.Code})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"customer_id":    customer.ID,
		"metrics":        customer.Metrics,
		"loyalty_points": customer.LoyaltyPoints,
		"loyalty_tier":   customer.LoyaltyTier,
	})
}

// RecomputeMetrics handles POST /customers/:id/metrics/recompute.
func (cc *CustomerController) RecomputeMetrics(ctx *gin.Context) {
	customerID := ctx.Param("id")
	if customerID == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Customer id is required"})
		return
	}

	customer, svcErr := cc.metricsService.Recompute(ctx.Request.Context(), customerID)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message, "code": svcErr.Code})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"customer_id":    customer.ID,
		"metrics":        customer.Metrics,
		"loyalty_points": customer.LoyaltyPoints,
		"loyalty_tier":   customer.LoyaltyTier,
	})
}
