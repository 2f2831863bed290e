package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"table-order-api/middleware"
	"table-order-api/models"
	"table-order-api/store"
)

// PlaceOrder creates a new order for a table in the caller's branch. Any
// authenticated caller in scope may place; totals are computed server-side.
func PlaceOrder(c *gin.Context) {
	scope := middleware.GetScope(c)
	actorID := middleware.GetUserID(c)

	var req store.PlaceOrderInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := Store.PlaceOrder(c.Request.Context(), scope, actorID, req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":     "Order placed successfully",
		"order_id":    order.ID,
		"total_price": order.TotalPrice.StringFixed(2),
		"order":       order,
	})
}

// GetOrderDetails returns one order with line items and served records.
func GetOrderDetails(c *gin.Context) {
	scope := middleware.GetScope(c)
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}

	order, served, err := Store.GetOrder(c.Request.Context(), scope, orderID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order, "served_records": served})
}

// ListOrders returns the branch's orders, optionally filtered by status.
func ListOrders(c *gin.Context) {
	scope := middleware.GetScope(c)

	status := models.OrderStatus(c.Query("status"))
	orders, err := Store.ListOrders(c.Request.Context(), scope, status)
	if err != nil {
		writeError(c, err)
		return
	}

	// Dashboard summary: counts by status.
	summary := map[string]int{}
	for _, o := range orders {
		summary[string(o.Status)]++
	}

	c.JSON(http.StatusOK, gin.H{
		"count":         len(orders),
		"order_summary": summary,
		"orders":        orders,
	})
}
