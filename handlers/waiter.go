package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"table-order-api/middleware"
)

// TakeService claims a READY order for the calling waiter. Repeating the call
// is an idempotent success; a different waiter gets ORDER_ALREADY_TAKEN.
func TakeService(c *gin.Context) {
	scope := middleware.GetScope(c)
	waiterID := middleware.GetUserID(c)
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}

	order, err := Store.TakeService(c.Request.Context(), scope, waiterID, orderID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Order taken for service",
		"order_id":  order.ID,
		"served_by": order.ServedBy,
	})
}

type ServeItemRequest struct {
	MenuItemID uint `json:"menu_item_id" binding:"required"`
}

// ServeItem records that one prepared line item reached the customer. The
// first serve implicitly claims service for the caller.
func ServeItem(c *gin.Context) {
	scope := middleware.GetScope(c)
	waiterID := middleware.GetUserID(c)
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req ServeItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := Store.ServeDetail(c.Request.Context(), scope, waiterID, orderID, req.MenuItemID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "Item served",
		"order_id":     order.ID,
		"fully_served": order.ServedAt != nil,
	})
}

type CloseOrderRequest struct {
	PaymentMethod string `json:"payment_method" binding:"required"`
	PaymentStatus string `json:"payment_status" binding:"required"`
}

// CloseOrder records payment and completes the order. Closing is the only
// transition to COMPLETED.
func CloseOrder(c *gin.Context) {
	scope := middleware.GetScope(c)
	actorID := middleware.GetUserID(c)
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req CloseOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := Store.Close(c.Request.Context(), scope, actorID, orderID, req.PaymentMethod, req.PaymentStatus)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":        "Order closed",
		"order_id":       order.ID,
		"status":         order.Status,
		"payment_method": order.PaymentMethod,
		"payment_status": order.PaymentStatus,
	})
}
