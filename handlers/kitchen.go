package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"table-order-api/middleware"
)

// MarkItemPrepared flips one line item to prepared (kitchen). When it was the
// last unprepared item, the order advances to READY in the same transaction.
func MarkItemPrepared(c *gin.Context) {
	scope := middleware.GetScope(c)
	actorID := middleware.GetUserID(c)
	detailID, ok := paramID(c, "id")
	if !ok {
		return
	}

	order, err := Store.MarkDetailPrepared(c.Request.Context(), scope, actorID, detailID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Item marked prepared",
		"order_id": order.ID,
		"status":   order.Status,
	})
}

// MarkOrderPrepared flips every remaining line item of the order to prepared
// and advances it to READY (kitchen).
func MarkOrderPrepared(c *gin.Context) {
	scope := middleware.GetScope(c)
	actorID := middleware.GetUserID(c)
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}

	order, err := Store.MarkOrderPrepared(c.Request.Context(), scope, actorID, orderID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Order fully prepared",
		"order_id": order.ID,
		"status":   order.Status,
	})
}
