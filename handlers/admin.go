package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"table-order-api/middleware"
)

// ApproveOrder moves a PENDING order to PREPARING (admin/owner).
func ApproveOrder(c *gin.Context) {
	scope := middleware.GetScope(c)
	actorID := middleware.GetUserID(c)
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}

	order, err := Store.Approve(c.Request.Context(), scope, actorID, orderID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Order approved",
		"order_id":    order.ID,
		"status":      order.Status,
		"approved_at": order.ApprovedAt,
	})
}

// ListAudit returns the branch's most recent ledger entries (admin/owner).
func ListAudit(c *gin.Context) {
	scope := middleware.GetScope(c)

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	entries, err := Store.ListAudit(c.Request.Context(), scope, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(entries), "entries": entries})
}
