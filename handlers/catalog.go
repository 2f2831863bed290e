package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"table-order-api/config"
	"table-order-api/middleware"
	"table-order-api/models"
	"table-order-api/statemachine"
)

// ── Menu management (admin/owner) ───────────────────────────────────────────

type CreateMenuItemRequest struct {
	Name     string          `json:"name" binding:"required"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price" binding:"required"`
}

// AddMenuItem adds an item to the branch menu.
func AddMenuItem(c *gin.Context) {
	scope := middleware.GetScope(c)

	var req CreateMenuItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Price.IsNegative() || req.Price.IsZero() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Price must be positive"})
		return
	}

	item := models.MenuItem{
		RestaurantID: scope.RestaurantID,
		BranchID:     scope.BranchID,
		Name:         req.Name,
		Category:     req.Category,
		Price:        req.Price,
		IsAvailable:  true,
	}
	if err := config.DB.Create(&item).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add menu item"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Menu item added", "item": item})
}

// UpdateMenuItem updates a menu item within the caller's branch.
func UpdateMenuItem(c *gin.Context) {
	scope := middleware.GetScope(c)
	itemID, ok := paramID(c, "itemId")
	if !ok {
		return
	}

	var item models.MenuItem
	err := config.DB.Where("restaurant_id = ? AND branch_id = ?", scope.RestaurantID, scope.BranchID).
		First(&item, itemID).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Menu item not found"})
		return
	}

	var req map[string]interface{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// Only allow safe fields
	allowed := map[string]bool{"name": true, "category": true, "price": true, "is_available": true}
	update := map[string]interface{}{}
	for k, v := range req {
		if allowed[k] {
			update[k] = v
		}
	}
	config.DB.Model(&item).Updates(update)
	c.JSON(http.StatusOK, gin.H{"message": "Menu item updated", "item": item})
}

type CreateExtraRequest struct {
	Name  string          `json:"name" binding:"required"`
	Price decimal.Decimal `json:"price" binding:"required"`
}

// AddExtra adds an add-on to the branch catalog.
func AddExtra(c *gin.Context) {
	scope := middleware.GetScope(c)

	var req CreateExtraRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	extra := models.Extra{
		RestaurantID: scope.RestaurantID,
		BranchID:     scope.BranchID,
		Name:         req.Name,
		Price:        req.Price,
	}
	if err := config.DB.Create(&extra).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add extra"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Extra added", "extra": extra})
}

type CreateTableRequest struct {
	Number int `json:"number" binding:"required,min=1"`
	Seats  int `json:"seats"`
}

// AddTable registers a table in the branch.
func AddTable(c *gin.Context) {
	scope := middleware.GetScope(c)

	var req CreateTableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Seats <= 0 {
		req.Seats = 4
	}

	table := models.Table{
		RestaurantID: scope.RestaurantID,
		BranchID:     scope.BranchID,
		Number:       req.Number,
		Seats:        req.Seats,
	}
	if err := config.DB.Create(&table).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add table"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Table added", "table": table})
}

// ── Browse (any authenticated caller in scope) ──────────────────────────────

// GetMenu returns the branch menu with extras.
func GetMenu(c *gin.Context) {
	scope := middleware.GetScope(c)

	var items []models.MenuItem
	query := config.DB.Where("restaurant_id = ? AND branch_id = ?", scope.RestaurantID, scope.BranchID)
	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}
	if available := c.Query("available"); available == "true" {
		query = query.Where("is_available = ?", true)
	}
	query.Find(&items)

	var extras []models.Extra
	config.DB.Where("restaurant_id = ? AND branch_id = ?", scope.RestaurantID, scope.BranchID).Find(&extras)

	c.JSON(http.StatusOK, gin.H{
		"count":  len(items),
		"menu":   items,
		"extras": extras,
	})
}

// ListTables returns the branch's tables.
func ListTables(c *gin.Context) {
	scope := middleware.GetScope(c)
	var tables []models.Table
	config.DB.Where("restaurant_id = ? AND branch_id = ?", scope.RestaurantID, scope.BranchID).
		Order("number asc").Find(&tables)
	c.JSON(http.StatusOK, gin.H{"count": len(tables), "tables": tables})
}

// GetStateMachineInfo returns the order lifecycle for informational purposes.
func GetStateMachineInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"lifecycle":       statemachine.Lifecycle(),
		"terminal_states": []models.OrderStatus{models.StatusCompleted},
		"description":     "Dine-In Order Lifecycle State Machine",
	})
}
