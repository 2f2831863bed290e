package routes

import (
	"github.com/gin-gonic/gin"

	"table-order-api/handlers"
	"table-order-api/middleware"
	"table-order-api/models"
	"table-order-api/realtime"
)

func SetupRoutes(r *gin.Engine, hub *realtime.Hub) {
	// ── Public routes ──────────────────────────────────────────────
	public := r.Group("/api")
	{
		public.POST("/auth/register", handlers.Register)
		public.POST("/auth/login", handlers.Login)
		public.GET("/state-machine", handlers.GetStateMachineInfo)
	}

	// ── Authenticated routes (any role, own tenant scope) ──────────
	auth := r.Group("/api")
	auth.Use(middleware.AuthRequired())
	{
		auth.GET("/profile", handlers.GetProfile)
		auth.GET("/menu", handlers.GetMenu)
		auth.GET("/tables", handlers.ListTables)

		auth.POST("/orders", handlers.PlaceOrder)
		auth.GET("/orders", handlers.ListOrders)
		auth.GET("/orders/:id", handlers.GetOrderDetails)
	}

	// ── Kitchen routes ─────────────────────────────────────────────
	kitchen := r.Group("/api/kitchen")
	kitchen.Use(middleware.AuthRequired(), middleware.RoleRequired(models.RoleKitchen, models.RoleAdmin, models.RoleOwner))
	{
		kitchen.PUT("/details/:id/prepared", handlers.MarkItemPrepared)
		kitchen.PUT("/orders/:id/prepared", handlers.MarkOrderPrepared)
	}

	// ── Waiter routes ──────────────────────────────────────────────
	waiter := r.Group("/api/waiter")
	waiter.Use(middleware.AuthRequired(), middleware.RoleRequired(models.RoleWaiter, models.RoleAdmin, models.RoleOwner))
	{
		waiter.PUT("/orders/:id/take", handlers.TakeService)
		waiter.PUT("/orders/:id/serve", handlers.ServeItem)
		waiter.PUT("/orders/:id/close", handlers.CloseOrder)
	}

	// ── Admin routes ───────────────────────────────────────────────
	admin := r.Group("/api/admin")
	admin.Use(middleware.AuthRequired(), middleware.RoleRequired(models.RoleAdmin, models.RoleOwner))
	{
		admin.PUT("/orders/:id/approve", handlers.ApproveOrder)
		admin.GET("/audit", handlers.ListAudit)

		admin.POST("/menu", handlers.AddMenuItem)
		admin.PUT("/menu/:itemId", handlers.UpdateMenuItem)
		admin.POST("/extras", handlers.AddExtra)
		admin.POST("/tables", handlers.AddTable)
	}

	// ── Real-time subscription ─────────────────────────────────────
	r.GET("/ws", middleware.WSAuthRequired(), hub.HandleWebSocket)
}
