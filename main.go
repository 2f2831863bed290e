package main

import (
	"net/http"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"table-order-api/config"
	"table-order-api/handlers"
	"table-order-api/realtime"
	"table-order-api/routes"
	"table-order-api/store"
)

func main() {
	mode := os.Getenv("GIN_MODE")
	if mode == "" {
		gin.SetMode(gin.DebugMode)
	}

	cfg := config.Load()
	config.InitDB(cfg)

	if err := config.SeedAdmin(); err != nil {
		config.Log.WithError(err).Fatal("seed admin failed")
	}

	// Real-time layer: events fan out to role channels after each commit.
	hub := realtime.NewHub(config.Log)
	handlers.SetStore(store.New(config.DB, config.Log, hub, cfg.StoreTimeout))

	r := gin.Default()
	r.Use(cors.Default())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "Dine-In Order Lifecycle API",
			"version": "1.0.0",
		})
	})

	routes.SetupRoutes(r, hub)

	addr := ":" + cfg.Port
	config.Log.WithField("addr", addr).Info("server starting")
	if err := r.Run(addr); err != nil {
		config.Log.WithError(err).Fatal("failed to start server")
	}
}
