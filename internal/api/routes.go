package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/irfndi/bidback-engine/internal/api/handlers"
	"github.com/irfndi/bidback-engine/internal/database"
	"github.com/irfndi/bidback-engine/internal/middleware"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Services  Services  `json:"services"`
}

type Services struct {
	Database string `json:"database"`
	Redis    string `json:"redis"`
}

// Handlers bundles the endpoint groups the router mounts.
type Handlers struct {
	Snapshots *handlers.SnapshotHandler
	Trades    *handlers.TradeHandler
	Positions *handlers.PositionHandler
}

func SetupRoutes(router *gin.Engine, db *database.PostgresDB, redis *database.RedisClient, allowedOrigins []string, h Handlers) {
	router.Use(middleware.CORS(allowedOrigins))

	// Health check endpoint
	router.GET("/health", healthCheck(db, redis))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Market breadth routes
		breadth := v1.Group("/breadth")
		{
			breadth.POST("/snapshots", h.Snapshots.ImportSnapshot)
			breadth.GET("/latest", h.Snapshots.GetLatestSnapshot)
			breadth.GET("/trend", h.Snapshots.GetBreadthTrend)
		}

		// Trade planning and pre-fill lifecycle
		trades := v1.Group("/trades")
		{
			trades.POST("", h.Trades.PlanTrade)
			trades.GET("/:id", h.Trades.GetTrade)
			trades.POST("/:id/execute", h.Trades.ExecuteTrade)
			trades.POST("/:id/cancel", h.Trades.CancelTrade)
			trades.POST("/:id/fill", h.Trades.FillTrade)
		}

		// Open-position dashboard and lifecycle
		positions := v1.Group("/positions")
		{
			positions.GET("", h.Positions.ListPositions)
			positions.GET("/:id", h.Positions.GetPosition)
			positions.POST("/:id/exits", h.Positions.RecordPartialExit)
			positions.POST("/:id/cancel", h.Positions.CancelPosition)
			positions.POST("/refresh", h.Positions.RefreshPositions)
		}
	}
}

func healthCheck(db *database.PostgresDB, redis *database.RedisClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := HealthResponse{
			Status:    "ok",
			Timestamp: time.Now(),
			Version:   "1.0.0",
			Services: Services{
				Database: "ok",
				Redis:    "ok",
			},
		}

		// Check database health
		if err := db.HealthCheck(c.Request.Context()); err != nil {
			response.Services.Database = "error"
			response.Status = "degraded"
		}

		// Check Redis health
		if err := redis.HealthCheck(c.Request.Context()); err != nil {
			response.Services.Redis = "error"
			response.Status = "degraded"
		}

		statusCode := http.StatusOK
		if response.Status == "degraded" {
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, response)
	}
}
