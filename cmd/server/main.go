package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/irfndi/bidback-engine/internal/api"
	"github.com/irfndi/bidback-engine/internal/api/handlers"
	"github.com/irfndi/bidback-engine/internal/cache"
	"github.com/irfndi/bidback-engine/internal/calendar"
	"github.com/irfndi/bidback-engine/internal/config"
	"github.com/irfndi/bidback-engine/internal/database"
	"github.com/irfndi/bidback-engine/internal/logging"
	"github.com/irfndi/bidback-engine/internal/services"
)

const snapshotCacheTTL = 12 * time.Hour

func main() {
	// Load .env if present; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.NewStandardLogger(cfg.LogLevel, cfg.Environment)

	// Initialize database
	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize Redis
	redis, err := database.NewRedisConnection(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()

	// Build the engine from validated config: matrix and holiday table were
	// already checked at Load.
	matrix, err := cfg.Engine.Matrix()
	if err != nil {
		log.Fatalf("Failed to build VIX exit matrix: %v", err)
	}
	holidayTable, err := cfg.Engine.HolidayTable()
	if err != nil {
		log.Fatalf("Failed to build holiday table: %v", err)
	}
	cal := calendar.New(holidayTable)

	detector := services.NewSignalDetector(matrix, cfg.Engine.Signals)
	sizer := services.NewPositionSizer(detector, matrix, cfg.Engine.Sizing)
	exits := services.NewExitPlanner(matrix, cal)
	planner := services.NewTradePlanner(detector, sizer, exits, decimal.NewFromFloat(cfg.Engine.PortfolioSize))
	tracker := services.NewLifecycleTracker(detector, cal, cfg.Engine.Tracker)
	analyzer := services.NewBreadthAnalyzer(cfg.Engine.Tracker.BreadthWindow)
	notifier := services.NewNotifier(cfg.Telegram, cal)

	store := database.NewTradeStore(db.Pool)
	snapCache := cache.NewSnapshotCache(redis.Client, snapshotCacheTTL)

	logger.WithComponent("engine").Info("Engine configured",
		"portfolio_size", cfg.Engine.PortfolioSize,
		"max_heat_percent", cfg.Engine.Sizing.MaxPortfolioHeatPercent,
		"notifier_enabled", notifier.Enabled(),
	)

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	api.SetupRoutes(router, db, redis, cfg.Server.AllowedOrigins, api.Handlers{
		Snapshots: handlers.NewSnapshotHandler(store, snapCache, detector, analyzer),
		Trades:    handlers.NewTradeHandler(store, planner, tracker, cfg.Engine.Sizing.MaxPortfolioHeatPercent),
		Positions: handlers.NewPositionHandler(store, tracker, notifier, cal, cfg.Engine.Sizing.MaxPortfolioHeatPercent),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.LogStartup("bidback-engine", "1.0.0", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("HTTP server failed")
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.LogShutdown("bidback-engine", "signal received")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
		os.Exit(1)
	}

	log.Println("Server exited")
}
