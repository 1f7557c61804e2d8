// Package main is the entry point for the ledger service.
// It initializes all dependencies, sets up the HTTP server,
// and starts the application.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"

	"ledgercore/internal/config"
	"ledgercore/internal/lock"
	"ledgercore/internal/rates"
	"ledgercore/internal/repositories"
	"ledgercore/internal/routes"
	"ledgercore/internal/services/ledger"
)

func main() {
	// Load environment variables
	config.LoadEnv()

	// Initialize databases (PostgreSQL + Redis)
	if err := repositories.InitDB(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	sqlDB, err := repositories.DB.DB()
	if err != nil {
		log.Fatalf("Failed to get database instance: %v", err)
	}
	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Println("connected to database")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Rate cache: refreshed periodically, read by the ledger for USD
	// bookkeeping. The static provider stands in until a live feed is
	// configured.
	rateCache := rates.NewCache(&rates.StaticProvider{}, rates.DefaultStaleAfter)
	if err := rateCache.Refresh(ctx); err != nil {
		log.Printf("initial rate refresh failed: %v", err)
	}
	go rateCache.StartRefresher(ctx, config.GetDurationEnv("RATE_REFRESH_INTERVAL", time.Minute))

	// Lock coordinator + metrics
	collector := lock.NewCollector(config.GetIntEnv("LOCK_METRICS_CAPACITY", lock.DefaultCapacity))
	coordinator := lock.NewCoordinator(repositories.RedisClient, collector)

	// Ledger engine
	notifier := ledger.NewRedisNotifier(repositories.RedisClient)
	ledgerService := ledger.NewService(
		repositories.NewLedgerRepository(repositories.DB),
		coordinator,
		rateCache,
		notifier,
		ledger.Config{},
	)

	app := fiber.New()

	app.Use(cors.New())
	app.Use(limiter.New(limiter.Config{
		Max:        config.GetIntEnv("RATE_LIMIT_MAX", 100),
		Expiration: time.Minute,
	}))
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	routes.SetupRoutes(app, ledgerService, collector)

	go func() {
		<-ctx.Done()
		log.Println("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("shutdown: %v", err)
		}
		if err := sqlDB.Close(); err != nil {
			log.Printf("closing database: %v", err)
		}
		if err := repositories.RedisClient.Close(); err != nil {
			log.Printf("closing redis: %v", err)
		}
	}()

	port := config.GetEnv("PORT", "8080")
	if err := app.Listen(":" + port); err != nil {
		log.Printf("server stopped: %v", err)
	}
	os.Exit(0)
}
