// Package routes defines the API routing configuration.
package routes

import (
	"github.com/gofiber/fiber/v2"

	"ledgercore/internal/handlers"
	"ledgercore/internal/lock"
	"ledgercore/internal/services/ledger"
)

// SetupRoutes wires the ledger and observability endpoints.
func SetupRoutes(app *fiber.App, service ledger.Service, collector *lock.Collector) {
	balanceHandler := handlers.NewBalanceHandler(service)
	lockHandler := handlers.NewLockStatsHandler(collector)

	app.Get("/health", handlers.HealthCheck)

	api := app.Group("/api")
	api.Post("/balance", balanceHandler.UpdateBalance)
	api.Get("/balance/:userId/:asset", balanceHandler.GetBalance)
	api.Post("/tip", balanceHandler.Tip)
	api.Post("/vault", balanceHandler.VaultTransfer)
	api.Post("/claims", balanceHandler.ClaimCommissions)

	locks := api.Group("/locks")
	locks.Get("/stats", lockHandler.Stats)
	locks.Get("/contended", lockHandler.TopContended)
}
