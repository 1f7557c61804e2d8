package handlers

import (
	"github.com/gofiber/fiber/v2"

	"ledgercore/internal/lock"
)

// LockStatsHandler serves the observability endpoints: pure reads over
// the metrics collector's in-memory state.
type LockStatsHandler struct {
	collector *lock.Collector
}

func NewLockStatsHandler(collector *lock.Collector) *LockStatsHandler {
	return &LockStatsHandler{collector: collector}
}

func (h *LockStatsHandler) Stats(c *fiber.Ctx) error {
	resource := c.Query("resource")
	if resource == "" {
		return c.JSON(h.collector.GlobalStats())
	}
	return c.JSON(h.collector.Stats(resource))
}

func (h *LockStatsHandler) TopContended(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 10)
	return c.JSON(h.collector.TopContended(limit))
}
