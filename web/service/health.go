package service

import (
	"time"

	"solidity-armor/db"

	"github.com/gofiber/fiber/v2"
)

type HealthService struct {
	database     *db.Database
	aiConfigured bool
}

func NewHealthService(database *db.Database, aiConfigured bool) *HealthService {
	return &HealthService{database: database, aiConfigured: aiConfigured}
}

func (hs *HealthService) HandleHealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	})
}

// Health check handlers
func (hs *HealthService) HandleAPIHealthDB(c *fiber.Ctx) error {
	// Check database connectivity
	if err := hs.database.Ping(); err != nil {
		return c.Status(503).JSON(fiber.Map{"status": "error", "message": "Database connection failed"})
	}
	return c.JSON(fiber.Map{"status": "ok", "message": "Database is healthy"})
}

func (hs *HealthService) HandleAPIHealthAI(c *fiber.Ctx) error {
	if !hs.aiConfigured {
		return c.Status(503).JSON(fiber.Map{"status": "error", "message": "Analysis provider is not configured"})
	}
	return c.JSON(fiber.Map{"status": "ok", "message": "Analysis provider is configured"})
}
