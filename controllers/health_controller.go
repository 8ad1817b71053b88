package controller

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"unihub/config"
	"unihub/utils"
)

const Version = "1.0.0"

type HealthController struct {
	DB *gorm.DB
}

func NewHealthController(db *gorm.DB) *HealthController {
	return &HealthController{DB: db}
}

func (hc *HealthController) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success":   true,
		"message":   "Backend is running successfully!",
		"version":   Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (hc *HealthController) Liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "OK", "message": "Server is running"})
}

// Database pings the store and answers 503 when it is unreachable.
func (hc *HealthController) Database(c *fiber.Ctx) error {
	start := time.Now()
	if err := config.PingDB(c.UserContext(), hc.DB); err != nil {
		utils.LogError("health_db", err, nil)
		return utils.NewAPIError(fiber.StatusServiceUnavailable, "Database is unreachable")
	}

	return utils.Respond(c, fiber.StatusOK, fiber.Map{
		"status":    "connected",
		"dialect":   hc.DB.Dialector.Name(),
		"latencyMs": time.Since(start).Milliseconds(),
	}, "Database connection is healthy")
}
