package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ar210505/rubric-coder-intel/internal/config"
	"github.com/ar210505/rubric-coder-intel/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string                 `json:"status"`
	Timestamp   time.Time              `json:"timestamp"`
	Service     string                 `json:"service"`
	Environment string                 `json:"environment"`
	Workers     map[string]interface{} `json:"workers,omitempty"`
}

// HealthCheck returns a handler that reports application health information.
// workers may be nil when background evaluation is disabled.
func HealthCheck(cfg config.Config, workers func() map[string]interface{}) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
		}
		if workers != nil {
			payload.Workers = workers()
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}
