package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ar210505/rubric-coder-intel/internal/config"
	"github.com/ar210505/rubric-coder-intel/internal/handler"
	"github.com/ar210505/rubric-coder-intel/internal/middleware"
	"github.com/ar210505/rubric-coder-intel/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	RubricHandler     *handler.RubricHandler
	SubmissionHandler *handler.SubmissionHandler
	EvaluationHandler *handler.EvaluationHandler
	JWTMiddleware     fiber.Handler
	// WorkerStats feeds the health payload; nil omits it.
	WorkerStats func() map[string]interface{}
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.WorkerStats))

	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	v2 := app.Group("/api/v2", jwtMiddleware, middleware.RequireUser())

	if deps.RubricHandler != nil {
		deps.RubricHandler.Register(v2.Group("/rubrics"))
	}

	if deps.SubmissionHandler != nil {
		deps.SubmissionHandler.Register(v2.Group("/submissions"))
	}

	if deps.EvaluationHandler != nil {
		evaluations := v2.Group("/evaluations")
		evaluations.Post("", middleware.RateLimit("evaluations", cfg.EvaluationRateLimit, time.Minute), deps.EvaluationHandler.Trigger)
		deps.EvaluationHandler.Register(evaluations)
	}
}
