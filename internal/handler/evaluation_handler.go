package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/ar210505/rubric-coder-intel/internal/dto"
	"github.com/ar210505/rubric-coder-intel/internal/service"
	"github.com/ar210505/rubric-coder-intel/internal/utils"
)

// EvaluationHandler exposes the trigger, listing and stats endpoints.
type EvaluationHandler struct {
	evaluations service.EvaluationService
	stats       service.StatsService
	logger      zerolog.Logger
}

// NewEvaluationHandler builds an evaluation handler instance.
func NewEvaluationHandler(evaluations service.EvaluationService, stats service.StatsService, logger zerolog.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		evaluations: evaluations,
		stats:       stats,
		logger:      logger.With().Str("component", "evaluation_handler").Logger(),
	}
}

// Register attaches the read routes. The trigger is registered separately so it can carry a rate limit.
func (h *EvaluationHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/stats", h.statistics)
}

// Trigger scores a submission synchronously and returns the persisted evaluation.
func (h *EvaluationHandler) Trigger(c *fiber.Ctx) error {
	var payload dto.EvaluationTriggerRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	evaluation, err := h.evaluations.Evaluate(c.UserContext(), ownerIDFromContext(c), payload)
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "evaluation completed", evaluation)
}

func (h *EvaluationHandler) list(c *fiber.Ctx) error {
	evaluations, err := h.evaluations.List(c.UserContext(), ownerIDFromContext(c))
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "evaluations retrieved", evaluations)
}

func (h *EvaluationHandler) statistics(c *fiber.Ctx) error {
	stats, err := h.stats.Stats(c.UserContext(), ownerIDFromContext(c))
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "evaluation stats retrieved", stats)
}
