package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/ar210505/rubric-coder-intel/internal/dto"
	"github.com/ar210505/rubric-coder-intel/internal/service"
	"github.com/ar210505/rubric-coder-intel/internal/utils"
)

// RubricHandler manages rubric endpoints.
type RubricHandler struct {
	service service.RubricService
	seeder  service.SeedService
	logger  zerolog.Logger
}

// NewRubricHandler builds a rubric handler instance.
func NewRubricHandler(rubrics service.RubricService, seeder service.SeedService, logger zerolog.Logger) *RubricHandler {
	return &RubricHandler{
		service: rubrics,
		seeder:  seeder,
		logger:  logger.With().Str("component", "rubric_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *RubricHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Get("/defaults", h.listDefaults)
	router.Post("/defaults", h.seedDefaults)
	router.Get("/:id", h.get)
	router.Put("/:id", h.update)
	router.Delete("/:id", h.delete)
}

func (h *RubricHandler) list(c *fiber.Ctx) error {
	rubrics, err := h.service.List(c.UserContext(), ownerIDFromContext(c))
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "rubrics retrieved", rubrics)
}

func (h *RubricHandler) listDefaults(c *fiber.Ctx) error {
	rubrics, err := h.service.ListDefaults(c.UserContext(), ownerIDFromContext(c))
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "default rubrics retrieved", rubrics)
}

func (h *RubricHandler) seedDefaults(c *fiber.Ctx) error {
	rubrics, created, err := h.seeder.SeedDefaultRubrics(c.UserContext(), ownerIDFromContext(c))
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}

	status := fiber.StatusOK
	if created > 0 {
		status = fiber.StatusCreated
	}
	return utils.SendSuccessWithStatus(c, status, "default rubrics seeded", fiber.Map{
		"created": created,
		"rubrics": rubrics,
	})
}

func (h *RubricHandler) get(c *fiber.Ctx) error {
	rubric, err := h.service.Get(c.UserContext(), ownerIDFromContext(c), c.Params("id"))
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "rubric retrieved", rubric)
}

func (h *RubricHandler) create(c *fiber.Ctx) error {
	var payload dto.RubricCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	rubric, err := h.service.Create(c.UserContext(), ownerIDFromContext(c), payload)
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "rubric created", rubric)
}

func (h *RubricHandler) update(c *fiber.Ctx) error {
	var payload dto.RubricUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	rubric, err := h.service.Update(c.UserContext(), ownerIDFromContext(c), c.Params("id"), payload)
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "rubric updated", rubric)
}

func (h *RubricHandler) delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), ownerIDFromContext(c), c.Params("id")); err != nil {
		return writeServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "rubric deleted", nil)
}
