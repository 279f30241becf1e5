package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/ar210505/rubric-coder-intel/internal/dto"
	"github.com/ar210505/rubric-coder-intel/internal/service"
	"github.com/ar210505/rubric-coder-intel/internal/utils"
)

// SubmissionHandler manages submission endpoints.
type SubmissionHandler struct {
	service service.SubmissionService
	logger  zerolog.Logger
}

// NewSubmissionHandler builds a submission handler instance.
func NewSubmissionHandler(service service.SubmissionService, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		service: service,
		logger:  logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *SubmissionHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Get("/recent", h.recent)
	router.Get("/:id", h.get)
	router.Delete("/:id", h.delete)
	router.Get("/:id/evaluation", h.evaluation)
}

func (h *SubmissionHandler) list(c *fiber.Ctx) error {
	filter := dto.SubmissionFilter{}
	if status := c.Query("status"); status != "" {
		filter.Status = &status
	}

	submissions, err := h.service.List(c.UserContext(), ownerIDFromContext(c), filter)
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "submissions retrieved", submissions)
}

func (h *SubmissionHandler) recent(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil || limit < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	submissions, err := h.service.Recent(c.UserContext(), ownerIDFromContext(c), limit)
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "recent submissions retrieved", submissions)
}

func (h *SubmissionHandler) create(c *fiber.Ctx) error {
	payload := dto.SubmissionCreateRequest{RubricID: c.FormValue("rubric_id")}

	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	submission, err := h.service.Upload(c.UserContext(), ownerIDFromContext(c), payload, file)
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission created", submission)
}

func (h *SubmissionHandler) get(c *fiber.Ctx) error {
	submission, err := h.service.Get(c.UserContext(), ownerIDFromContext(c), c.Params("id"))
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "submission retrieved", submission)
}

func (h *SubmissionHandler) delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), ownerIDFromContext(c), c.Params("id")); err != nil {
		return writeServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "submission deleted", nil)
}

// evaluation is the polling endpoint: 200 with the evaluation, 202 with the status until one exists.
func (h *SubmissionHandler) evaluation(c *fiber.Ctx) error {
	evaluation, status, err := h.service.Evaluation(c.UserContext(), ownerIDFromContext(c), c.Params("id"))
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}

	if evaluation == nil {
		return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "evaluation not available yet", status)
	}
	return utils.SendSuccess(c, "evaluation retrieved", evaluation)
}
