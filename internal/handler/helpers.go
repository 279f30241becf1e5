package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/ar210505/rubric-coder-intel/internal/middleware"
	"github.com/ar210505/rubric-coder-intel/internal/service"
	"github.com/ar210505/rubric-coder-intel/internal/utils"
)

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func ownerIDFromContext(c *fiber.Ctx) string {
	return middleware.UserID(c)
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func validationDetails(err validator.ValidationErrors) []string {
	fields := make([]string, 0, len(err))
	for _, fieldErr := range err {
		fields = append(fields, fieldErr.Namespace()+": "+fieldErr.Tag())
	}
	return fields
}

// writeServiceError maps service sentinels onto HTTP statuses.
func writeServiceError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrRubricNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "rubric not found")
	case errors.As(err, &validationErrors):
		return utils.Fail(c, fiber.StatusBadRequest, "invalid request", validationDetails(validationErrors))
	case errors.Is(err, service.ErrInvalidRubric):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUploadMissing):
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	case errors.Is(err, service.ErrUploadTooLarge):
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, "file exceeds maximum allowed size")
	case errors.Is(err, service.ErrUnsupportedDocument):
		return utils.SendError(c, fiber.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, service.ErrSubmissionClosed):
		return utils.SendError(c, fiber.StatusConflict, "submission evaluation already failed")
	case errors.Is(err, service.ErrEvaluationInProgress):
		return utils.SendError(c, fiber.StatusConflict, "evaluation already in progress")
	case errors.Is(err, service.ErrDispatchFailure):
		requestLogger(logger, c).Warn().Err(err).Msg("evaluation not scheduled")
		return utils.SendError(c, fiber.StatusServiceUnavailable, "evaluation could not be scheduled, upload again later")
	case errors.Is(err, service.ErrStorageFailure), errors.Is(err, service.ErrPersistenceFailure):
		requestLogger(logger, c).Warn().Err(err).Msg("transient failure")
		return utils.SendError(c, fiber.StatusServiceUnavailable, "temporarily unavailable, retry later")
	default:
		requestLogger(logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
