package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/ar210505/rubric-coder-intel/internal/dto"
	"github.com/ar210505/rubric-coder-intel/internal/models"
	"github.com/ar210505/rubric-coder-intel/internal/repository"
)

// RubricService manages the caller's rubrics.
type RubricService interface {
	List(ctx context.Context, ownerID string) ([]dto.RubricResponse, error)
	ListDefaults(ctx context.Context, ownerID string) ([]dto.RubricResponse, error)
	Get(ctx context.Context, ownerID, id string) (dto.RubricResponse, error)
	Create(ctx context.Context, ownerID string, payload dto.RubricCreateRequest) (dto.RubricResponse, error)
	Update(ctx context.Context, ownerID, id string, payload dto.RubricUpdateRequest) (dto.RubricResponse, error)
	Delete(ctx context.Context, ownerID, id string) error
}

type rubricService struct {
	repo      repository.RubricRepository
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewRubricService constructs the rubric service.
func NewRubricService(repo repository.RubricRepository, validate *validator.Validate, logger zerolog.Logger) RubricService {
	return &rubricService{
		repo:      repo,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "rubric_service").Logger(),
	}
}

func (s *rubricService) List(ctx context.Context, ownerID string) ([]dto.RubricResponse, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}

	rubrics, err := s.repo.List(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}
	return dto.NewRubricResponses(rubrics), nil
}

func (s *rubricService) ListDefaults(ctx context.Context, ownerID string) ([]dto.RubricResponse, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}

	rubrics, err := s.repo.ListDefaults(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}
	return dto.NewRubricResponses(rubrics), nil
}

func (s *rubricService) Get(ctx context.Context, ownerID, id string) (dto.RubricResponse, error) {
	rubric, err := s.load(ctx, ownerID, id)
	if err != nil {
		return dto.RubricResponse{}, err
	}
	return dto.NewRubricResponse(rubric), nil
}

func (s *rubricService) Create(ctx context.Context, ownerID string, payload dto.RubricCreateRequest) (dto.RubricResponse, error) {
	if err := requireOwner(ownerID); err != nil {
		return dto.RubricResponse{}, err
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.RubricResponse{}, fmt.Errorf("%w: %v", ErrInvalidRubric, err)
	}

	rubric := models.Rubric{
		OwnerID:     ownerID,
		Name:        s.clean(payload.Name),
		Description: s.clean(payload.Description),
		Criteria:    s.cleanCriteria(dto.ToModelCriteria(payload.Criteria)),
		IsDefault:   payload.IsDefault,
	}
	if strings.TrimSpace(rubric.Name) == "" {
		return dto.RubricResponse{}, fmt.Errorf("%w: name is required", ErrInvalidRubric)
	}
	if err := rubric.Validate(); err != nil {
		return dto.RubricResponse{}, fmt.Errorf("%w: %v", ErrInvalidRubric, err)
	}

	if err := s.repo.Create(ctx, &rubric); err != nil {
		return dto.RubricResponse{}, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	s.logger.Info().Str("rubric_id", rubric.ID).Str("owner_id", ownerID).Msg("rubric created")
	return dto.NewRubricResponse(rubric), nil
}

func (s *rubricService) Update(ctx context.Context, ownerID, id string, payload dto.RubricUpdateRequest) (dto.RubricResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.RubricResponse{}, fmt.Errorf("%w: %v", ErrInvalidRubric, err)
	}

	rubric, err := s.load(ctx, ownerID, id)
	if err != nil {
		return dto.RubricResponse{}, err
	}

	if payload.Name != nil {
		rubric.Name = s.clean(*payload.Name)
		if strings.TrimSpace(rubric.Name) == "" {
			return dto.RubricResponse{}, fmt.Errorf("%w: name is required", ErrInvalidRubric)
		}
	}
	if payload.Description != nil {
		rubric.Description = s.clean(*payload.Description)
	}
	if payload.Criteria != nil {
		rubric.Criteria = s.cleanCriteria(dto.ToModelCriteria(payload.Criteria))
	}
	if payload.IsDefault != nil {
		rubric.IsDefault = *payload.IsDefault
	}

	if err := rubric.Validate(); err != nil {
		return dto.RubricResponse{}, fmt.Errorf("%w: %v", ErrInvalidRubric, err)
	}

	if err := s.repo.Update(ctx, &rubric); err != nil {
		return dto.RubricResponse{}, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	return dto.NewRubricResponse(rubric), nil
}

// Delete removes the rubric only. Submissions keep their weak reference.
func (s *rubricService) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.load(ctx, ownerID, id); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRubricNotFound
		}
		return fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	s.logger.Info().Str("rubric_id", id).Str("owner_id", ownerID).Msg("rubric deleted")
	return nil
}

func (s *rubricService) load(ctx context.Context, ownerID, id string) (models.Rubric, error) {
	if err := requireOwner(ownerID); err != nil {
		return models.Rubric{}, err
	}

	rubric, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Rubric{}, ErrRubricNotFound
		}
		return models.Rubric{}, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}
	if rubric.OwnerID != ownerID {
		return models.Rubric{}, ErrRubricNotFound
	}
	return rubric, nil
}

func (s *rubricService) clean(value string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(value))
}

func (s *rubricService) cleanCriteria(criteria []models.Criterion) []models.Criterion {
	for i := range criteria {
		criteria[i].Name = s.clean(criteria[i].Name)
		criteria[i].Description = s.clean(criteria[i].Description)
	}
	return criteria
}
