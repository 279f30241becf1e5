package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ar210505/rubric-coder-intel/internal/dto"
	"github.com/ar210505/rubric-coder-intel/internal/models"
	"github.com/ar210505/rubric-coder-intel/internal/repository"
)

// SeedService installs the built-in rubrics for a user.
type SeedService interface {
	SeedDefaultRubrics(ctx context.Context, ownerID string) ([]dto.RubricResponse, int, error)
}

type seedService struct {
	rubrics repository.RubricRepository
	logger  zerolog.Logger
}

// NewSeedService constructs a seeding service.
func NewSeedService(rubrics repository.RubricRepository, logger zerolog.Logger) SeedService {
	return &seedService{
		rubrics: rubrics,
		logger:  logger.With().Str("component", "seed_service").Logger(),
	}
}

// DefaultRubrics returns fresh copies of the built-in rubric definitions.
func DefaultRubrics() []models.Rubric {
	return []models.Rubric{
		{
			Name:        "Flowchart Fundamentals",
			Description: "Evaluate basic flowchart structure, logic flow, and symbol usage",
			IsDefault:   true,
			Criteria: []models.Criterion{
				{Name: "Logical Flow", Description: "Sequential and logical progression", Weight: 30},
				{Name: "Symbol Usage", Description: "Correct flowchart symbols", Weight: 25},
				{Name: "Completeness", Description: "All paths and edge cases covered", Weight: 25},
				{Name: "Documentation", Description: "Clear labels and annotations", Weight: 20},
			},
		},
		{
			Name:        "Algorithm Analysis",
			Description: "Assess algorithm efficiency, correctness, and implementation quality",
			IsDefault:   true,
			Criteria: []models.Criterion{
				{Name: "Time Complexity", Description: "Efficiency analysis", Weight: 35},
				{Name: "Space Complexity", Description: "Memory usage", Weight: 25},
				{Name: "Correctness", Description: "Logic accuracy", Weight: 30},
				{Name: "Code Quality", Description: "Readability and style", Weight: 10},
			},
		},
		{
			Name:        "Pseudocode Standards",
			Description: "Evaluate pseudocode syntax, readability, and logic clarity",
			IsDefault:   true,
			Criteria: []models.Criterion{
				{Name: "Syntax Adherence", Description: "Proper pseudocode conventions", Weight: 25},
				{Name: "Logic Clarity", Description: "Clear algorithmic logic", Weight: 35},
				{Name: "Readability", Description: "Easy to understand", Weight: 20},
				{Name: "Structure", Description: "Well-organized", Weight: 20},
			},
		},
	}
}

// SeedDefaultRubrics creates any built-in rubric the owner does not have yet, matched by name.
func (s *seedService) SeedDefaultRubrics(ctx context.Context, ownerID string) ([]dto.RubricResponse, int, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, 0, err
	}

	existing, err := s.rubrics.ListDefaults(ctx, ownerID)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	present := make(map[string]struct{}, len(existing))
	for _, rubric := range existing {
		present[rubric.Name] = struct{}{}
	}

	created := 0
	for _, rubric := range DefaultRubrics() {
		if _, ok := present[rubric.Name]; ok {
			continue
		}
		rubric.OwnerID = ownerID
		if err := s.rubrics.Create(ctx, &rubric); err != nil {
			return nil, created, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
		}
		created++
	}

	if created > 0 {
		s.logger.Info().Str("owner_id", ownerID).Int("created", created).Msg("default rubrics seeded")
		existing, err = s.rubrics.ListDefaults(ctx, ownerID)
		if err != nil {
			return nil, created, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
		}
	}

	return dto.NewRubricResponses(existing), created, nil
}
