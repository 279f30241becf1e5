package dto

import (
	"time"

	"github.com/ar210505/rubric-coder-intel/internal/models"
)

// CriterionPayload is the wire shape of one rubric criterion.
type CriterionPayload struct {
	Name        string   `json:"name" validate:"required,max=255"`
	Description string   `json:"description" validate:"max=2000"`
	Weight      float64  `json:"weight" validate:"gt=0"`
	MaxScore    *float64 `json:"maxScore,omitempty" validate:"omitempty,gte=0"`
}

// RubricCreateRequest is the payload for creating a rubric.
type RubricCreateRequest struct {
	Name        string             `json:"name" validate:"required,max=255"`
	Description string             `json:"description" validate:"max=2000"`
	Criteria    []CriterionPayload `json:"criteria" validate:"required,min=1,dive"`
	IsDefault   bool               `json:"isDefault"`
}

// RubricUpdateRequest replaces the mutable fields of a rubric. Nil fields are left unchanged.
type RubricUpdateRequest struct {
	Name        *string            `json:"name" validate:"omitempty,min=1,max=255"`
	Description *string            `json:"description" validate:"omitempty,max=2000"`
	Criteria    []CriterionPayload `json:"criteria" validate:"omitempty,min=1,dive"`
	IsDefault   *bool              `json:"isDefault"`
}

// RubricResponse is returned to API clients.
type RubricResponse struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Criteria    []CriterionPayload `json:"criteria"`
	IsDefault   bool               `json:"isDefault"`
	TotalWeight float64            `json:"totalWeight"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// RubricSummary is embedded in submission responses.
type RubricSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NewRubricResponse maps a rubric model to its response.
func NewRubricResponse(rubric models.Rubric) RubricResponse {
	return RubricResponse{
		ID:          rubric.ID,
		Name:        rubric.Name,
		Description: rubric.Description,
		Criteria:    NewCriterionPayloads(rubric.Criteria),
		IsDefault:   rubric.IsDefault,
		TotalWeight: rubric.TotalWeight(),
		CreatedAt:   rubric.CreatedAt,
		UpdatedAt:   rubric.UpdatedAt,
	}
}

// NewRubricResponses maps a slice of rubrics.
func NewRubricResponses(rubrics []models.Rubric) []RubricResponse {
	responses := make([]RubricResponse, 0, len(rubrics))
	for _, rubric := range rubrics {
		responses = append(responses, NewRubricResponse(rubric))
	}
	return responses
}

// NewCriterionPayloads converts model criteria to their wire shape.
func NewCriterionPayloads(criteria []models.Criterion) []CriterionPayload {
	payloads := make([]CriterionPayload, 0, len(criteria))
	for _, criterion := range criteria {
		payloads = append(payloads, CriterionPayload{
			Name:        criterion.Name,
			Description: criterion.Description,
			Weight:      criterion.Weight,
			MaxScore:    criterion.MaxScore,
		})
	}
	return payloads
}

// ToModelCriteria converts wire criteria to the model type.
func ToModelCriteria(payloads []CriterionPayload) []models.Criterion {
	criteria := make([]models.Criterion, 0, len(payloads))
	for _, payload := range payloads {
		criteria = append(criteria, models.Criterion{
			Name:        payload.Name,
			Description: payload.Description,
			Weight:      payload.Weight,
			MaxScore:    payload.MaxScore,
		})
	}
	return criteria
}
