package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrInvalidCriteria indicates a rubric's criteria cannot be used for scoring.
var ErrInvalidCriteria = errors.New("invalid rubric criteria")

// Criterion is one named, weighted axis of a rubric.
// MaxScore is stored and echoed but does not influence scoring.
type Criterion struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Weight      float64  `json:"weight"`
	MaxScore    *float64 `json:"maxScore,omitempty"`
}

// Rubric is a named, weighted list of evaluation criteria.
type Rubric struct {
	ID          string                         `gorm:"type:varchar(36);primaryKey" json:"id"`
	OwnerID     string                         `gorm:"size:64;not null;index" json:"owner_id"`
	Name        string                         `gorm:"size:255;not null" json:"name"`
	Description string                         `gorm:"type:text" json:"description"`
	Criteria    datatypes.JSONSlice[Criterion] `json:"criteria"`
	IsDefault   bool                           `gorm:"not null;default:false" json:"is_default"`
	CreatedAt   time.Time                      `json:"created_at"`
	UpdatedAt   time.Time                      `json:"updated_at"`
}

// BeforeCreate assigns an opaque identifier.
func (r *Rubric) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// Validate reports whether the rubric can be used for evaluation.
func (r Rubric) Validate() error {
	return ValidateCriteria(r.Criteria)
}

// TotalWeight sums the criterion weights.
func (r Rubric) TotalWeight() float64 {
	var total float64
	for _, criterion := range r.Criteria {
		total += criterion.Weight
	}
	return total
}

// ValidateCriteria requires at least one criterion, each with a name and a strictly positive weight.
func ValidateCriteria(criteria []Criterion) error {
	if len(criteria) == 0 {
		return fmt.Errorf("%w: at least one criterion is required", ErrInvalidCriteria)
	}

	for i, criterion := range criteria {
		if strings.TrimSpace(criterion.Name) == "" {
			return fmt.Errorf("%w: criterion %d has no name", ErrInvalidCriteria, i)
		}
		if !(criterion.Weight > 0) {
			return fmt.Errorf("%w: criterion %q must have a positive weight", ErrInvalidCriteria, criterion.Name)
		}
	}

	return nil
}
