package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CriterionScore is the persisted score and remark for one criterion.
type CriterionScore struct {
	Name     string  `json:"name"`
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

// Evaluation is the immutable result of scoring a Submission.
// At most one row exists per submission.
type Evaluation struct {
	ID               string                              `gorm:"type:varchar(36);primaryKey" json:"id"`
	SubmissionID     string                              `gorm:"type:varchar(36);not null;uniqueIndex" json:"submission_id"`
	OwnerID          string                              `gorm:"size:64;not null;index" json:"owner_id"`
	OverallScore     int                                 `gorm:"not null" json:"overall_score"`
	CriteriaScores   datatypes.JSONSlice[CriterionScore] `json:"criteria_scores"`
	Strengths        datatypes.JSONSlice[string]         `json:"strengths"`
	Improvements     datatypes.JSONSlice[string]         `json:"improvements"`
	DetailedFeedback string                              `gorm:"type:text" json:"detailed_feedback"`
	ScoringMode      string                              `gorm:"size:32" json:"scoring_mode"`
	CreatedAt        time.Time                           `gorm:"index" json:"created_at"`
}

// BeforeCreate assigns an opaque identifier.
func (e *Evaluation) BeforeCreate(*gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
