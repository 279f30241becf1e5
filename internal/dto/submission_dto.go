package dto

import (
	"time"

	"github.com/ar210505/rubric-coder-intel/internal/models"
)

// SubmissionCreateRequest describes the form fields of a multipart upload.
type SubmissionCreateRequest struct {
	RubricID string `form:"rubric_id" validate:"required"`
}

// SubmissionFilter describes query string filters for listing submissions.
type SubmissionFilter struct {
	Status *string `query:"status" validate:"omitempty,oneof=pending completed failed"`
}

// SubmissionResponse is returned to API clients when viewing submissions.
type SubmissionResponse struct {
	ID            string              `json:"id"`
	RubricID      string              `json:"rubricId"`
	Filename      string              `json:"filename"`
	StoragePath   string              `json:"storagePath"`
	FileType      string              `json:"fileType"`
	Status        string              `json:"status"`
	FailureReason string              `json:"failureReason,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
	Rubric        *RubricSummary      `json:"rubric,omitempty"`
	Evaluation    *EvaluationResponse `json:"evaluation,omitempty"`
}

// NewSubmissionResponse maps a submission; rubric may be nil when it was deleted.
func NewSubmissionResponse(submission models.Submission, rubric *models.Rubric) SubmissionResponse {
	response := SubmissionResponse{
		ID:            submission.ID,
		RubricID:      submission.RubricID,
		Filename:      submission.Filename,
		StoragePath:   submission.StoragePath,
		FileType:      submission.FileType,
		Status:        submission.EffectiveStatus(),
		FailureReason: submission.FailureReason,
		CreatedAt:     submission.CreatedAt,
		UpdatedAt:     submission.UpdatedAt,
	}

	if rubric != nil {
		response.Rubric = &RubricSummary{ID: rubric.ID, Name: rubric.Name}
	}

	if submission.Evaluation != nil {
		evaluation := NewEvaluationResponse(*submission.Evaluation)
		response.Evaluation = &evaluation
	}

	return response
}

// NewSubmissionResponses maps submissions without rubric lookups.
func NewSubmissionResponses(submissions []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		responses = append(responses, NewSubmissionResponse(submission, nil))
	}
	return responses
}
