package dto

import (
	"time"

	"github.com/ar210505/rubric-coder-intel/internal/models"
)

// EvaluationTriggerRequest starts scoring of a submission with explicit criteria and text.
type EvaluationTriggerRequest struct {
	SubmissionID   string             `json:"submissionId" validate:"required"`
	RubricCriteria []CriterionPayload `json:"rubricCriteria" validate:"omitempty,dive"`
	DocumentText   string             `json:"documentText"`
}

// CriterionScoreResponse is the per-criterion part of an evaluation.
type CriterionScoreResponse struct {
	Name     string  `json:"name"`
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

// EvaluationResponse is the persisted evaluation as clients see it.
type EvaluationResponse struct {
	ID               string                   `json:"id"`
	SubmissionID     string                   `json:"submissionId"`
	OverallScore     int                      `json:"overallScore"`
	CriteriaScores   []CriterionScoreResponse `json:"criteriaScores"`
	Strengths        []string                 `json:"strengths"`
	Improvements     []string                 `json:"improvements"`
	DetailedFeedback string                   `json:"detailedFeedback"`
	ScoringMode      string                   `json:"scoringMode"`
	CreatedAt        time.Time                `json:"createdAt"`
}

// EvaluationListItem adds the submission filename to an evaluation.
type EvaluationListItem struct {
	EvaluationResponse
	Filename string `json:"filename"`
}

// EvaluationStatusResponse is returned by the polling endpoint while no evaluation exists.
type EvaluationStatusResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	FailureReason string `json:"failureReason,omitempty"`
}

// TrendPoint is one entry of the recent score trend.
type TrendPoint struct {
	Date  string `json:"date"`
	Score int    `json:"score"`
}

// StatsResponse aggregates a user's evaluations.
type StatsResponse struct {
	TotalEvaluations int          `json:"totalEvaluations"`
	AverageScore     int          `json:"averageScore"`
	HighestScore     int          `json:"highestScore"`
	LowestScore      int          `json:"lowestScore"`
	RecentTrend      []TrendPoint `json:"recentTrend"`
}

// NewEvaluationResponse maps an evaluation model to its response.
func NewEvaluationResponse(evaluation models.Evaluation) EvaluationResponse {
	scores := make([]CriterionScoreResponse, 0, len(evaluation.CriteriaScores))
	for _, score := range evaluation.CriteriaScores {
		scores = append(scores, CriterionScoreResponse{
			Name:     score.Name,
			Score:    score.Score,
			Feedback: score.Feedback,
		})
	}

	return EvaluationResponse{
		ID:               evaluation.ID,
		SubmissionID:     evaluation.SubmissionID,
		OverallScore:     evaluation.OverallScore,
		CriteriaScores:   scores,
		Strengths:        nonNilStrings(evaluation.Strengths),
		Improvements:     nonNilStrings(evaluation.Improvements),
		DetailedFeedback: evaluation.DetailedFeedback,
		ScoringMode:      evaluation.ScoringMode,
		CreatedAt:        evaluation.CreatedAt,
	}
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
