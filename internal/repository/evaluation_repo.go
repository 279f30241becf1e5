package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ar210505/rubric-coder-intel/internal/models"
)

// EvaluationListItem pairs an evaluation with the filename of its submission.
type EvaluationListItem struct {
	Evaluation models.Evaluation
	Filename   string
}

// ScorePoint is the projection the stats layer aggregates over.
type ScorePoint struct {
	OverallScore int
	CreatedAt    time.Time
}

// EvaluationRepository persists scoring results.
type EvaluationRepository interface {
	Create(ctx context.Context, evaluation *models.Evaluation) error
	GetBySubmissionID(ctx context.Context, submissionID string) (models.Evaluation, error)
	ListByOwner(ctx context.Context, ownerID string) ([]EvaluationListItem, error)
	ScoresByOwner(ctx context.Context, ownerID string) ([]ScorePoint, error)
}

type evaluationRepository struct {
	db *gorm.DB
}

// NewEvaluationRepository constructs an evaluation repository.
func NewEvaluationRepository(db *gorm.DB) EvaluationRepository {
	return &evaluationRepository{db: db}
}

// Create inserts the evaluation. The unique index on submission_id rejects a second row.
func (r *evaluationRepository) Create(ctx context.Context, evaluation *models.Evaluation) error {
	return r.db.WithContext(ctx).Create(evaluation).Error
}

func (r *evaluationRepository) GetBySubmissionID(ctx context.Context, submissionID string) (models.Evaluation, error) {
	var evaluation models.Evaluation
	if err := r.db.WithContext(ctx).Where("submission_id = ?", submissionID).First(&evaluation).Error; err != nil {
		return models.Evaluation{}, err
	}
	return evaluation, nil
}

func (r *evaluationRepository) ListByOwner(ctx context.Context, ownerID string) ([]EvaluationListItem, error) {
	var evaluations []models.Evaluation
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&evaluations).Error; err != nil {
		return nil, err
	}

	if len(evaluations) == 0 {
		return []EvaluationListItem{}, nil
	}

	ids := make([]string, 0, len(evaluations))
	for _, evaluation := range evaluations {
		ids = append(ids, evaluation.SubmissionID)
	}

	var submissions []models.Submission
	if err := r.db.WithContext(ctx).
		Select("id", "filename").
		Where("id IN ?", ids).
		Find(&submissions).Error; err != nil {
		return nil, err
	}

	filenames := make(map[string]string, len(submissions))
	for _, submission := range submissions {
		filenames[submission.ID] = submission.Filename
	}

	items := make([]EvaluationListItem, 0, len(evaluations))
	for _, evaluation := range evaluations {
		items = append(items, EvaluationListItem{
			Evaluation: evaluation,
			Filename:   filenames[evaluation.SubmissionID],
		})
	}

	return items, nil
}

// ScoresByOwner returns overall scores newest first.
func (r *evaluationRepository) ScoresByOwner(ctx context.Context, ownerID string) ([]ScorePoint, error) {
	var points []ScorePoint
	if err := r.db.WithContext(ctx).
		Model(&models.Evaluation{}).
		Select("overall_score", "created_at").
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Scan(&points).Error; err != nil {
		return nil, err
	}

	return points, nil
}
