package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/ar210505/rubric-coder-intel/internal/models"
)

// SubmissionFilter allows narrowing submission queries.
type SubmissionFilter struct {
	OwnerID string
	Status  *string
	Limit   int
}

// SubmissionRepository defines data operations for submissions.
type SubmissionRepository interface {
	List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error)
	GetByID(ctx context.Context, id string) (models.Submission, error)
	Create(ctx context.Context, submission *models.Submission) error
	UpdateStatus(ctx context.Context, id, status, reason string) (bool, error)
	Delete(ctx context.Context, id string) error
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Submission{}).Preload("Evaluation")
}

func (r *submissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error) {
	query := r.baseQuery(ctx).Where("submissions.owner_id = ?", filter.OwnerID)

	if filter.Status != nil {
		query = whereEffectiveStatus(query, *filter.Status)
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var submissions []models.Submission
	if err := query.Order("created_at DESC").Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

// evaluationExists matches submissions that already have an evaluation row.
const evaluationExists = "EXISTS (SELECT 1 FROM evaluations WHERE evaluations.submission_id = submissions.id)"

// whereEffectiveStatus filters on the status readers see: an evaluation means completed,
// whatever the stored column says.
func whereEffectiveStatus(query *gorm.DB, status string) *gorm.DB {
	if status == models.SubmissionStatusCompleted {
		return query.Where("(submissions.status = ? OR "+evaluationExists+")", status)
	}
	return query.Where("submissions.status = ? AND NOT "+evaluationExists, status)
}

func (r *submissionRepository) GetByID(ctx context.Context, id string) (models.Submission, error) {
	var submission models.Submission
	if err := r.baseQuery(ctx).Where("id = ?", id).First(&submission).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Omit("Evaluation").Create(submission).Error
}

// UpdateStatus moves a pending submission into status. It reports false when the
// row was already terminal, so a terminal state is never left.
func (r *submissionRepository) UpdateStatus(ctx context.Context, id, status, reason string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("id = ? AND status = ?", id, models.SubmissionStatusPending).
		Updates(map[string]interface{}{
			"status":         status,
			"failure_reason": reason,
		})
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

// Delete removes the submission together with its evaluation.
func (r *submissionRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("submission_id = ?", id).Delete(&models.Evaluation{}).Error; err != nil {
			return err
		}

		result := tx.Where("id = ?", id).Delete(&models.Submission{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		return nil
	})
}
