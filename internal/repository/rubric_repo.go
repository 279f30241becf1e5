package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/ar210505/rubric-coder-intel/internal/models"
)

// RubricRepository persists rubric definitions.
type RubricRepository interface {
	List(ctx context.Context, ownerID string) ([]models.Rubric, error)
	ListDefaults(ctx context.Context, ownerID string) ([]models.Rubric, error)
	GetByID(ctx context.Context, id string) (models.Rubric, error)
	Create(ctx context.Context, rubric *models.Rubric) error
	Update(ctx context.Context, rubric *models.Rubric) error
	Delete(ctx context.Context, id string) error
}

type rubricRepository struct {
	db *gorm.DB
}

// NewRubricRepository constructs a rubric repository.
func NewRubricRepository(db *gorm.DB) RubricRepository {
	return &rubricRepository{db: db}
}

func (r *rubricRepository) List(ctx context.Context, ownerID string) ([]models.Rubric, error) {
	var rubrics []models.Rubric
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&rubrics).Error; err != nil {
		return nil, err
	}
	return rubrics, nil
}

func (r *rubricRepository) ListDefaults(ctx context.Context, ownerID string) ([]models.Rubric, error) {
	var rubrics []models.Rubric
	if err := r.db.WithContext(ctx).
		Where("owner_id = ? AND is_default = ?", ownerID, true).
		Order("name ASC").
		Find(&rubrics).Error; err != nil {
		return nil, err
	}
	return rubrics, nil
}

func (r *rubricRepository) GetByID(ctx context.Context, id string) (models.Rubric, error) {
	var rubric models.Rubric
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&rubric).Error; err != nil {
		return models.Rubric{}, err
	}
	return rubric, nil
}

func (r *rubricRepository) Create(ctx context.Context, rubric *models.Rubric) error {
	return r.db.WithContext(ctx).Create(rubric).Error
}

func (r *rubricRepository) Update(ctx context.Context, rubric *models.Rubric) error {
	return r.db.WithContext(ctx).Save(rubric).Error
}

func (r *rubricRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Rubric{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
