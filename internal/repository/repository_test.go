package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ar210505/rubric-coder-intel/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Rubric{}, &models.Submission{}, &models.Evaluation{}))
	return db
}

func seedSubmission(t *testing.T, db *gorm.DB, owner string) models.Submission {
	t.Helper()
	submission := models.Submission{
		OwnerID:     owner,
		RubricID:    uuid.NewString(),
		Filename:    "flow.txt",
		StoragePath: owner + "/1.txt",
		FileType:    "text/plain",
	}
	require.NoError(t, NewSubmissionRepository(db).Create(context.Background(), &submission))
	return submission
}

func TestSubmissionRepositoryCreateDefaultsToPending(t *testing.T) {
	db := setupTestDB(t)
	submission := seedSubmission(t, db, "user-1")

	require.NotEmpty(t, submission.ID)
	stored, err := NewSubmissionRepository(db).GetByID(context.Background(), submission.ID)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusPending, stored.Status)
	require.Nil(t, stored.Evaluation)
}

func TestSubmissionRepositoryUpdateStatusNeverLeavesTerminalState(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()
	submission := seedSubmission(t, db, "user-1")

	updated, err := repo.UpdateStatus(ctx, submission.ID, models.SubmissionStatusFailed, "document unreadable")
	require.NoError(t, err)
	require.True(t, updated)

	updated, err = repo.UpdateStatus(ctx, submission.ID, models.SubmissionStatusCompleted, "")
	require.NoError(t, err)
	require.False(t, updated)

	stored, err := repo.GetByID(ctx, submission.ID)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusFailed, stored.Status)
	require.Equal(t, "document unreadable", stored.FailureReason)
}

func TestSubmissionRepositoryListFiltersOnEffectiveStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	stale := seedSubmission(t, db, "user-1")
	pending := seedSubmission(t, db, "user-1")
	failed := seedSubmission(t, db, "user-1")
	_, err := repo.UpdateStatus(ctx, failed.ID, models.SubmissionStatusFailed, "unreadable")
	require.NoError(t, err)

	// evaluation saved, status flip lost
	require.NoError(t, NewEvaluationRepository(db).Create(ctx, &models.Evaluation{SubmissionID: stale.ID, OwnerID: "user-1", OverallScore: 47}))

	statusOf := func(status string) []string {
		list, err := repo.List(ctx, SubmissionFilter{OwnerID: "user-1", Status: &status})
		require.NoError(t, err)
		ids := make([]string, 0, len(list))
		for _, submission := range list {
			ids = append(ids, submission.ID)
		}
		return ids
	}

	require.Equal(t, []string{stale.ID}, statusOf(models.SubmissionStatusCompleted))
	require.Equal(t, []string{pending.ID}, statusOf(models.SubmissionStatusPending))
	require.Equal(t, []string{failed.ID}, statusOf(models.SubmissionStatusFailed))
}

func TestEvaluationRepositoryRejectsSecondEvaluation(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEvaluationRepository(db)
	ctx := context.Background()
	submission := seedSubmission(t, db, "user-1")

	first := models.Evaluation{SubmissionID: submission.ID, OwnerID: "user-1", OverallScore: 47}
	require.NoError(t, repo.Create(ctx, &first))

	second := models.Evaluation{SubmissionID: submission.ID, OwnerID: "user-1", OverallScore: 90}
	require.Error(t, repo.Create(ctx, &second))

	stored, err := repo.GetBySubmissionID(ctx, submission.ID)
	require.NoError(t, err)
	require.Equal(t, first.ID, stored.ID)
	require.Equal(t, 47, stored.OverallScore)
}

func TestSubmissionRepositoryDeleteCascadesEvaluation(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	submissions := NewSubmissionRepository(db)
	evaluations := NewEvaluationRepository(db)
	submission := seedSubmission(t, db, "user-1")

	evaluation := models.Evaluation{
		SubmissionID:   submission.ID,
		OwnerID:        "user-1",
		OverallScore:   47,
		CriteriaScores: []models.CriterionScore{{Name: "Logical Flow", Score: 14, Feedback: "Consider improving logical flow"}},
		Strengths:      []string{},
		Improvements:   []string{"Logical Flow: could be expanded with clearer structure or detail"},
	}
	require.NoError(t, evaluations.Create(ctx, &evaluation))

	loaded, err := submissions.GetByID(ctx, submission.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.Evaluation)
	require.Equal(t, 14.0, loaded.Evaluation.CriteriaScores[0].Score)

	require.NoError(t, submissions.Delete(ctx, submission.ID))

	_, err = evaluations.GetBySubmissionID(ctx, submission.ID)
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))
	_, err = submissions.GetByID(ctx, submission.ID)
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	require.True(t, errors.Is(submissions.Delete(ctx, submission.ID), gorm.ErrRecordNotFound))
}

func TestEvaluationRepositoryListAndScoresAreOwnerScoped(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewEvaluationRepository(db)
	now := time.Now().UTC()

	mine := seedSubmission(t, db, "user-1")
	older := seedSubmission(t, db, "user-1")
	theirs := seedSubmission(t, db, "user-2")

	require.NoError(t, repo.Create(ctx, &models.Evaluation{SubmissionID: older.ID, OwnerID: "user-1", OverallScore: 20, CreatedAt: now.Add(-time.Hour)}))
	require.NoError(t, repo.Create(ctx, &models.Evaluation{SubmissionID: mine.ID, OwnerID: "user-1", OverallScore: 80, CreatedAt: now}))
	require.NoError(t, repo.Create(ctx, &models.Evaluation{SubmissionID: theirs.ID, OwnerID: "user-2", OverallScore: 55, CreatedAt: now}))

	items, err := repo.ListByOwner(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, 80, items[0].Evaluation.OverallScore)
	require.Equal(t, "flow.txt", items[0].Filename)

	points, err := repo.ScoresByOwner(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, points, 2)
	require.Equal(t, 80, points[0].OverallScore)
	require.Equal(t, 20, points[1].OverallScore)

	empty, err := repo.ListByOwner(ctx, "nobody")
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestRubricRepositoryDefaultsAreOrderedByName(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewRubricRepository(db)

	for _, name := range []string{"Pseudocode Standards", "Algorithm Analysis", "Custom"} {
		rubric := models.Rubric{
			OwnerID:   "user-1",
			Name:      name,
			IsDefault: name != "Custom",
			Criteria:  []models.Criterion{{Name: "Logic", Weight: 10}},
		}
		require.NoError(t, repo.Create(ctx, &rubric))
	}

	defaults, err := repo.ListDefaults(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, defaults, 2)
	require.Equal(t, "Algorithm Analysis", defaults[0].Name)

	all, err := repo.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, 10.0, all[0].Criteria[0].Weight)

	require.NoError(t, repo.Delete(ctx, all[0].ID))
	require.True(t, errors.Is(repo.Delete(ctx, all[0].ID), gorm.ErrRecordNotFound))
}
