package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ar210505/rubric-coder-intel/internal/models"
	"github.com/ar210505/rubric-coder-intel/internal/repository"
)

func TestDefaultRubricsAreValid(t *testing.T) {
	for _, rubric := range DefaultRubrics() {
		require.NoError(t, rubric.Validate(), rubric.Name)
		require.True(t, rubric.IsDefault)
		require.Equal(t, 100.0, rubric.TotalWeight(), rubric.Name)
	}
}

func TestDefaultRubricsReturnsFreshCopies(t *testing.T) {
	first := DefaultRubrics()
	first[0].Criteria[0].Weight = 1

	second := DefaultRubrics()
	require.Equal(t, 30.0, second[0].Criteria[0].Weight)
}

func TestSeedSkipsDefaultsTheOwnerAlreadyHas(t *testing.T) {
	db := setupServiceDB(t)
	existing := models.Rubric{
		OwnerID:   "owner-1",
		Name:      "Flowchart Fundamentals",
		IsDefault: true,
		Criteria:  []models.Criterion{{Name: "Custom", Weight: 10}},
	}
	require.NoError(t, db.Create(&existing).Error)

	seeder := NewSeedService(repository.NewRubricRepository(db), zerolog.Nop())
	seeded, created, err := seeder.SeedDefaultRubrics(context.Background(), "owner-1")
	require.NoError(t, err)
	require.Equal(t, 2, created)
	require.Len(t, seeded, 3)

	for _, rubric := range seeded {
		if rubric.Name == "Flowchart Fundamentals" {
			require.Equal(t, existing.ID, rubric.ID)
			require.Len(t, rubric.Criteria, 1)
		}
	}

	_, _, err = seeder.SeedDefaultRubrics(context.Background(), "")
	require.ErrorIs(t, err, ErrUnauthorized)
}
