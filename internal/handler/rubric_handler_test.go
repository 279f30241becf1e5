package handler_test

import (
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/ar210505/rubric-coder-intel/internal/dto"
)

func TestRubricCRUD(t *testing.T) {
	app := newTestApp(t, testOptions{})

	resp, env := doJSON(t, app, http.MethodPost, "/api/v2/rubrics", "owner-1", map[string]interface{}{
		"name":        "<b>Pseudocode</b>",
		"description": "Readable steps",
		"criteria": []map[string]interface{}{
			{"name": "Clarity", "weight": 40},
			{"name": "Structure", "weight": 60, "maxScore": 60},
		},
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var created dto.RubricResponse
	decodeData(t, env, &created)
	require.Equal(t, "Pseudocode", created.Name)
	require.Equal(t, 100.0, created.TotalWeight)
	require.Len(t, created.Criteria, 2)

	resp, env = doJSON(t, app, http.MethodPut, "/api/v2/rubrics/"+created.ID, "owner-1", map[string]interface{}{
		"name": "Pseudocode v2",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var updated dto.RubricResponse
	decodeData(t, env, &updated)
	require.Equal(t, "Pseudocode v2", updated.Name)
	require.Len(t, updated.Criteria, 2)

	resp, env = doJSON(t, app, http.MethodGet, "/api/v2/rubrics", "owner-1", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var listed []dto.RubricResponse
	decodeData(t, env, &listed)
	require.Len(t, listed, 1)

	resp, _ = doJSON(t, app, http.MethodGet, "/api/v2/rubrics/"+created.ID, "owner-2", nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodDelete, "/api/v2/rubrics/"+created.ID, "owner-1", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet, "/api/v2/rubrics/"+created.ID, "owner-1", nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestRubricCreateRejectsInvalidCriteria(t *testing.T) {
	app := newTestApp(t, testOptions{})

	resp, env := doJSON(t, app, http.MethodPost, "/api/v2/rubrics", "owner-1", map[string]interface{}{
		"name":     "Empty",
		"criteria": []map[string]interface{}{},
	})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.False(t, env.Success)

	resp, _ = doJSON(t, app, http.MethodPost, "/api/v2/rubrics", "owner-1", map[string]interface{}{
		"name":     "Zero",
		"criteria": []map[string]interface{}{{"name": "Clarity", "weight": 0}},
	})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestRubricDefaultsSeedOnce(t *testing.T) {
	app := newTestApp(t, testOptions{})

	resp, env := doJSON(t, app, http.MethodPost, "/api/v2/rubrics/defaults", "owner-1", nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var seeded struct {
		Created int                  `json:"created"`
		Rubrics []dto.RubricResponse `json:"rubrics"`
	}
	decodeData(t, env, &seeded)
	require.Equal(t, 3, seeded.Created)
	require.Len(t, seeded.Rubrics, 3)

	resp, env = doJSON(t, app, http.MethodPost, "/api/v2/rubrics/defaults", "owner-1", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decodeData(t, env, &seeded)
	require.Equal(t, 0, seeded.Created)

	resp, env = doJSON(t, app, http.MethodGet, "/api/v2/rubrics/defaults", "owner-1", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var defaults []dto.RubricResponse
	decodeData(t, env, &defaults)
	require.Len(t, defaults, 3)
	for _, rubric := range defaults {
		require.True(t, rubric.IsDefault)
	}

	resp, env = doJSON(t, app, http.MethodGet, "/api/v2/rubrics/defaults", "owner-2", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decodeData(t, env, &defaults)
	require.Empty(t, defaults)
}
