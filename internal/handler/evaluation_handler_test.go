package handler_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ar210505/rubric-coder-intel/internal/dto"
	"github.com/ar210505/rubric-coder-intel/internal/handler"
	"github.com/ar210505/rubric-coder-intel/internal/service"
	"github.com/ar210505/rubric-coder-intel/internal/worker"
)

func uploadPending(t *testing.T, app *fiber.App, owner string) string {
	t.Helper()

	rubricID := createRubric(t, app, owner)
	resp, env := doUpload(t, app, owner, rubricID, "flow.txt", []byte(flowchartText))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var created dto.SubmissionResponse
	decodeData(t, env, &created)
	return created.ID
}

func TestTriggerEvaluationIsIdempotent(t *testing.T) {
	app := newTestApp(t, testOptions{})
	submissionID := uploadPending(t, app, "owner-1")

	payload := map[string]interface{}{
		"submissionId":   submissionID,
		"rubricCriteria": []map[string]interface{}{{"name": "Logical Flow", "weight": 30}},
		"documentText":   flowchartText,
	}

	resp, env := doJSON(t, app, http.MethodPost, "/api/v2/evaluations", "owner-1", payload)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var first dto.EvaluationResponse
	decodeData(t, env, &first)
	require.Equal(t, 47, first.OverallScore)
	require.Equal(t, []string{"Logical Flow: could be expanded with clearer structure or detail"}, first.Improvements)
	require.Empty(t, first.Strengths)

	payload["documentText"] = ""
	resp, env = doJSON(t, app, http.MethodPost, "/api/v2/evaluations", "owner-1", payload)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var second dto.EvaluationResponse
	decodeData(t, env, &second)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 47, second.OverallScore)

	resp, env = doJSON(t, app, http.MethodGet, "/api/v2/evaluations", "owner-1", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var listed []dto.EvaluationListItem
	decodeData(t, env, &listed)
	require.Len(t, listed, 1)
	require.Equal(t, "flow.txt", listed[0].Filename)

	resp, env = doJSON(t, app, http.MethodGet, "/api/v2/evaluations/stats", "owner-1", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var stats dto.StatsResponse
	decodeData(t, env, &stats)
	require.Equal(t, 1, stats.TotalEvaluations)
	require.Equal(t, 47, stats.AverageScore)
	require.Equal(t, 47, stats.HighestScore)
	require.Equal(t, 47, stats.LowestScore)
	require.Len(t, stats.RecentTrend, 1)

	resp, env = doJSON(t, app, http.MethodGet, "/api/v2/evaluations/stats", "owner-2", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decodeData(t, env, &stats)
	require.Zero(t, stats.TotalEvaluations)
	require.Empty(t, stats.RecentTrend)
}

func TestTriggerEvaluationValidation(t *testing.T) {
	app := newTestApp(t, testOptions{})
	submissionID := uploadPending(t, app, "owner-1")

	resp, _ := doJSON(t, app, http.MethodPost, "/api/v2/evaluations", "owner-1", map[string]interface{}{
		"rubricCriteria": []map[string]interface{}{{"name": "Logical Flow", "weight": 30}},
	})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/api/v2/evaluations", "owner-1", map[string]interface{}{
		"submissionId":   submissionID,
		"rubricCriteria": []map[string]interface{}{},
		"documentText":   flowchartText,
	})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, env := doJSON(t, app, http.MethodPost, "/api/v2/evaluations", "owner-1", map[string]interface{}{
		"submissionId":   submissionID,
		"rubricCriteria": []map[string]interface{}{{"name": "Logical Flow", "weight": 30, "maxScore": -5}},
		"documentText":   flowchartText,
	})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.NotEmpty(t, env.Details)

	resp, _ = doJSON(t, app, http.MethodPost, "/api/v2/evaluations", "owner-1", map[string]interface{}{
		"submissionId":   submissionID,
		"rubricCriteria": []map[string]interface{}{{"name": strings.Repeat("n", 256), "weight": 30}},
		"documentText":   flowchartText,
	})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/api/v2/evaluations", "owner-2", map[string]interface{}{
		"submissionId":   submissionID,
		"rubricCriteria": []map[string]interface{}{{"name": "Logical Flow", "weight": 30}},
		"documentText":   flowchartText,
	})
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, env = doJSON(t, app, http.MethodGet, "/api/v2/submissions/"+submissionID+"/evaluation", "owner-1", nil)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	var status dto.EvaluationStatusResponse
	decodeData(t, env, &status)
	require.Equal(t, "pending", status.Status)
}

type stubEvaluationService struct {
	err error
}

func (s stubEvaluationService) Evaluate(context.Context, string, dto.EvaluationTriggerRequest) (dto.EvaluationResponse, error) {
	return dto.EvaluationResponse{}, s.err
}

func (s stubEvaluationService) Process(context.Context, worker.Job) error {
	return s.err
}

func (s stubEvaluationService) List(context.Context, string) ([]dto.EvaluationListItem, error) {
	return nil, s.err
}

type stubStatsService struct{}

func (stubStatsService) Stats(context.Context, string) (dto.StatsResponse, error) {
	return dto.StatsResponse{RecentTrend: []dto.TrendPoint{}}, nil
}

func (stubStatsService) Invalidate(context.Context, string) {}

func TestEvaluationErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "unauthorized", err: service.ErrUnauthorized, status: fiber.StatusUnauthorized},
		{name: "submission_missing", err: service.ErrSubmissionNotFound, status: fiber.StatusNotFound},
		{name: "rubric_missing", err: service.ErrRubricNotFound, status: fiber.StatusNotFound},
		{name: "invalid_rubric", err: service.ErrInvalidRubric, status: fiber.StatusBadRequest},
		{name: "storage", err: service.ErrStorageFailure, status: fiber.StatusServiceUnavailable},
		{name: "persistence", err: service.ErrPersistenceFailure, status: fiber.StatusServiceUnavailable},
		{name: "closed", err: service.ErrSubmissionClosed, status: fiber.StatusConflict},
		{name: "in_progress", err: service.ErrEvaluationInProgress, status: fiber.StatusConflict},
		{name: "unsupported", err: service.ErrUnsupportedDocument, status: fiber.StatusUnsupportedMediaType},
		{name: "not_scheduled", err: service.ErrDispatchFailure, status: fiber.StatusServiceUnavailable},
		{name: "too_large", err: service.ErrUploadTooLarge, status: fiber.StatusRequestEntityTooLarge},
		{name: "generic", err: errors.New("boom"), status: fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := handler.NewEvaluationHandler(stubEvaluationService{err: tc.err}, stubStatsService{}, zerolog.Nop())
			app := fiber.New()
			app.Post("/evaluations", stubJWT, h.Trigger)

			resp, env := doJSON(t, app, http.MethodPost, "/evaluations", "owner-1", map[string]interface{}{"submissionId": "sub-1"})
			require.Equal(t, tc.status, resp.StatusCode)
			require.False(t, env.Success)
		})
	}
}
