package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ar210505/rubric-coder-intel/internal/config"
	"github.com/ar210505/rubric-coder-intel/internal/database"
	"github.com/ar210505/rubric-coder-intel/internal/handler"
	"github.com/ar210505/rubric-coder-intel/internal/middleware"
	"github.com/ar210505/rubric-coder-intel/internal/repository"
	"github.com/ar210505/rubric-coder-intel/internal/router"
	"github.com/ar210505/rubric-coder-intel/internal/service"
	"github.com/ar210505/rubric-coder-intel/internal/worker"
	"github.com/ar210505/rubric-coder-intel/pkg/objectstore"
	"github.com/ar210505/rubric-coder-intel/pkg/scoring"
)

const ownerHeader = "X-Test-Owner"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details"`
}

// inlineDispatcher runs jobs on the caller goroutine so tests stay deterministic.
type inlineDispatcher struct {
	process func(ctx context.Context, job worker.Job) error
}

// Dispatch mirrors the pool: evaluation errors are recorded on the submission, not returned.
func (d *inlineDispatcher) Dispatch(ctx context.Context, job worker.Job) error {
	_ = d.process(ctx, job)
	return nil
}

type testOptions struct {
	evaluateOnUpload bool
}

func newTestApp(t *testing.T, opts testOptions) *fiber.App {
	t.Helper()

	db, err := database.Connect("sqlite:file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	logger := zerolog.Nop()
	store := objectstore.NewMemory()
	rubricRepo := repository.NewRubricRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	evaluationRepo := repository.NewEvaluationRepository(db)

	stats := service.NewStatsService(evaluationRepo, nil, 0, logger)
	evaluations := service.NewEvaluationService(service.EvaluationDeps{
		Submissions: submissionRepo,
		Evaluations: evaluationRepo,
		Rubrics:     rubricRepo,
		Store:       store,
		Scorer:      scoring.NewEngine(scoring.Options{}),
		Stats:       stats,
	}, service.EvaluationConfig{}, logger)

	submissionDeps := service.SubmissionDeps{
		Submissions: submissionRepo,
		Rubrics:     rubricRepo,
		Store:       store,
		Stats:       stats,
	}
	if opts.evaluateOnUpload {
		submissionDeps.Dispatcher = &inlineDispatcher{process: evaluations.Process}
	}
	submissions := service.NewSubmissionService(submissionDeps, 1, logger)

	app := fiber.New()
	middleware.Register(app, middleware.Config{})
	router.Register(app, config.Config{AppName: "rubric-test", AppEnv: "test", EvaluationRateLimit: 100}, router.Dependencies{
		RubricHandler:     handler.NewRubricHandler(service.NewRubricService(rubricRepo, validator.New(), logger), service.NewSeedService(rubricRepo, logger), logger),
		SubmissionHandler: handler.NewSubmissionHandler(submissions, logger),
		EvaluationHandler: handler.NewEvaluationHandler(evaluations, stats, logger),
		JWTMiddleware:     stubJWT,
	})

	return app
}

func stubJWT(c *fiber.Ctx) error {
	if owner := c.Get(ownerHeader); owner != "" {
		c.Locals(middleware.UserIDLocal, owner)
	}
	return c.Next()
}

func doJSON(t *testing.T, app *fiber.App, method, path, owner string, body interface{}) (*http.Response, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if owner != "" {
		req.Header.Set(ownerHeader, owner)
	}

	return send(t, app, req)
}

func doUpload(t *testing.T, app *fiber.App, owner, rubricID, filename string, content []byte) (*http.Response, envelope) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("rubric_id", rubricID))
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v2/submissions", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set(ownerHeader, owner)

	return send(t, app, req)
}

func send(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, envelope) {
	t.Helper()

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	var env envelope
	if len(data) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(data, &env))
	}
	return resp, env
}

func decodeData(t *testing.T, env envelope, target interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, target))
}

func createRubric(t *testing.T, app *fiber.App, owner string) string {
	t.Helper()

	resp, env := doJSON(t, app, http.MethodPost, "/api/v2/rubrics", owner, map[string]interface{}{
		"name":     "Flowchart",
		"criteria": []map[string]interface{}{{"name": "Logical Flow", "weight": 30}},
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var rubric struct {
		ID string `json:"id"`
	}
	decodeData(t, env, &rubric)
	require.NotEmpty(t, rubric.ID)
	return rubric.ID
}
