package handler_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"
)

func compileSchema(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()

	schemaPath, err := filepath.Abs(filepath.Join("testdata", name))
	require.NoError(t, err)

	schema, err := jsonschema.NewCompiler().Compile("file://" + schemaPath)
	require.NoError(t, err)
	return schema
}

func rawGet(t *testing.T, app *fiber.App, path, owner string) (int, interface{}) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set(ownerHeader, owner)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	return resp.StatusCode, payload
}

func TestEvaluationContract(t *testing.T) {
	schema := compileSchema(t, "evaluation.schema.json")

	app := newTestApp(t, testOptions{evaluateOnUpload: true})
	submissionID := uploadPending(t, app, "owner-1")

	status, payload := rawGet(t, app, "/api/v2/submissions/"+submissionID+"/evaluation", "owner-1")
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, schema.Validate(payload))
}

func TestStatsContract(t *testing.T) {
	schema := compileSchema(t, "stats.schema.json")

	app := newTestApp(t, testOptions{evaluateOnUpload: true})

	status, payload := rawGet(t, app, "/api/v2/evaluations/stats", "owner-1")
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, schema.Validate(payload))

	uploadPending(t, app, "owner-1")

	status, payload = rawGet(t, app, "/api/v2/evaluations/stats", "owner-1")
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, schema.Validate(payload))
}
