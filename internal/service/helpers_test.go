package service

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/textproto"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ar210505/rubric-coder-intel/internal/database"
	"github.com/ar210505/rubric-coder-intel/internal/dto"
	"github.com/ar210505/rubric-coder-intel/internal/models"
	"github.com/ar210505/rubric-coder-intel/internal/worker"
)

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

func createRubric(t *testing.T, db *gorm.DB, ownerID string, criteria ...models.Criterion) models.Rubric {
	t.Helper()

	if len(criteria) == 0 {
		criteria = []models.Criterion{{Name: "Logical Flow", Weight: 30}}
	}
	rubric := models.Rubric{OwnerID: ownerID, Name: "Flowchart", Criteria: criteria}
	require.NoError(t, db.Create(&rubric).Error)
	return rubric
}

func createSubmission(t *testing.T, db *gorm.DB, ownerID, rubricID, path string) models.Submission {
	t.Helper()

	submission := models.Submission{
		OwnerID:     ownerID,
		RubricID:    rubricID,
		Filename:    "flow.txt",
		StoragePath: path,
		FileType:    "text/plain",
	}
	require.NoError(t, db.Omit("Evaluation").Create(&submission).Error)
	return submission
}

func fileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", "application/octet-stream")
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(body, writer.Boundary()).ReadForm(32 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })

	files := form.File["file"]
	require.Len(t, files, 1)
	return files[0]
}

type recordingDispatcher struct {
	mu   sync.Mutex
	jobs []worker.Job
	err  error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, job worker.Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = append(d.jobs, job)
	return d.err
}

func (d *recordingDispatcher) Jobs() []worker.Job {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]worker.Job(nil), d.jobs...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []EvaluationCompletedEvent
}

func (p *recordingPublisher) PublishEvaluationCompleted(_ context.Context, event EvaluationCompletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type countingStats struct {
	mu          sync.Mutex
	invalidated []string
}

func (c *countingStats) Stats(context.Context, string) (dto.StatsResponse, error) {
	return dto.StatsResponse{RecentTrend: []dto.TrendPoint{}}, nil
}

func (c *countingStats) Invalidate(_ context.Context, ownerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, ownerID)
}

func (c *countingStats) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.invalidated)
}
