package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/ar210505/rubric-coder-intel/internal/dto"
	"github.com/ar210505/rubric-coder-intel/internal/extract"
	"github.com/ar210505/rubric-coder-intel/internal/models"
	"github.com/ar210505/rubric-coder-intel/internal/observability"
	"github.com/ar210505/rubric-coder-intel/internal/repository"
	"github.com/ar210505/rubric-coder-intel/internal/worker"
	"github.com/ar210505/rubric-coder-intel/pkg/objectstore"
)

// DefaultRecentLimit is the number of submissions the recent listing returns by default.
const DefaultRecentLimit = 10

// SubmissionService handles document uploads and the submission lifecycle.
type SubmissionService interface {
	Upload(ctx context.Context, ownerID string, payload dto.SubmissionCreateRequest, file *multipart.FileHeader) (dto.SubmissionResponse, error)
	List(ctx context.Context, ownerID string, filter dto.SubmissionFilter) ([]dto.SubmissionResponse, error)
	Recent(ctx context.Context, ownerID string, limit int) ([]dto.SubmissionResponse, error)
	Get(ctx context.Context, ownerID, id string) (dto.SubmissionResponse, error)
	// Evaluation returns the evaluation once it exists; otherwise a nil evaluation and the current status.
	Evaluation(ctx context.Context, ownerID, id string) (*dto.EvaluationResponse, dto.EvaluationStatusResponse, error)
	Delete(ctx context.Context, ownerID, id string) error
}

type submissionService struct {
	submissions repository.SubmissionRepository
	rubrics     repository.RubricRepository
	store       objectstore.Store
	extractor   *extract.Registry
	dispatcher  worker.Dispatcher
	stats       StatsService
	validator   *validator.Validate
	maxSize     int64
	tracer      trace.Tracer
	logger      zerolog.Logger
	now         func() time.Time
}

// SubmissionDeps groups the submission service collaborators. Dispatcher and Stats are optional.
type SubmissionDeps struct {
	Submissions repository.SubmissionRepository
	Rubrics     repository.RubricRepository
	Store       objectstore.Store
	Extractor   *extract.Registry
	Dispatcher  worker.Dispatcher
	Stats       StatsService
	Validator   *validator.Validate
}

// NewSubmissionService constructs the submission service.
func NewSubmissionService(deps SubmissionDeps, maxSizeMB int, logger zerolog.Logger) SubmissionService {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	if deps.Extractor == nil {
		deps.Extractor = extract.NewRegistry()
	}
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}

	return &submissionService{
		submissions: deps.Submissions,
		rubrics:     deps.Rubrics,
		store:       deps.Store,
		extractor:   deps.Extractor,
		dispatcher:  deps.Dispatcher,
		stats:       deps.Stats,
		validator:   deps.Validator,
		maxSize:     int64(maxSizeMB) * 1024 * 1024,
		tracer:      otel.Tracer("github.com/ar210505/rubric-coder-intel/internal/service/submission"),
		logger:      logger.With().Str("component", "submission_service").Logger(),
		now:         time.Now,
	}
}

func (s *submissionService) Upload(ctx context.Context, ownerID string, payload dto.SubmissionCreateRequest, file *multipart.FileHeader) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.upload")
	defer span.End()

	if err := requireOwner(ownerID); err != nil {
		return dto.SubmissionResponse{}, err
	}
	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return dto.SubmissionResponse{}, err
	}
	if file == nil {
		observability.UploadRejected().WithLabelValues("empty").Inc()
		span.SetStatus(codes.Error, "validation failed")
		return dto.SubmissionResponse{}, ErrUploadMissing
	}

	span.SetAttributes(
		attribute.String("upload.original_name", strings.TrimSpace(file.Filename)),
		attribute.Int64("upload.request_size", file.Size),
		attribute.Int64("upload.max_bytes", s.maxSize),
	)

	rubric, err := s.rubrics.GetByID(ctx, payload.RubricID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrRubricNotFound
		}
		return dto.SubmissionResponse{}, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}
	if rubric.OwnerID != ownerID {
		return dto.SubmissionResponse{}, ErrRubricNotFound
	}

	content, err := s.read(file)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return dto.SubmissionResponse{}, err
	}

	fileType := s.extractor.Detect(content)
	span.SetAttributes(attribute.String("upload.detected_mime", fileType))
	if !s.extractor.Supports(fileType) {
		observability.UploadRejected().WithLabelValues("type").Inc()
		span.SetStatus(codes.Error, "type not allowed")
		return dto.SubmissionResponse{}, fmt.Errorf("%w: %s", ErrUnsupportedDocument, fileType)
	}

	objectPath := objectstore.BuildPath(ownerID, file.Filename, s.now())

	start := time.Now()
	err = s.store.Upload(ctx, objectPath, bytes.NewReader(content), int64(len(content)), fileType)
	observability.UploadLatency().Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failed")
		return dto.SubmissionResponse{}, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	submission := models.Submission{
		OwnerID:     ownerID,
		RubricID:    rubric.ID,
		Filename:    strings.TrimSpace(file.Filename),
		StoragePath: objectPath,
		FileType:    fileType,
		Status:      models.SubmissionStatusPending,
	}
	if err := s.submissions.Create(ctx, &submission); err != nil {
		if deleteErr := s.store.Delete(context.WithoutCancel(ctx), objectPath); deleteErr != nil {
			s.logger.Warn().Err(deleteErr).Str("path", objectPath).Msg("failed to remove orphaned upload")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return dto.SubmissionResponse{}, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	span.SetAttributes(attribute.String("submission.id", submission.ID))

	if s.dispatcher != nil {
		job := worker.Job{
			SubmissionID:  submission.ID,
			OwnerID:       ownerID,
			CorrelationID: observability.CorrelationIDFromContext(ctx),
		}
		if err := s.dispatcher.Dispatch(ctx, job); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "dispatch failed")
			return dto.SubmissionResponse{}, MarkUnscheduled(ctx, s.submissions, s.logger, job, err)
		}
	}

	s.logger.Info().
		Str("submission_id", submission.ID).
		Str("file_type", fileType).
		Int("size", len(content)).
		Msg("submission uploaded")

	return dto.NewSubmissionResponse(submission, &rubric), nil
}

// MarkUnscheduled fails a submission whose job never reached a worker, so pollers stop waiting.
func MarkUnscheduled(ctx context.Context, submissions repository.SubmissionRepository, logger zerolog.Logger, job worker.Job, cause error) error {
	err := fmt.Errorf("%w: %w", ErrDispatchFailure, cause)

	if _, updateErr := submissions.UpdateStatus(context.WithoutCancel(ctx), job.SubmissionID, models.SubmissionStatusFailed, err.Error()); updateErr != nil {
		logger.Error().Err(updateErr).Str("submission_id", job.SubmissionID).Msg("failed to mark unscheduled submission failed")
	}
	observability.Evaluations().WithLabelValues("failed").Inc()
	logger.Error().Err(cause).Str("submission_id", job.SubmissionID).Msg("failed to dispatch evaluation job")

	return err
}

func (s *submissionService) read(file *multipart.FileHeader) ([]byte, error) {
	if file.Size > s.maxSize {
		observability.UploadRejected().WithLabelValues("size").Inc()
		return nil, ErrUploadTooLarge
	}

	handle, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		return nil, err
	}
	if int64(buf.Len()) > s.maxSize {
		observability.UploadRejected().WithLabelValues("size").Inc()
		return nil, ErrUploadTooLarge
	}
	if buf.Len() == 0 {
		observability.UploadRejected().WithLabelValues("empty").Inc()
		return nil, ErrUploadMissing
	}

	return buf.Bytes(), nil
}

func (s *submissionService) List(ctx context.Context, ownerID string, filter dto.SubmissionFilter) ([]dto.SubmissionResponse, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(filter); err != nil {
		return nil, err
	}

	query := repository.SubmissionFilter{OwnerID: ownerID}
	if filter.Status != nil && *filter.Status != "" {
		status := *filter.Status
		query.Status = &status
	}

	submissions, err := s.submissions.List(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	return dto.NewSubmissionResponses(submissions), nil
}

func (s *submissionService) Recent(ctx context.Context, ownerID string, limit int) ([]dto.SubmissionResponse, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{OwnerID: ownerID, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}
	return dto.NewSubmissionResponses(submissions), nil
}

func (s *submissionService) Get(ctx context.Context, ownerID, id string) (dto.SubmissionResponse, error) {
	submission, err := s.load(ctx, ownerID, id)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	var rubric *models.Rubric
	if found, err := s.rubrics.GetByID(ctx, submission.RubricID); err == nil {
		rubric = &found
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Warn().Err(err).Str("rubric_id", submission.RubricID).Msg("failed to load rubric for submission")
	}

	return dto.NewSubmissionResponse(submission, rubric), nil
}

func (s *submissionService) Evaluation(ctx context.Context, ownerID, id string) (*dto.EvaluationResponse, dto.EvaluationStatusResponse, error) {
	submission, err := s.load(ctx, ownerID, id)
	if err != nil {
		return nil, dto.EvaluationStatusResponse{}, err
	}

	status := dto.EvaluationStatusResponse{
		ID:            submission.ID,
		Status:        submission.EffectiveStatus(),
		FailureReason: submission.FailureReason,
	}

	if submission.Evaluation == nil {
		return nil, status, nil
	}

	evaluation := dto.NewEvaluationResponse(*submission.Evaluation)
	return &evaluation, status, nil
}

// Delete removes the evaluation and submission rows, then the stored bytes.
// A leftover object is logged; the rows are already gone.
func (s *submissionService) Delete(ctx context.Context, ownerID, id string) error {
	submission, err := s.load(ctx, ownerID, id)
	if err != nil {
		return err
	}

	if err := s.submissions.Delete(ctx, submission.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubmissionNotFound
		}
		return fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	if submission.StoragePath != "" && s.store != nil {
		if err := s.store.Delete(context.WithoutCancel(ctx), submission.StoragePath); err != nil {
			s.logger.Warn().Err(err).Str("path", submission.StoragePath).Msg("failed to remove stored document")
		}
	}

	if s.stats != nil && submission.Evaluation != nil {
		s.stats.Invalidate(ctx, ownerID)
	}

	s.logger.Info().Str("submission_id", submission.ID).Str("owner_id", ownerID).Msg("submission deleted")
	return nil
}

// load fetches an owned submission and repairs a pending status that an evaluation has superseded.
func (s *submissionService) load(ctx context.Context, ownerID, id string) (models.Submission, error) {
	if err := requireOwner(ownerID); err != nil {
		return models.Submission{}, err
	}

	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, ErrSubmissionNotFound
		}
		return models.Submission{}, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}
	if submission.OwnerID != ownerID {
		return models.Submission{}, ErrSubmissionNotFound
	}

	if submission.Evaluation != nil && submission.Status == models.SubmissionStatusPending {
		if _, err := s.submissions.UpdateStatus(ctx, submission.ID, models.SubmissionStatusCompleted, ""); err != nil {
			s.logger.Warn().Err(err).Str("submission_id", submission.ID).Msg("failed to repair submission status")
		}
	}

	return submission, nil
}
