package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/ar210505/rubric-coder-intel/internal/dto"
	"github.com/ar210505/rubric-coder-intel/internal/extract"
	"github.com/ar210505/rubric-coder-intel/internal/models"
	"github.com/ar210505/rubric-coder-intel/internal/observability"
	"github.com/ar210505/rubric-coder-intel/internal/repository"
	"github.com/ar210505/rubric-coder-intel/internal/worker"
	"github.com/ar210505/rubric-coder-intel/pkg/objectstore"
	"github.com/ar210505/rubric-coder-intel/pkg/scoring"
)

// EvaluationService coordinates scoring so each submission gets at most one evaluation.
type EvaluationService interface {
	// Evaluate scores explicit criteria and text for a submission the caller owns.
	Evaluate(ctx context.Context, ownerID string, payload dto.EvaluationTriggerRequest) (dto.EvaluationResponse, error)
	// Process scores a stored submission against its rubric; used by background workers.
	Process(ctx context.Context, job worker.Job) error
	List(ctx context.Context, ownerID string) ([]dto.EvaluationListItem, error)
}

// EvaluationConfig tunes the coordinator.
type EvaluationConfig struct {
	LockTTL time.Duration
	// RunTimeout bounds one shared evaluation run. Defaults to LockTTL.
	RunTimeout time.Duration
}

// evaluationInput supplies the criteria and text once the submission is known to need scoring.
type evaluationInput func(ctx context.Context, submission models.Submission) ([]models.Criterion, string, error)

type evaluationService struct {
	submissions repository.SubmissionRepository
	evaluations repository.EvaluationRepository
	rubrics     repository.RubricRepository
	store       objectstore.Store
	extractor   *extract.Registry
	scorer      scoring.Scorer
	stats       StatsService
	locker      Locker
	events      EventPublisher
	validator   *validator.Validate
	config      EvaluationConfig
	group       singleflight.Group
	tracer      trace.Tracer
	logger      zerolog.Logger
}

// EvaluationDeps groups the coordinator's collaborators. Stats, Locker and Events are optional.
type EvaluationDeps struct {
	Submissions repository.SubmissionRepository
	Evaluations repository.EvaluationRepository
	Rubrics     repository.RubricRepository
	Store       objectstore.Store
	Extractor   *extract.Registry
	Scorer      scoring.Scorer
	Stats       StatsService
	Locker      Locker
	Events      EventPublisher
	Validator   *validator.Validate
}

// NewEvaluationService constructs the evaluation coordinator.
func NewEvaluationService(deps EvaluationDeps, cfg EvaluationConfig, logger zerolog.Logger) EvaluationService {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = time.Minute
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = cfg.LockTTL
	}
	if deps.Extractor == nil {
		deps.Extractor = extract.NewRegistry()
	}
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}

	return &evaluationService{
		submissions: deps.Submissions,
		evaluations: deps.Evaluations,
		rubrics:     deps.Rubrics,
		store:       deps.Store,
		extractor:   deps.Extractor,
		scorer:      deps.Scorer,
		stats:       deps.Stats,
		locker:      deps.Locker,
		events:      deps.Events,
		validator:   deps.Validator,
		config:      cfg,
		tracer:      otel.Tracer("github.com/ar210505/rubric-coder-intel/internal/service/evaluation"),
		logger:      logger.With().Str("component", "evaluation_service").Logger(),
	}
}

func (s *evaluationService) Evaluate(ctx context.Context, ownerID string, payload dto.EvaluationTriggerRequest) (dto.EvaluationResponse, error) {
	if err := requireOwner(ownerID); err != nil {
		return dto.EvaluationResponse{}, err
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.EvaluationResponse{}, err
	}

	criteria := dto.ToModelCriteria(payload.RubricCriteria)
	if err := models.ValidateCriteria(criteria); err != nil {
		return dto.EvaluationResponse{}, fmt.Errorf("%w: %v", ErrInvalidRubric, err)
	}

	evaluation, err := s.run(ctx, ownerID, payload.SubmissionID, func(context.Context, models.Submission) ([]models.Criterion, string, error) {
		return criteria, payload.DocumentText, nil
	})
	if err != nil {
		return dto.EvaluationResponse{}, err
	}

	return dto.NewEvaluationResponse(evaluation), nil
}

func (s *evaluationService) Process(ctx context.Context, job worker.Job) error {
	_, err := s.run(ctx, job.OwnerID, job.SubmissionID, s.loadStored)
	return err
}

func (s *evaluationService) List(ctx context.Context, ownerID string) ([]dto.EvaluationListItem, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}

	items, err := s.evaluations.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	responses := make([]dto.EvaluationListItem, 0, len(items))
	for _, item := range items {
		responses = append(responses, dto.EvaluationListItem{
			EvaluationResponse: dto.NewEvaluationResponse(item.Evaluation),
			Filename:           item.Filename,
		})
	}
	return responses, nil
}

// loadStored resolves the submission's rubric and extracts the stored document.
func (s *evaluationService) loadStored(ctx context.Context, submission models.Submission) ([]models.Criterion, string, error) {
	rubric, err := s.rubrics.GetByID(ctx, submission.RubricID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrRubricNotFound
		}
		return nil, "", fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}
	if err := rubric.Validate(); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidRubric, err)
	}

	if s.store == nil {
		return nil, "", fmt.Errorf("%w: no object store configured", ErrStorageFailure)
	}
	content, err := s.store.Download(ctx, submission.StoragePath)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	text, err := s.extractor.Extract(submission.FileType, content)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnsupportedDocument, err)
	}

	return rubric.Criteria, text, nil
}

// run de-duplicates concurrent callers in this process before entering the guarded section.
// The shared run is detached from any one caller's cancellation and bounded by RunTimeout;
// each caller stops waiting when its own ctx ends.
func (s *evaluationService) run(ctx context.Context, ownerID, submissionID string, input evaluationInput) (models.Evaluation, error) {
	key := ownerID + ":" + submissionID
	results := s.group.DoChan(key, func() (interface{}, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.RunTimeout)
		defer cancel()
		return s.evaluateOnce(runCtx, ownerID, submissionID, input)
	})

	select {
	case result := <-results:
		if result.Err != nil {
			return models.Evaluation{}, result.Err
		}
		return result.Val.(models.Evaluation), nil
	case <-ctx.Done():
		return models.Evaluation{}, ctx.Err()
	}
}

func (s *evaluationService) evaluateOnce(ctx context.Context, ownerID, submissionID string, input evaluationInput) (models.Evaluation, error) {
	ctx, span := s.tracer.Start(ctx, "evaluation.run")
	defer span.End()
	span.SetAttributes(attribute.String("evaluation.submission_id", submissionID))

	start := time.Now()
	defer func() {
		observability.EvaluationDuration().Observe(time.Since(start).Seconds())
	}()

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "submission_not_found")
			return models.Evaluation{}, ErrSubmissionNotFound
		}
		span.SetStatus(codes.Error, "submission_lookup_failed")
		return models.Evaluation{}, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}
	if submission.OwnerID != ownerID {
		span.SetStatus(codes.Error, "submission_not_found")
		return models.Evaluation{}, ErrSubmissionNotFound
	}

	if submission.Evaluation != nil {
		return s.duplicate(ctx, span, submission, *submission.Evaluation), nil
	}
	if submission.Status == models.SubmissionStatusFailed {
		span.SetStatus(codes.Error, "submission_closed")
		return models.Evaluation{}, ErrSubmissionClosed
	}

	if s.locker != nil {
		release, acquired, lockErr := s.locker.Acquire(ctx, "evaluation:lock:"+submissionID, s.config.LockTTL)
		switch {
		case lockErr != nil:
			s.logger.Warn().Err(lockErr).Str("submission_id", submissionID).Msg("evaluation lock unavailable; relying on unique index")
		case !acquired:
			if existing, found, _ := s.existing(ctx, submissionID); found {
				return s.duplicate(ctx, span, submission, existing), nil
			}
			span.SetStatus(codes.Error, "evaluation_in_progress")
			return models.Evaluation{}, ErrEvaluationInProgress
		default:
			defer release()
		}
	}

	existing, found, err := s.existing(ctx, submissionID)
	if err != nil {
		return models.Evaluation{}, s.fail(ctx, span, submission, err)
	}
	if found {
		return s.duplicate(ctx, span, submission, existing), nil
	}

	criteria, text, err := input(ctx, submission)
	if err != nil {
		return models.Evaluation{}, s.fail(ctx, span, submission, err)
	}
	if err := models.ValidateCriteria(criteria); err != nil {
		return models.Evaluation{}, s.fail(ctx, span, submission, fmt.Errorf("%w: %v", ErrInvalidRubric, err))
	}

	result := s.scorer.Score(text, toScoringCriteria(criteria))
	evaluation := newEvaluation(submission, result)

	if err := s.evaluations.Create(ctx, &evaluation); err != nil {
		if winner, found, _ := s.existing(ctx, submissionID); found {
			return s.duplicate(ctx, span, submission, winner), nil
		}
		return models.Evaluation{}, s.fail(ctx, span, submission, fmt.Errorf("%w: %v", ErrPersistenceFailure, err))
	}

	// The evaluation is durable; a lost status update is repaired on read.
	updated, err := s.submissions.UpdateStatus(ctx, submission.ID, models.SubmissionStatusCompleted, "")
	if err != nil {
		s.logger.Warn().Err(err).Str("submission_id", submission.ID).Msg("failed to mark submission completed")
	} else if !updated {
		s.logger.Debug().Str("submission_id", submission.ID).Msg("submission already terminal")
	}

	s.afterPersist(ctx, evaluation)

	span.SetAttributes(
		attribute.Int("evaluation.overall_score", evaluation.OverallScore),
		attribute.String("evaluation.mode", evaluation.ScoringMode),
	)
	s.logger.Info().
		Str("submission_id", submission.ID).
		Str("evaluation_id", evaluation.ID).
		Int("overall_score", evaluation.OverallScore).
		Msg("evaluation persisted")

	return evaluation, nil
}

func (s *evaluationService) existing(ctx context.Context, submissionID string) (models.Evaluation, bool, error) {
	evaluation, err := s.evaluations.GetBySubmissionID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Evaluation{}, false, nil
		}
		return models.Evaluation{}, false, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}
	return evaluation, true, nil
}

// duplicate returns the evaluation that already exists and repairs a stale pending status.
func (s *evaluationService) duplicate(ctx context.Context, span trace.Span, submission models.Submission, evaluation models.Evaluation) models.Evaluation {
	span.SetAttributes(attribute.Bool("evaluation.duplicate", true))
	observability.Evaluations().WithLabelValues("duplicate").Inc()

	if submission.Status == models.SubmissionStatusPending {
		if _, err := s.submissions.UpdateStatus(ctx, submission.ID, models.SubmissionStatusCompleted, ""); err != nil {
			s.logger.Warn().Err(err).Str("submission_id", submission.ID).Msg("failed to repair submission status")
		}
	}
	return evaluation
}

// fail marks the submission failed and returns err for the caller.
func (s *evaluationService) fail(ctx context.Context, span trace.Span, submission models.Submission, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, "evaluation_failed")
	observability.Evaluations().WithLabelValues("failed").Inc()

	updateCtx := context.WithoutCancel(ctx)
	if _, updateErr := s.submissions.UpdateStatus(updateCtx, submission.ID, models.SubmissionStatusFailed, err.Error()); updateErr != nil {
		s.logger.Error().Err(updateErr).Str("submission_id", submission.ID).Msg("failed to mark submission failed")
	}

	s.logger.Warn().Err(err).Str("submission_id", submission.ID).Msg("evaluation failed")
	return err
}

func (s *evaluationService) afterPersist(ctx context.Context, evaluation models.Evaluation) {
	observability.Evaluations().WithLabelValues("completed").Inc()
	observability.EvaluationOverallScore().Observe(float64(evaluation.OverallScore))

	if s.stats != nil {
		s.stats.Invalidate(ctx, evaluation.OwnerID)
	}

	if s.events != nil {
		event := EvaluationCompletedEvent{
			EvaluationID: evaluation.ID,
			SubmissionID: evaluation.SubmissionID,
			OwnerID:      evaluation.OwnerID,
			OverallScore: evaluation.OverallScore,
			CompletedAt:  evaluation.CreatedAt,
		}
		if err := s.events.PublishEvaluationCompleted(ctx, event); err != nil {
			s.logger.Warn().Err(err).Str("submission_id", evaluation.SubmissionID).Msg("failed to publish evaluation event")
		}
	}
}

func toScoringCriteria(criteria []models.Criterion) []scoring.Criterion {
	out := make([]scoring.Criterion, 0, len(criteria))
	for _, criterion := range criteria {
		out = append(out, scoring.Criterion{Name: criterion.Name, Weight: criterion.Weight})
	}
	return out
}

func newEvaluation(submission models.Submission, result scoring.Result) models.Evaluation {
	scores := make([]models.CriterionScore, 0, len(result.CriteriaScores))
	for _, score := range result.CriteriaScores {
		scores = append(scores, models.CriterionScore{
			Name:     score.Name,
			Score:    score.Score,
			Feedback: score.Feedback,
		})
	}

	return models.Evaluation{
		SubmissionID:     submission.ID,
		OwnerID:          submission.OwnerID,
		OverallScore:     result.OverallScore,
		CriteriaScores:   scores,
		Strengths:        result.Strengths,
		Improvements:     result.Improvements,
		DetailedFeedback: result.DetailedFeedback,
		ScoringMode:      string(result.Mode),
	}
}
