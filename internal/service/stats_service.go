package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ar210505/rubric-coder-intel/internal/dto"
	"github.com/ar210505/rubric-coder-intel/internal/observability"
	"github.com/ar210505/rubric-coder-intel/internal/repository"
)

// TrendSize is the number of most recent evaluations in the score trend.
const TrendSize = 10

// StatsService aggregates a user's evaluation scores.
type StatsService interface {
	Stats(ctx context.Context, ownerID string) (dto.StatsResponse, error)
	Invalidate(ctx context.Context, ownerID string)
}

type statsService struct {
	evaluations repository.EvaluationRepository
	cache       *redis.Client
	cacheTTL    time.Duration
	logger      zerolog.Logger
}

// NewStatsService builds the aggregator. A nil cache disables caching.
func NewStatsService(evaluations repository.EvaluationRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) StatsService {
	return &statsService{
		evaluations: evaluations,
		cache:       cache,
		cacheTTL:    ttl,
		logger:      logger.With().Str("component", "stats_service").Logger(),
	}
}

func statsCacheKey(ownerID string) string {
	return fmt.Sprintf("stats:evaluations:%s", ownerID)
}

func (s *statsService) Stats(ctx context.Context, ownerID string) (dto.StatsResponse, error) {
	if err := requireOwner(ownerID); err != nil {
		return dto.StatsResponse{}, err
	}

	cacheKey := statsCacheKey(ownerID)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var response dto.StatsResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				observability.StatsCacheLookups().WithLabelValues("hit").Inc()
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read stats cache")
		}
		observability.StatsCacheLookups().WithLabelValues("miss").Inc()
	}

	points, err := s.evaluations.ScoresByOwner(ctx, ownerID)
	if err != nil {
		return dto.StatsResponse{}, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	response := AggregateScores(points)

	if s.cache != nil {
		payload, err := json.Marshal(response)
		if err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store stats cache")
			}
		}
	}

	return response, nil
}

func (s *statsService) Invalidate(ctx context.Context, ownerID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, statsCacheKey(ownerID)).Err(); err != nil {
		s.logger.Warn().Err(err).Str("owner_id", ownerID).Msg("failed to invalidate stats cache")
	}
}

// AggregateScores computes the stats over points ordered newest first.
// The trend holds the most recent TrendSize points, oldest first.
func AggregateScores(points []repository.ScorePoint) dto.StatsResponse {
	response := dto.StatsResponse{RecentTrend: []dto.TrendPoint{}}
	if len(points) == 0 {
		return response
	}

	sum := 0
	highest := points[0].OverallScore
	lowest := points[0].OverallScore
	for _, point := range points {
		sum += point.OverallScore
		if point.OverallScore > highest {
			highest = point.OverallScore
		}
		if point.OverallScore < lowest {
			lowest = point.OverallScore
		}
	}

	response.TotalEvaluations = len(points)
	response.AverageScore = int(math.Round(float64(sum) / float64(len(points))))
	response.HighestScore = highest
	response.LowestScore = lowest

	recent := points
	if len(recent) > TrendSize {
		recent = recent[:TrendSize]
	}
	trend := make([]dto.TrendPoint, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		trend = append(trend, dto.TrendPoint{
			Date:  recent[i].CreatedAt.UTC().Format("2006-01-02"),
			Score: recent[i].OverallScore,
		})
	}
	response.RecentTrend = trend

	return response
}
