package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

// EvaluationCompletedEvent announces a newly persisted evaluation.
type EvaluationCompletedEvent struct {
	EvaluationID string    `json:"evaluationId"`
	SubmissionID string    `json:"submissionId"`
	OwnerID      string    `json:"ownerId"`
	OverallScore int       `json:"overallScore"`
	CompletedAt  time.Time `json:"completedAt"`
}

// EventPublisher fans evaluation events out to other processes.
type EventPublisher interface {
	PublishEvaluationCompleted(ctx context.Context, event EvaluationCompletedEvent) error
}

type eventPublisher struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
}

// NewEventPublisher publishes to whichever of Redis and NATS is configured.
// Events go to "<subjectBase>.completed" on both.
func NewEventPublisher(redisClient *redis.Client, natsConn *nats.Conn, subjectBase string) EventPublisher {
	subject := subjectBase + ".completed"
	return &eventPublisher{
		redis:        redisClient,
		redisChannel: subject,
		nats:         natsConn,
		natsSubject:  subject,
	}
}

func (p *eventPublisher) PublishEvaluationCompleted(ctx context.Context, event EvaluationCompletedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if p.redis != nil {
		if err := p.redis.Publish(ctx, p.redisChannel, payload).Err(); err != nil {
			return err
		}
	}

	if p.nats != nil {
		if err := p.nats.Publish(p.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}
