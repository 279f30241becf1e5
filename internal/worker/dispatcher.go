package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Dispatcher hands a job to whatever runs evaluations.
type Dispatcher interface {
	Dispatch(ctx context.Context, job Job) error
}

// LocalDispatcher queues jobs on an in-process pool.
type LocalDispatcher struct {
	pool *Pool
}

// NewLocalDispatcher wraps a pool.
func NewLocalDispatcher(pool *Pool) *LocalDispatcher {
	return &LocalDispatcher{pool: pool}
}

// Dispatch submits the job to the pool.
func (d *LocalDispatcher) Dispatch(ctx context.Context, job Job) error {
	return d.pool.Submit(ctx, job)
}

// RejectFunc is told about a received job the local pool could not accept.
type RejectFunc func(ctx context.Context, job Job, err error)

// NATSDispatcher publishes jobs to a subject consumed by any API replica.
type NATSDispatcher struct {
	conn     *nats.Conn
	subject  string
	queue    string
	pool     *Pool
	onReject RejectFunc
	logger   zerolog.Logger
}

// NewNATSDispatcher builds a dispatcher publishing on "<subjectBase>.requested".
func NewNATSDispatcher(conn *nats.Conn, subjectBase string, pool *Pool, logger zerolog.Logger) *NATSDispatcher {
	return &NATSDispatcher{
		conn:    conn,
		subject: RequestedSubject(subjectBase),
		queue:   "rubric-evaluators",
		pool:    pool,
		logger:  logger.With().Str("component", "nats_dispatcher").Logger(),
	}
}

// OnReject registers fn for jobs dropped because the pool was full or closed.
// Core NATS does not redeliver, so fn should settle the submission.
func (d *NATSDispatcher) OnReject(fn RejectFunc) {
	d.onReject = fn
}

// RequestedSubject is the subject evaluation requests travel on.
func RequestedSubject(base string) string {
	return base + ".requested"
}

// Dispatch publishes the job.
func (d *NATSDispatcher) Dispatch(_ context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := d.conn.Publish(d.subject, payload); err != nil {
		return fmt.Errorf("publish evaluation job: %w", err)
	}
	return nil
}

// Consume joins the queue group and feeds received jobs into the pool until ctx ends.
func (d *NATSDispatcher) Consume(ctx context.Context) error {
	sub, err := d.conn.QueueSubscribe(d.subject, d.queue, func(msg *nats.Msg) {
		d.receive(ctx, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", d.subject, err)
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			d.logger.Warn().Err(err).Msg("failed to drain evaluation subscription")
		}
	}()

	return nil
}

func (d *NATSDispatcher) receive(ctx context.Context, payload []byte) {
	job, err := DecodeJob(payload)
	if err != nil {
		d.logger.Warn().Err(err).Msg("invalid evaluation job payload")
		return
	}
	if err := d.pool.Submit(ctx, job); err != nil {
		d.logger.Error().Err(err).Str("submission_id", job.SubmissionID).Msg("failed to queue evaluation job")
		if d.onReject != nil {
			d.onReject(ctx, job, err)
		}
	}
}

// DecodeJob parses a published job payload.
func DecodeJob(payload []byte) (Job, error) {
	var job Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return Job{}, err
	}
	if job.SubmissionID == "" || job.OwnerID == "" {
		return Job{}, errors.New("job is missing submission or owner id")
	}
	return job, nil
}
