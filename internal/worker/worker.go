// Package worker consumes localization jobs from RabbitMQ and drives the
// pipeline orchestrator, one consumer per workflow queue.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dublab/internal/models"
	"dublab/internal/pipeline"
	"dublab/internal/queue"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const maxRetries = 3

// Publisher describes the minimal publishing behaviour Worker needs.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message interface{}) error
	Conn() *queue.Connection
}

// JobStore records job state transitions.
type JobStore interface {
	UpdateJobStatus(ctx context.Context, jobID uuid.UUID, status models.JobStatus, errMsg *string) error
}

// Worker consumes job messages and runs workflows.
type Worker struct {
	store      JobStore
	publisher  Publisher
	logger     *zap.Logger
	registry   *ProcessorRegistry
	jobTimeout time.Duration
	// retrySleep is swapped out in tests so backoff does not stall them.
	retrySleep func(time.Duration)
}

// New creates a worker with the three workflow processors registered.
func New(store JobStore, runner Runner, publisher Publisher, jobTimeout time.Duration, logger *zap.Logger) *Worker {
	w := &Worker{
		store:      store,
		publisher:  publisher,
		logger:     logger,
		registry:   NewProcessorRegistry(),
		jobTimeout: jobTimeout,
		retrySleep: time.Sleep,
	}
	w.registry.Register(NewVoiceoverProcessor(runner))
	w.registry.Register(NewCaptionProcessor(runner))
	w.registry.Register(NewCaptionTranslateProcessor(runner))
	w.registry.Register(NewDubProcessor(runner))
	return w
}

// StartConsumer consumes the queue of a single registered workflow until the
// context is cancelled.
func (w *Worker) StartConsumer(ctx context.Context, workflow string) error {
	processor, ok := w.registry.Get(workflow)
	if !ok {
		return fmt.Errorf("no processor registered for workflow: %s", workflow)
	}

	conn := w.publisher.Conn()
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(
		queue.ExchangeName,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	queueName := fmt.Sprintf("job.%s", workflow)
	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, queueName, queue.ExchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	// One job at a time per consumer; runs are heavy and serialized per
	// project anyway.
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := ch.Consume(
		q.Name,
		"",
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	w.logger.Info("Started consumer", zap.String("workflow", workflow), zap.String("queue", q.Name))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Stopping consumer", zap.String("workflow", workflow))
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("consumer channel closed")
			}
			if err := w.processMessage(ctx, processor, msg); err != nil {
				w.logger.Error("Failed to process message",
					zap.String("workflow", workflow),
					zap.Error(err),
					zap.String("message_id", msg.MessageId),
				)
				_ = msg.Nack(false, false)
			} else {
				_ = msg.Ack(false)
			}
		}
	}
}

// StartAllConsumers starts one consumer goroutine per registered workflow.
func (w *Worker) StartAllConsumers(ctx context.Context) {
	for _, workflow := range w.registry.Names() {
		go func(name string) {
			if err := w.StartConsumer(ctx, name); err != nil {
				w.logger.Error("Consumer failed", zap.String("workflow", name), zap.Error(err))
			}
		}(workflow)
	}
}

func (w *Worker) processMessage(ctx context.Context, processor WorkflowProcessor, msg amqp.Delivery) error {
	jobMsg, jobID, projectID, err := decodeJobMessage(msg.Body)
	if err != nil {
		return err
	}
	return w.runJobWithStatus(ctx, processor, jobID, projectID, jobMsg)
}

func decodeJobMessage(body []byte) (models.JobMessage, uuid.UUID, uuid.UUID, error) {
	var jobMsg models.JobMessage
	if err := json.Unmarshal(body, &jobMsg); err != nil {
		return models.JobMessage{}, uuid.Nil, uuid.Nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	jobID, err := uuid.Parse(jobMsg.JobID)
	if err != nil {
		return models.JobMessage{}, uuid.Nil, uuid.Nil, fmt.Errorf("invalid job_id: %w", err)
	}
	projectID, err := uuid.Parse(jobMsg.ProjectID)
	if err != nil {
		return models.JobMessage{}, uuid.Nil, uuid.Nil, fmt.Errorf("invalid project_id: %w", err)
	}
	return jobMsg, jobID, projectID, nil
}

func (w *Worker) runJobWithStatus(ctx context.Context, processor WorkflowProcessor, jobID, projectID uuid.UUID, jobMsg models.JobMessage) error {
	workflow := processor.Name()

	jobCtx := ctx
	if w.jobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, w.jobTimeout)
		defer cancel()
	}

	w.logger.Info("Processing job",
		zap.String("workflow", workflow),
		zap.String("job_id", jobID.String()),
		zap.String("project_id", projectID.String()),
		zap.Int("attempt", jobMsg.Attempt),
		zap.String("trace_id", jobMsg.TraceID),
	)

	if err := w.store.UpdateJobStatus(ctx, jobID, models.JobRunning, nil); err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	startTime := time.Now()
	processErr := processor.Process(jobCtx, projectID, jobMsg)
	duration := time.Since(startTime)

	if processErr != nil {
		errMsg := processErr.Error()

		// Missing inputs never heal on retry.
		var missing *pipeline.SourceMissingError
		fatal := errors.As(processErr, &missing)

		if !fatal && jobMsg.Attempt < maxRetries {
			if err := w.store.UpdateJobStatus(ctx, jobID, models.JobQueued, &errMsg); err != nil {
				w.logger.Error("Failed to update job status", zap.Error(err))
			}
			return w.retryMessage(ctx, jobMsg, workflow)
		}

		if err := w.store.UpdateJobStatus(ctx, jobID, models.JobFailed, &errMsg); err != nil {
			w.logger.Error("Failed to update job status", zap.Error(err))
		}
		return fmt.Errorf("%s job failed after %d attempts: %w", workflow, jobMsg.Attempt, processErr)
	}

	if err := w.store.UpdateJobStatus(ctx, jobID, models.JobDone, nil); err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	w.logger.Info("Job completed",
		zap.String("workflow", workflow),
		zap.String("job_id", jobID.String()),
		zap.Duration("duration", duration),
	)
	return nil
}

// retryMessage republishes a job with exponential backoff.
func (w *Worker) retryMessage(ctx context.Context, msg models.JobMessage, workflow string) error {
	msg.Attempt++
	delay := time.Duration(1<<uint(msg.Attempt-1)) * time.Second

	w.logger.Info("Retrying job",
		zap.String("workflow", workflow),
		zap.String("job_id", msg.JobID),
		zap.Int("attempt", msg.Attempt),
		zap.Duration("delay", delay),
	)

	w.retrySleep(delay)

	routingKey := fmt.Sprintf("job.%s", workflow)
	return w.publisher.Publish(ctx, routingKey, msg)
}
