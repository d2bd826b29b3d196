package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ojparkinson/massbalance/internal/config"
	"github.com/ojparkinson/massbalance/internal/messaging"
	"github.com/ojparkinson/massbalance/internal/metrics"
	"github.com/ojparkinson/massbalance/internal/processing"
	"github.com/ojparkinson/massbalance/internal/storage"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Job asks for one calculation against an uploaded drawing.
type Job struct {
	FileID  string                     `json:"file_id"`
	Request *config.CalculationRequest `json:"request"`
}

type Calculator interface {
	Calculate(ctx context.Context, fileID string, req *config.CalculationRequest) (*processing.FileResult, error)
}

type outcome string

const (
	outcomeDone     outcome = "done"
	outcomeRejected outcome = "rejected"
	outcomeRequeued outcome = "requeued"
	outcomeFailed   outcome = "failed"
)

type Subscriber struct {
	calculator Calculator
	cfg        *config.Config
	logger     *zap.Logger
}

func NewSubscriber(calculator Calculator, cfg *config.Config, logger *zap.Logger) *Subscriber {
	return &Subscriber{
		calculator: calculator,
		cfg:        cfg,
		logger:     logger,
	}
}

// Subscribe consumes jobs until ctx is cancelled or the broker closes the
// delivery channel. Each job is acknowledged only after its result has been
// handed to the sinks.
func (s *Subscriber) Subscribe(ctx context.Context) error {
	conn, err := amqp.Dial(s.cfg.RabbitMQURL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w\nAction: Check RABBITMQ_URL or set DISABLE_RABBITMQ=true", err)
	}
	defer conn.Close()

	channel, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open a channel: %w", err)
	}
	defer channel.Close()

	if err := channel.Qos(s.cfg.RabbitMQPrefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set prefetch: %w", err)
	}
	if err := channel.ExchangeDeclare(s.cfg.RabbitMQExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", s.cfg.RabbitMQExchange, err)
	}
	if _, err := channel.QueueDeclare(s.cfg.RabbitMQJobQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", s.cfg.RabbitMQJobQueue, err)
	}
	if err := channel.QueueBind(s.cfg.RabbitMQJobQueue, messaging.JobsRoutingKey, s.cfg.RabbitMQExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind to queue: %w", err)
	}

	msgs, err := channel.Consume(s.cfg.RabbitMQJobQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume queue: %w", err)
	}

	s.logger.Info("Consuming calculation jobs",
		zap.String("queue", s.cfg.RabbitMQJobQueue),
		zap.Int("prefetch", s.cfg.RabbitMQPrefetch))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed by broker")
			}
			s.handle(ctx, event)
		}
	}
}

func (s *Subscriber) handle(ctx context.Context, event amqp.Delivery) outcome {
	result := s.process(ctx, event)
	metrics.JobsReceivedTotal.WithLabelValues(string(result)).Inc()

	var err error
	switch result {
	case outcomeDone:
		err = event.Ack(false)
	case outcomeRequeued:
		err = event.Nack(false, true)
	default:
		err = event.Nack(false, false)
	}
	if err != nil {
		s.logger.Error("Failed to settle delivery",
			zap.Uint64("delivery_tag", event.DeliveryTag),
			zap.String("outcome", string(result)),
			zap.Error(err))
	}
	return result
}

func (s *Subscriber) process(ctx context.Context, event amqp.Delivery) outcome {
	var job Job
	if err := json.Unmarshal(event.Body, &job); err != nil {
		s.logger.Warn("Discarding undecodable job",
			zap.Uint64("delivery_tag", event.DeliveryTag),
			zap.Error(err),
			zap.String("action", "Publish jobs as {\"file_id\": ..., \"request\": {...}}"))
		return outcomeRejected
	}
	if job.FileID == "" || job.Request == nil {
		s.logger.Warn("Discarding incomplete job",
			zap.Uint64("delivery_tag", event.DeliveryTag),
			zap.String("file_id", job.FileID))
		return outcomeRejected
	}

	result, err := s.calculator.Calculate(ctx, job.FileID, job.Request)
	if err == nil {
		s.logger.Info("Job completed",
			zap.String("file_id", job.FileID),
			zap.String("result_id", result.ResultID))
		return outcomeDone
	}

	// Interrupted by shutdown: the job itself is fine, hand it back without
	// spending its one redelivery.
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		s.logger.Info("Job interrupted, requeueing",
			zap.String("file_id", job.FileID),
			zap.Error(err))
		return outcomeRequeued
	}

	if !retryable(err) {
		s.logger.Warn("Job rejected",
			zap.String("file_id", job.FileID),
			zap.Error(err))
		return outcomeRejected
	}
	// A second transient failure drops the job instead of cycling it forever.
	if event.Redelivered {
		s.logger.Error("Job failed again after redelivery",
			zap.String("file_id", job.FileID),
			zap.Error(err),
			zap.String("action", "Check the upload directory and the result sinks"))
		return outcomeFailed
	}
	s.logger.Warn("Job failed, requeueing",
		zap.String("file_id", job.FileID),
		zap.Error(err))
	return outcomeRequeued
}

func retryable(err error) bool {
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidID) {
		return false
	}
	return processing.Retryable(err)
}
