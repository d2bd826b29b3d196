package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ojparkinson/massbalance/internal/config"
	"github.com/ojparkinson/massbalance/internal/processing"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

var jsonBufferPool = sync.Pool{
	New: func() interface{} {
		return &bytes.Buffer{}
	},
}

var errNoChannel = errors.New("no open RabbitMQ channel")

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher announces finished results on the results exchange.
type Publisher struct {
	channel    func() (channel, bool)
	exchange   string
	persistent bool
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger
}

func NewPublisher(pool *ConnectionPool, cfg *config.Config, logger *zap.Logger) *Publisher {
	return &Publisher{
		channel: func() (channel, bool) {
			ch := pool.GetChannel()
			return ch, ch != nil
		},
		exchange:   cfg.RabbitMQExchange,
		persistent: cfg.RabbitMQPersistent,
		maxRetries: 3,
		retryDelay: 250 * time.Millisecond,
		logger:     logger,
	}
}

func (p *Publisher) Name() string { return "rabbitmq" }

func (p *Publisher) Write(ctx context.Context, result *processing.FileResult) error {
	msg, err := p.publishing(result)
	if err != nil {
		return err
	}

	var lastErr error
	for retry := 0; retry < p.maxRetries; retry++ {
		if retry > 0 {
			select {
			case <-time.After(time.Duration(retry) * p.retryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		ch, ok := p.channel()
		if !ok {
			lastErr = errNoChannel
			p.logger.Warn("Failed to get channel from pool",
				zap.Int("attempt", retry+1),
				zap.Int("max_attempts", p.maxRetries))
			continue
		}

		pubCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		lastErr = ch.PublishWithContext(pubCtx, p.exchange, ResultsRoutingKey, false, false, msg)
		cancel()
		if lastErr == nil {
			return nil
		}
		p.logger.Warn("Failed to publish result",
			zap.String("result_id", result.ResultID),
			zap.Int("attempt", retry+1),
			zap.Error(lastErr))
	}

	return fmt.Errorf("failed to publish result %s after %d attempts: %w", result.ResultID, p.maxRetries, lastErr)
}

func (p *Publisher) publishing(result *processing.FileResult) (amqp.Publishing, error) {
	buf := jsonBufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer jsonBufferPool.Put(buf)

	if err := json.NewEncoder(buf).Encode(result.Response()); err != nil {
		return amqp.Publishing{}, fmt.Errorf("error marshaling result to JSON: %w", err)
	}

	mode := amqp.Transient
	if p.persistent {
		mode = amqp.Persistent
	}

	return amqp.Publishing{
		ContentType:  "application/json",
		Body:         bytes.Clone(buf.Bytes()),
		DeliveryMode: mode,
		Timestamp:    result.CreatedAt,
		MessageId:    result.ResultID,
		Headers: amqp.Table{
			"file_id":   result.FileID,
			"result_id": result.ResultID,
		},
	}, nil
}
