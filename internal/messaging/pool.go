package messaging

import (
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ResultsRoutingKey = "massbalance.results"
	JobsRoutingKey    = "massbalance.jobs"
)

type ConnectionPool struct {
	connections []*amqp.Connection
	channels    []*amqp.Channel
	mu          sync.Mutex
	url         string
	poolSize    int
	current     int
}

// NewConnectionPool dials poolSize connections, each with one channel, and
// declares the durable topic exchange results are published to.
func NewConnectionPool(url string, poolSize int, exchange string) (*ConnectionPool, error) {
	if poolSize < 1 {
		poolSize = 1
	}
	pool := &ConnectionPool{
		connections: make([]*amqp.Connection, poolSize),
		channels:    make([]*amqp.Channel, poolSize),
		url:         url,
		poolSize:    poolSize,
	}

	for i := 0; i < poolSize; i++ {
		conn, err := amqp.Dial(url)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create connection %d: %w", i, err)
		}

		ch, err := conn.Channel()
		if err != nil {
			conn.Close()
			pool.Close()
			return nil, fmt.Errorf("failed to create channel %d: %w", i, err)
		}

		if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
			ch.Close()
			conn.Close()
			pool.Close()
			return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
		}

		pool.connections[i] = conn
		pool.channels[i] = ch
	}

	return pool, nil
}

// GetChannel hands out the channels round robin. A closed channel is
// reopened on its connection; nil means the connection is gone too.
func (p *ConnectionPool) GetChannel() *amqp.Channel {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.channels) == 0 {
		return nil
	}

	i := p.current
	p.current = (p.current + 1) % p.poolSize

	ch := p.channels[i]
	if ch != nil && !ch.IsClosed() {
		return ch
	}

	conn := p.connections[i]
	if conn == nil || conn.IsClosed() {
		return nil
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil
	}
	p.channels[i] = ch
	return ch
}

func (p *ConnectionPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.channels {
		if p.channels[i] != nil {
			p.channels[i].Close()
		}
		if p.connections[i] != nil {
			p.connections[i].Close()
		}
	}
}
