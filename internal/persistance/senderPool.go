package persistance

import (
	"context"
	"fmt"
	"time"

	qdb "github.com/questdb/go-questdb-client/v4"
)

type SenderPool struct {
	pool chan qdb.LineSender
	size int
	host string
	port int
}

func NewSenderPool(ctx context.Context, size int, host string, port int) (*SenderPool, error) {
	if size < 1 {
		size = 1
	}
	pool := &SenderPool{
		pool: make(chan qdb.LineSender, size),
		size: size,
		host: host,
		port: port,
	}

	for i := 0; i < size; i++ {
		sender, err := qdb.NewLineSender(
			ctx,
			qdb.WithHttp(),
			qdb.WithAddress(fmt.Sprintf("%s:%d", host, port)),
			qdb.WithAutoFlushRows(10000),
			qdb.WithRequestTimeout(60*time.Second),
		)

		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create sender, %d: %w", i, err)
		}
		pool.pool <- sender
	}

	return pool, nil
}

// Get blocks until a sender is free or ctx is done.
func (p *SenderPool) Get(ctx context.Context) (qdb.LineSender, error) {
	select {
	case sender := <-p.pool:
		return sender, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *SenderPool) Return(sender qdb.LineSender) {
	p.pool <- sender
}

func (p *SenderPool) Close() {
	close(p.pool)
	for sender := range p.pool {
		sender.Close(context.Background())
	}
}
