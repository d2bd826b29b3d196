package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ojparkinson/massbalance/internal/config"
	"github.com/ojparkinson/massbalance/internal/geometry"
	"github.com/ojparkinson/massbalance/internal/processing"
	"github.com/ojparkinson/massbalance/internal/storage"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type settlement struct {
	acked   bool
	nacked  bool
	requeue bool
}

type fakeAcknowledger struct {
	settled map[uint64]settlement
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.settled[tag] = settlement{acked: true}
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.settled[tag] = settlement{nacked: true, requeue: requeue}
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

type fakeCalculator struct {
	err   error
	calls []string
}

func (f *fakeCalculator) Calculate(ctx context.Context, fileID string, req *config.CalculationRequest) (*processing.FileResult, error) {
	f.calls = append(f.calls, fileID)
	if f.err != nil {
		return nil, f.err
	}
	return &processing.FileResult{FileID: fileID, ResultID: "ba9876543210"}, nil
}

const validJob = `{"file_id": "0123456789ab", "request": {"greide_layer": "VT", "terreno_layer": "TN", "sections": [{}]}}`

func TestHandle(t *testing.T) {
	testCases := []struct {
		name        string
		body        string
		calcErr     error
		redelivered bool
		cancelled   bool
		want        outcome
		wantCalls   int
	}{
		{"success", validJob, nil, false, false, outcomeDone, 1},
		{"undecodable body", `{"file_id":`, nil, false, false, outcomeRejected, 0},
		{"missing request", `{"file_id": "0123456789ab"}`, nil, false, false, outcomeRejected, 0},
		{"invalid request", validJob, fmt.Errorf("%w: greide_layer is required", config.ErrInvalidRequest), false, false, outcomeRejected, 1},
		{"geometry error", validJob, &geometry.GeometryError{Layer: "VT", Reason: "layer not found in drawing"}, false, false, outcomeRejected, 1},
		{"unknown file", validJob, fmt.Errorf("file 0123456789ab: %w", storage.ErrNotFound), false, false, outcomeRejected, 1},
		{"transient failure", validJob, errors.New("disk busy"), false, false, outcomeRequeued, 1},
		{"transient failure redelivered", validJob, errors.New("disk busy"), true, false, outcomeFailed, 1},
		{"cancelled on shutdown", validJob, fmt.Errorf("calculation stopped: %w", context.Canceled), false, true, outcomeRequeued, 1},
		{"cancelled after redelivery", validJob, fmt.Errorf("calculation stopped: %w", context.Canceled), true, true, outcomeRequeued, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			calc := &fakeCalculator{err: tc.calcErr}
			ack := &fakeAcknowledger{settled: make(map[uint64]settlement)}
			sub := NewSubscriber(calc, &config.Config{}, zap.NewNop())

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if tc.cancelled {
				cancel()
			}

			event := amqp.Delivery{Acknowledger: ack, DeliveryTag: 7, Body: []byte(tc.body), Redelivered: tc.redelivered}
			got := sub.handle(ctx, event)

			assert.Equal(t, tc.want, got)
			assert.Len(t, calc.calls, tc.wantCalls)

			settled, ok := ack.settled[7]
			require.True(t, ok, "delivery was never settled")
			switch tc.want {
			case outcomeDone:
				assert.True(t, settled.acked)
			case outcomeRequeued:
				assert.True(t, settled.nacked)
				assert.True(t, settled.requeue)
			default:
				assert.True(t, settled.nacked)
				assert.False(t, settled.requeue)
			}
		})
	}
}
