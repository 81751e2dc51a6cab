// Package adapters bridges store events onto outbound transports.
package adapters

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"opsdesk/internal/amqp"
	"opsdesk/internal/core"
	"opsdesk/internal/services"
)

var _ services.EventSink = (*AMQPSink)(nil)

// ErrQueueFull is reported when the publish buffer is saturated.
var ErrQueueFull = errors.New("event queue full")

type Publisher interface {
	Publish(ctx context.Context, env *amqp.Envelope) error
}

// AMQPSink turns expense and budget events into envelopes and publishes them
// from a background goroutine, so store mutations never wait on the broker.
// Events arriving while the buffer is full are dropped and logged.
type AMQPSink struct {
	pub   Publisher
	queue chan *amqp.Envelope
	now   func() time.Time
	wg    sync.WaitGroup
}

func NewAMQPSink(pub Publisher, buffer int) *AMQPSink {
	if buffer < 1 {
		buffer = 64
	}
	return &AMQPSink{pub: pub, queue: make(chan *amqp.Envelope, buffer), now: time.Now}
}

// Run publishes queued envelopes until ctx is done, then drains what is left
// with a short deadline.
func (s *AMQPSink) Run(ctx context.Context) {
	s.wg.Add(1)
	defer s.wg.Done()
	for {
		select {
		case env := <-s.queue:
			s.publish(ctx, env)
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			for {
				select {
				case env := <-s.queue:
					s.publish(drainCtx, env)
				default:
					return
				}
			}
		}
	}
}

// Wait blocks until Run has returned.
func (s *AMQPSink) Wait() {
	s.wg.Wait()
}

func (s *AMQPSink) publish(ctx context.Context, env *amqp.Envelope) {
	if err := s.pub.Publish(ctx, env); err != nil {
		slog.ErrorContext(ctx, "Failed to publish event",
			"error", err,
			"message_id", env.ID,
			"event_type", env.Type)
	}
}

func (s *AMQPSink) enqueue(ctx context.Context, env *amqp.Envelope, err error) {
	if err != nil {
		slog.ErrorContext(ctx, "Failed to build event", "error", err)
		return
	}
	select {
	case s.queue <- env:
	default:
		slog.WarnContext(ctx, "Dropping event", "error", ErrQueueFull, "event_type", env.Type)
	}
}

func (s *AMQPSink) BudgetThresholdReached(ctx context.Context, st core.BudgetStatus) {
	env, err := amqp.NewBudgetAlert(st, s.now())
	s.enqueue(ctx, env, err)
}

func (s *AMQPSink) ExpenseRecorded(ctx context.Context, r core.ExpenseRecord, item core.ExpenseItem) {
	env, err := amqp.NewExpenseRecorded(r, item, s.now())
	s.enqueue(ctx, env, err)
}

// PersistenceFailed is local to the API process and not exported.
func (s *AMQPSink) PersistenceFailed(context.Context, string, error) {}
