// Package notify fans committed domain events out to delivery sinks without
// blocking the operation that produced them.
package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"seatshare/internal/domain"
)

// Sink delivers one event to an external channel.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, e domain.Event) error
}

// Dispatcher implements domain.EventPublisher with a bounded queue drained by
// a single worker. When the queue is full the event is dropped and logged.
type Dispatcher struct {
	log     *zap.Logger
	sinks   []Sink
	queue   chan domain.Event
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

var _ domain.EventPublisher = (*Dispatcher)(nil)

func NewDispatcher(log *zap.Logger, buffer int, sinks ...Sink) *Dispatcher {
	if buffer <= 0 {
		buffer = 1
	}
	d := &Dispatcher{
		log:     log.Named("notify"),
		sinks:   sinks,
		queue:   make(chan domain.Event, buffer),
		timeout: 5 * time.Second,
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) Publish(_ context.Context, e domain.Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Warn("dispatcher closed, event dropped", zap.String("type", string(e.Type)), zap.String("event_id", e.ID))
		return
	}
	select {
	case d.queue <- e:
	default:
		d.log.Warn("notification queue full, event dropped",
			zap.String("type", string(e.Type)),
			zap.String("event_id", e.ID),
			zap.Int("capacity", cap(d.queue)),
		)
	}
}

// Close stops accepting events and waits until queued ones are delivered or
// ctx expires.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for e := range d.queue {
		d.deliver(e)
	}
}

func (d *Dispatcher) deliver(e domain.Event) {
	for _, s := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := s.Deliver(ctx, e)
		cancel()
		if err != nil {
			d.log.Error("event delivery failed",
				zap.String("sink", s.Name()),
				zap.String("type", string(e.Type)),
				zap.String("event_id", e.ID),
				zap.Error(err),
			)
		}
	}
}

// Discard is an EventPublisher that drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, domain.Event) {}
