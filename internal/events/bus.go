package events

import (
	"context"
	"sync"
	"time"

	"github.com/buildtall-systems/panelbot/internal/metrics"
	"go.uber.org/zap"
)

const (
	DefaultBuffer  = 256
	deliverTimeout = 10 * time.Second
)

// Publisher accepts events for asynchronous delivery.
type Publisher interface {
	Publish(e Event)
}

// Sink delivers events to one destination.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, e Event) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ctx context.Context, e Event) error

func (f SinkFunc) Name() string { return "func" }

func (f SinkFunc) Deliver(ctx context.Context, e Event) error { return f(ctx, e) }

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(Event) {}

// Bus fans events out to sinks from a single goroutine. When its buffer is
// full new events are dropped rather than blocking the publisher.
type Bus struct {
	ch     chan Event
	sinks  []Sink
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewBus(logger *zap.Logger, buffer int, sinks ...Sink) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Bus{
		ch:     make(chan Event, buffer),
		sinks:  sinks,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Start runs the delivery loop until Close drains the buffer.
func (b *Bus) Start(ctx context.Context) {
	go func() {
		defer close(b.done)
		for e := range b.ch {
			b.deliver(ctx, e)
		}
	}()
}

func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	select {
	case b.ch <- e:
	default:
		metrics.EventsDropped.Inc()
		b.logger.Warn("event buffer full, dropping event",
			zap.String("type", string(e.Type)),
			zap.String("id", e.ID))
	}
}

// Close stops accepting events and waits for buffered ones to be delivered.
// Start must have been called.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.ch)
	b.mu.Unlock()

	<-b.done
}

func (b *Bus) deliver(ctx context.Context, e Event) {
	for _, s := range b.sinks {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliverTimeout)
		err := s.Deliver(dctx, e)
		cancel()
		if err != nil {
			metrics.SinkErrors.WithLabelValues(s.Name()).Inc()
			b.logger.Error("event delivery failed",
				zap.String("sink", s.Name()),
				zap.String("type", string(e.Type)),
				zap.Error(err))
		}
	}
}
