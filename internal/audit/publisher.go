package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sink receives audit events. Implementations must be safe for concurrent
// use; errors are reported to the publisher's logger, never to the emitter.
type Sink interface {
	Record(ctx context.Context, event Event) error
}

// Publisher fans events out to every configured sink. With an async buffer,
// events queue and drain in a background goroutine so the request hot path
// never waits on kafka or the database.
type Publisher struct {
	sinks  []Sink
	events chan Event
	wg     sync.WaitGroup
	logger *slog.Logger
	async  bool
}

// PublisherOption configures the Publisher.
type PublisherOption func(*Publisher)

// WithAsyncBuffer queues events in a buffered channel and records them in the
// background. A full buffer drops the event rather than blocking.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.events = make(chan Event, size)
			p.async = true
		}
	}
}

// WithPublisherLogger sets the logger for sink error reporting.
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) { p.logger = logger }
}

// NewPublisher builds a publisher over the given sinks.
func NewPublisher(sinks []Sink, opts ...PublisherOption) *Publisher {
	p := &Publisher{sinks: sinks, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.async {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.events {
		p.record(context.Background(), event)
	}
}

func (p *Publisher) record(ctx context.Context, event Event) {
	for _, sink := range p.sinks {
		if err := sink.Record(ctx, event); err != nil {
			p.logger.Warn("audit sink write failed",
				"error", err,
				"action", event.Action,
				"customer_id", event.TenantID,
			)
		}
	}
}

// Emit records an event. Best-effort: sink failures are logged, a full async
// buffer drops the event, and the caller never observes either.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if p.async {
		select {
		case p.events <- event:
		default:
			p.logger.Warn("audit buffer full, event dropped",
				"action", event.Action,
				"customer_id", event.TenantID,
			)
		}
		return
	}
	p.record(ctx, event)
}

// Close drains pending async events.
func (p *Publisher) Close() {
	if p.async && p.events != nil {
		close(p.events)
		p.wg.Wait()
	}
}
