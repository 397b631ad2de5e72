// Package security publishes security events asynchronously. Emit never
// blocks a decision: events are buffered and flushed to a Sink in batches.
package security

import (
	"context"
	"log/slog"
	"sync"
	"time"

	audit "riskgate/pkg/platform/audit"
)

// Sink receives flushed batches. Failures are logged and the batch dropped.
type Sink interface {
	Write(ctx context.Context, events []audit.SecurityEvent) error
}

// Publisher buffers events and flushes them on an interval.
type Publisher struct {
	queue         *EventQueue
	sink          Sink
	logger        *slog.Logger
	flushInterval time.Duration
	batchSize     int

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

func WithFlushInterval(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.flushInterval = d
		}
	}
}

func WithCapacity(n int) Option {
	return func(p *Publisher) { p.queue = NewEventQueue(n) }
}

// New starts a publisher flushing to sink. Call Close to drain.
func New(sink Sink, opts ...Option) *Publisher {
	p := &Publisher{
		queue:         NewEventQueue(0),
		sink:          sink,
		logger:        slog.Default(),
		flushInterval: time.Second,
		batchSize:     256,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	go p.run()
	return p
}

// Emit implements audit.Emitter.
func (p *Publisher) Emit(_ context.Context, event audit.SecurityEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	p.queue.Push(event)
}

// Close stops the flush loop after draining buffered events.
func (p *Publisher) Close() {
	p.stopOnce.Do(func() { close(p.stop) })
	<-p.done
}

func (p *Publisher) run() {
	defer close(p.done)
	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.flush()
		case <-p.stop:
			for p.queue.Len() > 0 {
				p.flush()
			}
			return
		}
	}
}

func (p *Publisher) flush() {
	batch := p.queue.PopBatch(p.batchSize)
	if len(batch) == 0 || p.sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.sink.Write(ctx, batch); err != nil {
		p.logger.Error("security event flush failed", "error", err, "dropped", len(batch))
	}
}

// LogSink writes events to a structured logger.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Write(ctx context.Context, events []audit.SecurityEvent) error {
	for _, e := range events {
		s.Logger.InfoContext(ctx, "security_event",
			"action", e.Action,
			"subject", e.Subject,
			"reason", e.Reason,
			"ip_prefix", e.IP,
			"request_id", e.RequestID,
			"actor_id", e.ActorID,
			"severity", string(e.Severity),
			"occurred_at", e.Timestamp,
		)
	}
	return nil
}
