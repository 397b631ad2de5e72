package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"riskgate/internal/approval/models"
	"riskgate/pkg/requestcontext"
)

// Sink delivers one event.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// Dispatcher queues events and delivers them from a single background
// goroutine. A full queue drops the event instead of blocking the caller.
type Dispatcher struct {
	sink        Sink
	logger      *slog.Logger
	sendTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan Event
	done   chan struct{}
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan Event, n)
		}
	}
}

func WithSendTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.sendTimeout = t
		}
	}
}

// NewDispatcher starts delivery to sink. Call Close to drain.
func NewDispatcher(sink Sink, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sink:        sink,
		logger:      slog.Default(),
		sendTimeout: 5 * time.Second,
		queue:       make(chan Event, 1024),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	go d.run()
	return d
}

func (d *Dispatcher) ApprovalCreated(ctx context.Context, rec *models.Record) error {
	d.enqueue(ctx, newEvent(EventApprovalCreated, rec, requestcontext.Now(ctx)))
	return nil
}

func (d *Dispatcher) ApprovalResolved(ctx context.Context, rec *models.Record) error {
	d.enqueue(ctx, newEvent(EventApprovalResolved, rec, requestcontext.Now(ctx)))
	return nil
}

func (d *Dispatcher) enqueue(ctx context.Context, e Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.WarnContext(ctx, "notification dropped after shutdown", "type", string(e.Type), "approval_id", e.ApprovalID)
		return
	}
	select {
	case d.queue <- e:
	default:
		d.logger.WarnContext(ctx, "notification queue full, dropping event",
			"type", string(e.Type),
			"approval_id", e.ApprovalID,
		)
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for e := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
		if err := d.sink.Send(ctx, e); err != nil {
			d.logger.WarnContext(ctx, "notification delivery failed",
				"type", string(e.Type),
				"approval_id", e.ApprovalID,
				"error", err,
			)
		}
		cancel()
	}
}

// Close stops intake and waits for queued events to be delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.done
}
