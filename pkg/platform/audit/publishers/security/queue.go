package security

import (
	"sync"

	audit "riskgate/pkg/platform/audit"
)

const defaultQueueLimit = 10000

// EventQueue is a bounded FIFO of security events. On overflow the oldest
// non-critical event is evicted; critical events only give way to newer
// critical events.
type EventQueue struct {
	mu      sync.Mutex
	events  []audit.SecurityEvent
	limit   int
	dropped int64
}

func NewEventQueue(limit int) *EventQueue {
	if limit <= 0 {
		limit = defaultQueueLimit
	}
	return &EventQueue{events: make([]audit.SecurityEvent, 0, min(limit, 1024)), limit: limit}
}

func (q *EventQueue) Push(e audit.SecurityEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) < q.limit {
		q.events = append(q.events, e)
		return
	}
	q.dropped++
	victim := -1
	for i := range q.events {
		if q.events[i].Severity != audit.SeverityCritical {
			victim = i
			break
		}
	}
	switch {
	case victim >= 0:
	case e.Severity == audit.SeverityCritical:
		victim = 0
	default:
		return
	}
	q.events = append(q.events[:victim], q.events[victim+1:]...)
	q.events = append(q.events, e)
}

// PopBatch removes up to n events in arrival order.
func (q *EventQueue) PopBatch(n int) []audit.SecurityEvent {
	q.mu.Lock()
	defer q.mu.Unlock()

	n = min(n, len(q.events))
	if n == 0 {
		return nil
	}
	out := make([]audit.SecurityEvent, n)
	copy(out, q.events[:n])
	q.events = append(q.events[:0], q.events[n:]...)
	return out
}

func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Dropped counts events lost to overflow.
func (q *EventQueue) Dropped() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
