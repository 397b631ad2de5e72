package security

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "riskgate/pkg/platform/audit"
)

type memorySink struct {
	mu     sync.Mutex
	events []audit.SecurityEvent
}

func (s *memorySink) Write(_ context.Context, events []audit.SecurityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

func (s *memorySink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestPublisher_DrainsOnClose(t *testing.T) {
	sink := &memorySink{}
	pub := New(sink, WithFlushInterval(time.Hour))

	for range 10 {
		pub.Emit(context.Background(), audit.SecurityEvent{Action: string(audit.EventAssessmentBlocked)})
	}
	pub.Close()

	require.Equal(t, 10, sink.Len())
	assert.False(t, sink.events[0].Timestamp.IsZero())
}

func TestPublisher_FlushesOnInterval(t *testing.T) {
	sink := &memorySink{}
	pub := New(sink, WithFlushInterval(10*time.Millisecond))
	defer pub.Close()

	pub.Emit(context.Background(), audit.SecurityEvent{Action: "x"})
	assert.Eventually(t, func() bool { return sink.Len() == 1 }, time.Second, 5*time.Millisecond)
}

func TestEventQueue_Overflow(t *testing.T) {
	info := func(action string) audit.SecurityEvent {
		return audit.SecurityEvent{Action: action, Severity: audit.SeverityInfo}
	}
	critical := func(action string) audit.SecurityEvent {
		return audit.SecurityEvent{Action: action, Severity: audit.SeverityCritical}
	}
	actions := func(events []audit.SecurityEvent) []string {
		out := make([]string, 0, len(events))
		for _, e := range events {
			out = append(out, e.Action)
		}
		return out
	}

	t.Run("evicts oldest informational event", func(t *testing.T) {
		q := NewEventQueue(3)
		q.Push(critical("payout_rejected"))
		q.Push(info("challenge_issued"))
		q.Push(info("approval_resolved"))
		q.Push(info("challenge_verified"))

		assert.Equal(t, int64(1), q.Dropped())
		assert.Equal(t, []string{"payout_rejected", "approval_resolved", "challenge_verified"}, actions(q.PopBatch(10)))
		assert.Equal(t, 0, q.Len())
	})

	t.Run("informational event dropped when only critical events are queued", func(t *testing.T) {
		q := NewEventQueue(2)
		q.Push(critical("a"))
		q.Push(critical("b"))
		q.Push(info("c"))

		assert.Equal(t, int64(1), q.Dropped())
		assert.Equal(t, []string{"a", "b"}, actions(q.PopBatch(10)))
	})

	t.Run("critical event replaces oldest critical", func(t *testing.T) {
		q := NewEventQueue(2)
		q.Push(critical("a"))
		q.Push(critical("b"))
		q.Push(critical("c"))

		assert.Equal(t, []string{"b", "c"}, actions(q.PopBatch(10)))
	})

	t.Run("batches preserve arrival order", func(t *testing.T) {
		q := NewEventQueue(0)
		for _, a := range []string{"a", "b", "c"} {
			q.Push(info(a))
		}
		assert.Equal(t, []string{"a", "b"}, actions(q.PopBatch(2)))
		assert.Equal(t, []string{"c"}, actions(q.PopBatch(2)))
		assert.Nil(t, q.PopBatch(2))
	})
}
