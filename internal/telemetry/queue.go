package telemetry

import "fmt"

// OverflowPolicy decides which event is lost when the pending queue is
// full.
type OverflowPolicy string

const (
	// DropOldest evicts the oldest pending event to admit the new one.
	DropOldest OverflowPolicy = "drop_oldest"
	// DropNewest rejects the incoming event.
	DropNewest OverflowPolicy = "drop_newest"
)

// ParseOverflowPolicy validates s.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch OverflowPolicy(s) {
	case DropOldest, DropNewest:
		return OverflowPolicy(s), nil
	default:
		return "", fmt.Errorf("unknown overflow policy %q", s)
	}
}

// pendingQueue is a bounded FIFO of step events awaiting flush.
//
// Not safe for concurrent use; the Pipeline mutex guards it.
type pendingQueue struct {
	events   []StepEvent
	capacity int
	policy   OverflowPolicy
}

func newPendingQueue(capacity int, policy OverflowPolicy) *pendingQueue {
	return &pendingQueue{
		events:   make([]StepEvent, 0, min(capacity, 64)),
		capacity: capacity,
		policy:   policy,
	}
}

// Enqueue appends e. When the queue is full the policy applies: the
// returned event is the one that was dropped (the evicted head for
// DropOldest, e itself for DropNewest) and dropped is true.
func (q *pendingQueue) Enqueue(e StepEvent) (evicted StepEvent, dropped bool) {
	if q.Full() {
		if q.policy == DropNewest {
			return e, true
		}
		evicted, _ = q.dequeue()
		dropped = true
	}
	q.events = append(q.events, e)
	return evicted, dropped
}

// DequeueN removes and returns up to n events from the front.
func (q *pendingQueue) DequeueN(n int) []StepEvent {
	if n > len(q.events) {
		n = len(q.events)
	}
	if n <= 0 {
		return nil
	}
	out := make([]StepEvent, n)
	copy(out, q.events[:n])

	// Zero the vacated slots so the backing array does not pin old
	// events until the next reallocation.
	clear(q.events[:n])
	if n == len(q.events) {
		q.events = q.events[:0]
	} else {
		q.events = q.events[n:]
	}
	return out
}

func (q *pendingQueue) dequeue() (StepEvent, bool) {
	out := q.DequeueN(1)
	if len(out) == 0 {
		return StepEvent{}, false
	}
	return out[0], true
}

// Full reports whether the next Enqueue would drop an event.
func (q *pendingQueue) Full() bool {
	return q.capacity > 0 && len(q.events) >= q.capacity
}

// Len returns the number of pending events.
func (q *pendingQueue) Len() int {
	return len(q.events)
}
