package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seqEvent(n int64) StepEvent {
	return StepEvent{AttemptID: "a", SequenceNumber: n}
}

func TestPendingQueue_FIFO(t *testing.T) {
	q := newPendingQueue(0, DropOldest)
	for i := int64(1); i <= 5; i++ {
		_, dropped := q.Enqueue(seqEvent(i))
		require.False(t, dropped)
	}

	first := q.DequeueN(2)
	rest := q.DequeueN(10)

	assert.Equal(t, []StepEvent{seqEvent(1), seqEvent(2)}, first)
	assert.Equal(t, []StepEvent{seqEvent(3), seqEvent(4), seqEvent(5)}, rest)
	assert.Equal(t, 0, q.Len())
	assert.Nil(t, q.DequeueN(1))
}

func TestPendingQueue_DropOldest(t *testing.T) {
	q := newPendingQueue(2, DropOldest)
	q.Enqueue(seqEvent(1))
	q.Enqueue(seqEvent(2))

	evicted, dropped := q.Enqueue(seqEvent(3))

	assert.True(t, dropped)
	assert.Equal(t, int64(1), evicted.SequenceNumber)
	assert.Equal(t, []StepEvent{seqEvent(2), seqEvent(3)}, q.DequeueN(5))
}

func TestPendingQueue_DropNewest(t *testing.T) {
	q := newPendingQueue(2, DropNewest)
	q.Enqueue(seqEvent(1))
	q.Enqueue(seqEvent(2))
	assert.True(t, q.Full())

	rejected, dropped := q.Enqueue(seqEvent(3))

	assert.True(t, dropped)
	assert.Equal(t, int64(3), rejected.SequenceNumber)
	assert.Equal(t, []StepEvent{seqEvent(1), seqEvent(2)}, q.DequeueN(5))
}

func TestPendingQueue_ReleasesSlots(t *testing.T) {
	q := newPendingQueue(0, DropOldest)
	q.Enqueue(seqEvent(1))
	q.Enqueue(seqEvent(2))
	backing := q.events[:2]

	q.DequeueN(1)

	assert.Equal(t, StepEvent{}, backing[0])
	assert.Equal(t, 1, q.Len())
}

func TestParseOverflowPolicy(t *testing.T) {
	p, err := ParseOverflowPolicy("drop_newest")
	require.NoError(t, err)
	assert.Equal(t, DropNewest, p)

	_, err = ParseOverflowPolicy("block")
	assert.ErrorContains(t, err, "unknown overflow policy")
}
