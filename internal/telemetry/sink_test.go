package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lifecycle/internal/testutil"
)

func TestBroadcaster_FansOut(t *testing.T) {
	a := testutil.NewCapturingSink()
	b := testutil.NewCapturingSink()
	bc := NewBroadcaster(a)
	bc.Subscribe(b)

	require.NoError(t, bc.Send(context.Background(), []byte("x")))

	assert.Len(t, a.Batches(), 1)
	assert.Len(t, b.Batches(), 1)
}

func TestBroadcaster_JoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	failing := SinkFunc(func(context.Context, []byte) error { return boom })
	ok := testutil.NewCapturingSink()

	err := NewBroadcaster(failing, ok).Send(context.Background(), []byte("x"))

	assert.ErrorIs(t, err, boom)
	assert.Len(t, ok.Batches(), 1, "a failing subscriber does not starve the others")
}

func TestChannelSink(t *testing.T) {
	ch := make(ChannelSink, 1)

	require.NoError(t, ch.Send(context.Background(), []byte("x")))
	assert.Equal(t, []byte("x"), <-ch)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	unbuffered := make(ChannelSink)
	assert.ErrorIs(t, unbuffered.Send(ctx, []byte("y")), context.Canceled)
}
