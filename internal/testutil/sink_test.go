package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapturingSink_RecordsInOrder(t *testing.T) {
	s := NewCapturingSink()

	require.NoError(t, s.Send(context.Background(), []byte("a")))
	require.NoError(t, s.Send(context.Background(), []byte("b")))

	assert.Equal(t, [][]byte{[]byte("a"), []byte("b")}, s.Batches())
	assert.Equal(t, 2, s.Attempts())
}

func TestCapturingSink_FailNext(t *testing.T) {
	s := NewCapturingSink()
	boom := errors.New("boom")
	s.FailNext(1, boom)

	err := s.Send(context.Background(), []byte("lost"))
	assert.ErrorIs(t, err, boom)
	require.NoError(t, s.Send(context.Background(), []byte("kept")))

	assert.Equal(t, [][]byte{[]byte("kept")}, s.Batches())
	assert.Equal(t, 2, s.Attempts())
}

func TestCapturingSink_CopiesInput(t *testing.T) {
	s := NewCapturingSink()
	buf := []byte("xyz")

	require.NoError(t, s.Send(context.Background(), buf))
	buf[0] = 'Q'

	assert.Equal(t, "xyz", string(s.Batches()[0]))
}

func TestNewClock_PinnedAtEpoch(t *testing.T) {
	c := NewClock()
	assert.Equal(t, Epoch, c.Now())
}
