package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lifecycle/internal/attempt"
	"github.com/roach88/lifecycle/internal/telemetry"
	"github.com/roach88/lifecycle/internal/testutil"
)

const stepsBatch = `{"contractVersion":"attempt_telemetry.v1","attempts":[],"step_events":[{"attempt_id":"a","sequence_number":1}]}`

func TestSend_StoresCompressed(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Send(ctx, []byte(stepsBatch)))

	var stored []byte
	require.NoError(t, s.db.QueryRow(`SELECT payload FROM telemetry_outbox`).Scan(&stored))
	assert.NotEqual(t, []byte(stepsBatch), stored)

	entries, err := s.ReadOutbox(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, stepsBatch, string(entries[0].Payload))
	assert.Equal(t, telemetry.KindSteps, entries[0].Kind)
	assert.Equal(t, len(stepsBatch), entries[0].RawSize)
	assert.Equal(t, "2026-03-01T10:00:00.000Z", entries[0].CreatedAt)
	assert.Empty(t, entries[0].DeliveredAt)
}

func TestSend_RejectsGarbage(t *testing.T) {
	s := createTestStore(t)

	err := s.Send(context.Background(), []byte("not a batch"))

	assert.ErrorContains(t, err, "outbox")
	entries, err := s.ReadAllOutbox(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReadOutbox_OrderLimitAndDelivery(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Send(ctx, []byte(stepsBatch)))
	}

	first, err := s.ReadOutbox(ctx, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Less(t, first[0].Seq, first[1].Seq)

	require.NoError(t, s.MarkDelivered(ctx, first[0].Seq))
	require.NoError(t, s.MarkDelivered(ctx, first[0].Seq), "marking twice is harmless")

	pending, err := s.ReadOutbox(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first[1].Seq, pending[0].Seq)

	all, err := s.ReadAllOutbox(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.NotEmpty(t, all[0].DeliveredAt)
}

func TestMarkDelivered_Unknown(t *testing.T) {
	s := createTestStore(t)

	err := s.MarkDelivered(context.Background(), 99)

	assert.ErrorIs(t, err, ErrNotFound)
}

// The store is a drop-in sink: a pipeline run lands in the outbox in
// delivery order with the summary last.
func TestOutbox_AsPipelineSink(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	fc := testutil.NewClock()

	registry := attempt.NewRegistry(
		attempt.WithIDGenerator(attempt.NewCountingGenerator("id")),
		attempt.WithClock(fc),
		attempt.WithLogger(testutil.DiscardLogger()),
	)
	session := attempt.NewSession()
	cfg := telemetry.DefaultConfig()
	cfg.BatchSize = 2
	p := telemetry.New(session, attempt.NewRegistryValidator(registry), s,
		telemetry.WithConfig(cfg),
		telemetry.WithClock(fc),
		telemetry.WithLogger(testutil.DiscardLogger()),
	)

	session.Begin(registry.CreateLocalFirst("lab-1"))
	session.ResolveVersion("ver-1", true)
	for i := 0; i < 3; i++ {
		require.True(t, p.QueueStepEvent(ctx, telemetry.StepInput{EventType: telemetry.EventStepStarted}))
	}
	require.True(t, p.EmitAttemptEnd(ctx, telemetry.AttemptEnd{Status: "completed"}))

	entries, err := s.ReadOutbox(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{telemetry.KindSteps, telemetry.KindSteps, telemetry.KindSummary},
		[]string{entries[0].Kind, entries[1].Kind, entries[2].Kind})

	summary, err := telemetry.DecodeBatch(entries[2].Payload)
	require.NoError(t, err)
	require.Len(t, summary.Attempts, 1)
	assert.True(t, summary.Attempts[0].SessionData.LaunchedFromCache)
}
