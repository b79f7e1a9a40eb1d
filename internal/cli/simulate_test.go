package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lifecycle/internal/telemetry"
)

const completedScenario = "../scenario/testdata/scenarios/completed_attempt.yaml"

// simulateOutput mirrors the JSON shape of SimulateResult.
type simulateOutput struct {
	Scenario string             `json:"scenario"`
	Batches  []telemetry.Batch  `json:"batches"`
	Pending  int                `json:"pending"`
	Outboxed int                `json:"outboxed"`
	Metrics  map[string]float64 `json:"metrics"`
}

func TestSimulate_JSON(t *testing.T) {
	got := runJSON[simulateOutput](t, "simulate", completedScenario)
	assert.Equal(t, "completed_attempt", got.Scenario)
	require.Len(t, got.Batches, 2)
	assert.Equal(t, telemetry.KindSteps, got.Batches[0].Kind())
	assert.Equal(t, telemetry.KindSummary, got.Batches[1].Kind())
	assert.Equal(t, 0, got.Pending)
	assert.Zero(t, got.Outboxed)
}

func TestSimulate_ReportsPipelineMetrics(t *testing.T) {
	got := runJSON[simulateOutput](t, "simulate", completedScenario)

	series := func(name, label, value string) string {
		return fmt.Sprintf("lifecycle_telemetry_%s{%s=%q}", name, label, value)
	}
	assert.Equal(t, 4.0, got.Metrics["lifecycle_telemetry_events_queued_total"])
	assert.Equal(t, 1.0, got.Metrics[series("events_dropped_total", "reason", string(telemetry.DropThrottled))])
	assert.Equal(t, 1.0, got.Metrics[series("batches_sent_total", "kind", telemetry.KindSteps)])
	assert.Equal(t, 1.0, got.Metrics[series("batches_sent_total", "kind", telemetry.KindSummary)])
	assert.Equal(t, 1.0, got.Metrics["lifecycle_telemetry_summaries_emitted_total"])
	assert.Equal(t, 0.0, got.Metrics["lifecycle_telemetry_send_failures_total"])
	assert.Contains(t, got.Metrics, "lifecycle_telemetry_pending_events")

	out, _, err := run(t, "simulate", completedScenario)
	require.NoError(t, err)
	assert.Contains(t, out, "Metrics:\n")
	assert.Contains(t, out, "  lifecycle_telemetry_summaries_emitted_total 1\n")
}

func TestSimulate_Text(t *testing.T) {
	out, _, err := run(t, "simulate", completedScenario)
	require.NoError(t, err)
	assert.Contains(t, out, "Scenario: completed_attempt")
	assert.Contains(t, out, "Actions:  9/10 accepted")
	assert.Contains(t, out, "Batches:  2 (4 step events, 1 summaries)")
	assert.Contains(t, out, "Summary:  completed in 31.5s")
}

func TestSimulate_ConfigTunesPipeline(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "lifecycle.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("telemetry:\n  batch_size: 1\n  device_type: headset\n"), 0o644))

	got := runJSON[simulateOutput](t, "simulate", completedScenario, "--config", cfgPath)
	require.Len(t, got.Batches, 5, "every step event is flushed on its own")
	last := got.Batches[4]
	require.Len(t, last.Attempts, 1)
	assert.Equal(t, "headset", last.Attempts[0].DeviceType)
}

func TestSimulate_InvalidConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "lifecycle.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("telemetry:\n  batch_size: 0\n"), 0o644))

	_, _, err := run(t, "simulate", completedScenario, "--config", cfgPath)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSimulate_Errors(t *testing.T) {
	_, _, err := run(t, "simulate", "/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenario file not found")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("name: x\n"), 0o644))
	_, _, err = run(t, "simulate", bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load scenario")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSimulate_OutboxRoundTrip(t *testing.T) {
	db := tempDB(t)

	got := runJSON[simulateOutput](t, "simulate", completedScenario, "--outbox", "--db", db)
	assert.Equal(t, 2, got.Outboxed)

	pending := runJSON[OutboxList](t, "outbox", "list", "--db", db, "--payload")
	require.Len(t, pending.Entries, 2)
	steps, summary := pending.Entries[0], pending.Entries[1]
	assert.Equal(t, telemetry.KindSteps, steps.Kind)
	assert.Equal(t, telemetry.KindSummary, summary.Kind)
	require.NotNil(t, steps.Batch)
	assert.Equal(t, got.Batches[0], *steps.Batch)
	assert.Positive(t, steps.RawSize)
	assert.Positive(t, steps.StoredSize)
	assert.Empty(t, steps.DeliveredAt)

	ack := runJSON[AckResult](t, "outbox", "ack", "1", "--db", db)
	assert.Equal(t, int64(1), ack.Seq)

	remaining := runJSON[OutboxList](t, "outbox", "list", "--db", db)
	require.Len(t, remaining.Entries, 1)
	assert.Equal(t, summary.Seq, remaining.Entries[0].Seq)
	assert.Nil(t, remaining.Entries[0].Batch, "payload omitted without --payload")

	all := runJSON[OutboxList](t, "outbox", "list", "--db", db, "--all")
	require.Len(t, all.Entries, 2)
	assert.NotEmpty(t, all.Entries[0].DeliveredAt)
}

func TestOutboxList_LimitAndText(t *testing.T) {
	db := tempDB(t)

	out, _, err := run(t, "outbox", "list", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "Outbox is empty\n", out)

	runJSON[simulateOutput](t, "simulate", completedScenario, "--outbox", "--db", db)

	limited := runJSON[OutboxList](t, "outbox", "list", "--db", db, "--limit", "1")
	require.Len(t, limited.Entries, 1)
	assert.Equal(t, telemetry.KindSteps, limited.Entries[0].Kind)

	out, _, err = run(t, "outbox", "list", "--db", db, "--payload")
	require.NoError(t, err)
	assert.Contains(t, out, "pending")
	assert.Contains(t, out, "step id-000002 #1 step_started")
	assert.Contains(t, out, "summary id-000002 completed")
}

func TestOutboxAck_Errors(t *testing.T) {
	db := tempDB(t)

	_, _, err := run(t, "outbox", "ack", "nope", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, _, err = run(t, "outbox", "ack", "99", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "no such outbox entry")
}
