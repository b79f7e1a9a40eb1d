package scenario

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lifecycle/internal/telemetry"
	"github.com/roach88/lifecycle/internal/testutil"
)

func quiet() Options {
	return Options{Logger: testutil.DiscardLogger()}
}

func TestGoldenScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario(path)
			require.NoError(t, err)
			assert.Equal(t, name, s.Name, "scenario name should match its file")

			_, err = RunWithGolden(t, s, quiet())
			require.NoError(t, err)
		})
	}
}

func TestRun_CompletedAttempt(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/completed_attempt.yaml")
	require.NoError(t, err)

	result, err := Run(context.Background(), s, quiet())
	require.NoError(t, err)

	events := result.StepEvents()
	require.Len(t, events, 4)
	for i, ev := range events {
		assert.Equal(t, int64(i+1), ev.SequenceNumber)
	}
	assert.False(t, result.Outcomes[4].Accepted, "small progress step inside the window is throttled")

	summaries := result.Summaries()
	require.Len(t, summaries, 1)
	assert.Equal(t, 31.5, summaries[0].DurationSeconds)
	assert.Equal(t, telemetry.StatusCompleted, summaries[0].CompletionStatus)
	assert.True(t, summaries[0].IsOfflineSubmission)

	last := result.Batches[len(result.Batches)-1]
	assert.Equal(t, telemetry.KindSummary, last.Kind(), "summary is delivered last")
}

func TestRun_ReconciledDoubleEnd(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/reconciled_double_end.yaml")
	require.NoError(t, err)

	result, err := Run(context.Background(), s, quiet())
	require.NoError(t, err)

	require.Len(t, result.Summaries(), 1, "second end must not emit another summary")
	sum := result.Summaries()[0]
	assert.Equal(t, telemetry.StatusFailed, sum.CompletionStatus)
	assert.False(t, sum.IsOfflineSubmission)
	assert.Equal(t, "canon-42", sum.SessionData.CanonicalAttemptID)
	assert.Equal(t, 1, sum.ResetsUsed)
	assert.Equal(t, 1, sum.CriticalErrors)

	assert.True(t, result.Identity.IsReconciled)
	assert.False(t, result.Identity.IsLocalOnly)
	assert.False(t, result.Outcomes[7].Accepted)
	assert.False(t, result.Outcomes[8].Accepted)
	assert.Equal(t, 0, result.Pending)
}

func TestRun_UnresolvedVersionKeepsAttemptOpen(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/unresolved_version.yaml")
	require.NoError(t, err)

	result, err := Run(context.Background(), s, quiet())
	require.NoError(t, err)

	assert.Empty(t, result.Summaries())
	assert.False(t, result.Outcomes[3].Accepted)
	assert.Equal(t, 1, result.Outcomes[2].Flushed)
}

func TestRun_DurationOverride(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: override
description: duration comes from the caller
lab_id: lab-1
lab_version_id: v1
actions:
  - advance: 10m
  - end: {status: completed, duration_seconds: 12.3456}
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), s, quiet())
	require.NoError(t, err)

	require.Len(t, result.Summaries(), 1)
	assert.Equal(t, 12.346, result.Summaries()[0].DurationSeconds)
}

func TestRun_ExtraSinkSeesEveryBatch(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/reconciled_double_end.yaml")
	require.NoError(t, err)

	sink := testutil.NewCapturingSink()
	opts := quiet()
	opts.Sink = sink

	result, err := Run(context.Background(), s, opts)
	require.NoError(t, err)

	got := sink.Batches()
	require.Len(t, got, len(result.Batches))
	for i, raw := range got {
		b, err := telemetry.DecodeBatch(raw)
		require.NoError(t, err)
		assert.Equal(t, result.Batches[i], b)
	}
}

func TestRun_MetricsAndStart(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/completed_attempt.yaml")
	require.NoError(t, err)

	metrics := telemetry.NewMetrics(prometheus.NewRegistry())
	opts := quiet()
	opts.Metrics = metrics
	opts.Start = time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)

	result, err := Run(context.Background(), s, opts)
	require.NoError(t, err)

	assert.Equal(t, "2030-06-01T12:00:00.000Z", result.Identity.RequestedAt)
	assert.Equal(t, float64(1), promtest.ToFloat64(metrics.EventsDropped.WithLabelValues(string(telemetry.DropThrottled))))
	assert.Equal(t, float64(1), promtest.ToFloat64(metrics.SummariesEmitted))
}

func TestRun_BaseConfigWithOverrides(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: tuned
description: scenario overrides win over the base config
lab_id: lab-1
telemetry:
  batch_size: 1
actions:
  - step: {type: step_started}
  - step: {type: step_completed}
`))
	require.NoError(t, err)

	base := telemetry.DefaultConfig()
	base.BatchSize = 50
	opts := quiet()
	opts.Config = &base

	result, err := Run(context.Background(), s, opts)
	require.NoError(t, err)
	assert.Len(t, result.Batches, 2, "batch_size 1 flushes every event")
	assert.Equal(t, 0, result.Pending)
}

func TestRun_OverrideBelowBaseBatchSizeRejected(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: cramped
description: capacity override smaller than the base batch size
lab_id: lab-1
telemetry:
  queue_capacity: 2
actions:
  - step: {type: step_started}
`))
	require.NoError(t, err)

	base := telemetry.DefaultConfig()
	base.BatchSize = 5
	opts := quiet()
	opts.Config = &base

	_, err = Run(context.Background(), s, opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue capacity 2 is below batch size 5")
}

func TestParseScenario_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown field",
			yaml: "name: x\ndescription: d\nlab_id: l\nactions:\n  - reconcil: c\n",
			want: "failed to parse YAML",
		},
		{
			name: "missing name",
			yaml: "description: d\nlab_id: l\nactions:\n  - hint: true\n",
			want: "name is required",
		},
		{
			name: "missing description",
			yaml: "name: x\nlab_id: l\nactions:\n  - hint: true\n",
			want: "description is required",
		},
		{
			name: "missing lab",
			yaml: "name: x\ndescription: d\nactions:\n  - hint: true\n",
			want: "lab_id is required",
		},
		{
			name: "no actions",
			yaml: "name: x\ndescription: d\nlab_id: l\n",
			want: "actions list is required",
		},
		{
			name: "empty action",
			yaml: "name: x\ndescription: d\nlab_id: l\nactions:\n  - hint: false\n",
			want: "actions[0]: no action set",
		},
		{
			name: "two kinds in one action",
			yaml: "name: x\ndescription: d\nlab_id: l\nactions:\n  - hint: true\n    reset: true\n",
			want: "exactly one action per entry",
		},
		{
			name: "step without type",
			yaml: "name: x\ndescription: d\nlab_id: l\nactions:\n  - step: {action: open}\n",
			want: "step type is required",
		},
		{
			name: "bad advance",
			yaml: "name: x\ndescription: d\nlab_id: l\nactions:\n  - advance: soon\n",
			want: "actions[0]: advance",
		},
		{
			name: "negative advance",
			yaml: "name: x\ndescription: d\nlab_id: l\nactions:\n  - advance: -1s\n",
			want: "advance must be positive",
		},
		{
			name: "negative duration",
			yaml: "name: x\ndescription: d\nlab_id: l\nactions:\n  - end: {status: completed, duration_seconds: -1}\n",
			want: "duration_seconds must not be negative",
		},
		{
			name: "zero batch size",
			yaml: "name: x\ndescription: d\nlab_id: l\ntelemetry: {batch_size: 0}\nactions:\n  - hint: true\n",
			want: "batch_size must be positive",
		},
		{
			name: "capacity below batch size",
			yaml: "name: x\ndescription: d\nlab_id: l\ntelemetry: {batch_size: 5, queue_capacity: 2}\nactions:\n  - hint: true\n",
			want: "telemetry.queue_capacity 2 is below telemetry.batch_size 5",
		},
		{
			name: "bad overflow policy",
			yaml: "name: x\ndescription: d\nlab_id: l\ntelemetry: {overflow_policy: spill}\nactions:\n  - hint: true\n",
			want: "telemetry.overflow_policy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/does_not_exist.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}
