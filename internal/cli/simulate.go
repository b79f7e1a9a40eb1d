package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/lifecycle/internal/scenario"
	"github.com/roach88/lifecycle/internal/telemetry"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	Database string
	Outbox   bool
}

// SimulateResult is the output of the simulate command.
type SimulateResult struct {
	*scenario.Result
	Outboxed int                `json:"outboxed,omitempty"`
	Metrics  map[string]float64 `json:"metrics"`
}

func (r SimulateResult) RenderText(w io.Writer) {
	fmt.Fprintf(w, "Scenario: %s\n", r.Scenario)
	fmt.Fprintf(w, "Attempt:  %s (launch %s)\n", r.Identity.AttemptID, r.Identity.LaunchRequestID)

	accepted := 0
	for _, o := range r.Outcomes {
		if o.Accepted {
			accepted++
		}
	}
	fmt.Fprintf(w, "Actions:  %d/%d accepted\n", accepted, len(r.Outcomes))
	fmt.Fprintf(w, "Batches:  %d (%d step events, %d summaries)\n",
		len(r.Batches), len(r.StepEvents()), len(r.Summaries()))
	for _, s := range r.Summaries() {
		fmt.Fprintf(w, "Summary:  %s in %gs (hints=%d resets=%d critical=%d offline=%t)\n",
			s.CompletionStatus, s.DurationSeconds, s.HintsUsed, s.ResetsUsed, s.CriticalErrors, s.IsOfflineSubmission)
	}
	fmt.Fprintf(w, "Pending:  %d\n", r.Pending)
	if r.Outboxed > 0 {
		fmt.Fprintf(w, "Outbox:   %d batches written\n", r.Outboxed)
	}
	if len(r.Metrics) > 0 {
		series := make([]string, 0, len(r.Metrics))
		for k := range r.Metrics {
			series = append(series, k)
		}
		sort.Strings(series)
		fmt.Fprintln(w, "Metrics:")
		for _, k := range series {
			fmt.Fprintf(w, "  %s %g\n", k, r.Metrics[k])
		}
	}
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate <scenario.yaml>",
		Short: "Run a scripted attempt through the telemetry pipeline",
		Long: `Run a scripted launch attempt through the telemetry pipeline using a
fake clock and deterministic ids, and print what the pipeline delivered.

Pipeline tuning comes from the config; the scenario's own telemetry block
overrides it. With --outbox every delivered batch is also written to the
SQLite telemetry outbox.

Examples:
  lifecycle simulate ./scenarios/completed_attempt.yaml
  lifecycle simulate ./scenarios/completed_attempt.yaml --outbox --db ./lifecycle.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(opts, args[0], cmd)
		},
	}

	addDBFlag(cmd, &opts.Database)
	cmd.Flags().BoolVar(&opts.Outbox, "outbox", false, "also write delivered batches to the telemetry outbox")

	return cmd
}

func runSimulate(opts *SimulateOptions, path string, cmd *cobra.Command) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return WrapExitError(ExitCommandError, "scenario file not found", err)
	}

	e, err := opts.setup(cmd)
	if err != nil {
		return err
	}

	s, err := scenario.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	cfg := e.cfg.Telemetry
	reg := prometheus.NewRegistry()
	runOpts := scenario.Options{
		Config:  &cfg,
		Logger:  e.logger,
		Metrics: telemetry.NewMetrics(reg),
	}

	var outboxSink *countingSink
	if opts.Outbox {
		st, err := e.openStore(opts.Database)
		if err != nil {
			return err
		}
		defer e.closeStore(st)
		outboxSink = &countingSink{next: st}
		runOpts.Sink = outboxSink
	}

	result, err := scenario.Run(commandContext(cmd), s, runOpts)
	if err != nil {
		return WrapExitError(ExitCommandError, "scenario failed", err)
	}

	values, err := telemetry.GatherValues(reg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to gather metrics", err)
	}

	out := SimulateResult{Result: result, Metrics: values}
	if outboxSink != nil {
		if outboxSink.failed > 0 {
			return NewExitError(ExitCommandError,
				fmt.Sprintf("%d batches could not be written to the outbox", outboxSink.failed))
		}
		out.Outboxed = outboxSink.sent
	}
	return e.out.Success(out)
}

// countingSink forwards to next and counts the outcome of each send.
// The pipeline serializes sends, so no locking is needed.
type countingSink struct {
	next   telemetry.Sink
	sent   int
	failed int
}

func (c *countingSink) Send(ctx context.Context, batch []byte) error {
	if err := c.next.Send(ctx, batch); err != nil {
		c.failed++
		return err
	}
	c.sent++
	return nil
}
