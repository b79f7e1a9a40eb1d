package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/lifecycle/internal/store"
	"github.com/roach88/lifecycle/internal/telemetry"
)

// OutboxOptions holds flags for the outbox commands.
type OutboxOptions struct {
	*RootOptions
	Database string
	All      bool
	Limit    int
	Payload  bool
}

// OutboxRow is one outbox entry as printed by outbox list.
type OutboxRow struct {
	Seq         int64            `json:"seq"`
	Kind        string           `json:"kind"`
	RawSize     int              `json:"raw_size"`
	StoredSize  int              `json:"stored_size"`
	CreatedAt   string           `json:"created_at"`
	DeliveredAt string           `json:"delivered_at,omitempty"`
	Batch       *telemetry.Batch `json:"batch,omitempty"`
}

// OutboxList is the output of outbox list.
type OutboxList struct {
	Entries []OutboxRow `json:"entries"`
}

func (l OutboxList) RenderText(w io.Writer) {
	if len(l.Entries) == 0 {
		fmt.Fprintln(w, "Outbox is empty")
		return
	}
	for _, e := range l.Entries {
		status := "pending"
		if e.DeliveredAt != "" {
			status = "delivered " + e.DeliveredAt
		}
		fmt.Fprintf(w, "%6d  %-7s %6dB -> %6dB  %s  %s\n",
			e.Seq, e.Kind, e.RawSize, e.StoredSize, e.CreatedAt, status)
		if e.Batch != nil {
			for _, ev := range e.Batch.StepEvents {
				fmt.Fprintf(w, "        step %s #%d %s\n", ev.AttemptID, ev.SequenceNumber, ev.EventType)
			}
			for _, a := range e.Batch.Attempts {
				fmt.Fprintf(w, "        summary %s %s\n", a.AttemptID, a.CompletionStatus)
			}
		}
	}
}

// AckResult is the output of outbox ack.
type AckResult struct {
	Seq int64 `json:"seq"`
}

func (r AckResult) RenderText(w io.Writer) {
	fmt.Fprintf(w, "Marked %d delivered\n", r.Seq)
}

// NewOutboxCommand creates the outbox command group.
func NewOutboxCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OutboxOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect the telemetry outbox",
		Long: `Inspect and acknowledge telemetry batches stored in the SQLite outbox.

Batches are stored compressed; sizes show the raw and stored byte counts.`,
	}

	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (defaults to the configured store path)")

	cmd.AddCommand(newOutboxListCommand(opts))
	cmd.AddCommand(newOutboxAckCommand(opts))

	return cmd
}

func newOutboxListCommand(opts *OutboxOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List outbox batches",
		Long: `List pending outbox batches, oldest first.

Examples:
  lifecycle outbox list --limit 10
  lifecycle outbox list --all --payload --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOutboxList(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.All, "all", false, "include delivered batches")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of pending batches (0 = no limit)")
	cmd.Flags().BoolVar(&opts.Payload, "payload", false, "decode and include each batch")

	return cmd
}

func runOutboxList(opts *OutboxOptions, cmd *cobra.Command) error {
	e, err := opts.setup(cmd)
	if err != nil {
		return err
	}
	st, err := e.openStore(opts.Database)
	if err != nil {
		return err
	}
	defer e.closeStore(st)

	ctx := commandContext(cmd)
	var entries []store.OutboxEntry
	if opts.All {
		entries, err = st.ReadAllOutbox(ctx)
	} else {
		entries, err = st.ReadOutbox(ctx, opts.Limit)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read outbox", err)
	}

	list := OutboxList{Entries: make([]OutboxRow, 0, len(entries))}
	for _, entry := range entries {
		row := OutboxRow{
			Seq:         entry.Seq,
			Kind:        entry.Kind,
			RawSize:     entry.RawSize,
			StoredSize:  entry.StoredSize,
			CreatedAt:   entry.CreatedAt,
			DeliveredAt: entry.DeliveredAt,
		}
		if opts.Payload {
			b, err := telemetry.DecodeBatch(entry.Payload)
			if err != nil {
				return WrapExitError(ExitCommandError, fmt.Sprintf("outbox entry %d is corrupt", entry.Seq), err)
			}
			row.Batch = &b
		}
		list.Entries = append(list.Entries, row)
	}
	return e.out.Success(list)
}

func newOutboxAckCommand(opts *OutboxOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ack <seq>",
		Short: "Mark an outbox batch delivered",
		Long: `Mark an outbox batch delivered. Acknowledging a batch twice keeps the
first delivery time.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			seq, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid sequence number", err)
			}

			e, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			st, err := e.openStore(opts.Database)
			if err != nil {
				return err
			}
			defer e.closeStore(st)

			if err := st.MarkDelivered(commandContext(cmd), seq); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return WrapExitError(ExitFailure, "no such outbox entry", err)
				}
				return WrapExitError(ExitCommandError, "failed to mark delivered", err)
			}
			return e.out.Success(AckResult{Seq: seq})
		},
	}
}
