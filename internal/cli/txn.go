package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/lifecycle/internal/attempt"
	"github.com/roach88/lifecycle/internal/idempotency"
	"github.com/roach88/lifecycle/internal/store"
	"github.com/roach88/lifecycle/internal/txn"
)

// TxnOptions holds flags shared by the txn subcommands.
type TxnOptions struct {
	*RootOptions
	Database string
	Actor    string
}

// TxnCreateOptions holds flags for txn create.
type TxnCreateOptions struct {
	*TxnOptions
	TenantID     string
	LabID        string
	LabVersionID string
	ContentHash  string
	Source       string
}

// TxnFailOptions holds flags for txn fail.
type TxnFailOptions struct {
	*TxnOptions
	Code      string
	Message   string
	Retryable bool
}

// TxnView is the output of every txn subcommand that returns one
// transaction.
type TxnView struct {
	Created bool       `json:"created,omitempty"`
	Report  txn.Report `json:"transaction"`
}

func (v TxnView) RenderText(w io.Writer) {
	r := v.Report
	if v.Created {
		fmt.Fprintln(w, "Created transaction")
	}
	fmt.Fprintf(w, "ID:     %s\n", r.TransactionID)
	fmt.Fprintf(w, "Key:    %s\n", r.IdempotencyKey)
	fmt.Fprintf(w, "State:  %s\n", r.State)
	fmt.Fprintf(w, "Source: %s\n", r.Source)
	fmt.Fprintln(w, "History:")
	for _, h := range r.StateHistory {
		from := string(h.From)
		if from == "" {
			from = "-"
		}
		fmt.Fprintf(w, "  %s  %s -> %s  %s\n", h.At, from, h.To, h.Reason)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(w, "Error:  [%s] %s (phase=%s retryable=%t)\n", e.Code, e.Message, e.Phase, e.Retryable)
	}
}

// TxnList is the output of txn list.
type TxnList struct {
	Transactions []txn.Report `json:"transactions"`
}

func (l TxnList) RenderText(w io.Writer) {
	if len(l.Transactions) == 0 {
		fmt.Fprintln(w, "No transactions")
		return
	}
	for _, r := range l.Transactions {
		fmt.Fprintf(w, "%s  %-18s %s\n", r.TransactionID, r.State, r.IdempotencyKey)
	}
}

// NewTxnCommand creates the txn command group.
func NewTxnCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TxnOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "txn",
		Short: "Create and advance publish transactions",
		Long: `Create, advance and inspect publish transactions stored in SQLite.

Every change is appended to the transaction's audit history; rejected
transitions leave the stored transaction untouched and exit with code 1.`,
	}

	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (defaults to the configured store path)")
	cmd.PersistentFlags().StringVar(&opts.Actor, "actor", "cli", "actor recorded in history entries")

	cmd.AddCommand(newTxnCreateCommand(opts))
	cmd.AddCommand(newTxnAdvanceCommand(opts))
	cmd.AddCommand(newTxnFailCommand(opts))
	cmd.AddCommand(newTxnResumeCommand(opts))
	cmd.AddCommand(newTxnShowCommand(opts))
	cmd.AddCommand(newTxnListCommand(opts))

	return cmd
}

func newTxnCreateCommand(txnOpts *TxnOptions) *cobra.Command {
	opts := &TxnCreateOptions{TxnOptions: txnOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a draft transaction",
		Long: `Create a draft publish transaction for a lab version.

Creation is idempotent: if a transaction already exists for the same
publish key it is returned unchanged.

Example:
  lifecycle txn create --tenant t1 --lab lab-1 --version v3 --content-hash abc`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTxnCreate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.TenantID, "tenant", "", "tenant id")
	cmd.Flags().StringVar(&opts.LabID, "lab", "", "lab id (required)")
	_ = cmd.MarkFlagRequired("lab")
	cmd.Flags().StringVar(&opts.LabVersionID, "version", "", "lab version id")
	cmd.Flags().StringVar(&opts.ContentHash, "content-hash", "", "content hash of the build input")
	cmd.Flags().StringVar(&opts.Source, "source", string(txn.SourceGuidedSetup), "authoring flow (guided_setup|hidden_build)")

	return cmd
}

func runTxnCreate(opts *TxnCreateOptions, cmd *cobra.Command) error {
	source := txn.Source(opts.Source)
	if source != txn.SourceGuidedSetup && source != txn.SourceHiddenBuild {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid source %q", opts.Source))
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

	ctx := commandContext(cmd)
	key := idempotency.BuildKey(opts.TenantID, opts.LabID, opts.LabVersionID, opts.ContentHash)

	existing, err := st.FindTransactionByKey(ctx, key)
	switch {
	case err == nil:
		e.logger.Info("transaction already exists", "transaction_id", existing.ID, "key", key)
		return e.out.Success(TxnView{Report: existing.Report()})
	case !errors.Is(err, store.ErrNotFound):
		return WrapExitError(ExitCommandError, "failed to look up transaction", err)
	}

	t := txn.NewMachine(txn.WithLogger(e.logger)).Draft(attempt.UUIDv7Generator{}.Generate(), key)
	t.Source = source
	t.Actor = txn.Actor{ID: opts.Actor}
	t.Lab = txn.LabRef{
		TenantID:     opts.TenantID,
		LabID:        opts.LabID,
		LabVersionID: opts.LabVersionID,
		ContentHash:  opts.ContentHash,
	}

	if err := st.SaveTransaction(ctx, t); err != nil {
		return WrapExitError(ExitCommandError, "failed to save transaction", err)
	}
	e.logger.Info("transaction created", "transaction_id", t.ID, "key", key)
	return e.out.Success(TxnView{Created: true, Report: t.Report()})
}

func newTxnAdvanceCommand(opts *TxnOptions) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "advance <transaction-id> <state>",
		Short: "Move a transaction to a new state",
		Long: `Move a transaction to a new state if the transition table allows it.

Example:
  lifecycle txn advance 0190... Validating --reason "checks started"`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			to := txn.State(args[1])
			if !txn.IsKnown(to) {
				return NewExitError(ExitCommandError, fmt.Sprintf("unknown state %q", args[1]))
			}
			return mutateTxn(opts, cmd, args[0], func(m *txn.Machine, t *txn.Transaction) error {
				return m.Transition(t, to, reason, opts.Actor)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded in the history entry")
	return cmd
}

func newTxnFailCommand(txnOpts *TxnOptions) *cobra.Command {
	opts := &TxnFailOptions{TxnOptions: txnOpts}

	cmd := &cobra.Command{
		Use:   "fail <transaction-id>",
		Short: "Record a phase failure",
		Long: `Record a failure against the transaction's current phase and move it
to FailedRetryable (with --retryable) or FailedTerminal.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			perr := txn.PhaseError{Code: opts.Code, Message: opts.Message, Retryable: opts.Retryable}
			return mutateTxn(opts.TxnOptions, cmd, args[0], func(m *txn.Machine, t *txn.Transaction) error {
				from := t.State
				if !m.Fail(t, perr, opts.Actor) {
					return &txn.TransitionError{
						Code:          txn.ErrCodeRejectedTransition,
						TransactionID: t.ID,
						From:          from,
						Message:       "state cannot fail",
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&opts.Code, "code", "", "error code (required)")
	_ = cmd.MarkFlagRequired("code")
	cmd.Flags().StringVar(&opts.Message, "message", "", "error message")
	cmd.Flags().BoolVar(&opts.Retryable, "retryable", false, "whether the failure can be resumed")

	return cmd
}

func newTxnResumeCommand(opts *TxnOptions) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "resume <transaction-id>",
		Short: "Resume a retryable failure",
		Long: `Move a FailedRetryable transaction back to the Requested state of the
phase that failed. Validation failures cannot be resumed.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutateTxn(opts, cmd, args[0], func(m *txn.Machine, t *txn.Transaction) error {
				target, err := txn.ResumeTarget(t)
				if err != nil {
					return err
				}
				return m.Transition(t, target, reason, opts.Actor)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "resume", "reason recorded in the history entry")
	return cmd
}

// mutateTxn loads a transaction, applies fn and saves the result. A
// *txn.TransitionError from fn exits with ExitFailure and saves nothing.
func mutateTxn(opts *TxnOptions, cmd *cobra.Command, id string, fn func(*txn.Machine, *txn.Transaction) error) error {
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
	t, err := readTxn(ctx, st, id)
	if err != nil {
		return err
	}

	if err := fn(txn.NewMachine(txn.WithLogger(e.logger)), t); err != nil {
		var te *txn.TransitionError
		if errors.As(err, &te) {
			_ = e.out.Error(string(te.Code), te.Error(), nil)
			return WrapExitError(ExitFailure, "transition rejected", err)
		}
		return WrapExitError(ExitCommandError, "failed to update transaction", err)
	}

	if err := st.SaveTransaction(ctx, t); err != nil {
		return WrapExitError(ExitCommandError, "failed to save transaction", err)
	}
	return e.out.Success(TxnView{Report: t.Report()})
}

func newTxnShowCommand(opts *TxnOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <transaction-id>",
		Short:         "Show a transaction and its history",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			st, err := e.openStore(opts.Database)
			if err != nil {
				return err
			}
			defer e.closeStore(st)

			t, err := readTxn(commandContext(cmd), st, args[0])
			if err != nil {
				return err
			}
			return e.out.Success(TxnView{Report: t.Report()})
		},
	}
}

func newTxnListCommand(opts *TxnOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List transactions",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			st, err := e.openStore(opts.Database)
			if err != nil {
				return err
			}
			defer e.closeStore(st)

			all, err := st.ListTransactions(commandContext(cmd))
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list transactions", err)
			}
			list := TxnList{Transactions: make([]txn.Report, 0, len(all))}
			for _, t := range all {
				list.Transactions = append(list.Transactions, t.Report())
			}
			return e.out.Success(list)
		},
	}
}

func readTxn(ctx context.Context, st *store.Store, id string) (*txn.Transaction, error) {
	t, err := st.ReadTransaction(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, WrapExitError(ExitCommandError, "transaction not found", err)
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read transaction", err)
	}
	return t, nil
}

// commandContext returns the command's context, or Background when the
// command was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
