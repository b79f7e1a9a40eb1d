package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/lifecycle/internal/attempt"
	"github.com/roach88/lifecycle/internal/store"
)

// AttemptOptions holds flags shared by the attempt subcommands.
type AttemptOptions struct {
	*RootOptions
	Database string
}

// IdentityList is the output of attempt show without arguments.
type IdentityList struct {
	Identities []attempt.Identity `json:"identities"`
}

func (l IdentityList) RenderText(w io.Writer) {
	if len(l.Identities) == 0 {
		fmt.Fprintln(w, "No attempts")
		return
	}
	for _, id := range l.Identities {
		status := "local"
		if id.IsReconciled {
			status = "reconciled as " + id.CanonicalAttemptID
		}
		fmt.Fprintf(w, "%s  lab=%s attempt=%s requested=%s %s\n",
			id.LaunchRequestID, id.LabID, id.AttemptID, id.RequestedAt, status)
	}
}

// IdentityView is the output of the attempt subcommands that return one
// identity.
type IdentityView struct {
	Identity attempt.Identity `json:"identity"`
}

func (v IdentityView) RenderText(w io.Writer) {
	id := v.Identity
	fmt.Fprintf(w, "Launch request: %s\n", id.LaunchRequestID)
	fmt.Fprintf(w, "Attempt:        %s\n", id.AttemptID)
	fmt.Fprintf(w, "Effective:      %s\n", id.EffectiveAttemptID())
	fmt.Fprintf(w, "Idempotency:    %s\n", id.IdempotencyKey)
	fmt.Fprintf(w, "Lab:            %s\n", id.LabID)
	fmt.Fprintf(w, "Requested at:   %s\n", id.RequestedAt)
	fmt.Fprintf(w, "Local only:     %t\n", id.IsLocalOnly)
	fmt.Fprintf(w, "Reconciled:     %t\n", id.IsReconciled)
}

// NewAttemptCommand creates the attempt command group.
func NewAttemptCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AttemptOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "attempt",
		Short: "Create and reconcile launch attempt identities",
		Long: `Create local-first launch attempt identities and attach the canonical
attempt id assigned by the backend.`,
	}

	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (defaults to the configured store path)")

	cmd.AddCommand(newAttemptStartCommand(opts))
	cmd.AddCommand(newAttemptReconcileCommand(opts))
	cmd.AddCommand(newAttemptShowCommand(opts))

	return cmd
}

// loadRegistry opens the store and restores every stored identity into
// a fresh registry. The caller closes the store.
func (o *AttemptOptions) loadRegistry(e *env, cmd *cobra.Command) (*store.Store, *attempt.Registry, error) {
	st, err := e.openStore(o.Database)
	if err != nil {
		return nil, nil, err
	}
	r := attempt.NewRegistry(attempt.WithLogger(e.logger))
	n, err := st.LoadRegistry(commandContext(cmd), r)
	if err != nil {
		e.closeStore(st)
		return nil, nil, WrapExitError(ExitCommandError, "failed to load attempts", err)
	}
	e.logger.Debug("attempts loaded", "count", n)
	return st, r, nil
}

func newAttemptStartCommand(opts *AttemptOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "start <lab-id>",
		Short: "Create a local-first attempt identity",
		Long: `Create a local-first attempt identity for a lab launch.

The identity is usable offline immediately; it stays local-only until it
is reconciled with a canonical attempt id.`,
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

			r := attempt.NewRegistry(attempt.WithLogger(e.logger))
			id := r.CreateLocalFirst(args[0])
			if err := st.SaveIdentity(commandContext(cmd), id); err != nil {
				return WrapExitError(ExitCommandError, "failed to save attempt", err)
			}
			return e.out.Success(IdentityView{Identity: id})
		},
	}
}

func newAttemptReconcileCommand(opts *AttemptOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <launch-request-id> <canonical-attempt-id>",
		Short: "Attach the backend's canonical attempt id",
		Long: `Attach the backend's canonical attempt id to a stored identity.

Reconciling again with the same id is a no-op. An unknown launch, an
empty id or a conflicting id is refused with exit code 1.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			st, r, err := opts.loadRegistry(e, cmd)
			if err != nil {
				return err
			}
			defer e.closeStore(st)

			ctx := commandContext(cmd)
			launchID, canonicalID := args[0], args[1]
			if !r.TryReconcile(launchID, canonicalID) {
				_ = e.out.Error("E_RECONCILE", fmt.Sprintf("cannot reconcile %s as %q", launchID, canonicalID), nil)
				return NewExitError(ExitFailure, "reconciliation refused")
			}

			id, _ := r.TryGet(launchID)
			if err := st.SaveIdentity(ctx, id); err != nil {
				return WrapExitError(ExitCommandError, "failed to save attempt", err)
			}
			return e.out.Success(IdentityView{Identity: id})
		},
	}
}

func newAttemptShowCommand(opts *AttemptOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show [launch-request-id]",
		Short:         "Show one or all stored attempt identities",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.setup(cmd)
			if err != nil {
				return err
			}
			st, r, err := opts.loadRegistry(e, cmd)
			if err != nil {
				return err
			}
			defer e.closeStore(st)

			if len(args) == 0 {
				return e.out.Success(IdentityList{Identities: r.Snapshot()})
			}
			id, ok := r.TryGet(args[0])
			if !ok {
				return NewExitError(ExitCommandError, fmt.Sprintf("attempt %s not found", args[0]))
			}
			return e.out.Success(IdentityView{Identity: id})
		},
	}
}
