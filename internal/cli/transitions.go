package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/lifecycle/internal/txn"
)

// TransitionsResult is the output of the transitions command.
type TransitionsResult struct {
	States []txn.State `json:"states"`
	Edges  []txn.Edge  `json:"edges"`
}

func (r TransitionsResult) RenderText(w io.Writer) {
	for _, e := range r.Edges {
		fmt.Fprintf(w, "%-18s -> %s\n", e.From, e.To)
	}
}

// NewTransitionsCommand creates the transitions command.
func NewTransitionsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "transitions",
		Short: "Print the publish transaction transition table",
		Long: `Print every allowed publish transaction transition.

Edges are ordered by lifecycle order of their source, then their target.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.formatter(cmd).Success(TransitionsResult{
				States: txn.AllStates,
				Edges:  txn.Transitions(),
			})
		},
	}
}
