package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/problems"
)

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List molecules in the problem cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := problems.NewStore(rootOpts.cfg.CacheDir, rootOpts.log)
			names, err := store.List()
			if err != nil {
				return err
			}
			for _, name := range names {
				p, err := store.Load(name)
				if err != nil {
					rootOpts.log.Warn().Err(err).Str("molecule", name).Msg("Skipping unreadable problem")
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\tqubits=%d\tbudget=%d\n",
					name, p.NumQubits(), problems.IterationBudget(name))
			}
			return nil
		},
	}
}
