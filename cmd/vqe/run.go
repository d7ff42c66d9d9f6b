package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/best-seungwoo/MOSQ-ICCD/internal/di"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/optimization"
	"github.com/best-seungwoo/MOSQ-ICCD/internal/modules/vqe"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	MaxIterations int
	FusionWidth   int
	NoHistory     bool
	Format        string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <molecule>",
		Short: "Minimize the energy of a cached molecule",
		Long: `Run VQE for one molecule. Every objective evaluation is printed as
"<iteration>: <energy>", followed by the timing summary.

Example:
  vqe run H2
  vqe run LiH --fusion-width 3 --iterations 20`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runMolecule(ctx, opts, args[0], cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&opts.MaxIterations, "iterations", 0, "iteration budget (default: per-molecule budget)")
	cmd.Flags().IntVar(&opts.FusionWidth, "fusion-width", 0, "maximum fused block width, overrides MOSQ_FUSION_WIDTH")
	cmd.Flags().BoolVar(&opts.NoHistory, "no-history", false, "do not record the run in the history database")
	cmd.Flags().StringVar(&opts.Format, "format", "text", "output format (text|json)")

	return cmd
}

func runMolecule(ctx context.Context, opts *RunOptions, molecule string, out io.Writer) error {
	if opts.Format != "text" && opts.Format != "json" {
		return fmt.Errorf("invalid format %q: must be text or json", opts.Format)
	}
	if opts.MaxIterations < 0 {
		return fmt.Errorf("invalid iteration budget %d", opts.MaxIterations)
	}

	cfg := *opts.cfg
	if opts.FusionWidth != 0 {
		cfg.FusionWidth = opts.FusionWidth
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	container := &di.Container{}
	if !opts.NoHistory {
		var err error
		container, err = di.InitializeDatabases(&cfg, opts.log)
		if err != nil {
			return err
		}
	}
	defer container.Close()
	if err := di.InitializeServices(container, &cfg, opts.log); err != nil {
		return err
	}

	var observer optimization.Observer
	if opts.Format == "text" {
		observer = func(entry optimization.HistoryEntry) {
			if err := vqe.WriteIteration(out, entry); err != nil {
				opts.log.Warn().Err(err).Msg("Failed to print iteration")
			}
		}
	}

	report, err := container.Driver.WithMaxIterations(opts.MaxIterations).Run(ctx, molecule, observer)
	if err != nil {
		return err
	}

	if opts.Format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return vqe.WriteSummary(out, report)
}
