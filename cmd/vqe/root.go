package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/best-seungwoo/MOSQ-ICCD/internal/config"
	"github.com/best-seungwoo/MOSQ-ICCD/pkg/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	LogLevel string
	Pretty   bool
	CacheDir string
	DataDir  string

	cfg *config.Config
	log zerolog.Logger
}

// NewRootCommand creates the root command for the vqe CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "vqe",
		Short: "Variational quantum eigensolver with gate fusion",
		Long: `Estimate molecular ground-state energies with a UCCSD ansatz
simulated on a fusing statevector engine.

Problems are read from the cache directory as <molecule>.yaml.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error), overrides LOG_LEVEL")
	cmd.PersistentFlags().BoolVar(&opts.Pretty, "pretty", true, "human readable log output")
	cmd.PersistentFlags().StringVar(&opts.CacheDir, "cache-dir", "", "problem cache directory, overrides MOSQ_CACHE_DIR")
	cmd.PersistentFlags().StringVar(&opts.DataDir, "data-dir", "", "run history directory, overrides MOSQ_DATA_DIR")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewListCommand(opts))

	return cmd
}

// load reads the environment configuration and applies flag overrides.
func (o *RootOptions) load(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	if o.CacheDir != "" {
		cfg.CacheDir = o.CacheDir
	}
	if o.DataDir != "" {
		cfg.DataDir = o.DataDir
	}

	o.cfg = cfg
	o.log = logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: o.Pretty,
		Output: cmd.ErrOrStderr(),
	})
	logger.SetGlobalLogger(o.log)
	return nil
}
