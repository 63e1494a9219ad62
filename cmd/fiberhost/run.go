package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fiberwasm/fiber/wasmhost"
)

// runOptions holds flags for the run command.
type runOptions struct {
	*rootOptions
	Params  []string
	Runtime string
}

func newRunCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &runOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [module.wasm]",
		Short: "Run a guest module once and print its output",
		Long: `Run loads the guest module, passes the configured parameters to its run
entry point and prints the decoded output values, one per line.

The module path comes from the positional argument or the config file.
Parameters are typed; repeat --param to pass several.

Example:
  fiberhost run ./guest.wasm --param i32:7
  fiberhost run --config fiberhost.yaml --verbose`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGuest(opts, args, cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Params, "param", nil, "run parameter as type:value (i32, i64, f32, f64)")
	cmd.Flags().StringVar(&opts.Runtime, "runtime", "", "runtime mode (compiler|interpreter)")

	return cmd
}

func runGuest(opts *runOptions, args []string, cmd *cobra.Command) error {
	log, err := newLogger(opts.Verbose)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck // stderr sync failure is unactionable

	cfg, err := loadConfig(opts, args)
	if err != nil {
		return err
	}
	params, err := cfg.ParamValues()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("loading guest module", zap.String("path", cfg.Path))
	m, err := wasmhost.NewModule(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(ctx); closeErr != nil {
			log.Error("error closing module", zap.Error(closeErr))
		}
	}()

	values, err := m.Run(ctx, params...)
	if err != nil {
		return err
	}

	for _, v := range values {
		fmt.Fprintln(cmd.OutOrStdout(), v)
	}
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}
