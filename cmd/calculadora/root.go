package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/liamcoop/excedencia/internal/app"
	"github.com/liamcoop/excedencia/internal/config"
	"github.com/liamcoop/excedencia/internal/logger"
)

// rootOptions holds the global flags
type rootOptions struct {
	cfgFile string
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "calculadora",
		Short: "Calculadora de ayudas para excedencia (Navarra 2025)",
		Long: `Calculadora evaluates whether a leave of absence qualifies for the Navarra 2025
subsidy and which case (A-E) and monthly amount apply.

The decision table is a versioned ruleset: bundled in the binary by default, or read
from a file or a postgres/sqlite database.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVarP(&opts.cfgFile, "config", "c", "", "config file path (YAML)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(
		newMCPCmd(opts),
		newEvaluateCmd(opts),
		newRulesetCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// loadConfig reads the configuration and applies the log level
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.cfgFile)
	if err != nil {
		return nil, err
	}

	if err := logger.Configure(cfg.Log.LoggerOptions()); err != nil {
		return nil, err
	}
	if o.verbose {
		logger.SetLevel(logger.LevelDebug)
	}
	return cfg, nil
}

// newApp wires the calculator from the configuration
func (o *rootOptions) newApp(ctx context.Context) (*app.App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}
