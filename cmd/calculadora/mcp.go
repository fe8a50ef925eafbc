package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/liamcoop/excedencia/internal/logger"
	"github.com/liamcoop/excedencia/mcpserver"
)

func newMCPCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the evaluation tool over MCP stdio",
		Long: `Serve the evaluar_supuesto_excedencia tool to an MCP client over stdin/stdout.

Logs are written to stderr; stdout carries only protocol messages.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := opts.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.Preload(ctx); err != nil {
				return err
			}

			err = mcpserver.New(a.Evaluator).ServeStdio(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil && ctx.Err() == nil {
				return err
			}
			logger.Info("MCP server stopped")
			return logger.Shutdown(cmd.Context())
		},
	}
}
