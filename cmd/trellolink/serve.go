package main

import (
	"fmt"

	"github.com/goliatone/go-trellolink/bootstrap"
	"github.com/goliatone/go-trellolink/core"
	"github.com/spf13/cobra"
)

func newServeCmd(env *cliEnv) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Long: `Opens the database, applies migrations, starts the handshake sweeper and
serves the link and webhook routes until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, provider, logger, err := env.loadRuntime(ctx, core.Config{Server: core.ServerConfig{Addr: addr}})
			if err != nil {
				return err
			}

			app, err := bootstrap.New(ctx, cfg,
				bootstrap.WithLoggerProvider(provider),
				bootstrap.WithLogger(logger),
			)
			if err != nil {
				logger.Error("startup failed", "error", err)
				return fmt.Errorf("failed to initialize trellolink: %w", err)
			}
			defer func() {
				if closeErr := app.Close(); closeErr != nil {
					logger.Warn("close failed", "error", closeErr)
				}
			}()

			if err := app.ListenAndServe(ctx); err != nil {
				logger.Error("server stopped with error", "error", err)
				return err
			}
			logger.Info("server stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides PORT (e.g. :3001)")
	return cmd
}
