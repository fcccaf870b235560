package main

import (
	"fmt"

	"github.com/goliatone/go-trellolink/bootstrap"
	"github.com/goliatone/go-trellolink/core"
	"github.com/spf13/cobra"
)

func newMigrateCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, _, logger, err := env.loadRuntime(ctx, core.Config{})
			if err != nil {
				return err
			}
			client, err := bootstrap.OpenDatabase(cfg.Database, cfg.ServiceName)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			if err := bootstrap.Migrate(ctx, client); err != nil {
				logger.Error("migration failed", "error", err)
				return err
			}
			logger.Info("migrations applied", "driver", cfg.Database.Driver)
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
