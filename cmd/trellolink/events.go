package main

import (
	"encoding/json"
	"fmt"

	"github.com/goliatone/go-trellolink/adapters/gocommand"
	"github.com/goliatone/go-trellolink/bootstrap"
	"github.com/goliatone/go-trellolink/core"
	trelloquery "github.com/goliatone/go-trellolink/query"
	"github.com/spf13/cobra"
)

func newEventsCmd(env *cliEnv) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print the most recent stored card events as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, provider, logger, err := env.loadRuntime(ctx, core.Config{})
			if err != nil {
				return err
			}
			app, err := bootstrap.New(ctx, cfg,
				bootstrap.WithLoggerProvider(provider),
				bootstrap.WithLogger(logger),
			)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			subs, err := gocommand.RegisterFacade(gocommand.NewRegistryAdapter(nil), app.Facade)
			if err != nil {
				return err
			}
			defer subs.Unsubscribe()

			events, err := gocommand.Query[trelloquery.RecentEventsMessage, []core.ProviderEvent](
				ctx, trelloquery.RecentEventsMessage{Limit: limit},
			)
			if err != nil {
				return fmt.Errorf("recent events: %w", err)
			}
			if events == nil {
				events = []core.ProviderEvent{}
			}
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(events)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", core.DefaultRecentEventLimit, "number of events to print")
	return cmd
}
