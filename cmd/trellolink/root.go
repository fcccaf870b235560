package main

import (
	"context"
	"fmt"
	"io"
	"os"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-trellolink/adapters/gologger"
	"github.com/goliatone/go-trellolink/bootstrap"
	"github.com/goliatone/go-trellolink/core"
	"github.com/spf13/cobra"
)

const (
	exitCodeSuccess = 0
	exitCodeError   = 1
)

// cliEnv lets tests replace the process environment and output.
type cliEnv struct {
	environ map[string]string
	stderr  io.Writer
}

func execute(ctx context.Context, args []string) int {
	root := newRootCmd(&cliEnv{stderr: os.Stderr})
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		return exitCodeError
	}
	return exitCodeSuccess
}

func newRootCmd(env *cliEnv) *cobra.Command {
	root := &cobra.Command{
		Use:   "trellolink",
		Short: "Link user accounts to Trello and record board webhooks",
		Long: `trellolink runs the Trello account-link handshake and stores webhook
notifications about cards.

Configuration comes from the environment: TRELLO_KEY, TRELLO_SECRET,
TRELLO_REDIRECT_URI, TRELLO_APP_NAME, PORT, BACKEND_API_KEY, DB_DRIVER,
DB_PATH, DATABASE_URL, APP_KEY, HANDSHAKE_TTL, SWEEP_INTERVAL,
RATE_LIMIT_PER_MINUTE, LOG_LEVEL and LOG_FORMAT.`,
		Version:      version,
		SilenceUsage: true,
	}
	root.SetVersionTemplate(`{{printf "trellolink version %s\n" .Version}}`)

	root.AddCommand(newServeCmd(env))
	root.AddCommand(newMigrateCmd(env))
	root.AddCommand(newEventsCmd(env))
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of trellolink",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "trellolink version %s\n", version)
		},
	}
}

// loadRuntime reads the environment, builds the logger and resolves the
// config with runtime overrides on top.
func (e *cliEnv) loadRuntime(ctx context.Context, runtime core.Config) (core.Config, glog.LoggerProvider, glog.Logger, error) {
	envCfg, err := bootstrap.ParseEnv(e.environ)
	if err != nil {
		return core.Config{}, nil, nil, err
	}
	level, err := gologger.ParseLevel(envCfg.LogLevel)
	if err != nil {
		return core.Config{}, nil, nil, err
	}
	stderr := e.stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	provider := gologger.NewProvider(gologger.NewWriterLogger(stderr, envCfg.LogFormat, level))
	logger := provider.GetLogger("trellolink")

	cfg, err := bootstrap.LoadConfig(ctx, envCfg, runtime)
	if err != nil {
		logger.Error("config resolution failed", "error", err)
		return core.Config{}, nil, nil, err
	}
	return cfg, provider, logger, nil
}
