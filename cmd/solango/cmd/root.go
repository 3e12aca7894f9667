// Package cmd provides the CLI commands for solango.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/solango/internal/config"
	"github.com/kailas-cloud/solango/internal/version"
)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	env        string
	logLevel   string
}

// NewRootCmd creates the root command for the solango CLI.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "solango",
		Short: "Keep a Solr index in sync with application records",
		Long: `solango turns application records into Solr documents, pushes adds and
deletes to the backend, and keeps failed writes in a deferred queue that
can be replayed once the backend is reachable again.

Configuration is read from config/<env>.yaml, where env comes from --env
or the ENV variable. Use --config to point at an explicit file.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.SetVersionTemplate("solango version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file (overrides --env lookup)")
	cmd.PersistentFlags().StringVar(&opts.env, "env", config.GetEnv(), "Environment: local, dev, prod")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level override: debug, info, warn, error")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newReindexCmd(opts))
	cmd.AddCommand(newIndexCmd(opts))
	cmd.AddCommand(newIndexQueuedCmd(opts))
	cmd.AddCommand(newFlushCmd(opts))
	cmd.AddCommand(newReplayCmd(opts))
	cmd.AddCommand(newSchemaCmd(opts))
	cmd.AddCommand(newPingCmd(opts))
	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command, canceling its context on SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}
