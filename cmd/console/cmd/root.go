// Package cmd holds the cobra command tree of the console binary.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ivankomartin/deposit-console/internal/app"
	"github.com/ivankomartin/deposit-console/internal/config"
	"github.com/ivankomartin/deposit-console/pkg/logger"
)

// cliLogLevel keeps one-shot commands quiet unless asked otherwise.
const cliLogLevel = "warn"

type rootOptions struct {
	logLevel string
}

// newRootCmd builds a fresh command tree so tests can run commands in isolation.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "console",
		Short: "Admin console for deposit packaging products",
		Long: `console browses, searches, and registers deposit packaging products
held by the product API. Run "console serve" for the HTTP backend or
"console browse" for the interactive terminal browser.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")

	root.AddCommand(
		newServeCmd(opts),
		newProductsCmd(opts),
		newDashboardCmd(opts),
		newBrowseCmd(opts),
	)
	return root
}

// Execute runs the console and exits non-zero on failure.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cancel()
		os.Exit(1)
	}
}

// loadConfig reads the environment and applies the --log-level override.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	return cfg, nil
}

// cliLogger writes text logs to stderr so stdout carries only command output.
func (o *rootOptions) cliLogger(cmd *cobra.Command) *slog.Logger {
	level := o.logLevel
	if level == "" {
		level = cliLogLevel
	}
	return logger.NewWithFormat(app.ServiceName, level, logger.FormatText, cmd.ErrOrStderr())
}

// withConsole connects a console for the duration of fn.
func (o *rootOptions) withConsole(cmd *cobra.Command, log *slog.Logger, fn func(*app.Console) error) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	console, err := app.NewConsole(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer console.Close()
	return fn(console)
}
