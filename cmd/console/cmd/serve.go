package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ivankomartin/deposit-console/internal/app"
	"github.com/ivankomartin/deposit-console/pkg/logger"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the console HTTP backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.HTTPPort = port
			}

			log := logger.NewWithFormat(app.ServiceName, cfg.LogLevel, cfg.LogFormat, cmd.OutOrStdout())
			log.Info("starting deposit console",
				slog.String("environment", cfg.Environment),
				slog.Int("http_port", cfg.HTTPPort),
				slog.String("products_api", cfg.ProductsAPIURL),
			)

			application, err := app.NewApp(cfg, log)
			if err != nil {
				log.Error("failed to initialize application", slog.String("error", err.Error()))
				return err
			}
			if err := application.Run(cmd.Context()); err != nil {
				log.Error("application error", slog.String("error", err.Error()))
				return err
			}

			log.Info("deposit console stopped")
			return nil
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP port; overrides CONSOLE_HTTP_PORT")
	return cmd
}
