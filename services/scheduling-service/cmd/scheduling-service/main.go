package main

import (
	"fmt"
	"os"

	"github.com/md-rashed-zaman/telehealth/libs/db"
	"github.com/md-rashed-zaman/telehealth/libs/runtime"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/storage"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "scheduling-service",
		Short:         "Telehealth availability, booking and reminder service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), migrateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, gRPC health endpoint and reminder scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required for migrate")
			}
			logger := runtime.NewLogger(cfg.ServiceName, cfg.LogLevel)

			ctx, stop := runtime.SignalContext(cmd.Context())
			defer stop()

			pool, err := db.Open(ctx, cfg.DatabaseURL, db.Options{MaxConns: 2})
			if err != nil {
				return fmt.Errorf("db connect: %w", err)
			}
			defer pool.Close()

			applied, err := db.Migrate(ctx, pool, storage.Migrations())
			if err != nil {
				return err
			}
			logger.Info("migrations applied", "count", applied)
			return nil
		},
	}
}
