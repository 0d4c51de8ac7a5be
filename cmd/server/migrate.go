package main

import (
	"fmt"
	"path/filepath"

	"github.com/ridwanfathin/invoice-fetcher-service/internal/config"
	"github.com/ridwanfathin/invoice-fetcher-service/internal/database"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the registry schema migrations for the configured backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			switch cfg.RegistryBackend {
			case config.RegistryPostgres:
				db, err := database.NewPostgresDB(ctx, cfg.PostgresURL)
				if err != nil {
					return err
				}
				defer db.Close()

				applied, err := db.Migrate(ctx)
				if err != nil {
					return err
				}
				logrus.WithField("applied", applied).Info("postgres migrations complete")

			case config.RegistrySQLite:
				path := cfg.RegistrySQLitePath
				if path == "" {
					path = filepath.Join(cfg.DownloadPath, "registry.db")
				}
				db, err := database.OpenSQLite(ctx, path)
				if err != nil {
					return err
				}
				defer db.Close()
				logrus.WithField("path", path).Info("sqlite migrations complete")

			default:
				fmt.Printf("registry backend %q has no schema to migrate\n", cfg.RegistryBackend)
			}
			return nil
		},
	}
}
