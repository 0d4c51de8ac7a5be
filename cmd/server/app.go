package main

import (
	"context"
	"fmt"

	"github.com/ridwanfathin/invoice-fetcher-service/internal/config"
	"github.com/ridwanfathin/invoice-fetcher-service/internal/provider"
	"github.com/ridwanfathin/invoice-fetcher-service/internal/repository"
	"github.com/ridwanfathin/invoice-fetcher-service/internal/service"
	"github.com/ridwanfathin/invoice-fetcher-service/internal/storage"
	"github.com/sirupsen/logrus"
)

// app bundles what every command that drives providers needs
type app struct {
	cfg       *config.Config
	registry  repository.InvoiceRegistry
	providers *provider.Set
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if err := applyLogging(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openRegistry(ctx context.Context, cfg *config.Config) (repository.InvoiceRegistry, error) {
	return repository.OpenRegistry(ctx, repository.RegistryOptions{
		Backend:     cfg.RegistryBackend,
		BaseDir:     cfg.DownloadPath,
		SQLitePath:  cfg.RegistrySQLitePath,
		PostgresURL: cfg.PostgresURL,
	})
}

// newArchiver returns nil when archiving is disabled
func newArchiver(cfg *config.Config) (service.Archiver, error) {
	if !cfg.Archive.Enabled() {
		return nil, nil
	}
	a, err := storage.NewS3Archiver(&storage.Config{
		Endpoint:        cfg.Archive.Endpoint,
		AccessKeyID:     cfg.Archive.AccessKeyID,
		AccessKeySecret: cfg.Archive.SecretAccessKey,
		Bucket:          cfg.Archive.Bucket,
		Region:          cfg.Archive.Region,
	})
	if err != nil {
		return nil, err
	}
	logrus.WithField("bucket", cfg.Archive.Bucket).Info("archiving invoices to S3")
	return a, nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	registry, err := openRegistry(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry: %w", err)
	}

	archiver, err := newArchiver(cfg)
	if err != nil {
		registry.Close()
		return nil, fmt.Errorf("failed to configure archive: %w", err)
	}

	return &app{
		cfg:       cfg,
		registry:  registry,
		providers: provider.Build(cfg, registry, archiver),
	}, nil
}

// Close releases the browsers, then the registry
func (a *app) Close() error {
	perr := a.providers.Close()
	if err := a.registry.Close(); err != nil {
		return err
	}
	return perr
}
