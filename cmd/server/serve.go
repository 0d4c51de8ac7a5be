package main

import (
	"github.com/ridwanfathin/invoice-fetcher-service/internal/handler"
	"github.com/ridwanfathin/invoice-fetcher-service/internal/server"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	}
}

// runServe also backs the root command when no subcommand is given
func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}

	invoiceHandler := handler.NewInvoiceHandler(a.providers, a.registry, handler.Settings{
		DefaultProvider: a.cfg.DefaultProvider,
		HasEmail:        a.cfg.Amazon.Email != "",
		HasPassword:     a.cfg.Amazon.Password != "",
	})

	srv := server.NewServer(a.cfg, invoiceHandler)
	srv.OnShutdown(a)

	logrus.WithFields(logrus.Fields{
		"port":      a.cfg.Port,
		"providers": a.providers.IDs(),
		"registry":  a.cfg.RegistryBackend,
	}).Info("starting invoice fetcher")
	return srv.Start()
}
