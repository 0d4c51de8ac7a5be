package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/ridwanfathin/invoice-fetcher-service/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags
var Version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// logFlags holds the logging flags given on the command line; empty values
// defer to the configuration
var logFlags struct {
	level  string
	format string
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "invoice-fetcher",
		Short:         "Download invoice PDFs from merchant and ISP customer accounts",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(
				firstNonEmpty(logFlags.level, os.Getenv("LOG_LEVEL"), "info"),
				firstNonEmpty(logFlags.format, os.Getenv("LOG_FORMAT"), "json"),
			)
		},
		RunE: runServe,
	}

	cmd.PersistentFlags().StringVar(&logFlags.level, "log-level", "", "log level (debug, info, warn, error); LOG_LEVEL when empty")
	cmd.PersistentFlags().StringVar(&logFlags.format, "log-format", "", "log format (json, text); LOG_FORMAT when empty")

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(downloadCmd())
	cmd.AddCommand(registryCmd())
	cmd.AddCommand(migrateCmd())

	return cmd
}

func setupLogging(level, format string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logrus.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "text", "pretty":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	return nil
}

// applyLogging reconfigures logging from the loaded configuration, which
// includes values from .env files. Command line flags win.
func applyLogging(cfg *config.Config) error {
	cfg.LogLevel = firstNonEmpty(logFlags.level, cfg.LogLevel)
	cfg.LogFormat = firstNonEmpty(logFlags.format, cfg.LogFormat)
	return setupLogging(cfg.LogLevel, cfg.LogFormat)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
