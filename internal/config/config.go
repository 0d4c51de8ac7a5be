package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Values shipped in the .env template; treated as unset
const (
	placeholderEmail    = "votre_email@example.com"
	placeholderPassword = "votre_mot_de_passe"
)

// Registry backends
const (
	RegistryJSON     = "json"
	RegistrySQLite   = "sqlite"
	RegistryPostgres = "postgres"
)

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all application configuration
type Config struct {
	// Server configuration
	Port         int           `env:"PORT" envDefault:"8001"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30m"`
	CORSOrigins  []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://127.0.0.1:3000"`

	// Download configuration
	DownloadPath     string        `env:"DOWNLOAD_PATH" envDefault:"./factures"`
	MaxInvoices      int           `env:"MAX_INVOICES" envDefault:"100"`
	DefaultProvider  string        `env:"DEFAULT_PROVIDER" envDefault:"amazon"`
	DownloadInterval time.Duration `env:"DOWNLOAD_INTERVAL" envDefault:"1s"`

	// Provider credentials
	Amazon  AmazonConfig  `envPrefix:"AMAZON_"`
	Freebox FreeboxConfig `envPrefix:"FREEBOX_"`

	// Browser configuration
	Browser            BrowserConfig `envPrefix:"BROWSER_"`
	ManualLoginTimeout time.Duration `env:"MANUAL_LOGIN_TIMEOUT" envDefault:"5m"`
	ManualLoginPoll    time.Duration `env:"MANUAL_LOGIN_POLL" envDefault:"5s"`

	// Registry configuration
	RegistryBackend    string `env:"REGISTRY_BACKEND" envDefault:"json"`
	RegistrySQLitePath string `env:"REGISTRY_SQLITE_PATH"`
	PostgresURL        string `env:"POSTGRES_DB_URL"`

	// Archive configuration
	Archive ArchiveConfig `envPrefix:"ARCHIVE_S3_"`

	// Logging configuration
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// AmazonConfig holds the Amazon account, read from AMAZON_*
type AmazonConfig struct {
	Email    string `env:"EMAIL"`
	Password string `env:"PASSWORD"`
}

// FreeboxConfig holds the Freebox subscriber account, read from FREEBOX_*
type FreeboxConfig struct {
	Login    string `env:"LOGIN"`
	Password string `env:"PASSWORD"`
}

// BrowserConfig controls the automated browser, read from BROWSER_*
type BrowserConfig struct {
	Name           string `env:"NAME" envDefault:"chrome"`
	Headless       bool   `env:"HEADLESS" envDefault:"false"`
	TimeoutSeconds int    `env:"TIMEOUT" envDefault:"30"`
	ManualMode     bool   `env:"MANUAL_MODE" envDefault:"false"`
	KeepOpen       bool   `env:"KEEP_OPEN" envDefault:"false"`
	ProfileDir     string `env:"PROFILE_DIR"`
	ExecPath       string `env:"EXEC_PATH"`
}

// ArchiveConfig configures the optional S3 mirror of downloaded invoices
type ArchiveConfig struct {
	Endpoint        string `env:"ENDPOINT"`
	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY"`
	Bucket          string `env:"BUCKET"`
	Region          string `env:"REGION" envDefault:"us-east-1"`
}

// Enabled reports whether enough settings are present to upload
func (a ArchiveConfig) Enabled() bool {
	return a.Bucket != "" && a.AccessKeyID != "" && a.SecretAccessKey != ""
}

// LoadConfig loads the application configuration from environment variables
func LoadConfig() (*Config, error) {
	loadDotEnv()

	config := &Config{}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	config.DefaultProvider = strings.ToLower(strings.TrimSpace(config.DefaultProvider))
	config.Browser.Name = strings.ToLower(strings.TrimSpace(config.Browser.Name))
	config.RegistryBackend = strings.ToLower(strings.TrimSpace(config.RegistryBackend))

	return config, nil
}

// loadDotEnv loads .env from the project root, then from the current directory
func loadDotEnv() {
	log := logrus.StandardLogger().WithField("type", "config")

	// Get the executable directory
	execPath, err := os.Executable()
	if err != nil {
		log.WithError(err).Warn("could not determine executable path")
	}

	// Determine project root directory
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(execPath)))
	envPath := filepath.Join(projectRoot, ".env")

	if err := godotenv.Load(envPath); err != nil {
		// Try loading from current directory as fallback
		if err := godotenv.Load(); err != nil {
			log.Debug("no .env file found, using environment variables")
		} else {
			log.Info("loaded environment variables from current directory .env file")
		}
	} else {
		log.WithField("path", envPath).Info("loaded environment variables")
	}
}

// Validate checks the settings the service cannot start without
func (c *Config) Validate() error {
	var problems []string

	if c.DefaultProvider == "amazon" && !c.AmazonConfigured() && !c.Browser.ManualMode {
		problems = append(problems, "AMAZON_EMAIL and AMAZON_PASSWORD must be set to real values")
	}
	if c.DefaultProvider == "freebox" && !c.FreeboxConfigured() {
		problems = append(problems, "FREEBOX_LOGIN and FREEBOX_PASSWORD must be set")
	}

	switch c.Browser.Name {
	case "chrome":
	case "firefox":
		problems = append(problems, "BROWSER_NAME=firefox is not supported, use chrome")
	default:
		problems = append(problems, fmt.Sprintf("BROWSER_NAME must be 'chrome', not %q", c.Browser.Name))
	}

	if c.Browser.TimeoutSeconds < 10 || c.Browser.TimeoutSeconds > 300 {
		problems = append(problems, fmt.Sprintf("BROWSER_TIMEOUT must be between 10 and 300 seconds, not %d", c.Browser.TimeoutSeconds))
	}
	if c.MaxInvoices <= 0 {
		problems = append(problems, fmt.Sprintf("MAX_INVOICES must be positive, not %d", c.MaxInvoices))
	}

	switch c.RegistryBackend {
	case RegistryJSON, RegistrySQLite:
	case RegistryPostgres:
		if c.PostgresURL == "" {
			problems = append(problems, "POSTGRES_DB_URL is required for the postgres registry")
		}
	default:
		problems = append(problems, fmt.Sprintf("REGISTRY_BACKEND must be json, sqlite or postgres, not %q", c.RegistryBackend))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalidConfig, strings.Join(problems, "\n  - "))
	}
	return nil
}

// AmazonConfigured reports whether real Amazon credentials are set
func (c *Config) AmazonConfigured() bool {
	return c.Amazon.Email != "" && c.Amazon.Email != placeholderEmail &&
		c.Amazon.Password != "" && c.Amazon.Password != placeholderPassword
}

// FreeboxConfigured reports whether Freebox credentials are set
func (c *Config) FreeboxConfigured() bool {
	return c.Freebox.Login != "" && c.Freebox.Password != ""
}

// BrowserTimeout returns the browser timeout as a duration
func (c *Config) BrowserTimeout() time.Duration {
	return time.Duration(c.Browser.TimeoutSeconds) * time.Second
}
