package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		MaxInvoices:     100,
		DefaultProvider: "amazon",
		Amazon:          AmazonConfig{Email: "me@example.org", Password: "secret"},
		Browser:         BrowserConfig{Name: "chrome", TimeoutSeconds: 30},
		RegistryBackend: RegistryJSON,
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("AMAZON_EMAIL", "me@example.org")
	t.Setenv("AMAZON_PASSWORD", "secret")
	t.Setenv("BROWSER_TIMEOUT", "45")
	t.Setenv("CORS_ORIGINS", "http://a.test,http://b.test")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8001, cfg.Port)
	assert.Equal(t, "./factures", cfg.DownloadPath)
	assert.Equal(t, 100, cfg.MaxInvoices)
	assert.Equal(t, "amazon", cfg.DefaultProvider)
	assert.Equal(t, "me@example.org", cfg.Amazon.Email)
	assert.Equal(t, 45*time.Second, cfg.BrowserTimeout())
	assert.Equal(t, 5*time.Minute, cfg.ManualLoginTimeout)
	assert.Equal(t, RegistryJSON, cfg.RegistryBackend)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"valid", func(c *Config) {}, ""},
		{"placeholder email", func(c *Config) { c.Amazon.Email = placeholderEmail }, "AMAZON_EMAIL"},
		{"placeholder password", func(c *Config) { c.Amazon.Password = placeholderPassword }, "AMAZON_EMAIL"},
		{"manual mode needs no credentials", func(c *Config) {
			c.Amazon = AmazonConfig{}
			c.Browser.ManualMode = true
		}, ""},
		{"firefox", func(c *Config) { c.Browser.Name = "firefox" }, "not supported"},
		{"unknown browser", func(c *Config) { c.Browser.Name = "safari" }, "BROWSER_NAME"},
		{"timeout too short", func(c *Config) { c.Browser.TimeoutSeconds = 5 }, "BROWSER_TIMEOUT"},
		{"timeout too long", func(c *Config) { c.Browser.TimeoutSeconds = 301 }, "BROWSER_TIMEOUT"},
		{"max invoices", func(c *Config) { c.MaxInvoices = 0 }, "MAX_INVOICES"},
		{"backend", func(c *Config) { c.RegistryBackend = "redis" }, "REGISTRY_BACKEND"},
		{"postgres without url", func(c *Config) { c.RegistryBackend = RegistryPostgres }, "POSTGRES_DB_URL"},
		{"freebox default without credentials", func(c *Config) { c.DefaultProvider = "freebox" }, "FREEBOX_LOGIN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestProviderCredentials(t *testing.T) {
	cfg := validConfig()
	assert.True(t, cfg.AmazonConfigured())
	assert.False(t, cfg.FreeboxConfigured())

	cfg.Freebox = FreeboxConfig{Login: "12345678", Password: "pw"}
	assert.True(t, cfg.FreeboxConfigured())

	assert.False(t, ArchiveConfig{Bucket: "b"}.Enabled())
	assert.True(t, ArchiveConfig{Bucket: "b", AccessKeyID: "k", SecretAccessKey: "s"}.Enabled())
}
