package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/shop")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("ADMIN_EMAIL", "admin@example.com")
	t.Setenv("ADMIN_PASSWORD_HASH", "$2a$10$abcdefghijklmnopqrstuv")
	t.Setenv("PAYMENT_PROVIDER", "midtrans")
	t.Setenv("MIDTRANS_SERVER_KEY", "SB-Mid-server-xxx")
}

func TestLoadFile_DefaultsAndEnv(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("NOTIFY_WORKERS", "4")
	t.Setenv("PROVIDER_TIMEOUT", "3s")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 4, cfg.NotifyWorkers)
	assert.Equal(t, 3*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, 24*time.Hour, cfg.InvoiceDuration)
	assert.Equal(t, SinkLog, cfg.NotifySink)
	assert.Equal(t, "postgres://u:p@localhost:5432/shop", cfg.DSN())
	assert.Equal(t, "https://app.sandbox.midtrans.com", cfg.MidtransSnapBaseURL())
}

func TestLoadFile_YAMLThenEnvOverride(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "9090")

	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := "port: \"7000\"\nbase_url: https://shop.example.com\nmidtrans_is_production: true\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	// 環境変数が勝つ
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "https://shop.example.com", cfg.BaseURL)
	assert.Equal(t, "https://api.midtrans.com", cfg.MidtransAPIBaseURL())
}

func TestValidate(t *testing.T) {
	base := defaults()
	base.DatabaseURL = "postgres://x"
	base.JWTSecret = "s"
	base.AdminEmail = "a@example.com"
	base.AdminPasswordHash = "h"
	base.MidtransServerKey = "k"
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"jwt", func(c *Config) { c.JWTSecret = "" }, "JWT_SECRET is required"},
		{"provider", func(c *Config) { c.PaymentProvider = "stripe" }, "PAYMENT_PROVIDER must be midtrans or xendit"},
		{"xendit token", func(c *Config) {
			c.PaymentProvider = ProviderXendit
			c.XenditSecretKey = "x"
		}, "XENDIT_CALLBACK_TOKEN is required"},
		{"fonnte", func(c *Config) { c.NotifySink = SinkFonnte }, "FONNTE_TOKEN is required"},
		{"db", func(c *Config) { c.DatabaseURL = "" }, "POSTGRES_USER is required"},
		{"invoice duration", func(c *Config) { c.InvoiceDuration = 30 * time.Second }, "INVOICE_DURATION must be at least 1m"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
		})
	}
}
