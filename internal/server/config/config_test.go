package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, ":8080", c.HTTPAddr)
	assert.Equal(t, "json", c.LogFormat)
	assert.Equal(t, "portal_session", c.CookieName)
	assert.Equal(t, 32*24*time.Hour, c.SessionTTL)
	assert.Equal(t, 15*time.Minute, c.CodeTTL)
	assert.Equal(t, RecordsLocal, c.RecordsBackend)
	assert.Equal(t, "data/uploads", c.UploadsDir)
	assert.Equal(t, 0.7, c.LLMTemperature)
	assert.Equal(t, 1000, c.LLMMaxTokens)
	assert.Equal(t, 587, c.SMTPPort)
	assert.False(t, c.TrustProxyHeaders)
	assert.NoError(t, c.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults ok", mutate: func(c *Config) {}},
		{name: "empty addr", mutate: func(c *Config) { c.HTTPAddr = "" }, wantErr: "http address"},
		{name: "empty dsn", mutate: func(c *Config) { c.DatabaseDSN = "" }, wantErr: "database dsn"},
		{name: "unknown backend", mutate: func(c *Config) { c.RecordsBackend = "ftp" }, wantErr: "unknown records backend"},
		{name: "s3 without bucket", mutate: func(c *Config) { c.RecordsBackend = RecordsS3 }, wantErr: "s3 bucket"},
		{name: "s3 with bucket", mutate: func(c *Config) { c.RecordsBackend = RecordsS3; c.S3Bucket = "records" }},
		{name: "local without dir", mutate: func(c *Config) { c.UploadsDir = "" }, wantErr: "uploads dir"},
		{name: "zero ttl", mutate: func(c *Config) { c.SessionTTL = 0 }, wantErr: "ttl"},
		{name: "zero temperature", mutate: func(c *Config) { c.LLMTemperature = 0 }, wantErr: "llm temperature"},
		{name: "temperature too high", mutate: func(c *Config) { c.LLMTemperature = 2.5 }, wantErr: "llm temperature"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Config
			c.LoadDefaults()
			tt.mutate(&c)

			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin"}

	c, err := LoadConfig(context.Background())
	require.NoError(t, err)
	require.NotNil(t, c, "LoadConfig must not return nil")

	assert.NotEmpty(t, c.HTTPAddr)
	assert.NotEmpty(t, c.DatabaseDSN)
	assert.NotEmpty(t, c.CookieName)
}
