package config

import (
	"context"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// envConfig mirrors Config with pointer fields so unset variables leave the
// current value alone.
type envConfig struct {
	HTTPAddr        *string        `env:"PORTAL_HTTP_ADDR"`
	DatabaseDSN     *string        `env:"PORTAL_DATABASE_DSN"`
	LogFormat       *string        `env:"PORTAL_LOG_FORMAT"`
	ShutdownTimeout *time.Duration `env:"PORTAL_SHUTDOWN_TIMEOUT"`

	CookieName   *string        `env:"PORTAL_COOKIE_NAME"`
	CookieSecure *bool          `env:"PORTAL_COOKIE_SECURE"`
	SessionTTL   *time.Duration `env:"PORTAL_SESSION_TTL"`
	CodeTTL      *time.Duration `env:"PORTAL_CODE_TTL"`

	AllowedOrigins  []string `env:"PORTAL_CORS_ALLOWED_ORIGINS"`
	AuthRateLimit   *int     `env:"PORTAL_AUTH_RATE_LIMIT"`
	MaintenanceFile *string  `env:"PORTAL_MAINTENANCE_FILE"`
	TrustProxy      *bool    `env:"PORTAL_TRUST_PROXY_HEADERS"`
	DemoEmail       *string  `env:"PORTAL_DEMO_EMAIL"`

	RecordsBackend *string `env:"PORTAL_RECORDS_BACKEND"`
	UploadsDir     *string `env:"PORTAL_UPLOADS_DIR"`
	S3Bucket       *string `env:"PORTAL_S3_BUCKET"`
	S3Region       *string `env:"PORTAL_S3_REGION"`
	S3BaseEndpoint *string `env:"PORTAL_S3_BASE_ENDPOINT"`
	S3AccessKey    *string `env:"PORTAL_S3_ACCESS_KEY"`
	S3SecretKey    *string `env:"PORTAL_S3_SECRET_KEY"`
	S3Prefix       *string `env:"PORTAL_S3_PREFIX"`

	LLMBaseURL     *string        `env:"PORTAL_LLM_BASE_URL"`
	LLMAPIKey      *string        `env:"PORTAL_LLM_API_KEY"`
	LLMModel       *string        `env:"PORTAL_LLM_MODEL"`
	LLMTemperature *float64       `env:"PORTAL_LLM_TEMPERATURE"`
	LLMMaxTokens   *int           `env:"PORTAL_LLM_MAX_TOKENS"`
	LLMTimeout     *time.Duration `env:"PORTAL_LLM_TIMEOUT"`

	SMTPHost     *string `env:"PORTAL_SMTP_HOST"`
	SMTPPort     *int    `env:"PORTAL_SMTP_PORT"`
	SMTPUser     *string `env:"PORTAL_SMTP_USER"`
	SMTPPassword *string `env:"PORTAL_SMTP_PASSWORD"`
	MailFrom     *string `env:"PORTAL_MAIL_FROM"`

	OTLPEndpoint *string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// parseEnv overlays environment variables onto config. A nil lookuper reads
// the process environment.
func parseEnv(ctx context.Context, config *Config, lookuper envconfig.Lookuper) error {
	if lookuper == nil {
		lookuper = envconfig.OsLookuper()
	}

	var e envConfig
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &e, Lookuper: lookuper}); err != nil {
		return err
	}

	set(&config.HTTPAddr, e.HTTPAddr)
	set(&config.DatabaseDSN, e.DatabaseDSN)
	set(&config.LogFormat, e.LogFormat)
	set(&config.ShutdownTimeout, e.ShutdownTimeout)

	set(&config.CookieName, e.CookieName)
	set(&config.CookieSecure, e.CookieSecure)
	set(&config.SessionTTL, e.SessionTTL)
	set(&config.CodeTTL, e.CodeTTL)

	if e.AllowedOrigins != nil {
		config.AllowedOrigins = e.AllowedOrigins
	}
	set(&config.AuthRateLimit, e.AuthRateLimit)
	set(&config.MaintenanceFile, e.MaintenanceFile)
	set(&config.TrustProxyHeaders, e.TrustProxy)
	set(&config.DemoEmail, e.DemoEmail)

	set(&config.RecordsBackend, e.RecordsBackend)
	set(&config.UploadsDir, e.UploadsDir)
	set(&config.S3Bucket, e.S3Bucket)
	set(&config.S3Region, e.S3Region)
	set(&config.S3BaseEndpoint, e.S3BaseEndpoint)
	set(&config.S3AccessKey, e.S3AccessKey)
	set(&config.S3SecretKey, e.S3SecretKey)
	set(&config.S3Prefix, e.S3Prefix)

	set(&config.LLMBaseURL, e.LLMBaseURL)
	set(&config.LLMAPIKey, e.LLMAPIKey)
	set(&config.LLMModel, e.LLMModel)
	set(&config.LLMTemperature, e.LLMTemperature)
	set(&config.LLMMaxTokens, e.LLMMaxTokens)
	set(&config.LLMTimeout, e.LLMTimeout)

	set(&config.SMTPHost, e.SMTPHost)
	set(&config.SMTPPort, e.SMTPPort)
	set(&config.SMTPUser, e.SMTPUser)
	set(&config.SMTPPassword, e.SMTPPassword)
	set(&config.MailFrom, e.MailFrom)

	set(&config.OTLPEndpoint, e.OTLPEndpoint)
	return nil
}
