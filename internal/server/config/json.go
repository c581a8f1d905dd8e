package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/patientportal/internal/flagx"
	"github.com/dmitrijs2005/patientportal/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations accept
// strings such as "15m" or integer nanoseconds. Pointers distinguish
// "absent" from zero values, so only keys present in the file override.
type JsonConfig struct {
	HTTPAddr        *string         `json:"http_addr"`
	DatabaseDSN     *string         `json:"database_dsn"`
	LogFormat       *string         `json:"log_format"`
	ShutdownTimeout *timex.Duration `json:"shutdown_timeout"`

	CookieName   *string         `json:"cookie_name"`
	CookieSecure *bool           `json:"cookie_secure"`
	SessionTTL   *timex.Duration `json:"session_ttl"`
	CodeTTL      *timex.Duration `json:"code_ttl"`

	AllowedOrigins  []string `json:"allowed_origins"`
	AuthRateLimit   *int     `json:"auth_rate_limit"`
	MaintenanceFile *string  `json:"maintenance_file"`
	TrustProxy      *bool    `json:"trust_proxy_headers"`
	DemoEmail       *string  `json:"demo_email"`

	RecordsBackend *string `json:"records_backend"`
	UploadsDir     *string `json:"uploads_dir"`
	S3Bucket       *string `json:"s3_bucket"`
	S3Region       *string `json:"s3_region"`
	S3BaseEndpoint *string `json:"s3_base_endpoint"`
	S3AccessKey    *string `json:"s3_access_key"`
	S3SecretKey    *string `json:"s3_secret_key"`
	S3Prefix       *string `json:"s3_prefix"`

	LLMBaseURL     *string         `json:"llm_base_url"`
	LLMAPIKey      *string         `json:"llm_api_key"`
	LLMModel       *string         `json:"llm_model"`
	LLMTemperature *float64        `json:"llm_temperature"`
	LLMMaxTokens   *int            `json:"llm_max_tokens"`
	LLMTimeout     *timex.Duration `json:"llm_timeout"`

	SMTPHost     *string `json:"smtp_host"`
	SMTPPort     *int    `json:"smtp_port"`
	SMTPUser     *string `json:"smtp_user"`
	SMTPPassword *string `json:"smtp_password"`
	MailFrom     *string `json:"mail_from"`

	OTLPEndpoint *string `json:"otlp_endpoint"`
}

// parseJson overlays values from the file named by -c/-config onto config.
// Nothing happens when no file is given. An unreadable file or invalid JSON
// panics: a config the operator asked for but we cannot read is fatal.
func parseJson(config *Config) {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(data, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(cfg *Config) {
	set(&cfg.HTTPAddr, c.HTTPAddr)
	set(&cfg.DatabaseDSN, c.DatabaseDSN)
	set(&cfg.LogFormat, c.LogFormat)
	setDuration(&cfg.ShutdownTimeout, c.ShutdownTimeout)

	set(&cfg.CookieName, c.CookieName)
	set(&cfg.CookieSecure, c.CookieSecure)
	setDuration(&cfg.SessionTTL, c.SessionTTL)
	setDuration(&cfg.CodeTTL, c.CodeTTL)

	if c.AllowedOrigins != nil {
		cfg.AllowedOrigins = c.AllowedOrigins
	}
	set(&cfg.AuthRateLimit, c.AuthRateLimit)
	set(&cfg.MaintenanceFile, c.MaintenanceFile)
	set(&cfg.TrustProxyHeaders, c.TrustProxy)
	set(&cfg.DemoEmail, c.DemoEmail)

	set(&cfg.RecordsBackend, c.RecordsBackend)
	set(&cfg.UploadsDir, c.UploadsDir)
	set(&cfg.S3Bucket, c.S3Bucket)
	set(&cfg.S3Region, c.S3Region)
	set(&cfg.S3BaseEndpoint, c.S3BaseEndpoint)
	set(&cfg.S3AccessKey, c.S3AccessKey)
	set(&cfg.S3SecretKey, c.S3SecretKey)
	set(&cfg.S3Prefix, c.S3Prefix)

	set(&cfg.LLMBaseURL, c.LLMBaseURL)
	set(&cfg.LLMAPIKey, c.LLMAPIKey)
	set(&cfg.LLMModel, c.LLMModel)
	set(&cfg.LLMTemperature, c.LLMTemperature)
	set(&cfg.LLMMaxTokens, c.LLMMaxTokens)
	setDuration(&cfg.LLMTimeout, c.LLMTimeout)

	set(&cfg.SMTPHost, c.SMTPHost)
	set(&cfg.SMTPPort, c.SMTPPort)
	set(&cfg.SMTPUser, c.SMTPUser)
	set(&cfg.SMTPPassword, c.SMTPPassword)
	set(&cfg.MailFrom, c.MailFrom)

	set(&cfg.OTLPEndpoint, c.OTLPEndpoint)
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
