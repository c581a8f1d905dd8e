// Package server wires the portal together: configuration, logging,
// tracing, the database, mail and record storage, the services and the HTTP
// server, and runs them until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/patientportal/internal/logging"
	"github.com/dmitrijs2005/patientportal/internal/server/blobstore"
	"github.com/dmitrijs2005/patientportal/internal/server/config"
	"github.com/dmitrijs2005/patientportal/internal/server/httpapi"
	"github.com/dmitrijs2005/patientportal/internal/server/llm"
	"github.com/dmitrijs2005/patientportal/internal/server/mailer"
	"github.com/dmitrijs2005/patientportal/internal/server/metrics"
	"github.com/dmitrijs2005/patientportal/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/patientportal/internal/server/services"
	"github.com/dmitrijs2005/patientportal/internal/server/telemetry"
)

const (
	serviceName   = "patientportal"
	purgeInterval = time.Hour
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	auth    *services.AuthService
	httpSrv *httpapi.Server

	shutdownTracer telemetry.ShutdownFunc
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(c.LogFormat, os.Stdout)

	shutdownTracer, err := telemetry.Init(ctx, serviceName, c.OTLPEndpoint)
	if err != nil {
		return nil, fmt.Errorf("telemetry init error: %w", err)
	}

	db, err := repomanager.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	ml, err := newMailer(c, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	store, err := newRecordStore(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	mt := metrics.New()

	llmClient := llm.NewOpenAIClient(llm.Options{
		APIKey:      c.LLMAPIKey,
		BaseURL:     c.LLMBaseURL,
		Model:       c.LLMModel,
		Temperature: c.LLMTemperature,
		MaxTokens:   c.LLMMaxTokens,
		Timeout:     c.LLMTimeout,
	})

	auth := services.NewAuthService(db, rm, ml, services.NewDemoSeeder(db, rm), mt, logger.With("module", "auth"),
		services.AuthOptions{SessionTTL: c.SessionTTL, CodeTTL: c.CodeTTL, DemoEmail: c.DemoEmail})

	opts := httpapi.Options{
		Cookie:            httpapi.CookieOptions{Name: c.CookieName, Secure: c.CookieSecure, MaxAge: c.SessionTTL},
		AllowedOrigins:    c.AllowedOrigins,
		AuthRateLimit:     c.AuthRateLimit,
		MaintenanceFile:   c.MaintenanceFile,
		TrustProxyHeaders: c.TrustProxyHeaders,
		RequestTimeout:    c.LLMTimeout + 30*time.Second,
		Tracing:           c.OTLPEndpoint != "",
	}
	router := httpapi.NewRouter(opts, httpapi.Services{
		Auth:      auth,
		Chat:      services.NewChatService(db, rm, llmClient, mt, logger.With("module", "chat")),
		Records:   services.NewRecordService(db, rm, store),
		Dashboard: services.NewDashboardService(db, rm),
		DB:        db,
	}, logger, mt)

	return &App{
		config:         c,
		logger:         logger,
		db:             db,
		auth:           auth,
		httpSrv:        httpapi.NewServer(c.HTTPAddr, router, logger, c.ShutdownTimeout),
		shutdownTracer: shutdownTracer,
	}, nil
}

// newMailer returns an SMTP mailer, or a log mailer when no SMTP host is
// configured.
func newMailer(c *config.Config, logger logging.Logger) (mailer.Mailer, error) {
	if c.SMTPHost == "" {
		return mailer.LogMailer{Logger: logger.With("module", "mailer")}, nil
	}
	m, err := mailer.NewSMTPMailer(mailer.SMTPOptions{
		Host:     c.SMTPHost,
		Port:     c.SMTPPort,
		Username: c.SMTPUser,
		Password: c.SMTPPassword,
		From:     c.MailFrom,
	})
	if err != nil {
		return nil, fmt.Errorf("mailer init error: %w", err)
	}
	return m, nil
}

func newRecordStore(ctx context.Context, c *config.Config) (blobstore.Store, error) {
	switch c.RecordsBackend {
	case config.RecordsS3:
		s, err := blobstore.NewS3Store(ctx, blobstore.S3Options{
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
			Prefix:       c.S3Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 store init error: %w", err)
		}
		return s, nil
	case config.RecordsLocal, "":
		s, err := blobstore.NewLocalStore(c.UploadsDir)
		if err != nil {
			return nil, fmt.Errorf("local store init error: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown records backend %q", c.RecordsBackend)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.httpSrv.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// purgeSessions deletes expired sessions every interval until ctx is done.
func (app *App) purgeSessions(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := app.auth.PurgeExpiredSessions(ctx)
			if err != nil {
				app.logger.Warn(ctx, "session purge failed", "error", err)
				continue
			}
			if n > 0 {
				app.logger.Info(ctx, "expired sessions purged", "count", n)
			}
		}
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.purgeSessions(ctx, purgeInterval)
	}()

	wg.Wait()

	app.shutdown(context.WithoutCancel(ctx))
}

func (app *App) shutdown(ctx context.Context) {
	app.auth.Wait()

	flushCtx, cancel := context.WithTimeout(ctx, app.config.ShutdownTimeout)
	defer cancel()
	if err := app.shutdownTracer(flushCtx); err != nil {
		app.logger.Warn(ctx, "tracer shutdown failed", "error", err)
	}

	if err := app.db.Close(); err != nil {
		app.logger.Warn(ctx, "db close failed", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
