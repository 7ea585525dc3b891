// Package bootstrap wires config into the services shared by the API server
// and the command line tool.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	appai "github.com/bryanwahyu/threatlens/internal/application/ai"
	"github.com/bryanwahyu/threatlens/internal/application/results"
	appscans "github.com/bryanwahyu/threatlens/internal/application/scans"
	"github.com/bryanwahyu/threatlens/internal/config"
	"github.com/bryanwahyu/threatlens/internal/domain/ai"
	"github.com/bryanwahyu/threatlens/internal/domain/analyst"
	"github.com/bryanwahyu/threatlens/internal/domain/scanerrors"
	domain "github.com/bryanwahyu/threatlens/internal/domain/scans"
	"github.com/bryanwahyu/threatlens/internal/infra/ai/openai"
	"github.com/bryanwahyu/threatlens/internal/infra/ai/prompt"
	"github.com/bryanwahyu/threatlens/internal/infra/db/jsonfile"
	"github.com/bryanwahyu/threatlens/internal/infra/db/migrations"
	"github.com/bryanwahyu/threatlens/internal/infra/db/mysql"
	"github.com/bryanwahyu/threatlens/internal/infra/db/postgres"
	"github.com/bryanwahyu/threatlens/internal/infra/provider"
	"github.com/bryanwahyu/threatlens/internal/infra/storage"
	"github.com/bryanwahyu/threatlens/internal/middleware"
)

// OfflineModel is recorded on analyses produced without a model call.
const OfflineModel = "offline"

// Backend holds the repositories for the configured database driver.
// All of them are nil for the memory driver.
type Backend struct {
	Scans    domain.Repository
	Errors   scanerrors.Repository
	Analyses analyst.Repository
	Health   map[string]middleware.HealthChecker

	db *sql.DB
}

// Close releases the database pool, if any.
func (b *Backend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

// OpenBackend connects the driver named in cfg and applies migrations when
// cfg.Database.Migrate is set.
func OpenBackend(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Backend, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	b := &Backend{Health: map[string]middleware.HealthChecker{}}

	switch cfg.Database.Driver {
	case "memory":
		return b, nil

	case "file":
		path := cfg.Database.File
		if path == "" {
			path = jsonfile.DefaultPath()
		}
		f, err := jsonfile.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open results file: %w", err)
		}
		b.Scans, b.Errors, b.Analyses = f.Scans(), f.Errors(), f.Analyses()
		log.Info("using results file", "path", f.Path())
		return b, nil

	case "mysql":
		db, err := mysql.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, fmt.Errorf("mysql connect: %w", err)
		}
		b.db = db
		b.Scans = mysql.NewScanRepository(db)
		b.Errors = mysql.NewScanErrorRepository(db)
		b.Analyses = mysql.NewAnalystRepository(db)

	case "postgres":
		db, err := postgres.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		b.db = db
		b.Scans = postgres.NewScanRepository(db)
		b.Errors = postgres.NewScanErrorRepository(db)
		b.Analyses = postgres.NewAnalystRepository(db)

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}

	b.Health["database"] = &middleware.DatabaseHealthChecker{DB: b.db}
	if cfg.Database.Migrate {
		if err := migrations.Up(ctx, b.db, cfg.Database.Driver); err != nil {
			return nil, errors.Join(err, b.Close())
		}
		log.Info("migrations applied", "driver", cfg.Database.Driver)
	}
	return b, nil
}

// Samples returns the sample archive, or nil when MinIO is disabled.
func Samples(ctx context.Context, cfg *config.Config) (*storage.Store, error) {
	if !cfg.Minio.Enabled {
		return nil, nil
	}
	s, err := storage.New(ctx,
		cfg.Minio.Endpoint,
		cfg.Minio.Region,
		cfg.Minio.BucketName,
		cfg.Minio.AccessKey,
		cfg.Minio.SecretKey,
		cfg.Minio.UseSSL,
	)
	if err != nil {
		return nil, fmt.Errorf("minio init: %w", err)
	}
	return s.WithPresign(cfg.Minio.PresignTTL), nil
}

// PollConfig converts the YAML polling section.
func PollConfig(cfg *config.Config) appscans.PollConfig {
	return appscans.PollConfig{
		ExpressSettle:             cfg.Polling.Express.SettleDelay,
		ExpressInterval:           cfg.Polling.Express.Interval,
		ExpressFileAttempts:       cfg.Polling.Express.FileAttempts,
		ExpressURLAttempts:        cfg.Polling.Express.URLAttempts,
		ComprehensiveInterval:     cfg.Polling.Comprehensive.Interval,
		ComprehensiveFileAttempts: cfg.Polling.Comprehensive.FileAttempts,
		ComprehensiveURLAttempts:  cfg.Polling.Comprehensive.URLAttempts,
	}
}

// ScanService builds the scan pipeline. samples may be nil.
func ScanService(cfg *config.Config, b *Backend, store *results.Store, samples *storage.Store, log *slog.Logger) *appscans.Service {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	svc := &appscans.Service{
		Polling:     PollConfig(cfg),
		Store:       store,
		Errors:      b.Errors,
		Logger:      log,
		MaxFileSize: cfg.Provider.MaxFileSize,
		TestMode:    cfg.Provider.TestMode,
	}
	if samples != nil {
		svc.Artifacts = samples
	}
	if cfg.Provider.TestMode {
		log.Warn("test mode: results are synthetic, the provider is never called")
		return svc
	}

	client := provider.New(cfg.Provider.BaseURL, cfg.Provider.APIKey, cfg.Provider.RequestTimeout, log)
	svc.Provider = client
	svc.Poller = &appscans.Poller{Status: client, Reports: client.Reports(), Logger: log}
	return svc
}

// AIService explains scans with OpenAI when a key is configured and with the
// offline explainer otherwise.
func AIService(cfg *config.Config, b *Backend, store *results.Store, log *slog.Logger) *appai.Service {
	var (
		client ai.Client = prompt.Offline{}
		model            = OfflineModel
	)
	if cfg.OpenAI.APIKey != "" {
		model = cfg.OpenAI.Model
		if cfg.OpenAI.BaseURL != "" {
			client = openai.NewClientWithBaseURL(cfg.OpenAI.APIKey, model, cfg.OpenAI.BaseURL)
		} else {
			client = openai.NewClient(cfg.OpenAI.APIKey, model)
		}
	}
	return appai.NewService(client, store, b.Analyses, model, log)
}
