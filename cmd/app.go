package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/shaharia-lab/newsletter/internal/build"
	"github.com/shaharia-lab/newsletter/internal/capture"
	"github.com/shaharia-lab/newsletter/internal/config"
	"github.com/shaharia-lab/newsletter/internal/logger"
	"github.com/shaharia-lab/newsletter/internal/metrics"
	"github.com/shaharia-lab/newsletter/internal/newsletter"
	"github.com/shaharia-lab/newsletter/internal/storage"
)

// app holds the components every command opens against the data directory.
type app struct {
	cfg       *config.AppConfig
	db        *sql.DB
	mongo     *storage.MongoKVStore // nil unless MONGO_URI is set
	kv        storage.KVStore
	outbound  storage.OutboundEventStore
	metrics   *metrics.Metrics
	forwarder *capture.Forwarder
	logger    *slog.Logger
	logFile   io.Closer
}

// openApp initializes the system logger and the database. Log records are
// also written to tee when it is non-nil.
func openApp(ctx context.Context, cfg *config.AppConfig, tee io.Writer) (*app, error) {
	sysLogger, logFile, err := logger.NewSystemLogger(cfg.LogDir(), cfg.SlogLevel(), cfg.LogFormat, tee)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	db, fresh, err := storage.NewSQLiteDB(cfg.DBPath())
	if err != nil {
		_ = logFile.Close()
		return nil, err
	}
	if fresh {
		sysLogger.Info("database created", "path", cfg.DBPath())
	}

	if cfg.NewsletterSecret == "" {
		sysLogger.Warn("NEWSLETTER_SECRET is not set; unsubscribe and trigger requests will be rejected")
	}

	var kv storage.KVStore = storage.NewSQLiteKVStore(db)
	var mongoStore *storage.MongoKVStore
	if cfg.MongoURI != "" {
		mongoStore, err = storage.NewMongoKVStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			_ = db.Close()
			_ = logFile.Close()
			return nil, err
		}
		kv = mongoStore
		sysLogger.Info("subscriber list stored in mongodb", "database", cfg.MongoDatabase)
	}

	m := metrics.New()
	outbound := storage.NewSQLiteOutboundStore(db)

	return &app{
		cfg:      cfg,
		db:       db,
		mongo:    mongoStore,
		kv:       kv,
		outbound: outbound,
		metrics:  m,
		forwarder: capture.NewForwarder(capture.Config{
			URL:     cfg.CaptureURL,
			Timeout: cfg.CaptureTimeout,
			Store:   outbound,
			Logger:  sysLogger,
			Metrics: m,
		}),
		logger:  sysLogger,
		logFile: logFile,
	}, nil
}

// registry builds a Registry that publishes outbound events through pub.
func (a *app) registry(pub newsletter.EventPublisher) *newsletter.Registry {
	return newsletter.NewRegistry(newsletter.Config{
		Store:     a.kv,
		Publisher: pub,
		Secret:    a.cfg.NewsletterSecret,
		Logger:    a.logger,
		Metrics:   a.metrics,
	})
}

func (a *app) logStartup(command string) {
	attrs := append([]any{
		slog.String("command", command),
		slog.String("data_dir", a.cfg.DataDir),
	}, build.LogAttrs()...)
	a.logger.Info("newsletter starting", attrs...)
}

// Close releases the databases and the log file.
func (a *app) Close() error {
	var mongoErr error
	if a.mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		mongoErr = a.mongo.Close(ctx)
	}
	return errors.Join(mongoErr, a.db.Close(), a.logFile.Close())
}
