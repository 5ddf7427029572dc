package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"

	"helios/api/internal/config"
	"helios/api/internal/export"
	"helios/api/internal/llm"
	"helios/api/internal/lock"
	"helios/api/internal/objectstore"
	"helios/api/internal/search"
	"helios/api/internal/snapshot"
	"helios/api/internal/store"
)

// Bootstrap connects every backend named by cfg, applies migrations and
// returns a ready Service. The returned close function releases the backends
// in reverse order and must be called once the process stops serving.
func Bootstrap(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Service, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Service, func(), error) {
		closeAll()
		return nil, nil, err
	}

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fail(fmt.Errorf("database connection failed: %w", err))
	}
	closers = append(closers, func() { db.Close() })

	if err := store.ApplyMigrations(ctx, db, os.DirFS(cfg.MigrationsDir), logger); err != nil {
		return fail(fmt.Errorf("migrations failed: %w", err))
	}

	var locker lock.Locker = lock.NewLocal()
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisLocker, err := lock.NewRedis(cfg.RedisURL, cfg.GenerationLockTTL)
		if err != nil {
			return fail(fmt.Errorf("redis connection failed: %w", err))
		}
		closers = append(closers, func() { redisLocker.Close() })
		locker = redisLocker
		logger.Info("using redis for generation locks")
	}

	var generator *llm.Client
	if strings.TrimSpace(cfg.OpenAIKey) != "" {
		generator, err = llm.New(llm.Options{
			APIKey:  cfg.OpenAIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
			Timeout: cfg.OpenAITimeout,
			Logger:  logger.With("component", "llm"),
		})
		if err != nil {
			return fail(fmt.Errorf("generator setup failed: %w", err))
		}
	} else {
		logger.Warn("OPENAI_API_KEY not set, brief and artifact generation disabled")
	}

	pgfts := search.NewPgFTS(sqlx.NewDb(db, "pgx"))
	var meili *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meili = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		closers = append(closers, meili.Close)
	}
	searchService := search.NewService(meili, pgfts)
	closers = append(closers, searchService.Wait)
	if err := searchService.Reindex(ctx, pgfts); err != nil {
		logger.Warn("search reindex failed", "error", err)
	}

	var archive *objectstore.Archive
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		archive, err = objectstore.New(objectstore.Options{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			URLTTL:    cfg.ArchiveURLTTL,
		})
		if err != nil {
			return fail(fmt.Errorf("archive setup failed: %w", err))
		}
		if err := archive.EnsureBucket(ctx); err != nil {
			logger.Warn("export archive unavailable", "error", err)
			archive = nil
		}
	}

	service := New(Options{
		Config:    cfg,
		Store:     store.NewPostgresStore(db),
		Generator: generator,
		Locker:    locker,
		Snapshots: snapshot.New(cfg.SnapshotsDir),
		Search:    searchService,
		Archive:   archive,
		Exports:   export.NewRenderer(export.NewPDFRenderer(0)),
		Logger:    logger,
	})
	return service, closeAll, nil
}
