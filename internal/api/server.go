package api

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"mlbilling/internal/app/account"
	"mlbilling/internal/app/catalog"
	"mlbilling/internal/app/config"
	"mlbilling/internal/app/dsn"
	"mlbilling/internal/app/handler"
	"mlbilling/internal/app/inference"
	"mlbilling/internal/app/ledger"
	"mlbilling/internal/app/metrics"
	"mlbilling/internal/app/middleware"
	"mlbilling/internal/app/prediction"
	"mlbilling/internal/app/redis"
	"mlbilling/internal/app/repository"
	"mlbilling/internal/app/repository/memory"
	"mlbilling/internal/app/storage"
	"mlbilling/internal/pkg"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// StartServer builds the service from configuration and serves it until ctx
// is cancelled.
func StartServer(ctx context.Context) error {
	cfg, err := config.NewConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := setupLogger(cfg); err != nil {
		return err
	}

	store, closeStore, err := newStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	objects, err := newObjectStore(ctx, cfg)
	if err != nil {
		return err
	}

	var (
		blacklist    middleware.Blacklist = middleware.NewLocalBlacklist()
		artifactOpts []storage.ArtifactsOption
	)
	if cfg.Redis.Enabled() {
		rdb, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()

		blacklist = rdb
		if cfg.Cache.Enabled {
			artifactOpts = append(artifactOpts, storage.WithCache(rdb, cfg.Cache.TTL))
		}
	} else {
		logrus.Warn("redis is not configured, revoked tokens are kept in memory")
	}

	prom := metrics.NewPrometheus()
	sink := metrics.Multi{prom, metrics.NewLogSink(logrus.StandardLogger())}

	executor := inference.NewExecutor(cfg.Inference.Timeout)
	credits := ledger.New(store, ledger.WithSink(sink))
	artifacts := storage.NewArtifacts(objects, artifactOpts...)

	models := catalog.New(store, store, artifacts, executor)
	predictions := prediction.New(prediction.Deps{
		Models:      store,
		Users:       store,
		Predictions: store,
		Ledger:      credits,
		Artifacts:   artifacts,
		Executor:    executor,
		Files:       storage.NewFiles(objects),
	},
		prediction.WithSink(sink),
		prediction.WithCompensation(cfg.Inference.CompensationAttempts, cfg.Inference.CompensationBackoff),
	)
	accounts := account.New(store, credits)

	authMiddleware := middleware.NewAuthMiddleware(blacklist, cfg)
	h := handler.NewAPIHandler(models, predictions, accounts, handler.NewAuthHandler(accounts, authMiddleware))

	router := gin.Default()
	router.Use(cors.New(corsConfig(cfg)))

	return pkg.NewApp(cfg, router, h, authMiddleware, prom.Handler()).RunApp(ctx)
}

func setupLogger(cfg *config.Config) error {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	logrus.SetLevel(level)
	logrus.SetOutput(os.Stdout)

	if cfg.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}

func newStore(cfg *config.Config) (repository.Store, func(), error) {
	if cfg.Database.Driver == "memory" {
		logrus.Warn("using in-memory database, data is lost on restart")
		return memory.New(), func() {}, nil
	}

	dsnStr := dsn.FromEnv()
	if dsnStr == "" {
		return nil, nil, fmt.Errorf("database DSN is empty, set DB_HOST and friends")
	}
	repo, err := repository.New(dsnStr)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return repo, func() {
		if err := repo.Close(); err != nil {
			logrus.WithError(err).Warn("failed to close database")
		}
	}, nil
}

func newObjectStore(ctx context.Context, cfg *config.Config) (storage.ObjectStore, error) {
	if cfg.Storage.Driver == "local" {
		root, err := filepath.Abs(cfg.Storage.LocalDir)
		if err != nil {
			return nil, fmt.Errorf("storage dir: %w", err)
		}
		return storage.NewFSStore(afero.NewOsFs(), root), nil
	}

	client, err := storage.NewMinIOClient(ctx, cfg.MinIO)
	if err != nil {
		return nil, fmt.Errorf("connect minio: %w", err)
	}
	return client, nil
}

func corsConfig(cfg *config.Config) cors.Config {
	c := cors.DefaultConfig()
	c.AllowHeaders = append(c.AllowHeaders, "Authorization")
	c.ExposeHeaders = []string{"Content-Disposition"}
	if len(cfg.CORS.AllowOrigins) == 0 || (len(cfg.CORS.AllowOrigins) == 1 && cfg.CORS.AllowOrigins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cfg.CORS.AllowOrigins
	}
	return c
}
