// Package main is the entry point for the Pictor image store server.
// Pictor is a content-addressed image pastebin: upload bytes, get back a
// permanent hash-based URL.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/prn-tf/pictor/internal/cache/memory"
	rediscache "github.com/prn-tf/pictor/internal/cache/redis"
	"github.com/prn-tf/pictor/internal/config"
	"github.com/prn-tf/pictor/internal/handler"
	"github.com/prn-tf/pictor/internal/lock"
	"github.com/prn-tf/pictor/internal/metrics"
	"github.com/prn-tf/pictor/internal/repository"
	"github.com/prn-tf/pictor/internal/repository/postgres"
	"github.com/prn-tf/pictor/internal/repository/sqlite"
	"github.com/prn-tf/pictor/internal/service"
	"github.com/prn-tf/pictor/internal/sniff"
	"github.com/prn-tf/pictor/internal/storage"
	"github.com/prn-tf/pictor/internal/transcode"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(*configPath)
	logger := setupLogger(cfg.Logging, cfg.Debug)

	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Msg("starting pictor server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited with error")
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	users, closeDB, err := openUserRepository(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer closeDB()

	sniffCache, locker, closeCache, err := openCache(ctx, cfg.Redis, logger)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer closeCache()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	paths := storage.PathConfig{DataDir: cfg.Storage.DataDir}
	store := storage.NewFileStore(paths, logger)
	sniffer := sniff.NewSniffer(sniff.NewFileCommand(cfg.Sniffer.Command, logger), sniffCache, logger)

	transcoder := transcode.NewCache(
		transcode.NewDwebpConverter(cfg.Transcode.Command, logger),
		locker,
		transcode.Options{
			LockTTL:     cfg.Transcode.LockTTL,
			LockRetries: cfg.Transcode.LockRetries,
			RetryDelay:  cfg.Transcode.RetryDelay,
		},
		logger,
	)

	uploadService := service.NewUploadService(users, store, sniffer, m, logger)
	imageService := service.NewImageService(paths, sniffer, transcoder, m, logger)

	index, err := handler.NewIndexHandler(cfg.Server.BasePath, cfg.Server.TrustProxyHeaders, logger)
	if err != nil {
		return fmt.Errorf("index templates: %w", err)
	}

	router := handler.NewRouter(handler.RouterConfig{
		Index: index,
		Upload: handler.NewUploadHandler(handler.UploadConfig{
			Uploads:           uploadService,
			BasePath:          cfg.Server.BasePath,
			TrustProxyHeaders: cfg.Server.TrustProxyHeaders,
			MaxBodySize:       cfg.Server.MaxBodySize,
			Logger:            logger,
		}),
		Image:             handler.NewImageHandler(imageService, cfg.Server.BasePath, logger),
		Metrics:           m,
		BasePath:          cfg.Server.BasePath,
		TrustProxyHeaders: cfg.Server.TrustProxyHeaders,
		Logger:            logger,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Metrics.Port),
			Handler: mux,
		}
		go func() {
			logger.Info().Str("addr", metricsServer.Addr).Msg("metrics listening")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	return server.Shutdown(shutdownCtx)
}

// openUserRepository connects to the configured database, runs migrations,
// and returns the user repository with a cleanup function.
func openUserRepository(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (repository.UserRepository, func(), error) {
	switch cfg.Driver {
	case "postgres":
		db, err := postgres.NewDB(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return postgres.NewUserRepository(db), func() { db.Close() }, nil

	default:
		db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(cfg.Path), logger)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return sqlite.NewUserRepository(db), func() { db.Close() }, nil
	}
}

// openCache returns the sniff-result cache and the transcode locker, backed
// by Redis when enabled and by in-process implementations otherwise.
func openCache(ctx context.Context, cfg config.RedisConfig, logger zerolog.Logger) (repository.Cache, lock.Locker, func(), error) {
	if !cfg.Enabled {
		c := memory.NewCache()
		return c, lock.NewMemoryLocker(), c.Stop, nil
	}

	rc, err := rediscache.New(ctx, rediscache.Options{
		Addr:        cfg.Addr(),
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: cfg.DialTimeout,
	}, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return rc, lock.NewRedisLocker(rc), func() { rc.Close() }, nil
}

// setupLogger builds the root logger from configuration.
func setupLogger(cfg config.LoggingConfig, debug bool) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	if debug {
		level = zerolog.DebugLevel
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	var logger zerolog.Logger
	if cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}
