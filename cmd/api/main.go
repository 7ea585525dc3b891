package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	logger "github.com/Easy-Infra-Ltd/easy-logger"

	"github.com/bryanwahyu/threatlens/internal/application/results"
	"github.com/bryanwahyu/threatlens/internal/bootstrap"
	"github.com/bryanwahyu/threatlens/internal/config"
	"github.com/bryanwahyu/threatlens/internal/infra/httpserver"
	"github.com/bryanwahyu/threatlens/internal/middleware"
)

func main() {
	log := logger.CreateLoggerFromEnv(nil, "blue").With("process", "threatlens")

	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := bootstrap.OpenBackend(ctx, cfg, log)
	if err != nil {
		log.Error("database init failed", "err", err)
		os.Exit(1)
	}
	defer backend.Close()

	store := results.New(backend.Scans, cfg.Store.MaxScans, log)
	if err := store.Load(ctx); err != nil {
		log.Error("loading stored scans failed", "err", err)
		os.Exit(1)
	}

	samples, err := bootstrap.Samples(ctx, cfg)
	if err != nil {
		log.Error("sample storage init failed", "err", err)
		os.Exit(1)
	}
	if samples != nil {
		backend.Health["minio"] = middleware.CheckFunc(samples.Ping)
	}

	var ready atomic.Bool
	limiter := middleware.NewRateLimiter(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate)
	defer limiter.Close()

	handler := httpserver.NewRouter(httpserver.Deps{
		Scans:            bootstrap.ScanService(cfg, backend, store, samples, log),
		Results:          store,
		AI:               bootstrap.AIService(cfg, backend, store, log),
		Metrics:          middleware.NewMetrics(),
		Limiter:          limiter,
		APIKeys:          cfg.Auth.APIKeys,
		CORSOrigins:      cfg.Server.CORSOrigins,
		BlockPrivateURLs: cfg.Server.BlockPrivateURLs,
		Health:           backend.Health,
		Ready:            ready.Load,
		Logger:           log,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	ready.Store(true)
	go func() {
		log.Info("server listening", "addr", addr, "driver", cfg.Database.Driver, "test_mode", cfg.Provider.TestMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		log.Error("server error", "err", err)
	case <-ctx.Done():
		log.Info("shutting down server")
	}

	// graceful shutdown, scan yang sedang jalan dikasih waktu
	ready.Store(false)
	ctx2, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Error("shutdown error", "err", err)
	}
}
