package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/ju4n97/neurocalc/internal/config"
	"github.com/ju4n97/neurocalc/internal/env"
	"github.com/ju4n97/neurocalc/internal/inference"
	"github.com/ju4n97/neurocalc/internal/logger"
	"github.com/ju4n97/neurocalc/internal/model"
	grpcserver "github.com/ju4n97/neurocalc/internal/server/grpc"
	httpserver "github.com/ju4n97/neurocalc/internal/server/http"
	"github.com/ju4n97/neurocalc/internal/service"
	"github.com/ju4n97/neurocalc/internal/tensor"
)

const version = "1.0.0"

func main() {
	var (
		flagHTTPPort   = flag.Int("http-port", config.DefaultHTTPPort(), "HTTP port to listen on")
		flagGRPCPort   = flag.Int("grpc-port", config.DefaultGRPCPort(), "GRPC port to listen on")
		flagConfigPath = flag.String("config", path.Join(config.DefaultConfigPath(), "config.yaml"), "Path to config file")
		flagSchemaPath = flag.String("schema", path.Join(config.DefaultConfigPath(), "neurocalc.v1.schema.json"), "Path to schema file")
	)
	flag.Parse()

	environment := env.FromEnv()
	slog.SetDefault(logger.New(environment))

	reloads := make(chan *config.Config, 1)
	watcher, err := config.NewWatcher(*flagConfigPath, *flagSchemaPath, func(cfg *config.Config, err error) {
		if err != nil {
			slog.Error("Failed to reload config", "error", err)
			return
		}

		// Only the newest config matters.
		select {
		case <-reloads:
		default:
		}
		reloads <- cfg
	})
	if err != nil {
		slog.Error("Failed to create config watcher", "error", err)
		os.Exit(1)
	}
	defer watcher.Close()

	cfg := watcher.Snapshot()

	// Flags win over env and config.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "http-port":
			cfg.Server.HTTPPort = *flagHTTPPort
		case "grpc-port":
			cfg.Server.GRPCPort = *flagGRPCPort
		}
	})

	slog.SetDefault(
		logger.New(environment,
			logger.WithLevel(logger.ParseLevel(cfg.Log.Level)),
			logger.WithLogToFile(cfg.Log.ToFile),
			logger.WithLogFile(cfg.Log.File),
		),
	)

	slog.Info("Config loaded successfully", "config", *flagConfigPath, "schema", *flagSchemaPath, "env", environment)

	mem := tensor.NewMemory()

	httpFetcher := model.NewCachingFetcher(model.NewHTTPFetcher(&http.Client{}), cfg.Models.Cache.Size, cfg.Models.Cache.TTL)
	fileFetcher := model.NewCachingFetcher(model.FileFetcher{}, cfg.Models.Cache.Size, cfg.Models.Cache.TTL)

	fetchers := model.NewFetcherRegistry()
	for _, f := range []model.Fetcher{httpFetcher, fileFetcher} {
		if err := fetchers.Register(f); err != nil {
			slog.Error("Failed to register fetcher", "schemes", f.Schemes(), "error", err)
			os.Exit(1)
		}
	}

	resolver := model.NewResolver(mem, fetchers,
		model.WithOrigin(cfg.Models.Origin),
		model.WithFetchTimeout(cfg.Models.FetchTimeout),
	)
	manager := model.NewManager(resolver)
	calculator := service.NewCalculator(manager, inference.NewRunner(mem))

	httpSrv := httpserver.NewServer(httpserver.Options{
		ModelsDir:    cfg.Server.ModelsDir,
		Version:      version,
		Port:         cfg.Server.HTTPPort,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, calculator)
	grpcSrv := grpcserver.NewServer(cfg.Server.GRPCPort, calculator)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() { errCh <- httpSrv.Start() }()
	go func() { errCh <- grpcSrv.Start() }()

	// The origin may be this very server, so resolution starts after the listeners.
	go func() {
		op, err := model.ParseOperation(cfg.Models.DefaultOperation)
		if err != nil {
			slog.Error("Invalid default operation", "operation", cfg.Models.DefaultOperation, "error", err)
			return
		}
		if _, err := calculator.SelectOperation(ctx, op); err != nil && !errors.Is(err, model.ErrClosed) {
			slog.Error("Failed to select default operation", "operation", op, "error", err)
		}
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case next := <-reloads:
				resolver.SetOrigin(next.Models.Origin, next.Models.FetchTimeout)
				purge(httpFetcher, fileFetcher)

				status, err := manager.Reload(ctx)
				if err != nil {
					slog.Error("Failed to reload model", "error", err)
					continue
				}
				slog.Info("Config reloaded", "origin", next.Models.Origin, "reloads", watcher.ReloadCount(), "provenance", status.Provenance)
			}
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			slog.Error("Server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Stop(shutdownCtx); err != nil {
		slog.Error("Failed to stop HTTP server", "error", err)
	}
	grpcSrv.Stop(shutdownCtx)

	if err := manager.Close(); err != nil {
		slog.Error("Failed to close model manager", "error", err)
	}

	stats := mem.Stats()
	slog.Info("Shutdown complete", "live_tensors", stats.Tensors, "live_bytes", stats.Bytes)
}

// purge drops cached artifacts so a reload sees fresh files.
func purge(fetchers ...model.Fetcher) {
	for _, f := range fetchers {
		if c, ok := f.(*model.CachingFetcher); ok {
			c.Purge()
		}
	}
}
