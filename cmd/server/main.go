package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"mediavfs/internal/app"
	"mediavfs/internal/config"
	httphandlers "mediavfs/internal/http"
	"mediavfs/internal/image_list"
	"mediavfs/internal/logger"
	"mediavfs/internal/mimetype"
	"mediavfs/internal/transformer"
	"mediavfs/internal/transformer/libvips"
	"mediavfs/internal/vfs"
	"mediavfs/internal/warmup"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	libvips.Startup(libvips.RuntimeConfig{
		MaxCacheMB:  cfg.VipsMaxCacheMB,
		Concurrency: cfg.VipsConcurrency,
	}, log)
	defer libvips.Shutdown()

	log.Info("Starting media server",
		zap.Int("port", cfg.Port),
		zap.String("data_dir", cfg.DataDir),
		zap.String("cache", cfg.CacheType),
	)

	a, err := app.Build(cfg, func(sources vfs.Resolver, types mimetype.Registry) transformer.Factory {
		return libvips.NewFactory(sources, types, cfg.EncodeQuality, log.Named("vips"))
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize", zap.Error(err))
	}

	var exclude []string
	if dir, ok := cfg.CacheDirInDataDir(); ok {
		exclude = append(exclude, dir)
	}
	scanner := image_list.New(a.DataFS, a.Types, log, exclude...)
	if err := scanner.Scan(); err != nil {
		log.Warn("Initial scan failed", zap.Error(err))
	}

	presets, err := warmup.ParsePresets(cfg.WarmupPresets, a.Types)
	if err != nil {
		log.Fatal("Invalid warmup presets", zap.Error(err))
	}

	handlers := httphandlers.New(cfg, log, scanner, a.Deps)
	handler := handlers.CORSMiddleware(handlers.RequestLoggingMiddleware(handlers.Routes()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if len(presets) > 0 {
		go warmup.Run(ctx, scanner.GetImages(), presets, cfg.WarmupWorkers, a.Deps, log)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handler,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.Int("port", cfg.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server stopped")
}
