// Command antigravity serves the public Gemini API in front of the internal Antigravity
// backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/zalbiraw/antigravity"
	"github.com/zalbiraw/antigravity/internal/backend"
	"github.com/zalbiraw/antigravity/internal/config"
	"github.com/zalbiraw/antigravity/internal/logger"
	"github.com/zalbiraw/antigravity/internal/metrics"
)

func main() {
	// 1. Load configuration. ANTIGRAVITY_CONFIG points at a YAML file; without it
	// ./config.yaml is used when present.
	source, err := config.LoadSource(os.Getenv("ANTIGRAVITY_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg := source.Config()

	// 2. Logging.
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	log.Info("Starting antigravity",
		zap.String("backend", cfg.BackendURL),
		zap.String("mode", cfg.Server.Mode),
	)

	source.Watch(func(_ *config.Config, err error) {
		if err != nil {
			log.Warn("Config reload rejected, keeping previous config", zap.Error(err))
			return
		}
		log.Info("Config reloaded")
	})

	// 3. Backend and proxy.
	target, err := url.Parse(cfg.BackendURL)
	if err != nil {
		log.Fatal("Invalid backend_url", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	proxy, err := antigravity.New(context.Background(), backend.NewProxy(target, nil, log), cfg, "antigravity",
		antigravity.WithSource(source),
		antigravity.WithMetrics(metrics.New(reg)),
	)
	if err != nil {
		log.Fatal("Failed to create proxy", zap.Error(err))
	}

	// 4. HTTP server.
	gin.SetMode(cfg.Server.Mode)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           newRouter(proxy, reg, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	gracefulShutdown(server, log)
}

func gracefulShutdown(server *http.Server, log *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}

	log.Info("Server stopped")
}
