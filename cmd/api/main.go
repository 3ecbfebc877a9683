package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/voice-appointment-confirm/cmd/mainconfig"
	"github.com/wolfman30/voice-appointment-confirm/internal/api/router"
	"github.com/wolfman30/voice-appointment-confirm/internal/app/bootstrap"
	appconfig "github.com/wolfman30/voice-appointment-confirm/internal/config"
	"github.com/wolfman30/voice-appointment-confirm/internal/conversation"
	httpmiddleware "github.com/wolfman30/voice-appointment-confirm/internal/http/middleware"
	"github.com/wolfman30/voice-appointment-confirm/internal/voice"
	"github.com/wolfman30/voice-appointment-confirm/internal/webchat"
	"github.com/wolfman30/voice-appointment-confirm/pkg/logging"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger.Info("starting voice appointment confirmation API",
		"env", cfg.Env,
		"port", cfg.Port,
		"llm_provider", cfg.LLMProvider,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	fmt.Println("Server exited gracefully")
}

// run owns the runtime so it is always closed before the process exits.
func run(cfg *appconfig.Config, logger *logging.Logger) error {
	registry, metricsHandler := setupMetrics()
	rt, err := bootstrap.BuildRuntime(context.Background(), cfg, logger, bootstrap.Options{
		Registerer:    registry,
		LoadAWSConfig: mainconfig.LoadAWSConfig,
		VerifyRedis:   true,
	})
	if err != nil {
		return fmt.Errorf("build conversation runtime: %w", err)
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Warn("failed to close runtime", "error", err)
		}
	}()

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newRouter(cfg, rt, metricsHandler, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "generation_enabled", rt.GenerationEnabled)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// setupMetrics returns a private registry carrying the process collectors and
// the handler that exposes it.
func setupMetrics() (*prometheus.Registry, http.Handler) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry, promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

func newRouter(cfg *appconfig.Config, rt *bootstrap.Runtime, metricsHandler http.Handler, logger *logging.Logger) http.Handler {
	return router.New(&router.Config{
		Logger:              logger,
		ConversationHandler: conversation.NewHandler(rt.Service, rt.Orchestrator, logger),
		VoiceHandler: voice.NewHandler(rt.Orchestrator, voice.Config{
			Transcriber:   rt.Transcriber,
			Synthesizer:   rt.Synthesizer,
			Metrics:       rt.Metrics,
			MaxAudioBytes: cfg.MaxAudioBytes,
			Language:      cfg.TranscriptionLanguage,
		}, logger),
		WebchatHandler:     webchat.NewHandler(rt.Service, logger),
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		VoiceRateLimiter:   httpmiddleware.NewRateLimiter(cfg.VoiceRateLimit, cfg.VoiceRateBurst),
		GenerationEnabled:  rt.GenerationEnabled,
	})
}
