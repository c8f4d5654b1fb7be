// Command server runs the assessment HTTP API.
//
//	@title						Sistema de Avaliação Psicológica API
//	@version					1.0
//	@description				Giftedness and overexcitability questionnaire: invitation links, submissions and clinical narratives.
//	@BasePath					/
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/config"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/monitoring"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := monitoring.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger.Logger)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		slog.Error("Failed to initialize application", "error", err)
		os.Exit(1)
	}

	go monitoring.CollectMemoryStats(ctx, a.metrics, memoryStatsInterval)

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           a.router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.SystemLogger("startup", "listening on "+srv.Addr)
		slog.Info("Starting server",
			"port", cfg.Port,
			"environment", cfg.Environment,
			"version", version,
			"llm_provider", cfg.LLMProvider,
			"narrative_format", cfg.NarrativeFormat,
			"markers_version", cfg.MarkersVersion)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	exitCode := 0
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		exitCode = 1
	}
	stop()

	if err := a.close(shutdownCtx); err != nil {
		slog.Error("Shutdown incomplete", "error", err)
		exitCode = 1
	}

	logger.SystemLogger("shutdown", "server exited")
	os.Exit(exitCode)
}
