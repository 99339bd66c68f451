package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/medflow/medical-ocr/internal/docprocessing/domain"
	"github.com/medflow/medical-ocr/internal/docprocessing/gemini"
	"github.com/medflow/medical-ocr/internal/docprocessing/handler"
	"github.com/medflow/medical-ocr/internal/docprocessing/processor"
	"github.com/medflow/medical-ocr/internal/docprocessing/processor/pdfraster"
	"github.com/medflow/medical-ocr/internal/docprocessing/schema"
	"github.com/medflow/medical-ocr/internal/docprocessing/service"
	"github.com/medflow/medical-ocr/pkg/config"
	"github.com/medflow/medical-ocr/pkg/httputil"
	"github.com/medflow/medical-ocr/pkg/logger"
	"github.com/medflow/medical-ocr/pkg/messaging"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("ocr-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("ocr-service", cfg.Server.Environment)
	log.SetLevel(cfg.Server.LogLevel)
	log.Info().Str("model", cfg.Gemini.Model).Msg("starting OCR Service")
	if cfg.Gemini.APIKey == "" {
		log.Warn().Msg("GEMINI_API_KEY is not set; extractions will fail")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := gemini.New(ctx, cfg.Gemini.APIKey, schema.Build(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create Gemini client")
	}

	// Extraction events are optional
	var events service.EventPublisher
	if cfg.RabbitMQ.URL != "" {
		rmq, err := messaging.New(&cfg.RabbitMQ, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer rmq.Close()

		publisher, err := messaging.NewPublisher(rmq, cfg.RabbitMQ.Exchange, "ocr-service", log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create event publisher")
		}
		events = publisher
	}

	// Direct upload first, page images as fallback
	registry := processor.NewRegistry(log,
		processor.NewDirectStrategy(client, cfg.Gemini.PollInterval, cfg.Gemini.MaxPolls, processor.Sleep, log),
		processor.NewPageImageStrategy(pdfraster.New()),
	)

	extractionService := service.NewService(registry, client, events, service.Options{
		APIKey:       cfg.Gemini.APIKey,
		DefaultModel: domain.Model(cfg.Gemini.Model),
		MaxAttempts:  cfg.Gemini.MaxAttempts,
		BaseDelay:    cfg.Gemini.BaseDelay,
	}, log)

	extractionHandler := handler.NewHandler(extractionService, handler.Options{
		TempDir:        cfg.Storage.TempDir,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		DefaultModel:   domain.Model(cfg.Gemini.Model),
	}, log)

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOriginList(),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	extractionHandler.Routes(r)

	// Create server
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error().Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
