package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cinescope/aiguard/pkg/common"
	"github.com/cinescope/aiguard/pkg/config"
	handlers "github.com/cinescope/aiguard/pkg/handlers/http"
	"github.com/cinescope/aiguard/pkg/infra/ai"
	"github.com/cinescope/aiguard/pkg/infra/identity"
	infraLogger "github.com/cinescope/aiguard/pkg/infra/logger"
	"github.com/cinescope/aiguard/pkg/infra/prometheus"
	"github.com/cinescope/aiguard/pkg/infra/ratelimit"
	"github.com/cinescope/aiguard/pkg/middleware"
	"github.com/cinescope/aiguard/pkg/server"
	"github.com/joho/godotenv"
)

func main() {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Println("no .env file found, using system environment variables")
	}

	logger := infraLogger.NewLogger()

	if err := config.Load("./config"); err != nil {
		logger.WithError(err).Warn("config file not loaded, relying on defaults and environment")
	}
	cfg := config.GetConfig()

	prometheus.Initialize()

	limiter, err := ratelimit.NewLimiterFromConfig(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize rate limiter")
	}
	limiter.Start()

	generator := ai.NewClient(logger, ai.Config{
		BaseURL: cfg.AI.BaseURL,
		APIKey:  cfg.AI.APIKey,
		Model:   cfg.AI.Model,
		Timeout: time.Duration(cfg.AI.Timeout) * time.Second,
	})

	identifier := identity.NewIdentifier()

	middlewareTransport := &middleware.Transport{
		PanicRecoverMiddleware:   middleware.NewPanicRecoverMiddleware(logger),
		OriginGuardMiddleware:    middleware.NewOriginGuardMiddleware(logger, cfg.AllowedOrigins),
		ClientIdentityMiddleware: middleware.NewClientIdentityMiddleware(logger, identifier),
		AIFactsRateLimitMiddleware: middleware.NewRateLimitMiddleware(
			logger, limiter, common.RouteAIFacts, false,
		),
		AISuggestionsRateLimitMiddleware: middleware.NewRateLimitMiddleware(
			logger, limiter, common.RouteAISuggestions, true,
		),
	}

	handlerTransport := &handlers.Transport{
		AIFactsHandler:       handlers.NewAIFactsHandler(logger, generator),
		AISuggestionsHandler: handlers.NewAISuggestionsHandler(logger, generator),
		PreflightHandler:     handlers.NewPreflightHandler(logger, limiter),
		HealthHandler:        handlers.NewHealthHandler(),
	}

	srv := server.NewServer(server.ServerDI{
		Config:              cfg,
		Logger:              logger,
		MiddlewareTransport: middlewareTransport,
		HandlerTransport:    handlerTransport,
	})

	go func() {
		if err := srv.Run(); err != nil {
			logger.WithError(err).Fatal("server stopped unexpectedly")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	if err := srv.Shutdown(); err != nil {
		logger.WithError(err).Error("server shutdown failed")
	}
	if err := limiter.Stop(); err != nil {
		logger.WithError(err).Error("rate limiter shutdown failed")
	}
}
