// Package main is the entry point for the expensa HTTP server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/expensabot/expensa/internal/broker"
	"github.com/expensabot/expensa/internal/config"
	"github.com/expensabot/expensa/internal/extractor"
	"github.com/expensabot/expensa/internal/handler"
	"github.com/expensabot/expensa/internal/media"
	"github.com/expensabot/expensa/internal/middleware"
	"github.com/expensabot/expensa/internal/notifier"
	"github.com/expensabot/expensa/internal/repository"
	"github.com/expensabot/expensa/internal/service"
	"github.com/expensabot/expensa/internal/signature"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			_ = syncErr
		}
	}()

	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	db, err := sqlx.Connect("postgres", cfg.Database.GetDSN())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Redis is an advisory duplicate cache; Postgres stays authoritative,
	// so an unreachable Redis must not prevent startup.
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("Failed to connect to Redis, continuing without duplicate cache", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("Failed to close Redis connection", zap.Error(err))
		}
	}()

	repo := repository.NewRepository(db)
	publisher := broker.NewPublisher(cfg, logger)
	fetcher := media.NewFetcher(cfg, logger)
	extr := extractor.NewExtractor(cfg, logger)
	notif := notifier.NewNotifier(cfg, logger)

	svc := service.NewService(cfg, repo, redisClient, publisher, fetcher, extr, notif, logger)

	brokerVerifier := signature.NewBrokerVerifier(cfg.Broker.CurrentSigningKey, cfg.Broker.NextSigningKey)
	h := handler.NewHandler(svc, cfg.WhatsApp.AppSecret, cfg.WhatsApp.VerifyToken, brokerVerifier, logger)

	router := setupRouter(h)

	middlewareConfig := &middleware.Config{
		Logger:         logger,
		RateLimit:      rate.Limit(cfg.Middleware.RateLimit),
		RateLimitBurst: cfg.Middleware.RateLimitBurst,
		RequestTimeout: 30 * time.Second,
	}
	if cfg.Middleware.EnableCORS {
		corsConfig := middleware.DefaultCORSConfig()
		corsConfig.AllowedOrigins = cfg.Middleware.AllowedOrigins
		middlewareConfig.CORS = corsConfig
	}

	finalHandler := middleware.Chain(middlewareConfig)(router)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      finalHandler,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start the stale-claim reclaimer with the process
	if err := svc.Reclaimer.Start(); err != nil {
		logger.Error("Failed to start reclaimer on startup", zap.Error(err))
	} else {
		logger.Info("Reclaimer started on application startup")
	}

	// Start server in goroutine
	go func() {
		logger.Info("Starting server", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	if svc.Reclaimer.IsRunning() {
		if err := svc.Reclaimer.Stop(); err != nil {
			logger.Error("Failed to stop reclaimer", zap.Error(err))
		}
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
