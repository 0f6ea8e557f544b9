package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aradit/smsc-gateway/internal/platform/cache"
	"github.com/aradit/smsc-gateway/internal/platform/config"
	"github.com/aradit/smsc-gateway/internal/platform/database"
	"github.com/aradit/smsc-gateway/internal/platform/logger"
	"github.com/aradit/smsc-gateway/internal/platform/messagebroker"
	"github.com/aradit/smsc-gateway/internal/smsc/app"
	"github.com/aradit/smsc-gateway/internal/smsc/repository/postgres"
	httptransport "github.com/aradit/smsc-gateway/internal/smsc/transport/http"
)

const serviceName = "gateway"

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("Failed to load configuration", "service", serviceName, "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel)
	appLogger.Info("Gateway starting...", "port", cfg.ServerPort)

	dbPool, err := database.NewDBPool(context.Background(), cfg.PostgresDSN)
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	appLogger.Info("Connected to PostgreSQL database")

	redisCache, err := cache.NewRedis(context.Background(), cfg.RedisAddr)
	if err != nil {
		appLogger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisCache.Close()
	appLogger.Info("Connected to Redis")

	natsClient, err := messagebroker.NewNatsClient(cfg.NATSUrl, serviceName, appLogger)
	if err != nil {
		appLogger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()
	appLogger.Info("Connected to NATS")

	messageRepo := postgres.NewPgMessageRepository(dbPool)
	queueRepo := postgres.NewPgQueueRepository(dbPool)
	operatorRepo := postgres.NewPgOperatorRepository(dbPool)
	routeRepo := postgres.NewPgRouteRepository(dbPool)

	gate := app.NewCapacityGate(messageRepo, redisCache, cfg.TPSCacheTTL(), appLogger)
	router := app.NewRouter(routeRepo, operatorRepo, gate, redisCache, cfg.RouteCacheTTL(), appLogger)
	messageService := app.NewMessageService(messageRepo, queueRepo, router, natsClient, appLogger)
	statsService := app.NewStatsService(operatorRepo, messageRepo, gate, redisCache, appLogger)
	routeAdminService := app.NewRouteAdminService(routeRepo, redisCache, appLogger)

	validate := validator.New()
	messageHandler := httptransport.NewMessageHandler(messageService, validate, appLogger)
	adminHandler := httptransport.NewAdminHandler(statsService, routeAdminService, validate, appLogger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(api chi.Router) {
		messageHandler.RegisterRoutes(api)
		adminHandler.RegisterRoutes(api)
	})

	httpServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.ServerPort), Handler: r}
	go func() {
		appLogger.Info(fmt.Sprintf("Gateway listening on port %d", cfg.ServerPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("HTTP server failed to serve", "error", err)
		}
	}()

	quitChan := make(chan os.Signal, 1)
	signal.Notify(quitChan, syscall.SIGINT, syscall.SIGTERM)
	<-quitChan
	appLogger.Info("Shutdown signal received, shutting down HTTP server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(ctxShutdown); err != nil {
		appLogger.Error("HTTP server shutdown failed", "error", err)
	}
	appLogger.Info("Gateway stopped")
}
