package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aradit/smsc-gateway/internal/platform/config"
	"github.com/aradit/smsc-gateway/internal/platform/database"
	"github.com/aradit/smsc-gateway/internal/platform/logger"
	"github.com/aradit/smsc-gateway/internal/platform/messagebroker"
	"github.com/aradit/smsc-gateway/internal/smsc/adapters/sigtran"
	"github.com/aradit/smsc-gateway/internal/smsc/app"
	"github.com/aradit/smsc-gateway/internal/smsc/repository/postgres"
)

const serviceName = "delivery_worker"

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("Failed to load configuration", "service", serviceName, "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel)
	appLogger.Info("Delivery worker starting...")

	mainCtx, cancelMainCtx := context.WithCancel(context.Background())
	defer cancelMainCtx()

	dbPool, err := database.NewDBPool(mainCtx, cfg.PostgresDSN)
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	appLogger.Info("Connected to PostgreSQL database")

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

	sessionPool := sigtran.NewSessionPool(
		sigtran.SCTPDialer{},
		sigtran.NewStaticIMSIResolver(),
		cfg.ProtocolTimeout(),
		cfg.SessionMaxAge(),
		appLogger,
	)

	deliveryService := app.NewDeliveryService(messageRepo, queueRepo, operatorRepo, sessionPool, natsClient, appLogger)
	if err := deliveryService.StartConsuming(mainCtx, app.DeliveryJobSubject, app.DeliveryQueueGroup); err != nil {
		appLogger.Error("Failed to start delivery consumer", "error", err)
		os.Exit(1)
	}
	defer deliveryService.StopConsuming()

	reclaimer := app.NewQueueReclaimer(queueRepo, messageRepo, natsClient,
		cfg.QueueLeaseTimeout(), cfg.QueueReclaimInterval(), appLogger)
	reclaimer.Start(mainCtx)
	defer reclaimer.Stop()

	appLogger.Info("Delivery worker running",
		"subject", app.DeliveryJobSubject, "queue_group", app.DeliveryQueueGroup)

	quitChan := make(chan os.Signal, 1)
	signal.Notify(quitChan, syscall.SIGINT, syscall.SIGTERM)
	<-quitChan
	appLogger.Info("Shutdown signal received, stopping delivery worker...")
	cancelMainCtx()
	appLogger.Info("Delivery worker stopped")
}
