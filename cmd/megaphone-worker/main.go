// Megaphone Worker — доставляет батчи push-уведомлений.
//
// Worker:
//   - Получает батчи push.batch из RabbitMQ
//   - Отправляет их через push-шлюз
//   - Записывает per-offset результаты доставки в хранилище
//
// Workers масштабируются горизонтально: идемпотентность держится на
// claim-семантике scheduler-а, а не на единственности воркера.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Megaphone/internal/ledger"
	"github.com/shaiso/Megaphone/internal/mq"
	"github.com/shaiso/Megaphone/internal/repo"
	"github.com/shaiso/Megaphone/internal/telemetry"
	"github.com/shaiso/Megaphone/internal/worker"
)

func main() {
	logger := telemetry.SetupLogger()
	logger.Info("starting megaphone-worker")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	// RabbitMQ
	mqConn, err := mq.NewConnection(mq.URLFromEnv(), logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()
	logger.Info("RabbitMQ connected")

	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}

	gatewayURL := os.Getenv("PUSH_GATEWAY_URL")
	if gatewayURL == "" {
		gatewayURL = "http://localhost:1337/push"
	}

	w := worker.New(worker.Config{
		Conn:        mqConn,
		Transmitter: worker.NewGatewayTransmitter(gatewayURL, 30*time.Second),
		Resolver:    repo.NewInstallationRepo(pool),
		Recorder: ledger.New(ledger.Config{
			Store:  repo.NewPushStatusRepo(pool),
			Logger: logger,
		}),
		Logger: logger,
	})

	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8082"
	if v := os.Getenv("WORKER_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	w.Stop()
	logger.Info("megaphone-worker stopped")
}
