// Megaphone Scheduler — сканирует записи рассылок и публикует батчи доставки.
//
// Scheduler:
//   - Раз в SCAN_INTERVAL выбирает записи в статусе scheduled/running
//   - Планирует occurrences активных кампаний
//   - Вычисляет due UTC offsets, клеймит их и публикует батчи в RabbitMQ
//   - Финализирует завершённые записи
//
// В кластере одновременно сканирует только лидер (pg advisory lock);
// остальные экземпляры ждут, готовые перехватить лидерство.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Megaphone/internal/batch"
	"github.com/shaiso/Megaphone/internal/campaign"
	"github.com/shaiso/Megaphone/internal/ledger"
	"github.com/shaiso/Megaphone/internal/mq"
	"github.com/shaiso/Megaphone/internal/offsets"
	"github.com/shaiso/Megaphone/internal/repo"
	"github.com/shaiso/Megaphone/internal/scanloop"
	"github.com/shaiso/Megaphone/internal/schedule"
	"github.com/shaiso/Megaphone/internal/telemetry"
)

const scanLockKey int64 = 692406

func main() {
	logger := telemetry.SetupLogger()
	logger.Info("starting megaphone-scheduler")

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

	// Снимок offset-индекса с часовым фоновым обновлением
	keeper := offsets.NewKeeper(time.Now(), logger)
	go keeper.Run(ctx, offsets.DefaultRefreshInterval)

	pushes := repo.NewPushStatusRepo(pool)
	campaigns := repo.NewCampaignRepo(pool)
	installations := repo.NewInstallationRepo(pool)

	loop := scanloop.New(scanloop.Config{
		Statuses: pushes,
		Ledger: ledger.New(ledger.Config{
			Store:         pushes,
			CompletionTTL: envDuration("COMPLETION_TTL", ledger.DefaultCompletionTTL),
			Logger:        logger,
		}),
		Batcher: batch.New(batch.Config{
			Pager:     installations,
			BatchSize: envInt("BATCH_SIZE", batch.DefaultBatchSize),
			Logger:    logger,
		}),
		Publisher: mq.NewPublisher(mqConn, logger),
		Index:     keeper,
		Engine:    campaign.NewEngine(pushes, campaigns, logger),
		Windows: schedule.Windows{
			Variance: envDuration("SCAN_VARIANCE", 0),
			Grace:    envDuration("ABSOLUTE_GRACE", 0),
		},
		Logger: logger,
	})

	// scan loop
	go func() {
		interval := envDuration("SCAN_INTERVAL", 30*time.Second)
		tk := time.NewTicker(interval)
		defer tk.Stop()

		var hasLock bool
		defer func() {
			if hasLock {
				_, _ = pool.Exec(context.Background(), "select pg_advisory_unlock($1)", scanLockKey)
			}
		}()

		for {
			select {
			case t := <-tk.C:
				// пытаемся стать лидером (или подтвердить лидерство)
				if !hasLock {
					var ok bool
					if err := pool.QueryRow(ctx, "select pg_try_advisory_lock($1)", scanLockKey).Scan(&ok); err != nil {
						logger.Error("leader lock failed", "error", err)
						continue
					}
					hasLock = ok
				}

				if !hasLock {
					// не лидер — пропускаем тик
					continue
				}

				if err := loop.Tick(ctx, t.UTC()); err != nil {
					logger.Error("scan tick failed", "error", err)
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8081"
	if v := os.Getenv("SCHEDULER_PORT"); v != "" {
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
	logger.Info("megaphone-scheduler stopped")
}

func envDuration(name string, def time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func envInt(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
