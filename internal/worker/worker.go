package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/Megaphone/internal/domain"
	"github.com/shaiso/Megaphone/internal/mq"
	"github.com/shaiso/Megaphone/internal/telemetry"
)

// defaultPrefetch — сколько батчей воркер держит в полёте.
const defaultPrefetch = 5

// ResultRecorder — нужная воркеру часть CompletionLedger.
type ResultRecorder interface {
	RecordResults(ctx context.Context, pushID uuid.UUID, offset domain.UTCOffset, results []domain.TransmitResult) error
}

// TokenResolver — разрешение идентификаторов установок в device tokens.
type TokenResolver interface {
	ListTokens(ctx context.Context, ids []string) (map[string]string, error)
}

// Worker — доставщик батчей.
//
// Stateless компонент: получает батчи из очереди pushes.batches,
// отправляет их через Transmitter и отчитывается в ledger. Масштабируется
// горизонтально — несколько экземпляров потребляют из одной очереди.
type Worker struct {
	conn        *mq.Connection
	transmitter Transmitter
	resolver    TokenResolver
	recorder    ResultRecorder
	prefetch    int
	logger      *slog.Logger

	consumer *mq.Consumer
}

// Config — конфигурация Worker.
type Config struct {
	Conn        *mq.Connection
	Transmitter Transmitter
	Resolver    TokenResolver
	Recorder    ResultRecorder

	// Prefetch — сколько сообщений забирать впрок (default: 5).
	Prefetch int

	Logger *slog.Logger
}

// New создаёт Worker.
func New(cfg Config) *Worker {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	w := &Worker{
		conn:        cfg.Conn,
		transmitter: cfg.Transmitter,
		resolver:    cfg.Resolver,
		recorder:    cfg.Recorder,
		prefetch:    prefetch,
		logger:      logger,
	}

	w.consumer = mq.NewConsumer(cfg.Conn, logger, mq.ConsumerConfig{
		Queue:    string(mq.QueuePushBatches),
		Handler:  w.handleMessage,
		Prefetch: prefetch,
	})

	return w
}

// Start запускает потребление батчей. Блокирует до отмены контекста.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("delivery worker started", "queue", string(mq.QueuePushBatches))
	return w.consumer.Start(ctx)
}

// Stop останавливает воркер.
func (w *Worker) Stop() {
	w.consumer.Stop()
}

// handleMessage обрабатывает одно сообщение push.batch.
//
// Ошибка возвращает сообщение в очередь (retry); исчерпание retry уводит
// его в DLQ на уровне очереди. Повторная доставка батча безопасна с
// точностью до счётчиков: границы идемпотентности — claim, а не результат.
func (w *Worker) handleMessage(ctx context.Context, d *mq.Delivery) error {
	batch, err := mq.ParsePayload[domain.PushBatch](&d.Message)
	if err != nil {
		w.logger.Error("failed to parse push.batch payload",
			"message_id", d.Message.ID,
			"error", err,
		)
		return err
	}

	return w.Deliver(ctx, &batch)
}

// Deliver разрешает токены получателей батча, отправляет его и записывает
// результаты. Установка без токена сразу учитывается как неудача, до шлюза
// она не доходит.
func (w *Worker) Deliver(ctx context.Context, batch *domain.PushBatch) error {
	tokens, err := w.resolver.ListTokens(ctx, batch.InstallationIDs)
	if err != nil {
		return fmt.Errorf("resolve tokens for push %s: %w", batch.PushID, err)
	}

	recipients := make([]domain.Recipient, 0, len(batch.InstallationIDs))
	var results []domain.TransmitResult
	for _, id := range batch.InstallationIDs {
		token, ok := tokens[id]
		if !ok || token == "" {
			results = append(results, domain.TransmitResult{InstallationID: id, Transmitted: false})
			continue
		}
		recipients = append(recipients, domain.Recipient{InstallationID: id, DeviceToken: token})
	}

	if len(recipients) > 0 {
		sent, err := w.transmitter.Send(ctx, batch.Payload, recipients)
		if err != nil {
			return fmt.Errorf("transmit batch for push %s: %w", batch.PushID, err)
		}
		results = append(results, sent...)
	}

	sent, failed := 0, 0
	for _, r := range results {
		if r.Transmitted {
			sent++
		} else {
			failed++
		}
	}
	telemetry.DeliveryResults.WithLabelValues("sent").Add(float64(sent))
	telemetry.DeliveryResults.WithLabelValues("failed").Add(float64(failed))

	if err := w.recorder.RecordResults(ctx, batch.PushID, batch.Offset, results); err != nil {
		return fmt.Errorf("record results for push %s: %w", batch.PushID, err)
	}

	w.logger.Info("batch delivered",
		"push_id", batch.PushID,
		"offset", int(batch.Offset),
		"recipients", len(batch.InstallationIDs),
		"sent", sent,
		"failed", failed,
	)
	return nil
}
