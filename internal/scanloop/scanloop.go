package scanloop

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Megaphone/internal/campaign"
	"github.com/shaiso/Megaphone/internal/domain"
	"github.com/shaiso/Megaphone/internal/offsets"
	"github.com/shaiso/Megaphone/internal/schedule"
	"github.com/shaiso/Megaphone/internal/telemetry"
)

// DefaultScanLimit — максимум записей-кандидатов за один тик.
const DefaultScanLimit = 1000

// StatusLister — выборка записей-кандидатов скана.
type StatusLister interface {
	ListScheduled(ctx context.Context, limit int) ([]domain.PushStatus, error)
}

// Ledger — нужная scan loop часть CompletionLedger.
type Ledger interface {
	Claim(ctx context.Context, pushID uuid.UUID, offset domain.UTCOffset) error
	TrackInFlight(ctx context.Context, pushID uuid.UUID, recipients int) error
	Finalize(ctx context.Context, st *domain.PushStatus, now time.Time) (bool, error)
}

// Expander — разворачивание work item в батчи (WorkBatcher).
type Expander interface {
	Expand(ctx context.Context, wi *domain.PushWorkItem) ([]domain.PushBatch, error)
}

// Publisher — публикация батча в очередь доставки.
type Publisher interface {
	PublishPushBatch(ctx context.Context, b *domain.PushBatch) error
}

// IndexSource — источник текущего снимка offset-индекса.
type IndexSource interface {
	Current() *offsets.Index
}

// Loop — оркестратор одного тика: кандидаты → финализация → due offsets →
// claim → батчи → публикация.
//
// Несколько экземпляров Loop в разных процессах могут работать с одним
// хранилищем: корректность держится на атомарных частичных инкрементах
// ledger-а, а не на взаимных блокировках.
type Loop struct {
	statuses  StatusLister
	ledger    Ledger
	batcher   Expander
	publisher Publisher
	index     IndexSource
	engine    *campaign.Engine
	windows   schedule.Windows
	scanLimit int
	logger    *slog.Logger
}

// Config — конфигурация Loop.
type Config struct {
	Statuses  StatusLister
	Ledger    Ledger
	Batcher   Expander
	Publisher Publisher
	Index     IndexSource

	// Engine — движок рекуррентности кампаний (опционально; nil, если
	// кампании планирует другой процесс).
	Engine *campaign.Engine

	// Windows — окна DueWindowScheduler (zero value — значения по умолчанию).
	Windows schedule.Windows

	// ScanLimit — максимум кандидатов за тик (default: 1000).
	ScanLimit int

	Logger *slog.Logger
}

// New создаёт Loop.
func New(cfg Config) *Loop {
	w := cfg.Windows
	if w.Variance <= 0 || w.Grace <= 0 {
		def := schedule.DefaultWindows()
		if w.Variance <= 0 {
			w.Variance = def.Variance
		}
		if w.Grace <= 0 {
			w.Grace = def.Grace
		}
	}

	scanLimit := cfg.ScanLimit
	if scanLimit <= 0 {
		scanLimit = DefaultScanLimit
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Loop{
		statuses:  cfg.Statuses,
		ledger:    cfg.Ledger,
		batcher:   cfg.Batcher,
		publisher: cfg.Publisher,
		index:     cfg.Index,
		engine:    cfg.Engine,
		windows:   w,
		scanLimit: scanLimit,
		logger:    logger,
	}
}

// Tick выполняет один тик scan loop.
//
// 1. Планирует occurrences активных кампаний (если настроен Engine)
// 2. Выбирает кандидатов (scheduled/running)
// 3. Финализирует завершённые и пропускает их
// 4. Для остальных вычисляет due offsets и публикует батчи,
//    строго claim-before-publish
//
// Ошибки одной записи не блокируют обработку остальных.
func (l *Loop) Tick(ctx context.Context, now time.Time) error {
	telemetry.ScanTicks.Inc()

	if l.engine != nil {
		if err := l.engine.ScheduleAll(ctx, now); err != nil {
			// Не фатально: scan продолжает работать по уже созданным записям.
			l.logger.Error("campaign scheduling pass failed", "error", err)
		}
	}

	idx := l.index.Current()
	telemetry.OffsetIndexZones.Set(float64(idx.Size()))

	pushes, err := l.statuses.ListScheduled(ctx, l.scanLimit)
	if err != nil {
		return fmt.Errorf("list scheduled pushes: %w", err)
	}
	if len(pushes) == 0 {
		return nil
	}

	l.logger.Debug("found push candidates", "count", len(pushes))

	var processed, claimed, published int
	for i := range pushes {
		st := &pushes[i]
		telemetry.PushesScanned.Inc()

		// Немедленные pushes обрабатывает сам сервер уведомлений:
		// running без per-offset счётчиков и без absolute-claim — не наши.
		if st.Status == domain.PushStateRunning && !st.HasOffsetCounts() && !st.Claimed() {
			continue
		}

		c, p, err := l.processPush(ctx, idx, st, now)
		if err != nil {
			l.logger.Error("failed to process push",
				"push_id", st.ID,
				"error", err,
			)
			continue
		}

		processed++
		claimed += c
		published += p
	}

	l.logger.Info("scan tick completed",
		"candidates", len(pushes),
		"processed", processed,
		"offsets_claimed", claimed,
		"batches_published", published,
	)
	return nil
}

// processPush обрабатывает одну запись. Возвращает количество
// заклеймленных offsets и опубликованных батчей.
func (l *Loop) processPush(ctx context.Context, idx *offsets.Index, st *domain.PushStatus, now time.Time) (int, int, error) {
	done, err := l.ledger.Finalize(ctx, st, now)
	if err != nil {
		return 0, 0, fmt.Errorf("finalize: %w", err)
	}
	if done {
		telemetry.PushesFinalized.WithLabelValues(string(st.Status)).Inc()
		return 0, 0, nil
	}

	items, err := schedule.CreatePushWorkItems(idx, st, now, l.windows)
	if err != nil {
		// Неразбираемая запись: лежит до ручного исправления, loop не валим.
		return 0, 0, fmt.Errorf("create work items: %w", err)
	}

	var claimed, published int
	for i := range items {
		wi := &items[i]

		// Claim строго до публикации: именно claim не даёт следующему
		// тику отправить этот offset повторно.
		if err := l.ledger.Claim(ctx, wi.PushID, wi.Offset); err != nil {
			l.logger.Error("failed to claim offset",
				"push_id", wi.PushID,
				"offset", int(wi.Offset),
				"error", err,
			)
			continue
		}
		claimed++
		telemetry.OffsetsClaimed.Inc()

		batches, err := l.batcher.Expand(ctx, wi)
		if err != nil {
			// Offset уже claimed: не отправится до ручного вмешательства,
			// но и не задвоится. Транзиентные ошибки выборки чинит ретрай
			// следующего тика по ещё не заклеймленным offsets.
			l.logger.Error("failed to expand work item",
				"push_id", wi.PushID,
				"offset", int(wi.Offset),
				"error", err,
			)
			continue
		}

		// Absolute-time: весь объём учитывается в count до первой публикации,
		// иначе доставленные батчи уведут счётчик в минус и запись никогда
		// не сойдётся к нулю для финализации.
		if wi.Offset == domain.OffsetAbsolute {
			total := 0
			for j := range batches {
				total += len(batches[j].InstallationIDs)
			}
			if err := l.ledger.TrackInFlight(ctx, wi.PushID, total); err != nil {
				l.logger.Error("failed to track in-flight recipients",
					"push_id", wi.PushID,
					"recipients", total,
					"error", err,
				)
				continue
			}
		}

		for j := range batches {
			if err := l.publisher.PublishPushBatch(ctx, &batches[j]); err != nil {
				// Частичная публикация допустима: уже опубликованные
				// батчи не откатываются.
				l.logger.Error("failed to publish batch",
					"push_id", wi.PushID,
					"offset", int(wi.Offset),
					"batch", j,
					"error", err,
				)
				break
			}
			published++
			telemetry.BatchesPublished.Inc()
		}
	}

	return claimed, published, nil
}
