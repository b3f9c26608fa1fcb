package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Megaphone/internal/domain"
	"github.com/shaiso/Megaphone/internal/repo"
)

// DefaultCompletionTTL — сколько ждать отстающие offsets перед финализацией
// wall-clock записи. Сутки покрывают самый медленный offset.
const DefaultCompletionTTL = 24 * time.Hour

// StatusStore — атомарные частичные обновления записей PushStatus.
//
// Каждая операция — одиночный атомарный инкремент полей, а не
// read-modify-write всей записи: два конкурентных claim на разные offsets
// одной записи не затирают друг друга, а повторный claim того же offset —
// естественный no-op (инкремент существующего ключа на ноль).
type StatusStore interface {
	// ClaimOffset создаёт ключи sentPerOffset[offset] и failedPerOffset[offset]
	// (инкремент на ноль), не меняя существующих значений.
	ClaimOffset(ctx context.Context, id uuid.UUID, offset domain.UTCOffset) error

	// ClaimAbsolute инкрементирует count и numSent на ноль и переводит
	// запись в running — absolute-time аналог ClaimOffset.
	ClaimAbsolute(ctx context.Context, id uuid.UUID) error

	// IncrementOffsetCounts атомарно прибавляет дельты к per-offset счётчикам.
	IncrementOffsetCounts(ctx context.Context, id uuid.UUID, offset domain.UTCOffset, sent, failed int) error

	// IncrementAbsoluteCounts атомарно прибавляет дельты к numSent/numFailed
	// и countDelta к in-flight счётчику count.
	IncrementAbsoluteCounts(ctx context.Context, id uuid.UUID, sent, failed, countDelta int) error

	// SetStatus выставляет статус записи; repo.ErrInvalidState, если
	// запись уже терминальна.
	SetStatus(ctx context.Context, id uuid.UUID, state domain.PushState) error
}

// Ledger — идемпотентная бухгалтерия отправок: claim перед публикацией,
// учёт результатов доставки, финализация терминального статуса.
type Ledger struct {
	store         StatusStore
	completionTTL time.Duration
	logger        *slog.Logger
}

// Config — конфигурация Ledger.
type Config struct {
	Store StatusStore

	// CompletionTTL — грейс финализации wall-clock записей (default: 24h).
	CompletionTTL time.Duration

	Logger *slog.Logger
}

// New создаёт Ledger.
func New(cfg Config) *Ledger {
	ttl := cfg.CompletionTTL
	if ttl <= 0 {
		ttl = DefaultCompletionTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Ledger{
		store:         cfg.Store,
		completionTTL: ttl,
		logger:        logger,
	}
}

// Claim отмечает offset записи как "в обработке", чтобы следующий скан его
// не вернул. Вызывается строго до публикации батчей.
func (l *Ledger) Claim(ctx context.Context, pushID uuid.UUID, offset domain.UTCOffset) error {
	if offset == domain.OffsetAbsolute {
		if err := l.store.ClaimAbsolute(ctx, pushID); err != nil {
			return fmt.Errorf("claim absolute push %s: %w", pushID, err)
		}
		return nil
	}

	if err := l.store.ClaimOffset(ctx, pushID, offset); err != nil {
		return fmt.Errorf("claim push %s offset %d: %w", pushID, offset, err)
	}
	return nil
}

// TrackInFlight увеличивает in-flight счётчик count absolute-time записи на
// количество получателей, уходящих в очередь. Вызывается после claim и строго
// до публикации батчей: доставка уменьшает count на размер батча, и ноль
// снова означает "всё опубликованное доставлено".
func (l *Ledger) TrackInFlight(ctx context.Context, pushID uuid.UUID, recipients int) error {
	if err := l.store.IncrementAbsoluteCounts(ctx, pushID, 0, 0, recipients); err != nil {
		return fmt.Errorf("track %d in-flight recipients for push %s: %w", recipients, pushID, err)
	}
	return nil
}

// RecordResults учитывает результаты доставки одного батча.
func (l *Ledger) RecordResults(ctx context.Context, pushID uuid.UUID, offset domain.UTCOffset, results []domain.TransmitResult) error {
	sent, failed := 0, 0
	for _, r := range results {
		if r.Transmitted {
			sent++
		} else {
			failed++
		}
	}

	if offset == domain.OffsetAbsolute {
		// count — in-flight счётчик: уменьшается на размер батча.
		if err := l.store.IncrementAbsoluteCounts(ctx, pushID, sent, failed, -len(results)); err != nil {
			return fmt.Errorf("record results for absolute push %s: %w", pushID, err)
		}
		return nil
	}

	if err := l.store.IncrementOffsetCounts(ctx, pushID, offset, sent, failed); err != nil {
		return fmt.Errorf("record results for push %s offset %d: %w", pushID, offset, err)
	}
	return nil
}

// Finalize проверяет, завершена ли запись, и выставляет терминальный статус.
//
// Absolute-time: завершена, когда count == 0 (всё учтённое TrackInFlight
// доставлено) и numSent определён; succeeded при numSent > 0. Wall-clock: завершена только спустя
// completionTTL после pushTime; succeeded при ненулевой сумме отправок.
//
// Возвращает true, если запись финализирована: вызывающая сторона обязана
// пропустить такую запись целиком — дальнейшие инкременты терминальной
// записи не только не нужны, но и опасны для корректности.
func (l *Ledger) Finalize(ctx context.Context, st *domain.PushStatus, now time.Time) (bool, error) {
	pushTime, absolute, err := st.ParsePushTime()
	if err != nil {
		return false, fmt.Errorf("finalize push %s: %w", st.ID, err)
	}

	if absolute {
		if st.Count == nil || *st.Count != 0 || st.NumSent == nil {
			return false, nil
		}
		return true, l.setTerminal(ctx, st, *st.NumSent > 0)
	}

	if now.Sub(pushTime) < l.completionTTL {
		return false, nil
	}
	return true, l.setTerminal(ctx, st, st.SentSum() > 0)
}

func (l *Ledger) setTerminal(ctx context.Context, st *domain.PushStatus, succeeded bool) error {
	state := domain.PushStateFailed
	if succeeded {
		state = domain.PushStateSucceeded
	}

	if err := l.store.SetStatus(ctx, st.ID, state); err != nil {
		// Конкурентный скан финализировал первым: статус уже терминален,
		// а терминальное состояние детерминировано счётчиками.
		if errors.Is(err, repo.ErrInvalidState) {
			st.Status = state
			l.logger.Debug("push already finalized by another scanner", "push_id", st.ID)
			return nil
		}
		return fmt.Errorf("finalize push %s: set status %s: %w", st.ID, state, err)
	}
	st.Status = state

	l.logger.Info("push finalized",
		"push_id", st.ID,
		"status", string(state),
		"sent_sum", st.SentSum(),
	)
	return nil
}
