package campaign

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Megaphone/internal/domain"
	"github.com/shaiso/Megaphone/internal/experiment"
)

// Source — маркер происхождения создаваемых записей PushStatus.
const Source = "megaphone"

// StatusStore — операции над записями PushStatus, нужные движку рекуррентности.
type StatusStore interface {
	// ListByCampaign возвращает записи кампании.
	ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]domain.PushStatus, error)

	// Create создаёт новую запись.
	Create(ctx context.Context, st *domain.PushStatus) error

	// Delete удаляет запись (используется только для дубликатов).
	Delete(ctx context.Context, id uuid.UUID) error
}

// CampaignStore — операции над кампаниями.
type CampaignStore interface {
	// ListActive возвращает активные кампании.
	ListActive(ctx context.Context) ([]domain.Campaign, error)

	// SetNextPushes записывает ссылки на свежезапланированные записи.
	SetNextPushes(ctx context.Context, campaignID uuid.UUID, pushIDs []uuid.UUID) error
}

// Engine гарантирует, что у каждой активной кампании есть ровно один живой
// PushStatus на ближайший occurrence (или один на вариант эксперимента).
type Engine struct {
	statuses  StatusStore
	campaigns CampaignStore
	logger    *slog.Logger
}

// NewEngine создаёт Engine.
func NewEngine(statuses StatusStore, campaigns CampaignStore, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		statuses:  statuses,
		campaigns: campaigns,
		logger:    logger,
	}
}

// ScheduleAll прогоняет ScheduleNext по всем активным кампаниям.
// Ошибка одной кампании не блокирует остальные.
func (e *Engine) ScheduleAll(ctx context.Context, now time.Time) error {
	campaigns, err := e.campaigns.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active campaigns: %w", err)
	}

	for i := range campaigns {
		c := &campaigns[i]
		if _, err := e.ScheduleNext(ctx, c, now); err != nil {
			e.logger.Error("failed to schedule campaign",
				"campaign_id", c.ID,
				"campaign_name", c.Name,
				"error", err,
			)
		}
	}
	return nil
}

// ScheduleNext вычисляет следующий occurrence кампании и создаёт для него
// записи PushStatus — по одной на вариант.
//
// Возвращает nil, если push на этот occurrence уже запланирован: функцию
// безопасно вызывать на каждом тике, dedup-and-bail и есть механизм
// корректности против конкурентных экземпляров планировщика.
func (e *Engine) ScheduleNext(ctx context.Context, c *domain.Campaign, now time.Time) ([]domain.PushStatus, error) {
	next, err := NextPushTime(c, now)
	if err != nil {
		return nil, fmt.Errorf("campaign %s: next push time: %w", c.ID, err)
	}
	nextPushTime := domain.FormatLocalPushTime(next)

	existing, err := e.statuses.ListByCampaign(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("campaign %s: list pushes: %w", c.ID, err)
	}

	survivors, err := e.deleteDuplicates(ctx, c, existing)
	if err != nil {
		return nil, err
	}

	// Push на этот occurrence уже запланирован — no-op.
	for i := range survivors {
		if survivors[i].PushTime == nextPushTime && survivors[i].Status == domain.PushStateScheduled {
			e.logger.Debug("push already scheduled",
				"campaign_name", c.Name,
				"push_time", nextPushTime,
			)
			return nil, nil
		}
	}

	variants := c.EffectiveVariants()
	created := make([]domain.PushStatus, 0, len(variants))
	createdIDs := make([]uuid.UUID, 0, len(variants))

	for i, v := range variants {
		st := domain.PushStatus{
			ID:         uuid.New(),
			PushTime:   nextPushTime,
			Query:      c.Query,
			Payload:    v.Payload,
			Source:     Source,
			PushHash:   payloadHash(v.Payload),
			Status:     domain.PushStateScheduled,
			CampaignID: &c.ID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		// Диапазон бакетов нужен только при настоящем эксперименте.
		if len(variants) > 1 {
			rng, err := experiment.DistributionRange(variants, i)
			if err != nil {
				return nil, fmt.Errorf("campaign %s: variant %d: %w", c.ID, i, err)
			}
			st.Distribution = &domain.Distribution{
				Min:  rng.Min,
				Max:  rng.Max,
				Salt: c.ID.String(),
			}
		}

		if err := e.statuses.Create(ctx, &st); err != nil {
			return nil, fmt.Errorf("campaign %s: create push: %w", c.ID, err)
		}
		created = append(created, st)
		createdIDs = append(createdIDs, st.ID)
	}

	if err := e.campaigns.SetNextPushes(ctx, c.ID, createdIDs); err != nil {
		return nil, fmt.Errorf("campaign %s: set next pushes: %w", c.ID, err)
	}

	e.logger.Info("scheduled next push",
		"campaign_id", c.ID,
		"campaign_name", c.Name,
		"push_time", nextPushTime,
		"variants", len(created),
	)
	return created, nil
}

// deleteDuplicates схлопывает записи с одинаковым pushTime до одной.
// Дубликаты — след гонки конкурентных планировщиков, поэтому удаление
// логируется. Выживает произвольная запись из группы.
func (e *Engine) deleteDuplicates(ctx context.Context, c *domain.Campaign, statuses []domain.PushStatus) ([]domain.PushStatus, error) {
	byPushTime := make(map[string][]domain.PushStatus)
	for _, st := range statuses {
		key := st.PushTime
		if st.Distribution != nil {
			// Варианты одного occurrence дубликатами не считаются.
			key = fmt.Sprintf("%s|%d-%d", st.PushTime, st.Distribution.Min, st.Distribution.Max)
		}
		byPushTime[key] = append(byPushTime[key], st)
	}

	survivors := make([]domain.PushStatus, 0, len(byPushTime))
	for _, group := range byPushTime {
		survivors = append(survivors, group[0])

		for _, dup := range group[1:] {
			e.logger.Info("deleting duplicate push",
				"campaign_id", c.ID,
				"campaign_name", c.Name,
				"push_id", dup.ID,
				"push_time", dup.PushTime,
			)
			if err := e.statuses.Delete(ctx, dup.ID); err != nil {
				return nil, fmt.Errorf("campaign %s: delete duplicate push %s: %w", c.ID, dup.ID, err)
			}
		}
	}
	return survivors, nil
}

// payloadHash возвращает md5 от alert-части payload (hex).
// Нестроковый alert хэшируется своим JSON-представлением,
// отсутствующий — как пустая строка.
func payloadHash(payload string) string {
	var data struct {
		Alert json.RawMessage `json:"alert"`
	}

	hash := func(b []byte) string {
		sum := md5.Sum(b)
		return hex.EncodeToString(sum[:])
	}

	if err := json.Unmarshal([]byte(payload), &data); err != nil || len(data.Alert) == 0 {
		return hash(nil)
	}

	var alertStr string
	if err := json.Unmarshal(data.Alert, &alertStr); err == nil {
		return hash([]byte(alertStr))
	}
	return hash([]byte(data.Alert))
}
