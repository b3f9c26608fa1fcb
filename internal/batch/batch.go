package batch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shaiso/Megaphone/internal/domain"
	"github.com/shaiso/Megaphone/internal/experiment"
	"github.com/shaiso/Megaphone/internal/repo"
)

// Значения по умолчанию.
const (
	// DefaultBatchSize — максимум получателей в одном батче.
	DefaultBatchSize = 100

	// DefaultPageSize — размер страницы keyset-пагинации. Больше размера
	// батча, чтобы амортизировать обращения к хранилищу.
	DefaultPageSize = 1000
)

// RecipientPager — постраничная выборка идентификаторов получателей.
// Страница упорядочена по id по возрастанию и начинается строго после afterID.
type RecipientPager interface {
	ListPage(ctx context.Context, f repo.InstallationFilter, afterID string, limit int) ([]string, error)
}

// Batcher разворачивает один PushWorkItem в последовательность батчей
// ограниченного размера, не загружая всю аудиторию в память за раз.
//
// Позиция курсора не персистится: прерванный прогон будет повторён с нуля
// при следующем claim окна, что безопасно — батчи идемпотентны по фильтру,
// а не по счётчику.
type Batcher struct {
	pager     RecipientPager
	batchSize int
	pageSize  int
	logger    *slog.Logger
}

// Config — конфигурация Batcher.
type Config struct {
	Pager     RecipientPager
	BatchSize int // получателей в батче (default: 100)
	PageSize  int // размер страницы выборки (default: 1000)
	Logger    *slog.Logger
}

// New создаёт Batcher.
func New(cfg Config) *Batcher {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Batcher{
		pager:     cfg.Pager,
		batchSize: batchSize,
		pageSize:  pageSize,
		logger:    logger,
	}
}

// Expand разворачивает work item в батчи.
//
// Выборка — keyset-пагинация по id: каждая страница фильтруется по
// "id > последний id предыдущей страницы" плюс исходный предикат записи;
// конец — страница короче pageSize. Ошибка выборки прерывает весь work
// item; уже опубликованные батчи не откатываются.
func (b *Batcher) Expand(ctx context.Context, wi *domain.PushWorkItem) ([]domain.PushBatch, error) {
	filter := repo.InstallationFilter{
		Where:     wi.Query,
		Timezones: wi.Zones,
	}

	var ids []string
	afterID := ""
	for {
		page, err := b.pager.ListPage(ctx, filter, afterID, b.pageSize)
		if err != nil {
			return nil, fmt.Errorf("push %s offset %d: list installations page after %q: %w",
				wi.PushID, wi.Offset, afterID, err)
		}
		if len(page) == 0 {
			break
		}

		afterID = page[len(page)-1]
		ids = append(ids, b.filterVariant(wi, page)...)

		if len(page) < b.pageSize {
			break
		}
	}

	batches := make([]domain.PushBatch, 0, (len(ids)+b.batchSize-1)/b.batchSize)
	for start := 0; start < len(ids); start += b.batchSize {
		end := min(start+b.batchSize, len(ids))
		batches = append(batches, domain.PushBatch{
			PushID:          wi.PushID,
			Offset:          wi.Offset,
			Payload:         wi.Payload,
			InstallationIDs: ids[start:end],
		})
	}

	b.logger.Debug("expanded work item into batches",
		"push_id", wi.PushID,
		"offset", int(wi.Offset),
		"recipients", len(ids),
		"batches", len(batches),
	)
	return batches, nil
}

// filterVariant оставляет получателей, попадающих в диапазон бакетов
// варианта эксперимента. Детерминированный клиентский фильтр: любой
// процесс для того же page даст тот же результат.
func (b *Batcher) filterVariant(wi *domain.PushWorkItem, ids []string) []string {
	d := wi.Distribution
	if d == nil {
		return ids
	}

	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if experiment.InRange(id, d.Salt, d.Min, d.Max) {
			out = append(out, id)
		}
	}
	return out
}
