package offsets

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultRefreshInterval — рекомендуемый период пересборки индекса.
// Offsets дрейфуют на переходах DST; часа достаточно, чтобы окно
// устаревания оставалось короче due-window tolerance.
const DefaultRefreshInterval = time.Hour

// Keeper владеет текущим снимком Index и периодически его пересобирает.
//
// Current() отдаёт указатель на иммутабельный снимок: читатели в полёте
// продолжают видеть свой снимок, Refresh атомарно подменяет указатель.
type Keeper struct {
	mu  sync.RWMutex
	cur *Index

	logger *slog.Logger
}

// NewKeeper строит Keeper с начальным снимком на момент asOf.
func NewKeeper(asOf time.Time, logger *slog.Logger) *Keeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Keeper{
		cur:    Compute(asOf),
		logger: logger,
	}
}

// Current возвращает текущий снимок.
func (k *Keeper) Current() *Index {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.cur
}

// Refresh пересобирает снимок на момент asOf и атомарно подменяет его.
func (k *Keeper) Refresh(asOf time.Time) {
	idx := Compute(asOf)

	k.mu.Lock()
	k.cur = idx
	k.mu.Unlock()

	k.logger.Debug("timezone offset index refreshed",
		"zones", idx.Size(),
		"as_of", asOf.Format(time.RFC3339),
	)
}

// Run периодически обновляет снимок до отмены контекста.
// interval <= 0 заменяется на DefaultRefreshInterval.
func (k *Keeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}

	tk := time.NewTicker(interval)
	defer tk.Stop()

	for {
		select {
		case t := <-tk.C:
			k.Refresh(t)
		case <-ctx.Done():
			return
		}
	}
}
