package schedule

import (
	"fmt"
	"time"

	"github.com/shaiso/Megaphone/internal/domain"
	"github.com/shaiso/Megaphone/internal/offsets"
)

// Windows — параметры временных окон DueWindowScheduler.
type Windows struct {
	// Variance — допустимое отставание скана от wall-clock цели.
	// Окно монотонно: прошло — в этот день уже не откроется.
	Variance time.Duration

	// Grace — окно [pushTime, pushTime+Grace) для absolute-time pushes.
	// Absolute push, пропустивший окно, молча не отправляется.
	Grace time.Duration
}

// DefaultWindows возвращает окна по умолчанию: 5 минут и там, и там.
func DefaultWindows() Windows {
	return Windows{
		Variance: 5 * time.Minute,
		Grace:    5 * time.Minute,
	}
}

// UnsentOffsets возвращает offsets индекса, у которых ещё нет ключа в
// sentPerOffset. Присутствие ключа — даже с нулевым значением — означает,
// что offset уже claimed, и он никогда не возвращается повторно.
func UnsentOffsets(idx *offsets.Index, sentPerOffset map[domain.UTCOffset]int) []domain.UTCOffset {
	all := idx.Offsets()
	out := make([]domain.UTCOffset, 0, len(all))
	for _, off := range all {
		if _, claimed := sentPerOffset[off]; !claimed {
			out = append(out, off)
		}
	}
	return out
}

// CurrentOffsets фильтрует candidates до offsets, чьё местное время прямо
// сейчас попадает в окно отправки pushTime.
//
// Для каждого offset местное "сейчас" вычисляется проекцией now на одну
// representative-зону offset-а (все зоны одного offset показывают одинаковое
// wall-clock время). Критерий: тот же день месяца, тот же час, местная
// минута >= целевой, и отставание в секундах строго меньше variance.
func CurrentOffsets(idx *offsets.Index, candidates []domain.UTCOffset, pushTime, now time.Time, variance time.Duration) []domain.UTCOffset {
	varianceSec := int(variance / time.Second)

	out := make([]domain.UTCOffset, 0, 1)
	for _, off := range candidates {
		zone, ok := idx.Representative(off)
		if !ok {
			continue
		}
		loc, err := time.LoadLocation(zone)
		if err != nil {
			continue
		}

		local := now.In(loc)
		diffSec := (local.Minute()*60 + local.Second()) -
			(pushTime.Minute()*60 + pushTime.Second())

		if local.Day() == pushTime.Day() &&
			local.Hour() == pushTime.Hour() &&
			local.Minute() >= pushTime.Minute() &&
			diffSec < varianceSec {
			out = append(out, off)
		}
	}
	return out
}

// CreatePushWorkItems возвращает work items, которые должны уйти в доставку
// в этом скане. Чистая функция над (запись, now, снимок индекса): сторонних
// эффектов нет, claim записывает вызывающая сторона до публикации.
//
// Ошибка возвращается только для неразбираемого pushTime; такую запись
// scan loop логирует и пропускает.
func CreatePushWorkItems(idx *offsets.Index, st *domain.PushStatus, now time.Time, w Windows) ([]domain.PushWorkItem, error) {
	pushTime, absolute, err := st.ParsePushTime()
	if err != nil {
		return nil, fmt.Errorf("push %s: %w", st.ID, err)
	}

	if absolute {
		return absoluteWorkItems(st, pushTime, now, w), nil
	}

	unsent := UnsentOffsets(idx, st.SentPerOffset)
	due := CurrentOffsets(idx, unsent, pushTime, now, w.Variance)

	items := make([]domain.PushWorkItem, 0, len(due))
	for _, off := range due {
		items = append(items, domain.PushWorkItem{
			PushID:       st.ID,
			Payload:      st.Payload,
			Query:        st.Query,
			Offset:       off,
			Zones:        idx.Zones(off),
			Distribution: st.Distribution,
		})
	}
	return items, nil
}

// absoluteWorkItems обрабатывает absolute-time путь: ровно один work item,
// только внутри grace-окна и только если запись ещё не claimed.
func absoluteWorkItems(st *domain.PushStatus, pushTime, now time.Time, w Windows) []domain.PushWorkItem {
	if st.Claimed() {
		return nil
	}
	if now.Before(pushTime) || !now.Before(pushTime.Add(w.Grace)) {
		return nil
	}

	return []domain.PushWorkItem{{
		PushID:       st.ID,
		Payload:      st.Payload,
		Query:        st.Query,
		Offset:       domain.OffsetAbsolute,
		Distribution: st.Distribution,
	}}
}
