package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UTCOffset — смещение от UTC в минутах к западу (конвенция moment-timezone:
// отрицательное значение — к востоку от UTC, например Москва = -180).
// Ключи карт sentPerOffset/failedPerOffset используют именно эту конвенцию,
// чтобы сохранённые записи совпадали с историческими данными дашбордов.
type UTCOffset int

// OffsetAbsolute — сентинел "абсолютное время, не зависит от зоны".
// Используется как ключ work item для pushTime с явной зоной.
const OffsetAbsolute UTCOffset = -1 << 30

// Форматы pushTime.
//
// Wall-clock время хранится в ISO 8601 без зоны ("эта стрелка часов в зоне
// каждого получателя"), абсолютное — с зоной/смещением (один глобальный момент).
const (
	// PushTimeLocalLayout — формат wall-clock pushTime (без зоны).
	PushTimeLocalLayout = "2006-01-02T15:04:05.000"
)

// pushTimeLayouts — допустимые представления pushTime, от самых строгих.
var pushTimeLayouts = []struct {
	layout   string
	absolute bool
}{
	{time.RFC3339Nano, true},
	{time.RFC3339, true},
	{"2006-01-02T15:04:05.999999999", false},
	{"2006-01-02T15:04:05", false},
	{"2006-01-02", false},
}

// PushStatus — запись о запланированном push-уведомлении.
//
// Создаётся внешним authoring-путём (или RecurrenceEngine) в статусе
// scheduled; дальше её мутируют только DueWindowScheduler (через claim)
// и CompletionLedger. Записи никогда не удаляются ядром — удаление
// дубликатов делает слой кампаний.
type PushStatus struct {
	// ID — уникальный идентификатор записи.
	ID uuid.UUID `json:"id"`

	// PushTime — время отправки в ISO 8601.
	// Без зоны — wall-clock (по зоне каждого получателя),
	// с зоной — абсолютный момент. См. ParsePushTime.
	PushTime string `json:"pushTime"`

	// Query — сериализованный предикат выборки получателей (JSON where).
	Query string `json:"query"`

	// Payload — сериализованное тело сообщения.
	Payload string `json:"payload"`

	// Source — маркер происхождения записи (например, "megaphone").
	Source string `json:"source,omitempty"`

	// PushHash — md5 от alert-части payload, для группировки в дашбордах.
	PushHash string `json:"pushHash,omitempty"`

	// Status — текущий статус записи.
	Status PushState `json:"status"`

	// SentPerOffset — счётчики отправленных по каждому offset.
	// Присутствие ключа (даже с нулём) означает, что offset уже claimed.
	SentPerOffset map[UTCOffset]int `json:"sentPerOffset,omitempty"`

	// FailedPerOffset — счётчики неудачных доставок по каждому offset.
	FailedPerOffset map[UTCOffset]int `json:"failedPerOffset,omitempty"`

	// NumSent — суммарный счётчик доставленных (absolute-time путь).
	// Nil — ещё не определён.
	NumSent *int `json:"numSent,omitempty"`

	// NumFailed — суммарный счётчик неудач (absolute-time путь).
	NumFailed *int `json:"numFailed,omitempty"`

	// Count — in-flight счётчик батчей для absolute-time pushes.
	// Nil означает "ещё не claimed" — это и есть признак, по которому
	// absolute-time push отправляется ровно один раз.
	Count *int `json:"count,omitempty"`

	// Distribution — диапазон бакетов эксперимента (nil вне экспериментов).
	Distribution *Distribution `json:"distribution,omitempty"`

	// CampaignID — ссылка на кампанию-родителя (nil для разовых pushes).
	CampaignID *uuid.UUID `json:"campaignId,omitempty"`

	// CreatedAt — время создания записи.
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt — время последнего обновления.
	UpdatedAt time.Time `json:"updatedAt"`
}

// Distribution — диапазон значений бакетов, назначенный варианту эксперимента.
// Получатель принадлежит варианту, если его bucket value попадает в [Min, Max).
type Distribution struct {
	// Min — нижняя граница диапазона (включительно).
	Min int64 `json:"min"`

	// Max — верхняя граница диапазона (исключительно).
	Max int64 `json:"max"`

	// Salt — соль бакетирования (id кампании), чтобы разные кампании
	// распределяли одного и того же получателя независимо.
	Salt string `json:"salt"`
}

// ParsePushTime разбирает PushTime.
// Возвращает момент времени и признак absolute (true — время с явной зоной).
// Wall-clock время возвращается с полями даты/времени в UTC: его компоненты
// трактуются как показания местных часов, а не как момент.
func (p *PushStatus) ParsePushTime() (time.Time, bool, error) {
	for _, l := range pushTimeLayouts {
		t, err := time.Parse(l.layout, p.PushTime)
		if err == nil {
			return t, l.absolute, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("unparseable pushTime %q", p.PushTime)
}

// Claimed возвращает true, если absolute-time push уже был взят в работу.
func (p *PushStatus) Claimed() bool {
	return p.Count != nil
}

// HasOffsetCounts возвращает true, если по записи уже есть per-offset счётчики.
// Записи в статусе running без счётчиков — "немедленные" pushes, которые
// обрабатывает сам сервер уведомлений; scan loop их пропускает.
func (p *PushStatus) HasOffsetCounts() bool {
	return len(p.SentPerOffset) > 0 || len(p.FailedPerOffset) > 0
}

// SentSum возвращает сумму всех per-offset отправок плюс NumSent.
func (p *PushStatus) SentSum() int {
	sum := 0
	for _, n := range p.SentPerOffset {
		sum += n
	}
	if p.NumSent != nil {
		sum += *p.NumSent
	}
	return sum
}

// FailedSum возвращает сумму всех per-offset отказов плюс NumFailed.
func (p *PushStatus) FailedSum() int {
	sum := 0
	for _, n := range p.FailedPerOffset {
		sum += n
	}
	if p.NumFailed != nil {
		sum += *p.NumFailed
	}
	return sum
}

// FormatLocalPushTime форматирует момент как wall-clock pushTime (без зоны).
func FormatLocalPushTime(t time.Time) string {
	return t.UTC().Format(PushTimeLocalLayout)
}
