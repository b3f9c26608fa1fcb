package domain

import (
	"time"

	"github.com/google/uuid"
)

// Interval — периодичность кампании.
type Interval string

const (
	// IntervalDaily — каждый день в sendTime.
	IntervalDaily Interval = "daily"

	// IntervalWeekly — раз в неделю в dayOfWeek.
	IntervalWeekly Interval = "weekly"

	// IntervalMonthly — раз в месяц в dayOfMonth.
	IntervalMonthly Interval = "monthly"
)

// Campaign — повторяющаяся push-кампания.
//
// Кампания описывает, КОГДА (interval + sendTime) и КОМУ (query) отправлять,
// а RecurrenceEngine на каждом тике гарантирует, что для ближайшего
// occurrence существует ровно один живой PushStatus (или один на вариант).
type Campaign struct {
	// ID — уникальный идентификатор кампании.
	// Используется также как соль бакетирования экспериментов.
	ID uuid.UUID `json:"id"`

	// Name — имя кампании для удобства оператора.
	Name string `json:"name,omitempty"`

	// Interval — периодичность: daily, weekly или monthly.
	// Игнорируется, если задан CronExpr.
	Interval Interval `json:"interval,omitempty"`

	// SendTime — местное время отправки "hh:mm:ss" (wall-clock,
	// в зоне каждого получателя).
	SendTime string `json:"sendTime"`

	// DayOfWeek — день недели для weekly (0 = воскресенье).
	DayOfWeek int `json:"dayOfWeek,omitempty"`

	// DayOfMonth — день месяца для monthly.
	DayOfMonth int `json:"dayOfMonth,omitempty"`

	// CronExpr — необязательное cron-выражение ("минуты часы дни месяцы дни_недели").
	// Если задано, occurrence вычисляется по нему вместо Interval.
	CronExpr string `json:"cronExpr,omitempty"`

	// Query — сериализованный предикат выборки получателей.
	Query string `json:"query"`

	// Payload — тело сообщения для кампании без вариантов.
	Payload string `json:"payload,omitempty"`

	// Variants — варианты эксперимента. Пустой список означает одну
	// 100%-ветку с Payload кампании.
	Variants []Variant `json:"variants,omitempty"`

	// Status — active или paused.
	Status CampaignState `json:"status"`

	// NextPushIDs — ссылки на последние запланированные PushStatus.
	NextPushIDs []uuid.UUID `json:"nextPushIds,omitempty"`

	// CreatedAt — время создания кампании.
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt — время последнего обновления.
	UpdatedAt time.Time `json:"updatedAt"`
}

// Variant — вариант эксперимента: доля аудитории и её payload.
type Variant struct {
	// Percent — вес варианта в процентах. Суммы весов по кампании
	// должны давать 100 (или 1.0, если веса заданы долями).
	Percent float64 `json:"percent"`

	// Payload — сериализованное тело сообщения варианта.
	Payload string `json:"payload"`
}

// EffectiveVariants возвращает варианты кампании; для кампании без
// вариантов — одну 100%-ветку с её Payload.
func (c *Campaign) EffectiveVariants() []Variant {
	if len(c.Variants) > 0 {
		return c.Variants
	}
	return []Variant{{Percent: 100, Payload: c.Payload}}
}

// IsCron возвращает true, если кампания использует cron-выражение.
func (c *Campaign) IsCron() bool {
	return c.CronExpr != ""
}
