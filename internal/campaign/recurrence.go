package campaign

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/Megaphone/internal/domain"
)

// occurrenceFloor — насколько назад от now опускается пол при вычислении
// следующего occurrence. Без него скан, пришедший чуть позже sendTime,
// перескочил бы через уже неминуемый, но ещё не наступивший occurrence.
const occurrenceFloor = 12 * time.Hour

// cronParser — парсер cron-выражений (минуты, часы, дни, месяцы, дни недели).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NextPushTime вычисляет следующее wall-clock время отправки кампании.
//
// now трактуется как UTC-представление wall-clock часов; результат — тоже
// wall-clock момент (поля в UTC), который затем сериализуется без зоны.
func NextPushTime(c *domain.Campaign, now time.Time) (time.Time, error) {
	floor := now.UTC().Add(-occurrenceFloor)

	if c.IsCron() {
		sched, err := cronParser.Parse(c.CronExpr)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse cron expression %q: %w", c.CronExpr, err)
		}
		return sched.Next(floor).UTC(), nil
	}

	sendTime, err := time.Parse("15:04:05", c.SendTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse sendTime %q: %w", c.SendTime, err)
	}

	pushTime := time.Date(
		floor.Year(), floor.Month(), floor.Day(),
		sendTime.Hour(), sendTime.Minute(), sendTime.Second(), 0,
		time.UTC,
	)

	switch c.Interval {
	case domain.IntervalMonthly:
		pushTime = time.Date(
			pushTime.Year(), pushTime.Month(), c.DayOfMonth,
			pushTime.Hour(), pushTime.Minute(), pushTime.Second(), 0,
			time.UTC,
		)
		if pushTime.Before(floor) {
			// Следующий месяц; декабрь нормализуется в январь следующего года.
			pushTime = time.Date(
				pushTime.Year(), pushTime.Month()+1, c.DayOfMonth,
				pushTime.Hour(), pushTime.Minute(), pushTime.Second(), 0,
				time.UTC,
			)
		}
		return pushTime, nil

	case domain.IntervalWeekly:
		delta := c.DayOfWeek - int(floor.Weekday())
		if delta < 0 {
			delta += 7
		}
		pushTime = pushTime.AddDate(0, 0, delta)
		if delta == 0 && pushTime.Before(floor) {
			// Слот сегодняшнего дня недели уже прошёл.
			pushTime = pushTime.AddDate(0, 0, 7)
		}
		return pushTime, nil

	case domain.IntervalDaily:
		return pushTime, nil

	default:
		return time.Time{}, fmt.Errorf("unknown campaign interval %q", c.Interval)
	}
}

// ValidateCronExpr проверяет валидность cron-выражения кампании.
func ValidateCronExpr(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}
