package campaign

import (
	"testing"
	"time"

	"github.com/shaiso/Megaphone/internal/domain"
)

// Четверг, 10 августа 2017, 19:18:07 UTC.
var augustNow = time.Date(2017, 8, 10, 19, 18, 7, 309e6, time.UTC)

func wantTime(t *testing.T, got time.Time, year int, month time.Month, day, hour, minute int) {
	t.Helper()
	want := time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("next push time = %v, want %v", got, want)
	}
}

// --- Monthly ---

func TestNextPushTime_MonthlyToday(t *testing.T) {
	c := &domain.Campaign{
		Interval:   domain.IntervalMonthly,
		SendTime:   "19:30:00",
		DayOfMonth: 10,
	}

	got, err := NextPushTime(c, augustNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantTime(t, got, 2017, time.August, 10, 19, 30)
}

func TestNextPushTime_MonthlyRollsToNextMonth(t *testing.T) {
	c := &domain.Campaign{
		Interval:   domain.IntervalMonthly,
		SendTime:   "19:30:00",
		DayOfMonth: 4,
	}

	got, err := NextPushTime(c, augustNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantTime(t, got, 2017, time.September, 4, 19, 30)
}

func TestNextPushTime_MonthlyDecemberRollsToJanuary(t *testing.T) {
	c := &domain.Campaign{
		Interval:   domain.IntervalMonthly,
		SendTime:   "09:00:00",
		DayOfMonth: 4,
	}

	now := time.Date(2017, 12, 20, 10, 0, 0, 0, time.UTC)
	got, err := NextPushTime(c, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantTime(t, got, 2018, time.January, 4, 9, 0)
}

// --- Weekly ---

func TestNextPushTime_WeeklySameDay(t *testing.T) {
	// 10 августа 2017 — четверг (weekday 4), слот 19:30 ещё впереди.
	c := &domain.Campaign{
		Interval:  domain.IntervalWeekly,
		SendTime:  "19:30:00",
		DayOfWeek: 4,
	}

	got, err := NextPushTime(c, augustNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantTime(t, got, 2017, time.August, 10, 19, 30)
}

func TestNextPushTime_WeeklyLaterThisWeek(t *testing.T) {
	// Понедельник (1) после четверга — через 4 дня.
	c := &domain.Campaign{
		Interval:  domain.IntervalWeekly,
		SendTime:  "19:30:00",
		DayOfWeek: 1,
	}

	got, err := NextPushTime(c, augustNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantTime(t, got, 2017, time.August, 14, 19, 30)
}

func TestNextPushTime_WeeklySlotPassed(t *testing.T) {
	// Слот сегодняшнего четверга в 05:00 уже за пределами 12-часового пола.
	c := &domain.Campaign{
		Interval:  domain.IntervalWeekly,
		SendTime:  "05:00:00",
		DayOfWeek: 4,
	}

	got, err := NextPushTime(c, augustNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantTime(t, got, 2017, time.August, 17, 5, 0)
}

// --- Daily ---

func TestNextPushTime_Daily(t *testing.T) {
	c := &domain.Campaign{
		Interval: domain.IntervalDaily,
		SendTime: "19:30:00",
	}

	got, err := NextPushTime(c, augustNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantTime(t, got, 2017, time.August, 10, 19, 30)
}

func TestNextPushTime_DailyFloorDate(t *testing.T) {
	// Рано утром 12-часовой пол ещё на вчерашней дате: вчерашний вечерний
	// occurrence остаётся достижимым для догоняющего скана.
	c := &domain.Campaign{
		Interval: domain.IntervalDaily,
		SendTime: "19:30:00",
	}

	now := time.Date(2017, 8, 10, 3, 0, 0, 0, time.UTC)
	got, err := NextPushTime(c, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantTime(t, got, 2017, time.August, 9, 19, 30)
}

// --- Cron ---

func TestNextPushTime_Cron(t *testing.T) {
	c := &domain.Campaign{CronExpr: "30 19 * * *"}

	got, err := NextPushTime(c, augustNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantTime(t, got, 2017, time.August, 10, 19, 30)
}

func TestNextPushTime_CronOverridesInterval(t *testing.T) {
	c := &domain.Campaign{
		Interval:   domain.IntervalMonthly,
		SendTime:   "09:00:00",
		DayOfMonth: 1,
		CronExpr:   "0 12 * * 1",
	}

	// Ближайший понедельник 12:00 после пола (10 августа 07:18) — 14 августа.
	got, err := NextPushTime(c, augustNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantTime(t, got, 2017, time.August, 14, 12, 0)
}

func TestNextPushTime_InvalidCron(t *testing.T) {
	c := &domain.Campaign{CronExpr: "not a cron"}
	if _, err := NextPushTime(c, augustNow); err == nil {
		t.Error("expected error for invalid cron expression")
	}
}

func TestNextPushTime_InvalidSendTime(t *testing.T) {
	c := &domain.Campaign{Interval: domain.IntervalDaily, SendTime: "25:99"}
	if _, err := NextPushTime(c, augustNow); err == nil {
		t.Error("expected error for invalid sendTime")
	}
}

func TestNextPushTime_UnknownInterval(t *testing.T) {
	c := &domain.Campaign{Interval: "hourly", SendTime: "09:00:00"}
	if _, err := NextPushTime(c, augustNow); err == nil {
		t.Error("expected error for unknown interval")
	}
}

func TestValidateCronExpr(t *testing.T) {
	if err := ValidateCronExpr("30 19 * * *"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateCronExpr("banana"); err == nil {
		t.Error("expected error for invalid expression")
	}
}
