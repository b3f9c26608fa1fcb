// Package campaign реализует рекуррентность push-кампаний.
//
// Структура:
//   - recurrence.go — вычисление следующего occurrence (daily/weekly/monthly/cron)
//   - engine.go     — идемпотентное создание PushStatus на occurrence,
//     чистка дубликатов от конкурентных планировщиков
//
// ScheduleNext безопасно вызывать на каждом тике: повторный вызов внутри
// одного occurrence возвращает nil и не создаёт записей.
package campaign
