// Package schedule решает, какие offsets записи PushStatus due прямо сейчас.
//
// Все функции чистые: (запись, now, снимок offsets.Index) → work items.
// Побочных эффектов нет — идемпотентность обеспечивает вызывающая сторона,
// записывая claim (см. internal/ledger) строго до публикации.
package schedule
