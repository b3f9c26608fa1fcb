// Package ledger ведёт идемпотентную бухгалтерию отправок PushStatus.
//
// Три операции:
//   - Claim          — пометить offset взятым до публикации (нулевые инкременты)
//   - RecordResults  — учесть результаты доставки батча
//   - Finalize       — выставить терминальный статус, когда запись завершена
//
// Все мутации — атомарные частичные инкременты полей, никогда не
// перезапись всей записи: это и есть механизм, делающий конкурентные
// и повторные сканы безопасными.
package ledger
