// Package offsets строит индекс зона ↔ UTC-offset на заданный момент времени.
//
// Структура:
//   - index.go  — иммутабельный снимок Index и его вычисление
//   - keeper.go — владелец снимка с периодическим атомарным обновлением
//   - zones.go  — список IANA-зон, по которым строится индекс
//
// Offsets меняются на переходах DST, поэтому Keeper пересобирает снимок
// раз в час. Устаревание короче окна catch-up — принятая ограниченная
// неточность, не ошибка.
package offsets
