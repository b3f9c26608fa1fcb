// Package domain содержит основные типы Megaphone.
//
// Типы:
//   - PushStatus — запись о запланированном push-уведомлении (главный
//     разделяемый мутабельный ресурс системы)
//   - Campaign, Variant — повторяющиеся кампании и варианты экспериментов
//   - PushWorkItem, PushBatch — эфемерные единицы работы scan loop
//   - UTCOffset — ключ offset (минуты к западу от UTC)
//
// Пакет не зависит от других пакетов проекта.
package domain
