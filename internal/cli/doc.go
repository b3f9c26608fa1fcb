// Package cli реализует команды megaphone CLI.
//
// CLI работает напрямую с хранилищем (pgx-репозитории), без промежуточного
// API: инструмент оператора, живущий рядом с планировщиком.
//
// Структура:
//   - store.go    — подключение к БД и доступ к репозиториям
//   - campaign.go — команды управления кампаниями
//   - push.go     — команды просмотра записей PushStatus
//   - output.go   — табличный/JSON вывод
package cli
