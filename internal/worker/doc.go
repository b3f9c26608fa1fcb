// Package worker реализует доставку опубликованных батчей.
//
// Worker потребляет сообщения push.batch из RabbitMQ, разрешает device
// tokens получателей, отправляет батч через Transmitter и записывает
// по-получательные результаты в ledger.
//
// Структура:
//   - worker.go      — consumer и учёт результатов
//   - transmitter.go — интерфейс Transmitter и HTTP-шлюз
package worker
