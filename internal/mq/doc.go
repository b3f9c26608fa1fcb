// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация батчей в очередь
//   - consumer.go   — потребление сообщений из очередей
//
// Типы сообщений:
//   - push.batch — батч получателей, готовый к доставке
//
// Exchanges:
//   - megaphone.pushes — батчи на доставку
//   - megaphone.dlq    — dead letter queue
//
// Гарантия доставки — at-least-once, порядок между очередями не
// гарантируется; идемпотентность обеспечивается ledger-ом.
package mq
