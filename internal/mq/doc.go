// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — соединение с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений
//   - consumer.go   — потребление сообщений
//
// Типы сообщений:
//   - run.created    — новый run ожидает развёртки матрицы
//   - job.ready      — job готов к выполнению воркером
//   - job.completed  — job завершён
//   - run.cancelled  — run отменён (broadcast всем воркерам)
//
// Exchanges:
//   - conveyor.runs    — события runs
//   - conveyor.jobs    — события jobs
//   - conveyor.control — fanout для отмены (каждый воркер со своей очередью)
//   - conveyor.dlq     — dead letter queue
package mq
