// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go          — Handler с DI (репозитории, publisher, logger)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (logging, recovery)
//   - response.go         — унифицированные JSON-ответы и обработка ошибок
//   - dto.go              — Data Transfer Objects (request/response)
//   - pipeline_handler.go — обработчики для /pipelines
//   - event_handler.go    — приём push/pull_request событий
//   - run_handler.go      — обработчики для /runs (включая отчёт и отмену)
//   - schedule_handler.go — обработчики для /schedules
//
// API предоставляет REST endpoints для управления pipelines, runs
// и schedules, а также входную точку для событий репозитория.
package api
