// Package telemetry обеспечивает наблюдаемость системы.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики (runs, jobs, гейты, шаги)
//
// Все процессы (api, orchestrator, worker, scheduler) используют
// единый формат логирования и экспортируют метрики на /metrics.
package telemetry
