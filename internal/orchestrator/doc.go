// Package orchestrator управляет выполнением runs.
//
// Orchestrator отвечает за:
//   - Получение новых runs из очереди RabbitMQ
//   - Валидацию документа pipeline и развёртку матрицы
//   - Создание job на каждую комбинацию осей (fan-out)
//   - Сбор терминальных статусов jobs
//   - Отмену runs (broadcast на воркеры + отмена queued jobs)
//   - Финализацию run (SUCCEEDED/FAILED/CANCELLED)
//
// Упавший job никогда не прерывает братские jobs: вердикт выносится
// только после того, как отчитается каждая комбинация матрицы.
package orchestrator
