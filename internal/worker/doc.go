// Package worker выполняет jobs — комбинации осей матрицы.
//
// # Обзор
//
// Worker — stateless компонент системы Conveyor, который выполняет
// отдельные jobs, созданные Orchestrator'ом при развёртке матрицы.
// Worker отвечает за:
//
//   - Получение jobs из очереди RabbitMQ (event-driven)
//   - Периодическую проверку queued jobs в БД (polling fallback)
//   - Создание изолированного workspace для каждого job
//   - Подъём сервисов job и гейт готовности перед шагами
//   - Последовательное выполнение шагов с учётом условий when
//   - Прерывание jobs по broadcast'у run.cancelled
//   - Отправку результата обратно в очередь jobs.completed
//
// Workers масштабируются горизонтально — несколько экземпляров
// потребляют из одной очереди jobs.ready. Внутри одного экземпляра
// параллельность ограничена слотами (WORKER_SLOTS, по умолчанию 2).
//
// # Ключевые компоненты
//
// ## Worker
//
// Основная структура, управляющая жизненным циклом.
// Создаётся через New(cfg Config) и запускается методом Start(ctx).
//
//	w := worker.New(worker.Config{
//	    JobRepo:      jobRepo,
//	    RunRepo:      runRepo,
//	    PipelineRepo: pipelineRepo,
//	    Publisher:    publisher,
//	    Conn:         mqConn,
//	    Gate:         gate.New(provisioner, logger),
//	    Logger:       logger,
//	})
//
//	if err := w.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop()
//
// # Обработка job
//
//  1. Получение job (из очереди или polling), занятие слота
//  2. Загрузка job из БД, проверка статуса QUEUED
//  3. Проверка родительского run — отменённый run не выполняется
//  4. Перевод в RUNNING, регистрация в реестре отмен
//  5. Создание workspace (временная директория, удаляется всегда)
//  6. Подъём сервисов через гейт готовности — закрытый гейт
//     фатален для job, ни один шаг не выполняется
//  7. Последовательное выполнение шагов (первый упавший прерывает
//     оставшиеся)
//  8. Фиксация результата в БД, publish jobs.completed
//
// # Классификация падений
//
// Job падает с одной из причин:
//   - SERVICE_UNAVAILABLE — гейт готовности исчерпал попытки
//   - STEP_FAILURE — шаг завершился с ненулевым кодом выхода
//   - INFRASTRUCTURE — workspace, контейнерный runtime, запуск процесса
//
// Отмена (CANCELLED) падением не считается и классификации не имеет.
// Падение job никак не влияет на братские jobs того же run.
package worker
