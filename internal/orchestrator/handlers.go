package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/engine"
	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/repo"
)

// handleRunCreated обрабатывает событие о новом run.
func (o *Orchestrator) handleRunCreated(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.RunCreatedPayload](&delivery.Message)
	if err != nil {
		o.logger.Error("failed to parse run.created payload", "error", err)
		return err
	}

	o.logger.Debug("received run.created event", "run_id", payload.RunID)

	if o.isRunActive(payload.RunID) {
		o.logger.Debug("run already active, skipping", "run_id", payload.RunID)
		return nil
	}

	if err := o.processRun(ctx, payload.RunID); err != nil {
		if errors.Is(err, ErrRunNotPending) || errors.Is(err, ErrRunAlreadyActive) {
			o.logger.Debug("run not processed", "run_id", payload.RunID, "reason", err)
			return nil
		}
		o.logger.Error("failed to process run", "run_id", payload.RunID, "error", err)
		return err
	}

	return nil
}

// handleJobCompleted обрабатывает событие о завершённом job.
func (o *Orchestrator) handleJobCompleted(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.JobCompletedPayload](&delivery.Message)
	if err != nil {
		o.logger.Error("failed to parse job.completed payload", "error", err)
		return err
	}

	o.logger.Debug("received job.completed event",
		"job_id", payload.JobID,
		"run_id", payload.RunID,
		"key", payload.Key,
		"status", payload.Status,
	)

	if err := o.processJobCompleted(ctx, payload); err != nil {
		o.logger.Error("failed to process job completion",
			"job_id", payload.JobID,
			"run_id", payload.RunID,
			"error", err,
		)
		return err
	}

	return nil
}

// handleRunCancelled обрабатывает broadcast об отмене run.
func (o *Orchestrator) handleRunCancelled(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.RunCancelledPayload](&delivery.Message)
	if err != nil {
		o.logger.Error("failed to parse run.cancelled payload", "error", err)
		return err
	}

	o.logger.Info("received run.cancelled event", "run_id", payload.RunID)

	if err := o.processRunCancelled(ctx, payload.RunID); err != nil {
		o.logger.Error("failed to process run cancellation",
			"run_id", payload.RunID,
			"error", err,
		)
		return err
	}

	return nil
}

// processRun разворачивает матрицу нового run и публикует jobs.
func (o *Orchestrator) processRun(ctx context.Context, runID uuid.UUID) error {
	// 1. Загружаем run из БД
	run, err := o.runRepo.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return fmt.Errorf("get run: %w", err)
	}

	// 2. Проверяем статус
	if run.Status != domain.RunStatusPending {
		return ErrRunNotPending
	}

	// 3. Загружаем версию pipeline
	version, err := o.pipelineRepo.GetVersion(ctx, run.PipelineID, run.Version)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return o.failRun(ctx, run, fmt.Sprintf("pipeline version not found: %s v%d", run.PipelineID, run.Version))
		}
		return fmt.Errorf("get pipeline version: %w", err)
	}

	spec := &version.Spec

	// 4. Валидация документа.
	// Ошибка конфигурации фатальна для всего run: ни один job не создаётся.
	if err := engine.Validate(spec); err != nil {
		return o.failRun(ctx, run, fmt.Sprintf("invalid pipeline document: %v", err))
	}

	// 5. Развёртка матрицы
	jobSpecs, err := engine.Expand(&spec.Matrix)
	if err != nil {
		return o.failRun(ctx, run, fmt.Sprintf("matrix expansion failed: %v", err))
	}
	if len(jobSpecs) == 0 {
		return o.failRun(ctx, run, "matrix expansion produced no jobs: all combinations excluded")
	}

	// 6. Создаём RunState и добавляем в активные
	state := NewRunState(run, version)
	if err := o.addActiveRun(state); err != nil {
		return err
	}

	// 7. Переводим run в RUNNING
	run.MarkRunning()
	if err := o.runRepo.Update(ctx, run); err != nil {
		o.removeActiveRun(runID)
		return fmt.Errorf("update run to running: %w", err)
	}

	o.metrics.MatrixJobs.Observe(float64(len(jobSpecs)))
	o.logger.Info("run started",
		"run_id", runID,
		"pipeline_id", run.PipelineID,
		"version", run.Version,
		"jobs", len(jobSpecs),
	)

	// 8. Создаём и публикуем jobs в порядке развёртки
	for _, jobSpec := range jobSpecs {
		if err := o.dispatchJob(ctx, state, jobSpec); err != nil {
			o.logger.Error("failed to dispatch job",
				"run_id", runID,
				"key", jobSpec.Key(),
				"error", err,
			)
			// Продолжаем с остальными комбинациями
		}
	}

	return nil
}

// dispatchJob создаёт job для комбинации и публикует его воркерам.
func (o *Orchestrator) dispatchJob(ctx context.Context, state *RunState, spec domain.JobSpec) error {
	job := &domain.Job{
		ID:        uuid.New(),
		RunID:     state.RunID(),
		Spec:      spec,
		Key:       spec.Key(),
		Status:    domain.JobStatusQueued,
		CreatedAt: time.Now(),
	}

	if err := o.jobRepo.Create(ctx, job); err != nil {
		return fmt.Errorf("create job: %w", err)
	}

	state.RegisterJob(job.ID, job.Key, job.Status)

	if err := o.publisher.PublishJobReady(ctx, job.ID, job.RunID); err != nil {
		o.logger.Warn("failed to publish job.ready",
			"job_id", job.ID,
			"run_id", state.RunID(),
			"error", err,
		)
		// Job создан в БД — воркер подберёт его через polling
	}

	o.logger.Debug("job dispatched",
		"job_id", job.ID,
		"run_id", state.RunID(),
		"key", job.Key,
	)

	return nil
}

// processJobCompleted обрабатывает завершение job.
func (o *Orchestrator) processJobCompleted(ctx context.Context, payload mq.JobCompletedPayload) error {
	// 1. Получаем активный RunState
	state := o.getActiveRun(payload.RunID)

	// Если run не в памяти, пытаемся восстановить
	if state == nil {
		var err error
		state, err = o.restoreRunState(ctx, payload.RunID)
		if err != nil {
			return fmt.Errorf("restore run state: %w", err)
		}
		if state == nil {
			// Run уже завершён или не существует
			o.logger.Debug("run not active and cannot restore", "run_id", payload.RunID)
			return nil
		}
	}

	// 2. Применяем статус job к агрегату
	status := domain.JobStatus(payload.Status)
	state.Apply(payload.JobID, status)
	o.metrics.JobsFinished.WithLabelValues(payload.Status, payload.FailureKind).Inc()

	if status == domain.JobStatusFailed {
		o.logger.Warn("job failed",
			"run_id", payload.RunID,
			"key", payload.Key,
			"failure_kind", payload.FailureKind,
			"failed_step", payload.FailedStep,
			"error", payload.Error,
		)
	} else {
		o.logger.Debug("job finished",
			"run_id", payload.RunID,
			"key", payload.Key,
			"status", payload.Status,
		)
	}

	// 3. Если все jobs отчитались — выносим вердикт
	if state.IsComplete() {
		return o.finalizeRun(ctx, state)
	}

	return nil
}

// processRunCancelled отменяет run: QUEUED jobs отменяются сразу,
// RUNNING jobs прерывают воркеры (они слушают тот же broadcast).
func (o *Orchestrator) processRunCancelled(ctx context.Context, runID uuid.UUID) error {
	run, err := o.runRepo.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("get run: %w", err)
	}

	if run.IsFinished() {
		return nil
	}

	state := o.getActiveRun(runID)
	if state == nil {
		state, err = o.restoreRunState(ctx, runID)
		if err != nil {
			return fmt.Errorf("restore run state: %w", err)
		}
	}

	// Отменяем jobs, которые ещё не взял ни один воркер
	jobs, err := o.jobRepo.ListByRunID(ctx, runID)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}

	for i := range jobs {
		job := &jobs[i]
		if job.Status != domain.JobStatusQueued {
			continue
		}

		job.MarkCancelled(nil)
		if err := o.jobRepo.Update(ctx, job); err != nil {
			o.logger.Error("failed to cancel queued job",
				"job_id", job.ID,
				"run_id", runID,
				"error", err,
			)
			continue
		}
		if state != nil {
			state.Apply(job.ID, domain.JobStatusCancelled)
		}
	}

	// RUNNING jobs отчитаются CANCELLED сами — ждём их завершения.
	if state != nil && state.IsComplete() {
		return o.finalizeRun(ctx, state)
	}

	// Run без jobs (отмена до развёртки) — закрываем сразу
	if len(jobs) == 0 {
		run.MarkCancelled()
		if err := o.runRepo.Update(ctx, run); err != nil {
			return fmt.Errorf("update run to cancelled: %w", err)
		}
		o.removeActiveRun(runID)
		o.metrics.RunsFinished.WithLabelValues(string(domain.RunStatusCancelled)).Inc()
		o.logger.Info("run cancelled before expansion", "run_id", runID)
	}

	return nil
}

// finalizeRun выносит вердикт и закрывает run.
func (o *Orchestrator) finalizeRun(ctx context.Context, state *RunState) error {
	run := state.Run
	verdict := state.Verdict()

	switch verdict {
	case domain.RunStatusSucceeded:
		run.MarkSucceeded()
		o.logger.Info("run succeeded",
			"run_id", run.ID,
			"duration", run.Duration(),
		)

	case domain.RunStatusCancelled:
		run.MarkCancelled()
		o.logger.Info("run cancelled",
			"run_id", run.ID,
			"duration", run.Duration(),
		)

	case domain.RunStatusFailed:
		failedKeys := state.FailedKeys()
		errMsg := fmt.Sprintf("jobs failed: %v", failedKeys)
		run.MarkFailed(errMsg)
		o.logger.Warn("run failed",
			"run_id", run.ID,
			"failed_jobs", failedKeys,
			"duration", run.Duration(),
		)

	default:
		// Не все jobs терминальны — вызывающий проверяет IsComplete
		return nil
	}

	if err := o.runRepo.Update(ctx, run); err != nil {
		return fmt.Errorf("update run status: %w", err)
	}

	o.removeActiveRun(run.ID)
	o.metrics.RunsFinished.WithLabelValues(string(verdict)).Inc()

	return nil
}

// failRun переводит run в статус FAILED без создания jobs.
// Используется для фатальных ошибок конфигурации.
func (o *Orchestrator) failRun(ctx context.Context, run *domain.Run, errMsg string) error {
	run.MarkFailed(errMsg)

	if err := o.runRepo.Update(ctx, run); err != nil {
		return fmt.Errorf("update run to failed: %w", err)
	}

	o.metrics.RunsFinished.WithLabelValues(string(domain.RunStatusFailed)).Inc()
	o.logger.Warn("run failed early",
		"run_id", run.ID,
		"error", errMsg,
	)

	return fmt.Errorf("run failed: %s", errMsg)
}

// restoreRunState восстанавливает RunState из БД.
// Используется когда job.completed приходит для run, которого нет в памяти
// (после рестарта Orchestrator).
func (o *Orchestrator) restoreRunState(ctx context.Context, runID uuid.UUID) (*RunState, error) {
	run, err := o.runRepo.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil // Run не существует
		}
		return nil, fmt.Errorf("get run: %w", err)
	}

	// Если run уже завершён — ничего не делаем
	if run.IsFinished() {
		return nil, nil
	}

	version, err := o.pipelineRepo.GetVersion(ctx, run.PipelineID, run.Version)
	if err != nil {
		return nil, fmt.Errorf("get pipeline version: %w", err)
	}

	state := NewRunState(run, version)

	jobs, err := o.jobRepo.ListByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	state.RestoreFromJobs(jobs)

	if err := o.addActiveRun(state); err != nil {
		if errors.Is(err, ErrRunAlreadyActive) {
			// Кто-то уже восстановил — возвращаем его
			return o.getActiveRun(runID), nil
		}
		return nil, err
	}

	o.logger.Info("run state restored",
		"run_id", runID,
		"stats", state.Stats(),
	)

	return state, nil
}
