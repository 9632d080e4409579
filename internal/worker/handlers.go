package worker

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/gate"
	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/repo"
	"github.com/shaiso/Conveyor/internal/runner"
	"github.com/shaiso/Conveyor/internal/service"
)

// handleJobReady обрабатывает событие о новом job из очереди jobs.ready.
func (w *Worker) handleJobReady(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.JobReadyPayload](&delivery.Message)
	if err != nil {
		w.logger.Error("failed to parse job.ready payload", "error", err)
		return err
	}

	w.logger.Debug("received job.ready event",
		"job_id", payload.JobID,
		"run_id", payload.RunID,
	)

	return w.dispatch(ctx, payload.JobID)
}

// handleRunCancelled обрабатывает broadcast об отмене run.
// Отменяются контексты всех jobs этого run на данном воркере.
func (w *Worker) handleRunCancelled(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.RunCancelledPayload](&delivery.Message)
	if err != nil {
		w.logger.Error("failed to parse run.cancelled payload", "error", err)
		return err
	}

	cancelled := w.cancels.cancelRun(payload.RunID)
	if cancelled > 0 {
		w.logger.Info("cancelled running jobs",
			"run_id", payload.RunID,
			"jobs", cancelled,
		)
	}
	return nil
}

// dispatch занимает слот и выполняет job в отдельной горутине.
//
// Сообщение подтверждается сразу: job записан в БД, и при потере
// воркера его подберёт polling fallback.
func (w *Worker) dispatch(ctx context.Context, jobID uuid.UUID) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case w.slots <- struct{}{}:
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() { <-w.slots }()

		if err := w.processJob(ctx, jobID); err != nil {
			if errors.Is(err, ErrJobNotFound) || errors.Is(err, ErrJobNotQueued) || errors.Is(err, ErrRunFinished) {
				w.logger.Debug("job not processed", "job_id", jobID, "reason", err)
				return
			}
			w.logger.Error("failed to process job", "job_id", jobID, "error", err)
		}
	}()

	return nil
}

// processJob выполняет один job: workspace, сервисы, гейт, шаги.
func (w *Worker) processJob(ctx context.Context, jobID uuid.UUID) error {
	// 1. Загружаем job из БД
	job, err := w.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
		}
		return fmt.Errorf("get job: %w", err)
	}

	// 2. Проверяем статус
	if job.Status != domain.JobStatusQueued {
		return ErrJobNotQueued
	}

	// 3. Загружаем run — отменённый run не выполняем
	run, err := w.runRepo.GetByID(ctx, job.RunID)
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}
	if run.IsFinished() {
		job.MarkCancelled(nil)
		if err := w.jobRepo.Update(ctx, job); err != nil {
			return fmt.Errorf("update job to cancelled: %w", err)
		}
		w.publishCompletion(ctx, job)
		return ErrRunFinished
	}

	// 4. Загружаем документ pipeline
	version, err := w.pipelineRepo.GetVersion(ctx, run.PipelineID, run.Version)
	if err != nil {
		return fmt.Errorf("get pipeline version: %w", err)
	}
	spec := &version.Spec

	// 5. Помечаем как running
	job.MarkRunning()
	if err := w.jobRepo.Update(ctx, job); err != nil {
		return fmt.Errorf("update job to running: %w", err)
	}

	w.logger.Info("job started",
		"job_id", job.ID,
		"run_id", job.RunID,
		"key", job.Key,
	)

	// 6. Контекст job: отменяется broadcast'ом run.cancelled
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	w.cancels.register(job.RunID, job.ID, cancel)
	defer w.cancels.unregister(job.RunID, job.ID)

	// 7. Выполняем и фиксируем итог
	w.execute(jobCtx, job, run, spec)

	if err := w.jobRepo.Update(ctx, job); err != nil {
		return fmt.Errorf("update job result: %w", err)
	}

	w.publishCompletion(ctx, job)

	w.logger.Info("job finished",
		"job_id", job.ID,
		"run_id", job.RunID,
		"key", job.Key,
		"status", job.Status,
		"duration", job.Duration(),
	)

	return nil
}

// execute выполняет job целиком и помечает его терминальным статусом.
//
// Порядок: workspace → сервисы через гейт → шаги. Сервисы
// останавливаются при любом исходе, включая отмену.
func (w *Worker) execute(ctx context.Context, job *domain.Job, run *domain.Run, spec *domain.PipelineSpec) {
	// Изолированный workspace job
	workspace, err := os.MkdirTemp("", "conveyor-job-")
	if err != nil {
		job.MarkFailed(domain.FailureInfrastructure, "", fmt.Sprintf("create workspace: %v", err), nil)
		return
	}
	defer os.RemoveAll(workspace)

	// Сервисы: гейт готовности на каждый. Закрытый гейт фатален
	// для job — ни один шаг не выполняется.
	serviceEnv := make(map[string]string)
	for _, decl := range spec.Services {
		inst, report, err := w.gate.Open(ctx, decl, job.ID.String())
		w.metrics.GatePolls.WithLabelValues(decl.Name).Observe(float64(report.Attempts))

		if err != nil {
			if ctx.Err() != nil {
				job.MarkCancelled(nil)
				return
			}
			if errors.Is(err, gate.ErrExhausted) {
				job.MarkFailed(domain.FailureServiceUnavailable, "",
					fmt.Sprintf("service %s not ready after %d attempts", decl.Name, report.Attempts), nil)
				return
			}
			job.MarkFailed(domain.FailureInfrastructure, "", err.Error(), nil)
			return
		}

		defer func(inst service.Instance) {
			if err := inst.Stop(ctx); err != nil {
				w.logger.Warn("failed to stop service",
					"job_id", job.ID,
					"error", err,
				)
			}
		}(inst)

		for k, v := range inst.Env() {
			serviceEnv[k] = v
		}
	}

	// Шаги
	result := w.runner.Run(ctx, spec.Steps, job.Spec, runner.Env{
		Static:   spec.Env,
		Event:    eventEnv(run, job),
		Services: serviceEnv,
	}, workspace)

	for _, step := range result.Steps {
		w.metrics.StepDuration.
			WithLabelValues(step.Name, string(step.Status)).
			Observe(float64(step.DurationMs) / 1000)
	}

	switch {
	case result.Cancelled:
		job.MarkCancelled(result.Steps)
	case result.Failed():
		job.MarkFailed(result.FailureKind, result.FailedStep, result.Err, result.Steps)
	default:
		job.MarkSucceeded(result.Steps)
	}
}

// publishCompletion публикует событие job.completed.
func (w *Worker) publishCompletion(ctx context.Context, job *domain.Job) {
	if w.publisher == nil {
		w.logger.Warn("publisher not available, skipping job.completed publish",
			"job_id", job.ID,
		)
		return
	}

	payload := mq.JobCompletedPayload{
		JobID:       job.ID,
		RunID:       job.RunID,
		Key:         job.Key,
		Status:      string(job.Status),
		FailureKind: string(job.FailureKind),
		FailedStep:  job.FailedStep,
		Error:       job.Error,
	}

	if err := w.publisher.PublishJobCompleted(ctx, payload); err != nil {
		w.logger.Warn("failed to publish job.completed",
			"job_id", job.ID,
			"error", err,
		)
		// Не возвращаем ошибку — job обновлён в БД, оркестратор подхватит через polling
	}
}

// eventEnv собирает переменные окружения события для шагов job.
func eventEnv(run *domain.Run, job *domain.Job) map[string]string {
	env := map[string]string{
		"CI":               "true",
		"CONVEYOR_EVENT":   string(run.Event.Kind),
		"CONVEYOR_RUN_ID":  run.ID.String(),
		"CONVEYOR_JOB_ID":  job.ID.String(),
		"CONVEYOR_JOB_KEY": job.Key,
	}
	if run.Event.Ref != "" {
		env["CONVEYOR_REF"] = run.Event.Ref
	}
	if run.Event.Commit != "" {
		env["CONVEYOR_COMMIT"] = run.Event.Commit
	}
	return env
}
