package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/engine"
)

// Result — итог выполнения шагов одного job.
type Result struct {
	// Steps — упорядоченные результаты выполненных шагов.
	// Шаги после первого упавшего в список не попадают.
	Steps []domain.StepResult

	// FailedStep — имя упавшего шага (пусто при успехе).
	FailedStep string

	// FailureKind — классификация падения (пусто при успехе).
	FailureKind domain.FailureKind

	// Cancelled — выполнение прервано отменой, а не падением.
	Cancelled bool

	// Err — текст ошибки для отчёта.
	Err string
}

// Failed возвращает true, если job должен быть помечен FAILED.
func (r Result) Failed() bool {
	return r.FailureKind != domain.FailureNone
}

// Env — источники окружения шагов.
//
// Всё, что шаг видит, передаётся сюда явно: никакого общего изменяемого
// состояния между jobs.
type Env struct {
	// Static — статические переменные документа pipeline.
	Static map[string]string

	// Event — переменные события (COMMIT_SHA, REF и т.п.).
	Event map[string]string

	// Services — адреса поднятых сервисов.
	Services map[string]string
}

// Runner выполняет упорядоченный список шагов для одной комбинации осей.
type Runner struct {
	executor Executor
	logger   *slog.Logger
}

// New создаёт Runner.
func New(executor Executor, logger *slog.Logger) *Runner {
	if executor == nil {
		executor = ShellExecutor{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{executor: executor, logger: logger}
}

// Run выполняет шаги последовательно во workspace job.
//
// Шаг с несовпавшим условием when записывается как SKIPPED и не
// выполняется. Первый ненулевой код выхода прерывает оставшиеся шаги.
func (r *Runner) Run(ctx context.Context, steps []domain.StepDef, spec domain.JobSpec, env Env, workspace string) Result {
	result := Result{Steps: make([]domain.StepResult, 0, len(steps))}

	for i := range steps {
		step := &steps[i]

		if ctx.Err() != nil {
			result.Cancelled = true
			result.Err = ctx.Err().Error()
			return result
		}

		if !engine.ShouldRun(step, spec) {
			result.Steps = append(result.Steps, domain.StepResult{
				Name:   step.Name,
				Status: domain.StepStatusSkipped,
			})
			r.logger.Debug("step skipped", "step", step.Name, "job", spec.Key())
			continue
		}

		started := time.Now()
		exitCode, err := r.executor.Execute(ctx, *step, stepEnv(step, spec, env), workspace)
		elapsed := time.Since(started)

		if ctx.Err() != nil {
			// Процесс был убит отменой — не считаем это падением шага.
			result.Cancelled = true
			result.Err = ctx.Err().Error()
			return result
		}

		if err != nil {
			result.FailedStep = step.Name
			result.FailureKind = domain.FailureInfrastructure
			result.Err = fmt.Sprintf("step %s: %v", step.Name, err)
			r.logger.Error("step infrastructure failure",
				"step", step.Name,
				"job", spec.Key(),
				"error", err,
			)
			return result
		}

		status := domain.StepStatusSucceeded
		if exitCode != 0 {
			status = domain.StepStatusFailed
		}

		result.Steps = append(result.Steps, domain.StepResult{
			Name:       step.Name,
			Status:     status,
			ExitCode:   exitCode,
			DurationMs: elapsed.Milliseconds(),
		})

		if exitCode != 0 {
			result.FailedStep = step.Name
			result.FailureKind = domain.FailureStep
			result.Err = fmt.Sprintf("step %s exited with code %d", step.Name, exitCode)
			r.logger.Warn("step failed",
				"step", step.Name,
				"job", spec.Key(),
				"exit_code", exitCode,
				"duration", elapsed,
			)
			return result
		}

		r.logger.Debug("step succeeded",
			"step", step.Name,
			"job", spec.Key(),
			"duration", elapsed,
		)
	}

	return result
}

// stepEnv собирает окружение одного шага.
// Карта создаётся заново для каждого шага: мутации не переживают шаг.
// Порядок наложения: статические → событие → оси → сервисы → env шага.
func stepEnv(step *domain.StepDef, spec domain.JobSpec, env Env) map[string]string {
	merged := make(map[string]string)

	for k, v := range env.Static {
		merged[k] = v
	}
	for k, v := range env.Event {
		merged[k] = v
	}
	for k, v := range spec.Env() {
		merged[k] = v
	}
	for k, v := range env.Services {
		merged[k] = v
	}
	for k, v := range step.Env {
		merged[k] = v
	}

	return merged
}
