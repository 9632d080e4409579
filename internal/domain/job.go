package domain

import (
	"time"

	"github.com/google/uuid"
)

// Job — одна комбинация осей матрицы внутри run.
//
// Job создаётся Orchestrator'ом при развёртке матрицы и выполняется
// Worker'ом. Jobs независимы: никакого общего изменяемого состояния,
// каждый job владеет своим workspace и своими сервисами.
type Job struct {
	// ID — уникальный идентификатор job.
	ID uuid.UUID `json:"id"`

	// RunID — ссылка на родительский run.
	RunID uuid.UUID `json:"run_id"`

	// Spec — комбинация значений осей. Неизменяема после развёртки.
	Spec JobSpec `json:"spec"`

	// Key — детерминированный ключ комбинации (копия Spec.Key()
	// для удобства запросов и отчётов).
	Key string `json:"key"`

	// Status — текущий статус job.
	Status JobStatus `json:"status"`

	// FailureKind — классификация причины падения (пусто при успехе).
	FailureKind FailureKind `json:"failure_kind,omitempty"`

	// FailedStep — имя шага, на котором job упал (для STEP_FAILURE).
	FailedStep string `json:"failed_step,omitempty"`

	// Steps — упорядоченные результаты выполненных шагов.
	Steps []StepResult `json:"steps,omitempty"`

	// Error — текст ошибки при падении.
	Error string `json:"error,omitempty"`

	// StartedAt — время начала выполнения.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// CreatedAt — время создания job.
	CreatedAt time.Time `json:"created_at"`
}

// StepResult — результат выполнения одного шага.
type StepResult struct {
	// Name — имя шага.
	Name string `json:"name"`

	// Status — статус шага.
	Status StepStatus `json:"status"`

	// ExitCode — код выхода внешнего процесса.
	// 0 для успешных и пропущенных шагов.
	ExitCode int `json:"exit_code"`

	// DurationMs — продолжительность выполнения в миллисекундах.
	DurationMs int64 `json:"duration_ms"`
}

// Duration возвращает продолжительность выполнения job.
func (j *Job) Duration() time.Duration {
	if j.StartedAt == nil || j.FinishedAt == nil {
		return 0
	}
	return j.FinishedAt.Sub(*j.StartedAt)
}

// IsFinished возвращает true, если job завершён.
func (j *Job) IsFinished() bool {
	return j.Status.IsTerminal()
}

// MarkRunning переводит job в статус RUNNING.
func (j *Job) MarkRunning() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
}

// MarkSucceeded переводит job в статус SUCCEEDED с результатами шагов.
func (j *Job) MarkSucceeded(steps []StepResult) {
	now := time.Now()
	j.Status = JobStatusSucceeded
	j.FinishedAt = &now
	j.Steps = steps
}

// MarkFailed переводит job в статус FAILED с классификацией причины.
func (j *Job) MarkFailed(kind FailureKind, failedStep, errMsg string, steps []StepResult) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.FinishedAt = &now
	j.FailureKind = kind
	j.FailedStep = failedStep
	j.Error = errMsg
	j.Steps = steps
}

// MarkCancelled переводит job в статус CANCELLED.
// Частичные результаты шагов сохраняются для отчёта.
func (j *Job) MarkCancelled(steps []StepResult) {
	now := time.Now()
	j.Status = JobStatusCancelled
	j.FinishedAt = &now
	j.Steps = steps
}
