package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventKind — вид события, запустившего run.
type EventKind string

const (
	// EventPush — push в отслеживаемую ветку.
	EventPush EventKind = "push"

	// EventPullRequest — открытие или обновление pull request.
	EventPullRequest EventKind = "pull_request"

	// EventManual — запуск вручную через API/CLI.
	EventManual EventKind = "manual"

	// EventSchedule — запуск по расписанию.
	EventSchedule EventKind = "schedule"
)

// TriggerEvent — событие, породившее run.
type TriggerEvent struct {
	// Kind — вид события.
	Kind EventKind `json:"kind"`

	// Ref — ветка или ссылка (например, "refs/heads/main").
	Ref string `json:"ref,omitempty"`

	// Commit — SHA коммита для checkout.
	Commit string `json:"commit,omitempty"`
}

// Run — экземпляр выполнения pipeline.
//
// Run создаётся когда:
//   - Приходит push/pull_request событие, совпавшее с триггерами
//   - Scheduler создаёт run по расписанию
//   - Пользователь запускает pipeline вручную (через API/CLI)
//
// Каждый run выполняет конкретную версию pipeline и владеет набором
// jobs — по одному на комбинацию осей матрицы.
type Run struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// PipelineID — ссылка на pipeline.
	PipelineID uuid.UUID `json:"pipeline_id"`

	// Version — версия pipeline, которая выполняется.
	Version int `json:"version"`

	// Status — текущий статус выполнения.
	Status RunStatus `json:"status"`

	// Event — событие, породившее run.
	Event TriggerEvent `json:"event"`

	// StartedAt — время начала выполнения (когда статус стал RUNNING).
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Error — текст ошибки, если run завершился FAILED до развёртки
	// матрицы (например, документ не прошёл валидацию).
	Error string `json:"error,omitempty"`

	// IdempotencyKey — ключ идемпотентности.
	// Для scheduled runs: "{schedule_id}_{next_due_at}".
	// Для событий: "{kind}_{commit}".
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	// CreatedAt — время создания run.
	CreatedAt time.Time `json:"created_at"`
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// IsFinished возвращает true, если run завершён (в любом статусе).
func (r *Run) IsFinished() bool {
	return r.Status.IsTerminal()
}

// MarkRunning переводит run в статус RUNNING.
func (r *Run) MarkRunning() {
	now := time.Now()
	r.Status = RunStatusRunning
	r.StartedAt = &now
}

// MarkSucceeded переводит run в статус SUCCEEDED.
func (r *Run) MarkSucceeded() {
	now := time.Now()
	r.Status = RunStatusSucceeded
	r.FinishedAt = &now
}

// MarkFailed переводит run в статус FAILED с ошибкой.
func (r *Run) MarkFailed(err string) {
	now := time.Now()
	r.Status = RunStatusFailed
	r.FinishedAt = &now
	r.Error = err
}

// MarkCancelled переводит run в статус CANCELLED.
func (r *Run) MarkCancelled() {
	now := time.Now()
	r.Status = RunStatusCancelled
	r.FinishedAt = &now
}
