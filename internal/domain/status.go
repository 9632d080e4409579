package domain

// RunStatus — статус выполнения run.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ FAILED
//	          (или) → CANCELLED (из PENDING или RUNNING)
type RunStatus string

const (
	// RunStatusPending — run создан, но матрица ещё не развёрнута.
	RunStatusPending RunStatus = "PENDING"

	// RunStatusRunning — jobs выполняются.
	RunStatusRunning RunStatus = "RUNNING"

	// RunStatusSucceeded — все jobs завершились успешно.
	RunStatusSucceeded RunStatus = "SUCCEEDED"

	// RunStatusFailed — хотя бы один job упал
	// (или документ не прошёл валидацию).
	RunStatusFailed RunStatus = "FAILED"

	// RunStatusCancelled — run отменён (например, вытеснен новым
	// push в ту же ветку).
	RunStatusCancelled RunStatus = "CANCELLED"
)

// IsTerminal возвращает true, если статус финальный.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusFailed, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// JobStatus — статус выполнения job.
//
// Жизненный цикл:
//
//	QUEUED → RUNNING → SUCCEEDED
//	                 ↘ FAILED
//	         (или) → CANCELLED (из QUEUED или RUNNING)
type JobStatus string

const (
	// JobStatusQueued — job в очереди, ожидает воркера.
	JobStatusQueued JobStatus = "QUEUED"

	// JobStatusRunning — job выполняется воркером.
	JobStatusRunning JobStatus = "RUNNING"

	// JobStatusSucceeded — все шаги job завершились успешно.
	JobStatusSucceeded JobStatus = "SUCCEEDED"

	// JobStatusFailed — job упал (гейт, шаг или инфраструктура).
	JobStatusFailed JobStatus = "FAILED"

	// JobStatusCancelled — job отменён до или во время выполнения.
	JobStatusCancelled JobStatus = "CANCELLED"
)

// IsTerminal возвращает true, если статус финальный.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// FailureKind — классификация причины падения job.
//
// Ошибки job не распространяются на соседние jobs: классификация нужна
// для адресного повторного запуска только упавших комбинаций.
type FailureKind string

const (
	// FailureNone — job не падал.
	FailureNone FailureKind = ""

	// FailureServiceUnavailable — гейт готовности сервиса исчерпал
	// попытки; ни один зависимый шаг не выполнялся.
	FailureServiceUnavailable FailureKind = "SERVICE_UNAVAILABLE"

	// FailureStep — шаг завершился с ненулевым кодом выхода.
	FailureStep FailureKind = "STEP_FAILURE"

	// FailureInfrastructure — job не удалось выполнить по внешним
	// причинам (workspace, контейнерный runtime, запуск процесса).
	// Отличается от FailureStep, чтобы retry был адресным.
	FailureInfrastructure FailureKind = "INFRASTRUCTURE"
)

// StepStatus — статус одного шага внутри job.
type StepStatus string

const (
	// StepStatusSucceeded — шаг завершился с кодом 0.
	StepStatusSucceeded StepStatus = "SUCCEEDED"

	// StepStatusFailed — шаг завершился с ненулевым кодом.
	StepStatusFailed StepStatus = "FAILED"

	// StepStatusSkipped — шаг пропущен по условию when.
	StepStatusSkipped StepStatus = "SKIPPED"
)

// Verdict — итоговый вердикт run по статусам всех jobs.
//
// Success — только если каждый job SUCCEEDED. Отменённый job не
// считается падением, но Success-вердикт делает невозможным.
func Verdict(statuses []JobStatus) RunStatus {
	failed := false
	cancelled := false

	for _, s := range statuses {
		switch s {
		case JobStatusFailed:
			failed = true
		case JobStatusCancelled:
			cancelled = true
		case JobStatusSucceeded:
			// ok
		default:
			// Есть незавершённый job — вердикта ещё нет.
			return RunStatusRunning
		}
	}

	if failed {
		return RunStatusFailed
	}
	if cancelled {
		return RunStatusCancelled
	}
	return RunStatusSucceeded
}
