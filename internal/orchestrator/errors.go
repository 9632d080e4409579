package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrRunNotFound — run не найден в БД.
	ErrRunNotFound = errors.New("run not found")

	// ErrPipelineNotFound — pipeline не найден.
	ErrPipelineNotFound = errors.New("pipeline not found")

	// ErrVersionNotFound — версия pipeline не найдена.
	ErrVersionNotFound = errors.New("pipeline version not found")

	// ErrRunAlreadyActive — run уже обрабатывается.
	ErrRunAlreadyActive = errors.New("run already being processed")

	// ErrRunNotPending — run не в статусе PENDING.
	ErrRunNotPending = errors.New("run is not in PENDING status")

	// ErrJobNotFound — job не найден.
	ErrJobNotFound = errors.New("job not found")

	// ErrOrchestratorStopped — оркестратор остановлен.
	ErrOrchestratorStopped = errors.New("orchestrator stopped")
)
