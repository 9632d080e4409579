package worker

import "errors"

// Ошибки воркера.
var (
	// ErrJobNotFound — job не найден в БД.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobNotQueued — job не в статусе QUEUED.
	ErrJobNotQueued = errors.New("job is not in QUEUED status")

	// ErrRunFinished — родительский run уже завершён.
	ErrRunFinished = errors.New("run already finished")

	// ErrWorkerStopped — воркер остановлен.
	ErrWorkerStopped = errors.New("worker stopped")
)
