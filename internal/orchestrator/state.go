package orchestrator

import (
	"sync"

	"github.com/google/uuid"
	"github.com/shaiso/Conveyor/internal/domain"
)

// RunState — состояние выполнения одного run в памяти.
//
// RunState создаётся когда Orchestrator разворачивает матрицу
// и удаляется когда run завершается (SUCCEEDED/FAILED/CANCELLED).
//
// Это агрегатор результатов: он собирает терминальные статусы всех
// jobs и выносит вердикт run. Упавший job не влияет на братские jobs —
// run ждёт, пока отчитается каждая комбинация.
type RunState struct {
	// Run — данные run из БД.
	Run *domain.Run

	// Version — версия pipeline с документом.
	Version *domain.PipelineVersion

	// statuses — статус каждого job (jobID → status).
	statuses map[uuid.UUID]domain.JobStatus

	// keys — ключ комбинации каждого job (jobID → key, для отчётов).
	keys map[uuid.UUID]string

	// mu — мьютекс для потокобезопасного доступа.
	mu sync.RWMutex
}

// NewRunState создаёт новый RunState.
func NewRunState(run *domain.Run, version *domain.PipelineVersion) *RunState {
	return &RunState{
		Run:      run,
		Version:  version,
		statuses: make(map[uuid.UUID]domain.JobStatus),
		keys:     make(map[uuid.UUID]string),
	}
}

// RegisterJob добавляет job в отслеживаемые.
func (s *RunState) RegisterJob(jobID uuid.UUID, key string, status domain.JobStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.statuses[jobID] = status
	s.keys[jobID] = key
}

// Apply обновляет статус job. Неизвестный jobID игнорируется:
// сообщение могло прийти от job другого запуска того же run после рестарта.
func (s *RunState) Apply(jobID uuid.UUID, status domain.JobStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.statuses[jobID]; !exists {
		return
	}
	s.statuses[jobID] = status
}

// IsComplete проверяет, отчитались ли все jobs терминальным статусом.
func (s *RunState) IsComplete() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.statuses) == 0 {
		return false
	}
	for _, status := range s.statuses {
		if !status.IsTerminal() {
			return false
		}
	}
	return true
}

// Verdict выносит вердикт run по статусам jobs.
// SUCCEEDED только если каждый job SUCCEEDED.
func (s *RunState) Verdict() domain.RunStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statuses := make([]domain.JobStatus, 0, len(s.statuses))
	for _, status := range s.statuses {
		statuses = append(statuses, status)
	}
	return domain.Verdict(statuses)
}

// FailedKeys возвращает ключи комбинаций упавших jobs.
func (s *RunState) FailedKeys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for jobID, status := range s.statuses {
		if status == domain.JobStatusFailed {
			keys = append(keys, s.keys[jobID])
		}
	}
	return keys
}

// RunID возвращает ID run.
func (s *RunState) RunID() uuid.UUID {
	return s.Run.ID
}

// PipelineID возвращает ID pipeline.
func (s *RunState) PipelineID() uuid.UUID {
	return s.Run.PipelineID
}

// Stats возвращает статистику выполнения.
func (s *RunState) Stats() RunStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := RunStats{TotalJobs: len(s.statuses)}
	for _, status := range s.statuses {
		switch status {
		case domain.JobStatusQueued:
			stats.QueuedJobs++
		case domain.JobStatusRunning:
			stats.RunningJobs++
		case domain.JobStatusSucceeded:
			stats.SucceededJobs++
		case domain.JobStatusFailed:
			stats.FailedJobs++
		case domain.JobStatusCancelled:
			stats.CancelledJobs++
		}
	}
	return stats
}

// RunStats — статистика выполнения run.
type RunStats struct {
	TotalJobs     int
	QueuedJobs    int
	RunningJobs   int
	SucceededJobs int
	FailedJobs    int
	CancelledJobs int
}

// RestoreFromJobs восстанавливает состояние из списка jobs (после рестарта).
func (s *RunState) RestoreFromJobs(jobs []domain.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range jobs {
		job := &jobs[i]
		s.statuses[job.ID] = job.Status
		s.keys[job.ID] = job.Key
	}
}
