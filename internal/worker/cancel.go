package worker

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// cancelRegistry отслеживает выполняющиеся jobs по runID.
//
// Когда приходит broadcast об отмене run, воркер отменяет контексты
// всех своих jobs этого run. Jobs других runs не затрагиваются.
type cancelRegistry struct {
	mu    sync.Mutex
	byRun map[uuid.UUID]map[uuid.UUID]context.CancelFunc
}

func newCancelRegistry() *cancelRegistry {
	return &cancelRegistry{
		byRun: make(map[uuid.UUID]map[uuid.UUID]context.CancelFunc),
	}
}

// register добавляет cancel-функцию job.
func (r *cancelRegistry) register(runID, jobID uuid.UUID, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	jobs, exists := r.byRun[runID]
	if !exists {
		jobs = make(map[uuid.UUID]context.CancelFunc)
		r.byRun[runID] = jobs
	}
	jobs[jobID] = cancel
}

// unregister удаляет job из реестра (после завершения).
func (r *cancelRegistry) unregister(runID, jobID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	jobs, exists := r.byRun[runID]
	if !exists {
		return
	}
	delete(jobs, jobID)
	if len(jobs) == 0 {
		delete(r.byRun, runID)
	}
}

// cancelRun отменяет все jobs указанного run на этом воркере.
// Возвращает количество отменённых jobs.
func (r *cancelRegistry) cancelRun(runID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	jobs, exists := r.byRun[runID]
	if !exists {
		return 0
	}

	for _, cancel := range jobs {
		cancel()
	}
	return len(jobs)
}

// activeCount возвращает количество отслеживаемых jobs.
func (r *cancelRegistry) activeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	total := 0
	for _, jobs := range r.byRun {
		total += len(jobs)
	}
	return total
}
