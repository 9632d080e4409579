package orchestrator

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// testMetrics создаёт метрики с изолированным registry,
// чтобы тесты не конфликтовали в глобальном.
func testMetrics() *telemetry.Metrics {
	return telemetry.NewMetrics(prometheus.NewRegistry())
}

// --- RunState Tests ---

func TestNewRunState(t *testing.T) {
	run := &domain.Run{ID: uuid.New()}
	version := &domain.PipelineVersion{}

	state := NewRunState(run, version)

	if state.Run != run {
		t.Error("Run should be set")
	}
	if state.Version != version {
		t.Error("Version should be set")
	}
	if state.statuses == nil {
		t.Error("statuses map should be initialized")
	}
	if state.keys == nil {
		t.Error("keys map should be initialized")
	}
}

func TestRunState_VerdictAllSucceeded(t *testing.T) {
	state := NewRunState(&domain.Run{ID: uuid.New()}, &domain.PipelineVersion{})

	job1 := uuid.New()
	job2 := uuid.New()
	state.RegisterJob(job1, "ubuntu-24.04/3.11/django42/8", domain.JobStatusQueued)
	state.RegisterJob(job2, "ubuntu-24.04/3.12/django42/8", domain.JobStatusQueued)

	if state.IsComplete() {
		t.Error("should not be complete with queued jobs")
	}

	state.Apply(job1, domain.JobStatusSucceeded)
	if state.IsComplete() {
		t.Error("should not be complete with one job pending")
	}

	state.Apply(job2, domain.JobStatusSucceeded)
	if !state.IsComplete() {
		t.Error("should be complete when all jobs are terminal")
	}
	if got := state.Verdict(); got != domain.RunStatusSucceeded {
		t.Errorf("expected SUCCEEDED verdict, got %s", got)
	}
}

func TestRunState_VerdictFailedDoesNotBlockSiblings(t *testing.T) {
	state := NewRunState(&domain.Run{ID: uuid.New()}, &domain.PipelineVersion{})

	failing := uuid.New()
	sibling := uuid.New()
	state.RegisterJob(failing, "ubuntu-24.04/3.11/quality/8", domain.JobStatusQueued)
	state.RegisterJob(sibling, "ubuntu-24.04/3.12/quality/8", domain.JobStatusQueued)

	// Один job упал — run не завершается, пока брат не отчитается
	state.Apply(failing, domain.JobStatusFailed)
	if state.IsComplete() {
		t.Error("run must wait for sibling jobs after a failure")
	}

	state.Apply(sibling, domain.JobStatusSucceeded)
	if !state.IsComplete() {
		t.Error("should be complete after all jobs reported")
	}
	if got := state.Verdict(); got != domain.RunStatusFailed {
		t.Errorf("expected FAILED verdict, got %s", got)
	}

	failedKeys := state.FailedKeys()
	if len(failedKeys) != 1 || failedKeys[0] != "ubuntu-24.04/3.11/quality/8" {
		t.Errorf("unexpected failed keys: %v", failedKeys)
	}
}

func TestRunState_VerdictCancelled(t *testing.T) {
	state := NewRunState(&domain.Run{ID: uuid.New()}, &domain.PipelineVersion{})

	job1 := uuid.New()
	job2 := uuid.New()
	state.RegisterJob(job1, "a/1", domain.JobStatusQueued)
	state.RegisterJob(job2, "a/2", domain.JobStatusQueued)

	state.Apply(job1, domain.JobStatusSucceeded)
	state.Apply(job2, domain.JobStatusCancelled)

	if !state.IsComplete() {
		t.Error("should be complete")
	}
	// Отменённый job не падение, но успех невозможен
	if got := state.Verdict(); got != domain.RunStatusCancelled {
		t.Errorf("expected CANCELLED verdict, got %s", got)
	}
}

func TestRunState_ApplyUnknownJob(t *testing.T) {
	state := NewRunState(&domain.Run{ID: uuid.New()}, &domain.PipelineVersion{})

	known := uuid.New()
	state.RegisterJob(known, "a/1", domain.JobStatusQueued)

	state.Apply(uuid.New(), domain.JobStatusSucceeded)

	stats := state.Stats()
	if stats.TotalJobs != 1 {
		t.Errorf("unknown job must not be added, got %d total", stats.TotalJobs)
	}
	if stats.QueuedJobs != 1 {
		t.Errorf("known job should stay queued, got %d queued", stats.QueuedJobs)
	}
}

func TestRunState_EmptyIsNotComplete(t *testing.T) {
	state := NewRunState(&domain.Run{ID: uuid.New()}, &domain.PipelineVersion{})

	// Run без зарегистрированных jobs не считается завершённым
	if state.IsComplete() {
		t.Error("state without jobs should not be complete")
	}
}

func TestRunState_Stats(t *testing.T) {
	state := NewRunState(&domain.Run{ID: uuid.New()}, &domain.PipelineVersion{})

	jobs := []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New()}
	for i, id := range jobs {
		state.RegisterJob(id, string(rune('a'+i)), domain.JobStatusQueued)
	}

	state.Apply(jobs[0], domain.JobStatusRunning)
	state.Apply(jobs[1], domain.JobStatusSucceeded)
	state.Apply(jobs[2], domain.JobStatusFailed)

	stats := state.Stats()
	if stats.TotalJobs != 4 {
		t.Errorf("expected 4 total jobs, got %d", stats.TotalJobs)
	}
	if stats.QueuedJobs != 1 {
		t.Errorf("expected 1 queued job, got %d", stats.QueuedJobs)
	}
	if stats.RunningJobs != 1 {
		t.Errorf("expected 1 running job, got %d", stats.RunningJobs)
	}
	if stats.SucceededJobs != 1 {
		t.Errorf("expected 1 succeeded job, got %d", stats.SucceededJobs)
	}
	if stats.FailedJobs != 1 {
		t.Errorf("expected 1 failed job, got %d", stats.FailedJobs)
	}
}

func TestRunState_RestoreFromJobs(t *testing.T) {
	state := NewRunState(&domain.Run{ID: uuid.New()}, &domain.PipelineVersion{})

	jobs := []domain.Job{
		{ID: uuid.New(), Key: "ubuntu-24.04/3.11/django42/8", Status: domain.JobStatusSucceeded},
		{ID: uuid.New(), Key: "ubuntu-24.04/3.12/django42/8", Status: domain.JobStatusFailed},
		{ID: uuid.New(), Key: "ubuntu-24.04/3.11/quality/8", Status: domain.JobStatusRunning},
		{ID: uuid.New(), Key: "ubuntu-24.04/3.12/quality/8", Status: domain.JobStatusQueued},
	}

	state.RestoreFromJobs(jobs)

	stats := state.Stats()
	if stats.TotalJobs != 4 {
		t.Errorf("expected 4 total jobs, got %d", stats.TotalJobs)
	}
	if state.IsComplete() {
		t.Error("should not be complete with running and queued jobs")
	}

	// Дозавершаем и проверяем вердикт
	state.Apply(jobs[2].ID, domain.JobStatusSucceeded)
	state.Apply(jobs[3].ID, domain.JobStatusSucceeded)

	if !state.IsComplete() {
		t.Error("should be complete")
	}
	if got := state.Verdict(); got != domain.RunStatusFailed {
		t.Errorf("expected FAILED verdict, got %s", got)
	}
	failedKeys := state.FailedKeys()
	if len(failedKeys) != 1 || failedKeys[0] != "ubuntu-24.04/3.12/django42/8" {
		t.Errorf("unexpected failed keys: %v", failedKeys)
	}
}

func TestRunState_RunID(t *testing.T) {
	runID := uuid.New()
	pipelineID := uuid.New()
	run := &domain.Run{ID: runID, PipelineID: pipelineID}
	state := NewRunState(run, &domain.PipelineVersion{})

	if state.RunID() != runID {
		t.Error("RunID should return run ID")
	}
	if state.PipelineID() != pipelineID {
		t.Error("PipelineID should return pipeline ID")
	}
}

// --- Orchestrator Tests ---

func TestNew(t *testing.T) {
	orch := New(Config{Metrics: testMetrics()})

	if orch.activeRuns == nil {
		t.Error("activeRuns should be initialized")
	}
	if orch.pollInterval != defaultPollInterval {
		t.Errorf("expected default poll interval %v, got %v", defaultPollInterval, orch.pollInterval)
	}
	if orch.batchSize != defaultBatchSize {
		t.Errorf("expected default batch size %d, got %d", defaultBatchSize, orch.batchSize)
	}
}

func TestNew_CustomConfig(t *testing.T) {
	orch := New(Config{
		PollInterval: 5 * time.Second,
		BatchSize:    50,
		Metrics:      testMetrics(),
	})

	if orch.pollInterval != 5*time.Second {
		t.Errorf("expected poll interval 5s, got %v", orch.pollInterval)
	}
	if orch.batchSize != 50 {
		t.Errorf("expected batch size 50, got %d", orch.batchSize)
	}
}

func TestOrchestrator_ActiveRuns(t *testing.T) {
	orch := New(Config{Metrics: testMetrics()})

	runID := uuid.New()
	state := &RunState{
		Run: &domain.Run{ID: runID},
	}

	// Initially no active runs
	if orch.ActiveRunsCount() != 0 {
		t.Error("should have no active runs initially")
	}
	if orch.isRunActive(runID) {
		t.Error("run should not be active initially")
	}

	// Add active run
	err := orch.addActiveRun(state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if orch.ActiveRunsCount() != 1 {
		t.Error("should have 1 active run")
	}
	if !orch.isRunActive(runID) {
		t.Error("run should be active")
	}
	if orch.getActiveRun(runID) != state {
		t.Error("getActiveRun should return the state")
	}

	// Try to add same run again
	err = orch.addActiveRun(state)
	if err != ErrRunAlreadyActive {
		t.Errorf("expected ErrRunAlreadyActive, got %v", err)
	}

	// Remove active run
	orch.removeActiveRun(runID)

	if orch.ActiveRunsCount() != 0 {
		t.Error("should have no active runs after removal")
	}
	if orch.isRunActive(runID) {
		t.Error("run should not be active after removal")
	}
}

func TestOrchestrator_GetActiveRunStats(t *testing.T) {
	orch := New(Config{Metrics: testMetrics()})

	runID := uuid.New()
	run := &domain.Run{ID: runID}
	state := NewRunState(run, &domain.PipelineVersion{})
	state.RegisterJob(uuid.New(), "ubuntu-24.04/3.11/django42/8", domain.JobStatusQueued)

	// No stats for non-existent run
	_, ok := orch.GetActiveRunStats(runID)
	if ok {
		t.Error("should not find stats for non-active run")
	}

	// Add run and get stats
	_ = orch.addActiveRun(state)
	stats, ok := orch.GetActiveRunStats(runID)
	if !ok {
		t.Fatal("should find stats for active run")
	}
	if stats.TotalJobs != 1 {
		t.Errorf("expected 1 total job, got %d", stats.TotalJobs)
	}
}

func TestOrchestrator_IsStopped(t *testing.T) {
	orch := New(Config{Metrics: testMetrics()})

	if orch.IsStopped() {
		t.Error("should not be stopped initially")
	}

	// Set stopped state directly (simulating Stop() call)
	orch.stoppedMu.Lock()
	orch.stopped = true
	orch.stoppedMu.Unlock()

	if !orch.IsStopped() {
		t.Error("should be stopped")
	}
}
