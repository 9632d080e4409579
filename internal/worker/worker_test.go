package worker

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/gate"
	"github.com/shaiso/Conveyor/internal/runner"
	"github.com/shaiso/Conveyor/internal/service"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// --- Fakes ---

// fakeInstance — сервис без контейнера.
type fakeInstance struct {
	healthyAfter int
	checks       int
	stopped      bool
	env          map[string]string
}

func (f *fakeInstance) HealthCheck(ctx context.Context) error {
	f.checks++
	if f.checks >= f.healthyAfter {
		return nil
	}
	return context.DeadlineExceeded
}

func (f *fakeInstance) Env() map[string]string { return f.env }

func (f *fakeInstance) Stop(ctx context.Context) error {
	f.stopped = true
	return nil
}

// fakeProvisioner отдаёт заранее подготовленный экземпляр.
type fakeProvisioner struct {
	instance *fakeInstance
}

func (f *fakeProvisioner) Start(ctx context.Context, decl domain.ServiceDecl, owner string) (service.Instance, error) {
	return f.instance, nil
}

// fakeExecutor фиксирует выполненные шаги и их окружение.
type fakeExecutor struct {
	executed []string
	seenEnv  []map[string]string
	exitCode func(step string) int
}

func (f *fakeExecutor) Execute(ctx context.Context, step domain.StepDef, env map[string]string, dir string) (int, error) {
	f.executed = append(f.executed, step.Name)
	f.seenEnv = append(f.seenEnv, env)
	if f.exitCode != nil {
		return f.exitCode(step.Name), nil
	}
	return 0, nil
}

func testMetrics() *telemetry.Metrics {
	return telemetry.NewMetrics(prometheus.NewRegistry())
}

// testWorker собирает воркер с фейковыми гейтом и исполнителем.
func testWorker(t *testing.T, prov service.Provisioner, exec runner.Executor) *Worker {
	t.Helper()
	return New(Config{
		Gate:    gate.New(prov, nil),
		Runner:  runner.New(exec, nil),
		Metrics: testMetrics(),
	})
}

func testJob() *domain.Job {
	spec := domain.JobSpec{Values: []domain.AxisValue{
		{Axis: "python", Value: "3.12"},
		{Axis: "toxenv", Value: "django42"},
	}}
	return &domain.Job{
		ID:     uuid.New(),
		RunID:  uuid.New(),
		Spec:   spec,
		Key:    spec.Key(),
		Status: domain.JobStatusRunning,
	}
}

func testRun(job *domain.Job) *domain.Run {
	return &domain.Run{
		ID:         job.RunID,
		PipelineID: uuid.New(),
		Status:     domain.RunStatusRunning,
		Event: domain.TriggerEvent{
			Kind:   domain.EventPush,
			Ref:    "refs/heads/main",
			Commit: "abc123",
		},
	}
}

// --- Config Tests ---

func TestNew_Defaults(t *testing.T) {
	w := New(Config{Metrics: testMetrics()})

	if w.Slots() != defaultSlots {
		t.Errorf("expected %d slots, got %d", defaultSlots, w.Slots())
	}
	if w.pollInterval != defaultPollInterval {
		t.Errorf("expected default poll interval %v, got %v", defaultPollInterval, w.pollInterval)
	}
	if w.runner == nil {
		t.Error("runner should be defaulted")
	}
}

func TestSlotsFromEnv(t *testing.T) {
	t.Setenv("WORKER_SLOTS", "8")
	if got := SlotsFromEnv(); got != 8 {
		t.Errorf("expected 8 slots, got %d", got)
	}

	t.Setenv("WORKER_SLOTS", "not-a-number")
	if got := SlotsFromEnv(); got != defaultSlots {
		t.Errorf("expected default slots for invalid value, got %d", got)
	}

	t.Setenv("WORKER_SLOTS", "0")
	if got := SlotsFromEnv(); got != defaultSlots {
		t.Errorf("expected default slots for zero, got %d", got)
	}
}

// --- cancelRegistry Tests ---

func TestCancelRegistry_CancelRun(t *testing.T) {
	reg := newCancelRegistry()

	runA := uuid.New()
	runB := uuid.New()

	ctxA1, cancelA1 := context.WithCancel(context.Background())
	ctxA2, cancelA2 := context.WithCancel(context.Background())
	ctxB, cancelB := context.WithCancel(context.Background())
	defer cancelA1()
	defer cancelA2()
	defer cancelB()

	reg.register(runA, uuid.New(), cancelA1)
	reg.register(runA, uuid.New(), cancelA2)
	reg.register(runB, uuid.New(), cancelB)

	if reg.activeCount() != 3 {
		t.Fatalf("expected 3 active jobs, got %d", reg.activeCount())
	}

	// Отмена run A не трогает jobs run B
	cancelled := reg.cancelRun(runA)
	if cancelled != 2 {
		t.Errorf("expected 2 cancelled jobs, got %d", cancelled)
	}
	if ctxA1.Err() == nil || ctxA2.Err() == nil {
		t.Error("run A contexts should be cancelled")
	}
	if ctxB.Err() != nil {
		t.Error("run B context must not be cancelled")
	}
}

func TestCancelRegistry_Unregister(t *testing.T) {
	reg := newCancelRegistry()

	runID := uuid.New()
	jobID := uuid.New()
	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg.register(runID, jobID, cancel)
	reg.unregister(runID, jobID)

	if reg.activeCount() != 0 {
		t.Errorf("expected 0 active jobs, got %d", reg.activeCount())
	}
	if reg.cancelRun(runID) != 0 {
		t.Error("cancelRun should find nothing after unregister")
	}
}

// --- Execute Tests ---

func TestExecute_AllStepsSucceed(t *testing.T) {
	inst := &fakeInstance{
		healthyAfter: 1,
		env:          map[string]string{"SERVICE_MYSQL_HOST": "127.0.0.1", "SERVICE_MYSQL_PORT": "3306"},
	}
	exec := &fakeExecutor{}
	w := testWorker(t, &fakeProvisioner{instance: inst}, exec)

	job := testJob()
	run := testRun(job)
	spec := &domain.PipelineSpec{
		Services: []domain.ServiceDecl{{
			Name:   "mysql",
			Image:  "mysql:8",
			Health: domain.HealthCheck{Cmd: "mysqladmin ping", IntervalSec: 1, Retries: 3},
		}},
		Env: map[string]string{"TOX_PARALLEL_NO_SPINNER": "1"},
		Steps: []domain.StepDef{
			{Name: "install", Run: "pip install tox"},
			{Name: "test", Run: "tox"},
		},
	}

	w.execute(context.Background(), job, run, spec)

	if job.Status != domain.JobStatusSucceeded {
		t.Fatalf("expected SUCCEEDED, got %s (error: %s)", job.Status, job.Error)
	}
	if len(exec.executed) != 2 {
		t.Fatalf("expected 2 executed steps, got %v", exec.executed)
	}
	if !inst.stopped {
		t.Error("service must be stopped after job completion")
	}

	// Шаги видят окружение сервиса, события, осей и документа
	env := exec.seenEnv[0]
	if env["SERVICE_MYSQL_HOST"] != "127.0.0.1" {
		t.Error("service env should reach steps")
	}
	if env["CONVEYOR_COMMIT"] != "abc123" {
		t.Error("event env should reach steps")
	}
	if env["MATRIX_PYTHON"] != "3.12" {
		t.Error("axis env should reach steps")
	}
	if env["TOX_PARALLEL_NO_SPINNER"] != "1" {
		t.Error("static env should reach steps")
	}
}

func TestExecute_GateExhausted(t *testing.T) {
	// Сервис никогда не становится готов
	inst := &fakeInstance{healthyAfter: 100}
	exec := &fakeExecutor{}
	w := testWorker(t, &fakeProvisioner{instance: inst}, exec)

	job := testJob()
	run := testRun(job)
	spec := &domain.PipelineSpec{
		Services: []domain.ServiceDecl{{
			Name:   "mysql",
			Image:  "mysql:8",
			Health: domain.HealthCheck{Cmd: "mysqladmin ping", IntervalSec: 1, Retries: 2},
		}},
		Steps: []domain.StepDef{{Name: "test", Run: "tox"}},
	}

	w.execute(context.Background(), job, run, spec)

	if job.Status != domain.JobStatusFailed {
		t.Fatalf("expected FAILED, got %s", job.Status)
	}
	if job.FailureKind != domain.FailureServiceUnavailable {
		t.Errorf("expected SERVICE_UNAVAILABLE, got %s", job.FailureKind)
	}
	// Закрытый гейт — ни один шаг не выполняется
	if len(exec.executed) != 0 {
		t.Errorf("no steps must run behind a closed gate, got %v", exec.executed)
	}
	if !inst.stopped {
		t.Error("exhausted service must be torn down")
	}
}

func TestExecute_StepFailure(t *testing.T) {
	exec := &fakeExecutor{exitCode: func(step string) int {
		if step == "test" {
			return 1
		}
		return 0
	}}
	w := testWorker(t, nil, exec)

	job := testJob()
	run := testRun(job)
	spec := &domain.PipelineSpec{
		Steps: []domain.StepDef{
			{Name: "install", Run: "pip install tox"},
			{Name: "test", Run: "tox"},
			{Name: "report", Run: "coverage report"},
		},
	}

	w.execute(context.Background(), job, run, spec)

	if job.Status != domain.JobStatusFailed {
		t.Fatalf("expected FAILED, got %s", job.Status)
	}
	if job.FailureKind != domain.FailureStep {
		t.Errorf("expected STEP_FAILURE, got %s", job.FailureKind)
	}
	if job.FailedStep != "test" {
		t.Errorf("expected failed step 'test', got %q", job.FailedStep)
	}
	// Шаг после упавшего не выполняется
	if len(exec.executed) != 2 {
		t.Errorf("expected short-circuit after failure, executed: %v", exec.executed)
	}
}

func TestExecute_Cancelled(t *testing.T) {
	exec := &fakeExecutor{}
	w := testWorker(t, nil, exec)

	job := testJob()
	run := testRun(job)
	spec := &domain.PipelineSpec{
		Steps: []domain.StepDef{{Name: "test", Run: "tox"}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w.execute(ctx, job, run, spec)

	if job.Status != domain.JobStatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", job.Status)
	}
	if job.FailureKind != domain.FailureNone {
		t.Errorf("cancellation is not a failure, got kind %s", job.FailureKind)
	}
}

// --- eventEnv Tests ---

func TestEventEnv(t *testing.T) {
	job := testJob()
	run := testRun(job)

	env := eventEnv(run, job)

	if env["CI"] != "true" {
		t.Error("CI should be set")
	}
	if env["CONVEYOR_EVENT"] != "push" {
		t.Errorf("expected push event, got %q", env["CONVEYOR_EVENT"])
	}
	if env["CONVEYOR_REF"] != "refs/heads/main" {
		t.Errorf("unexpected ref: %q", env["CONVEYOR_REF"])
	}
	if env["CONVEYOR_JOB_KEY"] != job.Key {
		t.Errorf("unexpected job key: %q", env["CONVEYOR_JOB_KEY"])
	}
}

func TestEventEnv_OmitsEmptyFields(t *testing.T) {
	job := testJob()
	run := &domain.Run{ID: job.RunID, Event: domain.TriggerEvent{Kind: domain.EventManual}}

	env := eventEnv(run, job)

	if _, ok := env["CONVEYOR_REF"]; ok {
		t.Error("CONVEYOR_REF should be omitted for manual runs without ref")
	}
	if _, ok := env["CONVEYOR_COMMIT"]; ok {
		t.Error("CONVEYOR_COMMIT should be omitted when commit is empty")
	}
}
