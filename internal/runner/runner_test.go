package runner

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/shaiso/Conveyor/internal/domain"
)

// fakeExecutor возвращает заранее заданные коды выхода по имени шага.
type fakeExecutor struct {
	exitCodes map[string]int
	infraErrs map[string]error
	executed  []string
	seenEnv   map[string]map[string]string
}

func (f *fakeExecutor) Execute(ctx context.Context, step domain.StepDef, env map[string]string, dir string) (int, error) {
	f.executed = append(f.executed, step.Name)
	if f.seenEnv == nil {
		f.seenEnv = make(map[string]map[string]string)
	}
	f.seenEnv[step.Name] = env

	if err := f.infraErrs[step.Name]; err != nil {
		return -1, err
	}
	return f.exitCodes[step.Name], nil
}

func pySpec() domain.JobSpec {
	return domain.JobSpec{Values: []domain.AxisValue{
		{Axis: "python", Value: "3.12"},
		{Axis: "toxenv", Value: "quality"},
	}}
}

func steps(names ...string) []domain.StepDef {
	defs := make([]domain.StepDef, len(names))
	for i, n := range names {
		defs[i] = domain.StepDef{Name: n, Run: "true"}
	}
	return defs
}

func TestRunner_AllSucceed(t *testing.T) {
	exec := &fakeExecutor{exitCodes: map[string]int{}}
	r := New(exec, slog.Default())

	result := r.Run(context.Background(), steps("A", "B", "C"), pySpec(), Env{}, t.TempDir())

	if result.Failed() {
		t.Fatalf("unexpected failure: %+v", result)
	}
	if len(result.Steps) != 3 {
		t.Errorf("expected 3 step results, got %d", len(result.Steps))
	}
	for _, s := range result.Steps {
		if s.Status != domain.StepStatusSucceeded {
			t.Errorf("step %s: expected SUCCEEDED, got %s", s.Name, s.Status)
		}
	}
}

func TestRunner_ShortCircuitOnFailure(t *testing.T) {
	// A успешен, B падает, C не должен запускаться.
	exec := &fakeExecutor{exitCodes: map[string]int{"B": 1}}
	r := New(exec, slog.Default())

	result := r.Run(context.Background(), steps("A", "B", "C"), pySpec(), Env{}, t.TempDir())

	if !result.Failed() {
		t.Fatal("expected failure")
	}
	if result.FailureKind != domain.FailureStep {
		t.Errorf("expected STEP_FAILURE, got %s", result.FailureKind)
	}
	if result.FailedStep != "B" {
		t.Errorf("expected failed step B, got %s", result.FailedStep)
	}

	// Записаны ровно [A:success, B:failure]
	if len(result.Steps) != 2 {
		t.Fatalf("expected 2 step results, got %d", len(result.Steps))
	}
	if result.Steps[0].Name != "A" || result.Steps[0].Status != domain.StepStatusSucceeded {
		t.Errorf("unexpected first result: %+v", result.Steps[0])
	}
	if result.Steps[1].Name != "B" || result.Steps[1].Status != domain.StepStatusFailed || result.Steps[1].ExitCode != 1 {
		t.Errorf("unexpected second result: %+v", result.Steps[1])
	}

	for _, name := range exec.executed {
		if name == "C" {
			t.Error("step C must never run after B failed")
		}
	}
}

func TestRunner_GuardSkips(t *testing.T) {
	defs := steps("A", "B", "C")
	defs[1].When = map[string]string{"python": "3.11"} // не совпадает

	exec := &fakeExecutor{}
	r := New(exec, slog.Default())

	result := r.Run(context.Background(), defs, pySpec(), Env{}, t.TempDir())

	if result.Failed() {
		t.Fatalf("unexpected failure: %+v", result)
	}
	if len(result.Steps) != 3 {
		t.Fatalf("expected 3 step results, got %d", len(result.Steps))
	}
	if result.Steps[1].Status != domain.StepStatusSkipped {
		t.Errorf("expected B skipped, got %s", result.Steps[1].Status)
	}
	for _, name := range exec.executed {
		if name == "B" {
			t.Error("guarded step B must not execute")
		}
	}
}

func TestRunner_InfrastructureFailure(t *testing.T) {
	exec := &fakeExecutor{infraErrs: map[string]error{"A": errors.New("sh: not found")}}
	r := New(exec, slog.Default())

	result := r.Run(context.Background(), steps("A", "B"), pySpec(), Env{}, t.TempDir())

	if result.FailureKind != domain.FailureInfrastructure {
		t.Errorf("expected INFRASTRUCTURE, got %s", result.FailureKind)
	}
	if result.FailedStep != "A" {
		t.Errorf("expected failed step A, got %s", result.FailedStep)
	}
	if len(exec.executed) != 1 {
		t.Errorf("expected only A attempted, got %v", exec.executed)
	}
}

func TestRunner_EnvInjection(t *testing.T) {
	defs := steps("tox")
	defs[0].Env = map[string]string{"TOXENV": "quality-override"}

	exec := &fakeExecutor{}
	r := New(exec, slog.Default())

	env := Env{
		Static:   map[string]string{"PIP_DISABLE_PIP_VERSION_CHECK": "1"},
		Event:    map[string]string{"COMMIT_SHA": "abc123"},
		Services: map[string]string{"SERVICE_MYSQL_HOST": "127.0.0.1"},
	}

	r.Run(context.Background(), defs, pySpec(), env, t.TempDir())

	got := exec.seenEnv["tox"]
	want := map[string]string{
		"PIP_DISABLE_PIP_VERSION_CHECK": "1",
		"COMMIT_SHA":                    "abc123",
		"MATRIX_PYTHON":                 "3.12",
		"MATRIX_TOXENV":                 "quality",
		"SERVICE_MYSQL_HOST":            "127.0.0.1",
		"TOXENV":                        "quality-override", // env шага поверх остальных
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("env %s: expected %q, got %q", k, v, got[k])
		}
	}
}

func TestRunner_EnvIsolationBetweenSteps(t *testing.T) {
	defs := steps("first", "second")
	defs[0].Env = map[string]string{"ONLY_FIRST": "1"}

	exec := &fakeExecutor{}
	r := New(exec, slog.Default())
	r.Run(context.Background(), defs, pySpec(), Env{}, t.TempDir())

	if _, ok := exec.seenEnv["second"]["ONLY_FIRST"]; ok {
		t.Error("step env must not leak into the next step")
	}
}

func TestRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := &fakeExecutor{}
	r := New(exec, slog.Default())

	result := r.Run(ctx, steps("A", "B"), pySpec(), Env{}, t.TempDir())

	if !result.Cancelled {
		t.Error("expected cancelled result")
	}
	if result.Failed() {
		t.Error("cancellation is not a failure")
	}
	if len(exec.executed) != 0 {
		t.Errorf("no steps should run after cancellation, got %v", exec.executed)
	}
}

func TestShellExecutor_ExitCodes(t *testing.T) {
	var exec ShellExecutor

	code, err := exec.Execute(context.Background(), domain.StepDef{Name: "ok", Run: "exit 0"}, nil, t.TempDir())
	if err != nil || code != 0 {
		t.Errorf("expected (0, nil), got (%d, %v)", code, err)
	}

	code, err = exec.Execute(context.Background(), domain.StepDef{Name: "fail", Run: "exit 3"}, nil, t.TempDir())
	if err != nil || code != 3 {
		t.Errorf("expected (3, nil), got (%d, %v)", code, err)
	}
}

func TestShellExecutor_EnvReachesProcess(t *testing.T) {
	var exec ShellExecutor

	code, err := exec.Execute(context.Background(),
		domain.StepDef{Name: "check", Run: `[ "$MATRIX_PYTHON" = "3.12" ]`},
		map[string]string{"MATRIX_PYTHON": "3.12"},
		t.TempDir())
	if err != nil || code != 0 {
		t.Errorf("injected env not visible to process: (%d, %v)", code, err)
	}
}
