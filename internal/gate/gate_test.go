package gate

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/service"
)

// fakeInstance — сервис, который становится готов после healthyAfter проверок.
type fakeInstance struct {
	healthyAfter int
	checks       int
	stopped      bool
}

func (f *fakeInstance) HealthCheck(ctx context.Context) error {
	f.checks++
	if f.healthyAfter > 0 && f.checks >= f.healthyAfter {
		return nil
	}
	return service.ErrHealthCheckFailed
}

func (f *fakeInstance) Env() map[string]string { return map[string]string{"SERVICE_FAKE_HOST": "127.0.0.1"} }

func (f *fakeInstance) Stop(ctx context.Context) error {
	f.stopped = true
	return nil
}

type fakeProvisioner struct {
	instance *fakeInstance
	startErr error
	starts   int
}

func (f *fakeProvisioner) Start(ctx context.Context, decl domain.ServiceDecl, owner string) (service.Instance, error) {
	f.starts++
	if f.startErr != nil {
		return nil, f.startErr
	}
	return f.instance, nil
}

func newTestGate(p service.Provisioner) *Gate {
	g := New(p, slog.Default())
	g.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return g
}

func mysqlDecl(retries int) domain.ServiceDecl {
	return domain.ServiceDecl{
		Name:  "mysql",
		Image: "mysql:8",
		Health: domain.HealthCheck{
			Cmd:         "mysqladmin ping -h 127.0.0.1",
			IntervalSec: 1,
			TimeoutSec:  1,
			Retries:     retries,
		},
	}
}

func TestGate_HealthyFirstAttempt(t *testing.T) {
	inst := &fakeInstance{healthyAfter: 1}
	g := newTestGate(&fakeProvisioner{instance: inst})

	got, report, err := g.Open(context.Background(), mysqlDecl(3), "job-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected instance")
	}
	if report.State != StateHealthy {
		t.Errorf("expected HEALTHY, got %s", report.State)
	}
	if report.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", report.Attempts)
	}
	if inst.stopped {
		t.Error("healthy instance must not be stopped by the gate")
	}
}

func TestGate_HealthyAfterRetries(t *testing.T) {
	inst := &fakeInstance{healthyAfter: 3}
	g := newTestGate(&fakeProvisioner{instance: inst})

	_, report, err := g.Open(context.Background(), mysqlDecl(3), "job-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", report.Attempts)
	}
	if report.State != StateHealthy {
		t.Errorf("expected HEALTHY, got %s", report.State)
	}
}

func TestGate_Exhausted(t *testing.T) {
	inst := &fakeInstance{} // никогда не становится готов
	g := newTestGate(&fakeProvisioner{instance: inst})

	got, report, err := g.Open(context.Background(), mysqlDecl(3), "job-1")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrExhausted) {
		t.Errorf("expected ErrExhausted, got %v", err)
	}
	if got != nil {
		t.Error("no instance should be returned when exhausted")
	}
	if report.State != StateExhausted {
		t.Errorf("expected EXHAUSTED, got %s", report.State)
	}
	if report.Attempts != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", report.Attempts)
	}
	if !inst.stopped {
		t.Error("exhausted gate must tear the service down")
	}
}

func TestGate_ExhaustedIsIdempotent(t *testing.T) {
	// Повторный прогон с тем же падающим health check даёт тот же исход.
	for i := 0; i < 2; i++ {
		inst := &fakeInstance{}
		g := newTestGate(&fakeProvisioner{instance: inst})

		_, report, err := g.Open(context.Background(), mysqlDecl(3), "job-1")
		if !errors.Is(err, ErrExhausted) {
			t.Fatalf("run %d: expected ErrExhausted, got %v", i, err)
		}
		if report.Attempts != 3 || report.State != StateExhausted {
			t.Fatalf("run %d: unexpected report %+v", i, report)
		}
	}
}

func TestGate_ProvisionError(t *testing.T) {
	boom := errors.New("docker daemon unreachable")
	g := newTestGate(&fakeProvisioner{startErr: boom})

	_, report, err := g.Open(context.Background(), mysqlDecl(3), "job-1")
	if !errors.Is(err, boom) {
		t.Errorf("expected provisioner error, got %v", err)
	}
	if errors.Is(err, ErrExhausted) {
		t.Error("provision failure is infrastructure, not exhaustion")
	}
	if report.State != StateStarting {
		t.Errorf("expected STARTING, got %s", report.State)
	}
}

func TestGate_Cancelled(t *testing.T) {
	inst := &fakeInstance{}
	g := New(&fakeProvisioner{instance: inst}, slog.Default())
	g.sleep = sleepCtx

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := g.Open(ctx, mysqlDecl(3), "job-1")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if !inst.stopped {
		t.Error("cancelled gate must tear the service down")
	}
}
