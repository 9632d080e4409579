package runner

import (
	"context"
	"errors"
	"os"
	"os/exec"

	"github.com/shaiso/Conveyor/internal/domain"
)

// Executor выполняет команду одного шага.
//
// Реализации: ShellExecutor (production), фейки в тестах.
// Возвращает код выхода процесса; error — только инфраструктурные
// проблемы (процесс не удалось запустить), не ненулевой код выхода.
type Executor interface {
	Execute(ctx context.Context, step domain.StepDef, env map[string]string, dir string) (int, error)
}

// ShellExecutor запускает команду шага через sh -c во workspace job.
type ShellExecutor struct{}

// Execute выполняет команду шага как внешний процесс.
func (ShellExecutor) Execute(ctx context.Context, step domain.StepDef, env map[string]string, dir string) (int, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", step.Run)
	cmd.Dir = dir
	cmd.Env = buildEnviron(env)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}

	// Процесс не стартовал — это инфраструктура, не падение шага.
	return -1, err
}

// buildEnviron собирает окружение процесса: базовое окружение воркера
// плюс инжектированные переменные шага.
func buildEnviron(env map[string]string) []string {
	environ := os.Environ()
	for k, v := range env {
		environ = append(environ, k+"="+v)
	}
	return environ
}
