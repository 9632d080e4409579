package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/service"
)

// State — состояние гейта.
type State string

const (
	// StateStarting — сервис создаётся.
	StateStarting State = "STARTING"

	// StatePolling — сервис запущен, идут проверки готовности.
	StatePolling State = "POLLING"

	// StateHealthy — проверка прошла, гейт открыт. Терминальный успех.
	StateHealthy State = "HEALTHY"

	// StateExhausted — попытки исчерпаны, гейт закрыт.
	// Терминальная ошибка, распространяется на job.
	StateExhausted State = "EXHAUSTED"
)

// Параметры проверки по умолчанию (если декларация их не задаёт).
const (
	defaultInterval = 10 * time.Second
	defaultTimeout  = 5 * time.Second
	defaultRetries  = 3
)

// Ошибки гейта.
var (
	// ErrExhausted — сервис не стал готов за отведённые попытки.
	ErrExhausted = errors.New("service readiness retries exhausted")
)

// Report — отчёт о прохождении гейта.
type Report struct {
	// Service — имя сервиса.
	Service string

	// State — терминальное состояние гейта.
	State State

	// Attempts — сколько проверок было выполнено.
	Attempts int
}

// Gate открывает доступ к сервису после подтверждения готовности.
type Gate struct {
	provisioner service.Provisioner
	logger      *slog.Logger

	// sleep подменяется в тестах, чтобы не ждать реальные интервалы.
	sleep func(ctx context.Context, d time.Duration) error
}

// New создаёт Gate поверх провижинера.
func New(provisioner service.Provisioner, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		provisioner: provisioner,
		logger:      logger,
		sleep:       sleepCtx,
	}
}

// Open запускает сервис и ждёт его готовности.
//
// Проверка выполняется с фиксированным интервалом (не busy-wait),
// каждая попытка ограничена таймаутом, количество попыток ограничено.
// При успехе возвращает готовый экземпляр — его остановка остаётся
// на вызывающем. При исчерпании попыток экземпляр останавливается
// здесь же и возвращается ErrExhausted.
func (g *Gate) Open(ctx context.Context, decl domain.ServiceDecl, owner string) (service.Instance, Report, error) {
	report := Report{Service: decl.Name, State: StateStarting}

	interval := durationOr(decl.Health.IntervalSec, defaultInterval)
	timeout := durationOr(decl.Health.TimeoutSec, defaultTimeout)
	retries := decl.Health.Retries
	if retries <= 0 {
		retries = defaultRetries
	}

	inst, err := g.provisioner.Start(ctx, decl, owner)
	if err != nil {
		return nil, report, fmt.Errorf("start service %s: %w", decl.Name, err)
	}

	report.State = StatePolling

	for attempt := 1; attempt <= retries; attempt++ {
		report.Attempts = attempt

		pollCtx, cancel := context.WithTimeout(ctx, timeout)
		err = inst.HealthCheck(pollCtx)
		cancel()

		if err == nil {
			report.State = StateHealthy
			g.logger.Debug("service healthy",
				"service", decl.Name,
				"owner", owner,
				"attempts", attempt,
			)
			return inst, report, nil
		}

		if ctx.Err() != nil {
			// Отмена job: гейт не считается исчерпанным.
			_ = inst.Stop(ctx)
			return nil, report, ctx.Err()
		}

		g.logger.Debug("service not ready",
			"service", decl.Name,
			"owner", owner,
			"attempt", attempt,
			"retries", retries,
			"error", err,
		)

		if attempt == retries {
			break
		}

		if err := g.sleep(ctx, interval); err != nil {
			_ = inst.Stop(ctx)
			return nil, report, err
		}
	}

	// Гейт закрывается: останавливаем сервис, чтобы экземпляры
	// соседних jobs на том же хосте не текли.
	_ = inst.Stop(ctx)

	report.State = StateExhausted
	g.logger.Warn("service readiness gate exhausted",
		"service", decl.Name,
		"owner", owner,
		"attempts", report.Attempts,
	)

	return nil, report, fmt.Errorf("service %s: %w after %d attempts", decl.Name, ErrExhausted, report.Attempts)
}

// sleepCtx — сон с уважением к отмене контекста.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// durationOr конвертирует секунды в Duration с запасным значением.
func durationOr(sec int, fallback time.Duration) time.Duration {
	if sec <= 0 {
		return fallback
	}
	return time.Duration(sec) * time.Second
}
