package service

import (
	"context"
	"errors"

	"github.com/shaiso/Conveyor/internal/domain"
)

// Ошибки провижининга сервисов.
var (
	// ErrImageRequired — декларация сервиса без образа.
	ErrImageRequired = errors.New("service image is required")

	// ErrHealthCheckFailed — команда проверки готовности вернула
	// ненулевой код выхода.
	ErrHealthCheckFailed = errors.New("health check failed")

	// ErrNotStarted — обращение к экземпляру до запуска.
	ErrNotStarted = errors.New("service instance not started")
)

// Provisioner создаёт экземпляры сервисов для job.
//
// Реализации: DockerProvisioner (production), фейки в тестах.
type Provisioner interface {
	// Start создаёт и запускает сервис по декларации.
	// owner — идентификатор job-владельца (для имён контейнеров и логов).
	Start(ctx context.Context, decl domain.ServiceDecl, owner string) (Instance, error)
}

// Instance — запущенный экземпляр сервиса, привязанный к одному job.
type Instance interface {
	// HealthCheck выполняет команду проверки готовности.
	// Возвращает nil, если сервис готов; ErrHealthCheckFailed — если
	// команда вернула ненулевой код; прочие ошибки — инфраструктурные.
	HealthCheck(ctx context.Context) error

	// Env возвращает переменные окружения для шагов job
	// (адрес и порты сервиса).
	Env() map[string]string

	// Stop останавливает и удаляет экземпляр.
	// Идемпотентен; вызывается всегда, включая отмену и падение гейта.
	Stop(ctx context.Context) error
}
