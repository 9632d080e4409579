package repo

import "errors"

// Общие ошибки репозиториев. Проверяются через errors.Is
// на любом уровне выше (orchestrator, worker, api).
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists — запись уже существует (конфликт уникальности,
	// например имя pipeline или idempotency key).
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidState — операция невозможна в текущем статусе записи.
	ErrInvalidState = errors.New("invalid state")
)
