package engine

import "errors"

// Ошибки валидации документа pipeline.
// Все они фатальны для pipeline целиком: ни один job не стартует.
var (
	// ErrEmptyMatrix — матрица не содержит осей.
	ErrEmptyMatrix = errors.New("matrix has no axes")

	// ErrEmptyAxisName — ось не имеет имени.
	ErrEmptyAxisName = errors.New("axis has empty name")

	// ErrEmptyAxisValues — ось не содержит значений.
	ErrEmptyAxisValues = errors.New("axis has no values")

	// ErrDuplicateAxis — несколько осей с одинаковым именем.
	ErrDuplicateAxis = errors.New("duplicate axis name")

	// ErrDuplicateAxisValue — повторяющееся значение внутри оси.
	ErrDuplicateAxisValue = errors.New("duplicate axis value")

	// ErrEmptySteps — документ не содержит шагов.
	ErrEmptySteps = errors.New("pipeline has no steps")

	// ErrEmptyStepName — шаг не имеет имени.
	ErrEmptyStepName = errors.New("step has empty name")

	// ErrDuplicateStepName — несколько шагов с одинаковым именем.
	ErrDuplicateStepName = errors.New("duplicate step name")

	// ErrEmptyStepRun — шаг не имеет команды.
	ErrEmptyStepRun = errors.New("step has empty run command")

	// ErrUnknownAxis — ссылка на несуществующую ось
	// (в when шага или exclude-правиле).
	ErrUnknownAxis = errors.New("reference to unknown axis")

	// ErrUnknownAxisValue — exclude-правило ссылается на значение,
	// которого нет у оси.
	ErrUnknownAxisValue = errors.New("reference to unknown axis value")

	// ErrEmptyServiceName — сервис не имеет имени.
	ErrEmptyServiceName = errors.New("service has empty name")

	// ErrEmptyServiceImage — сервис не имеет образа.
	ErrEmptyServiceImage = errors.New("service has empty image")

	// ErrDuplicateService — несколько сервисов с одинаковым именем.
	ErrDuplicateService = errors.New("duplicate service name")

	// ErrEmptyHealthCmd — сервис не имеет команды проверки готовности.
	ErrEmptyHealthCmd = errors.New("service has empty health command")

	// ErrNoTriggers — документ не объявляет ни одного триггера.
	ErrNoTriggers = errors.New("pipeline declares no triggers")
)

// ConfigError — ошибка конфигурации с контекстом.
//
// Возникает только до старта jobs и фатальна для всего pipeline.
type ConfigError struct {
	Section string // секция документа ("matrix", "steps", "services", "on")
	Name    string // имя оси/шага/сервиса, где произошла ошибка
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ConfigError) Error() string {
	if e.Name != "" {
		return e.Section + " " + e.Name + ": " + e.Message
	}
	return e.Section + ": " + e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError создаёт новую ошибку конфигурации.
func NewConfigError(section, name, message string, err error) *ConfigError {
	return &ConfigError{
		Section: section,
		Name:    name,
		Message: message,
		Err:     err,
	}
}
