package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Pipeline — зарегистрированный CI-конвейер.
//
// Pipeline — это "контракт" проверки репозитория: какие комбинации
// окружений прогонять и какие сервисы для этого поднимать.
// Один pipeline может иметь множество версий (PipelineVersion).
// Каждый запуск (Run) выполняет конкретную версию pipeline.
type Pipeline struct {
	// ID — уникальный идентификатор pipeline.
	ID uuid.UUID `json:"id"`

	// Name — уникальное имя pipeline (например, "openedx-learning-ci").
	Name string `json:"name"`

	// IsActive — флаг активности. Неактивные pipelines не реагируют
	// на события и не запускаются по расписанию.
	IsActive bool `json:"is_active"`

	// CreatedAt — время регистрации pipeline.
	CreatedAt time.Time `json:"created_at"`
}

// PipelineVersion — версия pipeline с конкретным документом.
//
// Каждая загрузка документа создаёт новую неизменяемую версию,
// поэтому повторный запуск старого run всегда видит тот же документ.
type PipelineVersion struct {
	// PipelineID — ссылка на родительский pipeline.
	PipelineID uuid.UUID `json:"pipeline_id"`

	// Version — номер версии (1, 2, 3, ...).
	Version int `json:"version"`

	// Spec — декларативный документ pipeline.
	Spec PipelineSpec `json:"spec"`

	// CreatedAt — время создания версии.
	CreatedAt time.Time `json:"created_at"`
}

// PipelineSpec — декларативный документ pipeline (YAML).
//
// Это "программа" для Conveyor: триггеры, матрица окружений,
// вспомогательные сервисы и шаги.
type PipelineSpec struct {
	// Name — имя pipeline (дублирует Pipeline.Name для удобства).
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// On — события, запускающие pipeline.
	On TriggerDef `yaml:"on" json:"on"`

	// Matrix — матрица окружений. Каждая полная комбинация значений
	// осей порождает отдельный job.
	Matrix MatrixDef `yaml:"matrix" json:"matrix"`

	// Services — вспомогательные сервисы (БД и т.п.), поднимаемые
	// для каждого job отдельно.
	Services []ServiceDecl `yaml:"services,omitempty" json:"services,omitempty"`

	// Env — статические переменные окружения для всех шагов.
	Env map[string]string `yaml:"env,omitempty" json:"env,omitempty"`

	// Steps — упорядоченный список шагов job.
	Steps []StepDef `yaml:"steps" json:"steps"`
}

// TriggerDef — условия запуска pipeline.
type TriggerDef struct {
	// Push — ветки, push в которые запускает pipeline.
	Push []string `yaml:"push,omitempty" json:"push,omitempty"`

	// PullRequest — запускать ли pipeline на pull request.
	// Целевая ветка не ограничивается.
	PullRequest bool `yaml:"pull_request,omitempty" json:"pull_request,omitempty"`
}

// Matches проверяет, запускает ли событие данный pipeline.
//
// Push сравнивается по имени ветки: ref вида "refs/heads/main"
// нормализуется до "main". Pull request не ограничивается веткой.
// Scheduled и ручные запуски триггерами не фильтруются.
func (t *TriggerDef) Matches(event TriggerEvent) bool {
	switch event.Kind {
	case EventPush:
		branch := strings.TrimPrefix(event.Ref, "refs/heads/")
		for _, b := range t.Push {
			if b == branch {
				return true
			}
		}
		return false
	case EventPullRequest:
		return t.PullRequest
	default:
		return false
	}
}

// MatrixDef — описание матрицы окружений.
type MatrixDef struct {
	// Axes — оси матрицы в порядке объявления.
	// Порядок осей и значений определяет порядок job'ов при развёртке.
	Axes []Axis `yaml:"axes" json:"axes"`

	// Exclude — правила исключения комбинаций.
	// Комбинация исключается, если совпадает со всеми значениями
	// хотя бы одного правила (частичное присваивание осей).
	Exclude []ExcludeRule `yaml:"exclude,omitempty" json:"exclude,omitempty"`
}

// Axis — одна ось матрицы: имя и упорядоченный список значений.
// Значения — непрозрачные строки.
type Axis struct {
	// Name — имя оси (например, "python", "toxenv").
	Name string `yaml:"name" json:"name"`

	// Values — значения оси в порядке объявления.
	Values []string `yaml:"values" json:"values"`
}

// ExcludeRule — частичное присваивание осей, исключающее комбинации.
// Ключ — имя оси, значение — значение оси.
type ExcludeRule map[string]string

// ServiceDecl — декларация вспомогательного сервиса.
//
// Сервис поднимается в отдельном контейнере для каждого job
// и останавливается при завершении job независимо от исхода.
type ServiceDecl struct {
	// Name — имя сервиса (например, "mysql").
	Name string `yaml:"name" json:"name"`

	// Image — ссылка на образ контейнера.
	Image string `yaml:"image" json:"image"`

	// Ports — проброс портов в формате "host:container".
	Ports []string `yaml:"ports,omitempty" json:"ports,omitempty"`

	// Env — переменные окружения для инициализации сервиса.
	Env map[string]string `yaml:"env,omitempty" json:"env,omitempty"`

	// RandomizeRootPassword — сгенерировать случайный административный
	// пароль вместо фиксированного (MYSQL_RANDOM_ROOT_PASSWORD).
	RandomizeRootPassword bool `yaml:"randomize_root_password,omitempty" json:"randomize_root_password,omitempty"`

	// Health — проверка готовности сервиса.
	Health HealthCheck `yaml:"health" json:"health"`
}

// HealthCheck — параметры проверки готовности сервиса.
type HealthCheck struct {
	// Cmd — команда проверки, выполняемая внутри контейнера сервиса.
	Cmd string `yaml:"cmd" json:"cmd"`

	// IntervalSec — интервал между проверками в секундах.
	IntervalSec int `yaml:"interval_sec,omitempty" json:"interval_sec,omitempty"`

	// TimeoutSec — таймаут одной проверки в секундах.
	TimeoutSec int `yaml:"timeout_sec,omitempty" json:"timeout_sec,omitempty"`

	// Retries — максимальное количество проверок до признания
	// сервиса недоступным.
	Retries int `yaml:"retries,omitempty" json:"retries,omitempty"`
}

// StepDef — определение шага job.
type StepDef struct {
	// Name — человекочитаемое имя шага.
	Name string `yaml:"name" json:"name"`

	// Run — команда шага (внешний процесс, shell).
	Run string `yaml:"run" json:"run"`

	// Env — переменные окружения шага. Накладываются поверх
	// статических и осевых переменных; видны только этому шагу.
	Env map[string]string `yaml:"env,omitempty" json:"env,omitempty"`

	// When — условие выполнения по значениям осей.
	// Шаг выполняется, только если каждое указанное значение
	// совпадает со значением соответствующей оси job'а.
	// Пустой When — шаг выполняется всегда.
	When map[string]string `yaml:"when,omitempty" json:"when,omitempty"`
}

// Cardinality возвращает размер полной декартовой развёртки
// (без учёта exclude-правил). Ось без значений даёт 0.
func (m *MatrixDef) Cardinality() int {
	if len(m.Axes) == 0 {
		return 0
	}
	total := 1
	for _, axis := range m.Axes {
		total *= len(axis.Values)
	}
	return total
}

// Axis возвращает ось по имени или nil.
func (m *MatrixDef) Axis(name string) *Axis {
	for i := range m.Axes {
		if m.Axes[i].Name == name {
			return &m.Axes[i]
		}
	}
	return nil
}
