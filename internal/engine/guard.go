package engine

import (
	"github.com/shaiso/Conveyor/internal/domain"
)

// ShouldRun вычисляет условие when шага для конкретной комбинации осей.
//
// Шаг выполняется, если каждое указанное в when значение совпадает со
// значением соответствующей оси. Пустой when — шаг выполняется всегда.
// Ссылки на несуществующие оси отсекаются валидацией, здесь они
// трактуются как несовпадение.
func ShouldRun(step *domain.StepDef, spec domain.JobSpec) bool {
	for axis, want := range step.When {
		got, ok := spec.Get(axis)
		if !ok || got != want {
			return false
		}
	}
	return true
}
