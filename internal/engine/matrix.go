package engine

import (
	"github.com/shaiso/Conveyor/internal/domain"
)

// Expand разворачивает матрицу в список JobSpec.
//
// Порядок детерминирован: лексикографический по порядку объявления осей,
// внутри оси — по порядку значений. Полная развёртка даёт ровно ∏ci
// комбинаций; совпавшие с exclude-правилами отбрасываются после развёртки.
//
// Expand — чистая функция без скрытого состояния: повторная развёртка
// той же матрицы всегда даёт тот же список в том же порядке.
func Expand(matrix *domain.MatrixDef) ([]domain.JobSpec, error) {
	if err := validateMatrix(matrix); err != nil {
		return nil, err
	}

	specs := make([]domain.JobSpec, 0, matrix.Cardinality())

	// indices[i] — позиция текущего значения оси i.
	// Инкремент как у одометра: последняя ось крутится быстрее всех.
	indices := make([]int, len(matrix.Axes))

	for {
		values := make([]domain.AxisValue, len(matrix.Axes))
		for i, axis := range matrix.Axes {
			values[i] = domain.AxisValue{Axis: axis.Name, Value: axis.Values[indices[i]]}
		}

		spec := domain.JobSpec{Values: values}
		if !excluded(spec, matrix.Exclude) {
			specs = append(specs, spec)
		}

		if !advance(indices, matrix.Axes) {
			break
		}
	}

	return specs, nil
}

// advance переводит одометр индексов к следующей комбинации.
// Возвращает false, когда комбинации исчерпаны.
func advance(indices []int, axes []domain.Axis) bool {
	for i := len(indices) - 1; i >= 0; i-- {
		indices[i]++
		if indices[i] < len(axes[i].Values) {
			return true
		}
		indices[i] = 0
	}
	return false
}

// excluded проверяет комбинацию против exclude-правил.
func excluded(spec domain.JobSpec, rules []domain.ExcludeRule) bool {
	for _, rule := range rules {
		if spec.Matches(rule) {
			return true
		}
	}
	return false
}
