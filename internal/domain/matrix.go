package domain

import (
	"strings"
)

// AxisValue — выбранное значение одной оси.
type AxisValue struct {
	// Axis — имя оси.
	Axis string `json:"axis"`

	// Value — выбранное значение.
	Value string `json:"value"`
}

// JobSpec — одна точка декартова произведения осей матрицы.
//
// JobSpec неизменяем после развёртки: полное присваивание по одному
// значению на каждую ось в порядке объявления осей. Идентичность job'а
// внутри run определяется ключом Key(), а не порядком завершения.
type JobSpec struct {
	// Values — значения осей в порядке объявления осей матрицы.
	Values []AxisValue `json:"values"`
}

// Key возвращает детерминированный ключ комбинации,
// например "ubuntu-24.04/3.12/django42/8".
func (s JobSpec) Key() string {
	parts := make([]string, len(s.Values))
	for i, v := range s.Values {
		parts[i] = v.Value
	}
	return strings.Join(parts, "/")
}

// Get возвращает значение оси по имени.
// Вторым значением возвращает false, если оси нет в комбинации.
func (s JobSpec) Get(axis string) (string, bool) {
	for _, v := range s.Values {
		if v.Axis == axis {
			return v.Value, true
		}
	}
	return "", false
}

// Map возвращает присваивание в виде map (ось → значение).
func (s JobSpec) Map() map[string]string {
	m := make(map[string]string, len(s.Values))
	for _, v := range s.Values {
		m[v.Axis] = v.Value
	}
	return m
}

// Env возвращает значения осей как переменные окружения.
// Имя оси приводится к верхнему регистру с префиксом MATRIX_:
// ось "python" → MATRIX_PYTHON.
func (s JobSpec) Env() map[string]string {
	env := make(map[string]string, len(s.Values))
	for _, v := range s.Values {
		name := "MATRIX_" + strings.ToUpper(strings.ReplaceAll(v.Axis, "-", "_"))
		env[name] = v.Value
	}
	return env
}

// Matches проверяет, совпадает ли комбинация с частичным присваиванием.
// Правило с осью, отсутствующей в комбинации, не совпадает.
func (s JobSpec) Matches(rule ExcludeRule) bool {
	if len(rule) == 0 {
		return false
	}
	for axis, want := range rule {
		got, ok := s.Get(axis)
		if !ok || got != want {
			return false
		}
	}
	return true
}
