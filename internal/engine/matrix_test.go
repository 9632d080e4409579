package engine

import (
	"errors"
	"testing"

	"github.com/shaiso/Conveyor/internal/domain"
)

// testMatrix — матрица из реального CI: 1×2×4×1 = 8 комбинаций.
func testMatrix() *domain.MatrixDef {
	return &domain.MatrixDef{
		Axes: []domain.Axis{
			{Name: "os", Values: []string{"ubuntu-24.04"}},
			{Name: "python", Values: []string{"3.11", "3.12"}},
			{Name: "toxenv", Values: []string{"django42", "django52", "quality", "version_check"}},
			{Name: "mysql", Values: []string{"8"}},
		},
	}
}

func TestExpand_Cardinality(t *testing.T) {
	specs, err := Expand(testMatrix())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 1×2×4×1 = 8 комбинаций
	if len(specs) != 8 {
		t.Errorf("expected 8 job specs, got %d", len(specs))
	}

	// Проверяем уникальность ключей
	keys := make(map[string]bool)
	for _, spec := range specs {
		key := spec.Key()
		if keys[key] {
			t.Errorf("duplicate job spec: %s", key)
		}
		keys[key] = true
	}

	// Конкретная комбинация присутствует ровно один раз
	if !keys["ubuntu-24.04/3.12/quality/8"] {
		t.Error("expected combination ubuntu-24.04/3.12/quality/8 to be present")
	}
}

func TestExpand_Deterministic(t *testing.T) {
	first, err := Expand(testMatrix())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Expand(testMatrix())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("expansions differ in length: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Key() != second[i].Key() {
			t.Errorf("position %d differs: %s vs %s", i, first[i].Key(), second[i].Key())
		}
	}

	// Лексикографический порядок: первая ось объявления меняется реже всех
	if first[0].Key() != "ubuntu-24.04/3.11/django42/8" {
		t.Errorf("expected first spec ubuntu-24.04/3.11/django42/8, got %s", first[0].Key())
	}
	if first[len(first)-1].Key() != "ubuntu-24.04/3.12/version_check/8" {
		t.Errorf("expected last spec ubuntu-24.04/3.12/version_check/8, got %s", first[len(first)-1].Key())
	}
}

func TestExpand_Exclude(t *testing.T) {
	matrix := testMatrix()
	matrix.Exclude = []domain.ExcludeRule{
		{"python": "3.11", "toxenv": "django52"},
	}

	specs, err := Expand(matrix)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(specs) != 7 {
		t.Errorf("expected 7 job specs after exclusion, got %d", len(specs))
	}
	for _, spec := range specs {
		if spec.Key() == "ubuntu-24.04/3.11/django52/8" {
			t.Error("excluded combination present in expansion")
		}
	}
}

func TestExpand_EmptyAxisValues(t *testing.T) {
	matrix := &domain.MatrixDef{
		Axes: []domain.Axis{
			{Name: "os", Values: []string{"ubuntu-24.04"}},
			{Name: "python", Values: nil},
		},
	}

	_, err := Expand(matrix)
	if err == nil {
		t.Fatal("expected error for axis with no values")
	}
	if !errors.Is(err, ErrEmptyAxisValues) {
		t.Errorf("expected ErrEmptyAxisValues, got %v", err)
	}

	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatal("expected *ConfigError")
	}
	if cfgErr.Name != "python" {
		t.Errorf("expected error on axis python, got %q", cfgErr.Name)
	}
}

func TestExpand_EmptyMatrix(t *testing.T) {
	_, err := Expand(&domain.MatrixDef{})
	if !errors.Is(err, ErrEmptyMatrix) {
		t.Errorf("expected ErrEmptyMatrix, got %v", err)
	}
}

func TestExpand_SingleAxis(t *testing.T) {
	matrix := &domain.MatrixDef{
		Axes: []domain.Axis{
			{Name: "python", Values: []string{"3.11", "3.12"}},
		},
	}

	specs, err := Expand(matrix)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(specs) != 2 {
		t.Fatalf("expected 2 specs, got %d", len(specs))
	}
	if specs[0].Key() != "3.11" || specs[1].Key() != "3.12" {
		t.Errorf("unexpected order: %s, %s", specs[0].Key(), specs[1].Key())
	}
}

func TestShouldRun(t *testing.T) {
	spec := domain.JobSpec{Values: []domain.AxisValue{
		{Axis: "python", Value: "3.12"},
		{Axis: "toxenv", Value: "quality"},
	}}

	tests := []struct {
		name string
		when map[string]string
		want bool
	}{
		{"empty when always runs", nil, true},
		{"matching single condition", map[string]string{"python": "3.12"}, true},
		{"matching all conditions", map[string]string{"python": "3.12", "toxenv": "quality"}, true},
		{"mismatching value", map[string]string{"python": "3.11"}, false},
		{"one of two mismatches", map[string]string{"python": "3.12", "toxenv": "django42"}, false},
		{"unknown axis", map[string]string{"node": "22"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step := &domain.StepDef{Name: "s", Run: "true", When: tt.when}
			if got := ShouldRun(step, spec); got != tt.want {
				t.Errorf("ShouldRun() = %v, want %v", got, tt.want)
			}
		})
	}
}
