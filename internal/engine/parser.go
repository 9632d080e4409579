package engine

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Conveyor/internal/domain"
)

// Parse парсит YAML-документ pipeline и выполняет полную валидацию.
func Parse(data []byte) (*domain.PipelineSpec, error) {
	var spec domain.PipelineSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, NewConfigError("document", "", fmt.Sprintf("parse yaml: %v", err), err)
	}

	if err := Validate(&spec); err != nil {
		return nil, err
	}

	return &spec, nil
}

// Validate выполняет полную валидацию документа pipeline.
//
// Проверяет:
//   - Наличие хотя бы одного триггера
//   - Матрицу: непустые оси, уникальность имён и значений
//   - Exclude-правила: ссылки только на существующие оси и значения
//   - Сервисы: имя, образ, команда health check
//   - Шаги: имя, команда, условия when ссылаются на существующие оси
func Validate(spec *domain.PipelineSpec) error {
	if spec == nil {
		return NewConfigError("document", "", "empty document", ErrEmptySteps)
	}

	if err := validateTriggers(&spec.On); err != nil {
		return err
	}
	if err := validateMatrix(&spec.Matrix); err != nil {
		return err
	}
	if err := validateServices(spec.Services); err != nil {
		return err
	}
	return validateSteps(spec.Steps, &spec.Matrix)
}

// validateTriggers проверяет, что pipeline может быть запущен.
func validateTriggers(on *domain.TriggerDef) error {
	if len(on.Push) == 0 && !on.PullRequest {
		return NewConfigError("on", "", "pipeline declares no triggers", ErrNoTriggers)
	}
	return nil
}

// validateMatrix проверяет оси и exclude-правила.
func validateMatrix(matrix *domain.MatrixDef) error {
	if len(matrix.Axes) == 0 {
		return NewConfigError("matrix", "", "matrix has no axes", ErrEmptyMatrix)
	}

	seen := make(map[string]bool, len(matrix.Axes))

	for i := range matrix.Axes {
		axis := &matrix.Axes[i]

		if axis.Name == "" {
			return NewConfigError("matrix", "", "axis has empty name", ErrEmptyAxisName)
		}
		if seen[axis.Name] {
			return NewConfigError("matrix", axis.Name,
				fmt.Sprintf("duplicate axis name: %s", axis.Name), ErrDuplicateAxis)
		}
		seen[axis.Name] = true

		if len(axis.Values) == 0 {
			return NewConfigError("matrix", axis.Name,
				"axis has no values", ErrEmptyAxisValues)
		}

		values := make(map[string]bool, len(axis.Values))
		for _, v := range axis.Values {
			if values[v] {
				return NewConfigError("matrix", axis.Name,
					fmt.Sprintf("duplicate value: %s", v), ErrDuplicateAxisValue)
			}
			values[v] = true
		}
	}

	// Exclude-правила должны ссылаться на существующие оси и значения,
	// иначе опечатка молча оставила бы несовместимую комбинацию в матрице.
	for i, rule := range matrix.Exclude {
		for axisName, value := range rule {
			axis := matrix.Axis(axisName)
			if axis == nil {
				return NewConfigError("matrix", fmt.Sprintf("exclude[%d]", i),
					fmt.Sprintf("unknown axis: %s", axisName), ErrUnknownAxis)
			}
			if !containsValue(axis.Values, value) {
				return NewConfigError("matrix", fmt.Sprintf("exclude[%d]", i),
					fmt.Sprintf("axis %s has no value %q", axisName, value), ErrUnknownAxisValue)
			}
		}
	}

	return nil
}

// validateServices проверяет декларации сервисов.
func validateServices(services []domain.ServiceDecl) error {
	seen := make(map[string]bool, len(services))

	for i := range services {
		svc := &services[i]

		if svc.Name == "" {
			return NewConfigError("services", "", "service has empty name", ErrEmptyServiceName)
		}
		if seen[svc.Name] {
			return NewConfigError("services", svc.Name,
				fmt.Sprintf("duplicate service name: %s", svc.Name), ErrDuplicateService)
		}
		seen[svc.Name] = true

		if svc.Image == "" {
			return NewConfigError("services", svc.Name,
				"service has empty image", ErrEmptyServiceImage)
		}
		if svc.Health.Cmd == "" {
			return NewConfigError("services", svc.Name,
				"service has empty health command", ErrEmptyHealthCmd)
		}
	}

	return nil
}

// validateSteps проверяет шаги и их условия when.
func validateSteps(steps []domain.StepDef, matrix *domain.MatrixDef) error {
	if len(steps) == 0 {
		return NewConfigError("steps", "", "pipeline has no steps", ErrEmptySteps)
	}

	seen := make(map[string]bool, len(steps))

	for i := range steps {
		step := &steps[i]

		if step.Name == "" {
			return NewConfigError("steps", "", "step has empty name", ErrEmptyStepName)
		}
		if seen[step.Name] {
			return NewConfigError("steps", step.Name,
				fmt.Sprintf("duplicate step name: %s", step.Name), ErrDuplicateStepName)
		}
		seen[step.Name] = true

		if step.Run == "" {
			return NewConfigError("steps", step.Name,
				"step has empty run command", ErrEmptyStepRun)
		}

		for axisName := range step.When {
			if matrix.Axis(axisName) == nil {
				return NewConfigError("steps", step.Name,
					fmt.Sprintf("when references unknown axis: %s", axisName), ErrUnknownAxis)
			}
		}
	}

	return nil
}

// containsValue проверяет наличие значения в списке значений оси.
func containsValue(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
