package engine

import (
	"errors"
	"testing"

	"github.com/shaiso/Conveyor/internal/domain"
)

const validDocument = `
name: openedx-learning-ci
on:
  push: [main]
  pull_request: true
matrix:
  axes:
    - name: os
      values: ["ubuntu-24.04"]
    - name: python
      values: ["3.11", "3.12"]
    - name: toxenv
      values: [django42, django52, quality, version_check]
    - name: mysql
      values: ["8"]
services:
  - name: mysql
    image: mysql:8
    ports: ["3306:3306"]
    env:
      MYSQL_DATABASE: test_db
      MYSQL_USER: test_user
      MYSQL_PASSWORD: test_pass
    randomize_root_password: true
    health:
      cmd: mysqladmin ping -h 127.0.0.1
      interval_sec: 10
      timeout_sec: 5
      retries: 3
env:
  PIP_DISABLE_PIP_VERSION_CHECK: "1"
steps:
  - name: checkout
    run: git clone "$REPO_URL" . && git checkout "$COMMIT_SHA"
  - name: install-deps
    run: pip install -r requirements/ci.txt
  - name: run-tox
    run: tox
    env:
      TOXENV: "$MATRIX_TOXENV"
`

func TestParse_ValidDocument(t *testing.T) {
	spec, err := Parse([]byte(validDocument))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if spec.Name != "openedx-learning-ci" {
		t.Errorf("unexpected name: %s", spec.Name)
	}
	if len(spec.Matrix.Axes) != 4 {
		t.Errorf("expected 4 axes, got %d", len(spec.Matrix.Axes))
	}
	if spec.Matrix.Cardinality() != 8 {
		t.Errorf("expected cardinality 8, got %d", spec.Matrix.Cardinality())
	}
	if len(spec.Services) != 1 {
		t.Fatalf("expected 1 service, got %d", len(spec.Services))
	}

	svc := spec.Services[0]
	if svc.Image != "mysql:8" {
		t.Errorf("unexpected service image: %s", svc.Image)
	}
	if !svc.RandomizeRootPassword {
		t.Error("randomize_root_password should be set")
	}
	if svc.Health.Retries != 3 || svc.Health.IntervalSec != 10 || svc.Health.TimeoutSec != 5 {
		t.Errorf("unexpected health check params: %+v", svc.Health)
	}

	if len(spec.Steps) != 3 {
		t.Errorf("expected 3 steps, got %d", len(spec.Steps))
	}
	if !spec.On.PullRequest {
		t.Error("pull_request trigger should be enabled")
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("matrix: [not: closed"))
	if err == nil {
		t.Fatal("expected error for malformed yaml")
	}
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("expected *ConfigError, got %T", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	base := func() *domain.PipelineSpec {
		return &domain.PipelineSpec{
			On: domain.TriggerDef{Push: []string{"main"}},
			Matrix: domain.MatrixDef{
				Axes: []domain.Axis{
					{Name: "python", Values: []string{"3.11", "3.12"}},
				},
			},
			Steps: []domain.StepDef{
				{Name: "test", Run: "tox"},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*domain.PipelineSpec)
		wantErr error
	}{
		{
			"no triggers",
			func(s *domain.PipelineSpec) { s.On = domain.TriggerDef{} },
			ErrNoTriggers,
		},
		{
			"no axes",
			func(s *domain.PipelineSpec) { s.Matrix.Axes = nil },
			ErrEmptyMatrix,
		},
		{
			"axis without name",
			func(s *domain.PipelineSpec) { s.Matrix.Axes[0].Name = "" },
			ErrEmptyAxisName,
		},
		{
			"duplicate axis",
			func(s *domain.PipelineSpec) {
				s.Matrix.Axes = append(s.Matrix.Axes, domain.Axis{Name: "python", Values: []string{"3.13"}})
			},
			ErrDuplicateAxis,
		},
		{
			"duplicate axis value",
			func(s *domain.PipelineSpec) { s.Matrix.Axes[0].Values = []string{"3.11", "3.11"} },
			ErrDuplicateAxisValue,
		},
		{
			"exclude references unknown axis",
			func(s *domain.PipelineSpec) {
				s.Matrix.Exclude = []domain.ExcludeRule{{"node": "22"}}
			},
			ErrUnknownAxis,
		},
		{
			"exclude references unknown value",
			func(s *domain.PipelineSpec) {
				s.Matrix.Exclude = []domain.ExcludeRule{{"python": "2.7"}}
			},
			ErrUnknownAxisValue,
		},
		{
			"no steps",
			func(s *domain.PipelineSpec) { s.Steps = nil },
			ErrEmptySteps,
		},
		{
			"step without name",
			func(s *domain.PipelineSpec) { s.Steps[0].Name = "" },
			ErrEmptyStepName,
		},
		{
			"duplicate step name",
			func(s *domain.PipelineSpec) {
				s.Steps = append(s.Steps, domain.StepDef{Name: "test", Run: "true"})
			},
			ErrDuplicateStepName,
		},
		{
			"step without command",
			func(s *domain.PipelineSpec) { s.Steps[0].Run = "" },
			ErrEmptyStepRun,
		},
		{
			"when references unknown axis",
			func(s *domain.PipelineSpec) {
				s.Steps[0].When = map[string]string{"node": "22"}
			},
			ErrUnknownAxis,
		},
		{
			"service without image",
			func(s *domain.PipelineSpec) {
				s.Services = []domain.ServiceDecl{{Name: "mysql", Health: domain.HealthCheck{Cmd: "ping"}}}
			},
			ErrEmptyServiceImage,
		},
		{
			"service without health command",
			func(s *domain.PipelineSpec) {
				s.Services = []domain.ServiceDecl{{Name: "mysql", Image: "mysql:8"}}
			},
			ErrEmptyHealthCmd,
		},
		{
			"duplicate service name",
			func(s *domain.PipelineSpec) {
				svc := domain.ServiceDecl{Name: "mysql", Image: "mysql:8", Health: domain.HealthCheck{Cmd: "ping"}}
				s.Services = []domain.ServiceDecl{svc, svc}
			},
			ErrDuplicateService,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := base()
			tt.mutate(spec)

			err := Validate(spec)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_ValidSpecPasses(t *testing.T) {
	spec := &domain.PipelineSpec{
		On: domain.TriggerDef{PullRequest: true},
		Matrix: domain.MatrixDef{
			Axes: []domain.Axis{
				{Name: "python", Values: []string{"3.12"}},
			},
		},
		Steps: []domain.StepDef{
			{Name: "test", Run: "tox", When: map[string]string{"python": "3.12"}},
		},
	}

	if err := Validate(spec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
