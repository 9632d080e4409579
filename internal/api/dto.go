package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Conveyor/internal/domain"
)

// Pipeline DTOs

// CreatePipelineRequest — запрос на создание pipeline.
type CreatePipelineRequest struct {
	Name string `json:"name"`
}

// UpdatePipelineRequest — запрос на обновление pipeline.
type UpdatePipelineRequest struct {
	Name     *string `json:"name,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// PipelineResponse — ответ с pipeline.
type PipelineResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// PipelineFromDomain конвертирует domain.Pipeline в PipelineResponse.
func PipelineFromDomain(p domain.Pipeline) PipelineResponse {
	return PipelineResponse{
		ID:        p.ID,
		Name:      p.Name,
		IsActive:  p.IsActive,
		CreatedAt: p.CreatedAt,
	}
}

// PipelineVersion DTOs

// CreatePipelineVersionRequest — запрос на создание версии pipeline.
type CreatePipelineVersionRequest struct {
	Spec domain.PipelineSpec `json:"spec"`
}

// PipelineVersionResponse — ответ с версией pipeline.
type PipelineVersionResponse struct {
	PipelineID uuid.UUID           `json:"pipeline_id"`
	Version    int                 `json:"version"`
	Spec       domain.PipelineSpec `json:"spec"`
	CreatedAt  time.Time           `json:"created_at"`
}

// PipelineVersionFromDomain конвертирует domain.PipelineVersion в PipelineVersionResponse.
func PipelineVersionFromDomain(v domain.PipelineVersion) PipelineVersionResponse {
	return PipelineVersionResponse{
		PipelineID: v.PipelineID,
		Version:    v.Version,
		Spec:       v.Spec,
		CreatedAt:  v.CreatedAt,
	}
}

// Event DTOs

// EventRequest — входящее событие репозитория (push / pull_request).
type EventRequest struct {
	Kind   string `json:"kind"`
	Ref    string `json:"ref,omitempty"`
	Commit string `json:"commit"`
}

// EventResponse — итог обработки события: созданные runs.
type EventResponse struct {
	Matched int           `json:"matched"`
	Runs    []RunResponse `json:"runs"`
}

// Run DTOs

// CreateRunRequest — запрос на ручной запуск pipeline.
type CreateRunRequest struct {
	Ref            string `json:"ref,omitempty"`
	Commit         string `json:"commit,omitempty"`
	Version        *int   `json:"version,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// RunResponse — ответ с run.
type RunResponse struct {
	ID             uuid.UUID           `json:"id"`
	PipelineID     uuid.UUID           `json:"pipeline_id"`
	Version        int                 `json:"version"`
	Status         string              `json:"status"`
	Event          domain.TriggerEvent `json:"event"`
	StartedAt      *time.Time          `json:"started_at,omitempty"`
	FinishedAt     *time.Time          `json:"finished_at,omitempty"`
	Error          string              `json:"error,omitempty"`
	IdempotencyKey string              `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
}

// RunFromDomain конвертирует domain.Run в RunResponse.
func RunFromDomain(r domain.Run) RunResponse {
	return RunResponse{
		ID:             r.ID,
		PipelineID:     r.PipelineID,
		Version:        r.Version,
		Status:         string(r.Status),
		Event:          r.Event,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
		Error:          r.Error,
		IdempotencyKey: r.IdempotencyKey,
		CreatedAt:      r.CreatedAt,
	}
}

// Job DTOs

// JobResponse — ответ с job.
type JobResponse struct {
	ID          uuid.UUID           `json:"id"`
	RunID       uuid.UUID           `json:"run_id"`
	Key         string              `json:"key"`
	Spec        domain.JobSpec      `json:"spec"`
	Status      string              `json:"status"`
	FailureKind string              `json:"failure_kind,omitempty"`
	FailedStep  string              `json:"failed_step,omitempty"`
	Steps       []domain.StepResult `json:"steps,omitempty"`
	Error       string              `json:"error,omitempty"`
	StartedAt   *time.Time          `json:"started_at,omitempty"`
	FinishedAt  *time.Time          `json:"finished_at,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

// JobFromDomain конвертирует domain.Job в JobResponse.
func JobFromDomain(j domain.Job) JobResponse {
	return JobResponse{
		ID:          j.ID,
		RunID:       j.RunID,
		Key:         j.Key,
		Spec:        j.Spec,
		Status:      string(j.Status),
		FailureKind: string(j.FailureKind),
		FailedStep:  j.FailedStep,
		Steps:       j.Steps,
		Error:       j.Error,
		StartedAt:   j.StartedAt,
		FinishedAt:  j.FinishedAt,
		CreatedAt:   j.CreatedAt,
	}
}

// RunReportResponse — сводный отчёт по run: итоги всех jobs.
type RunReportResponse struct {
	Run       RunResponse   `json:"run"`
	Jobs      []JobResponse `json:"jobs"`
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Cancelled int           `json:"cancelled"`
}

// Schedule DTOs

// CreateScheduleRequest — запрос на создание schedule.
type CreateScheduleRequest struct {
	Name        string `json:"name"`
	CronExpr    string `json:"cron_expr,omitempty"`
	IntervalSec int    `json:"interval_sec,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
	Ref         string `json:"ref,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// UpdateScheduleRequest — запрос на обновление schedule.
type UpdateScheduleRequest struct {
	Name        *string `json:"name,omitempty"`
	CronExpr    *string `json:"cron_expr,omitempty"`
	IntervalSec *int    `json:"interval_sec,omitempty"`
	Timezone    *string `json:"timezone,omitempty"`
	Ref         *string `json:"ref,omitempty"`
}

// SetEnabledRequest — запрос на включение/выключение.
type SetEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// ScheduleResponse — ответ с schedule.
type ScheduleResponse struct {
	ID          uuid.UUID  `json:"id"`
	PipelineID  uuid.UUID  `json:"pipeline_id"`
	Name        string     `json:"name"`
	CronExpr    string     `json:"cron_expr,omitempty"`
	IntervalSec int        `json:"interval_sec,omitempty"`
	Timezone    string     `json:"timezone"`
	Ref         string     `json:"ref,omitempty"`
	Enabled     bool       `json:"enabled"`
	NextDueAt   *time.Time `json:"next_due_at,omitempty"`
	LastRunAt   *time.Time `json:"last_run_at,omitempty"`
	LastRunID   *uuid.UUID `json:"last_run_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ScheduleFromDomain конвертирует domain.Schedule в ScheduleResponse.
func ScheduleFromDomain(s *domain.Schedule) ScheduleResponse {
	if s == nil {
		return ScheduleResponse{}
	}
	return ScheduleResponse{
		ID:          s.ID,
		PipelineID:  s.PipelineID,
		Name:        s.Name,
		CronExpr:    s.CronExpr,
		IntervalSec: s.IntervalSec,
		Timezone:    s.Timezone,
		Ref:         s.Ref,
		Enabled:     s.Enabled,
		NextDueAt:   s.NextDueAt,
		LastRunAt:   s.LastRunAt,
		LastRunID:   s.LastRunID,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}
