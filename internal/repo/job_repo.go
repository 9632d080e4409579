package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Conveyor/internal/domain"
)

// JobRepo — репозиторий для работы с jobs.
type JobRepo struct {
	pool *pgxpool.Pool
}

// NewJobRepo создаёт новый JobRepo.
func NewJobRepo(pool *pgxpool.Pool) *JobRepo {
	return &JobRepo{pool: pool}
}

// Create создаёт новый job.
func (r *JobRepo) Create(ctx context.Context, job *domain.Job) error {
	specJSON, err := json.Marshal(job.Spec)
	if err != nil {
		return fmt.Errorf("marshal spec: %w", err)
	}

	query := `
		INSERT INTO jobs (id, run_id, key, spec, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = r.pool.Exec(ctx, query,
		job.ID,
		job.RunID,
		job.Key,
		specJSON,
		job.Status,
		job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetByID возвращает job по ID.
func (r *JobRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := `
		SELECT id, run_id, key, spec, status, failure_kind, failed_step, steps,
		       error, started_at, finished_at, created_at
		FROM jobs
		WHERE id = $1
	`
	return r.scanJob(r.pool.QueryRow(ctx, query, id))
}

// ListByRunID возвращает все jobs для run в порядке создания.
// Порядок создания совпадает с порядком развёртки матрицы.
func (r *JobRepo) ListByRunID(ctx context.Context, runID uuid.UUID) ([]domain.Job, error) {
	query := `
		SELECT id, run_id, key, spec, status, failure_kind, failed_step, steps,
		       error, started_at, finished_at, created_at
		FROM jobs
		WHERE run_id = $1
		ORDER BY created_at ASC, key ASC
	`
	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list jobs by run_id: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := r.scanJobFromRows(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// Update обновляет job.
func (r *JobRepo) Update(ctx context.Context, job *domain.Job) error {
	stepsJSON, err := json.Marshal(job.Steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}

	query := `
		UPDATE jobs
		SET status = $2, failure_kind = $3, failed_step = $4, steps = $5,
		    error = $6, started_at = $7, finished_at = $8
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		job.ID,
		job.Status,
		nullString(string(job.FailureKind)),
		nullString(job.FailedStep),
		stepsJSON,
		nullString(job.Error),
		job.StartedAt,
		job.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListQueued возвращает jobs в статусе QUEUED.
// Polling-fallback воркера на случай потери MQ-сообщения.
func (r *JobRepo) ListQueued(ctx context.Context, limit int) ([]domain.Job, error) {
	query := `
		SELECT id, run_id, key, spec, status, failure_kind, failed_step, steps,
		       error, started_at, finished_at, created_at
		FROM jobs
		WHERE status = 'QUEUED'
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list queued jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := r.scanJobFromRows(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// CountByRunAndStatus возвращает количество jobs по статусу для run.
func (r *JobRepo) CountByRunAndStatus(ctx context.Context, runID uuid.UUID, status domain.JobStatus) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM jobs WHERE run_id = $1 AND status = $2
	`, runID, status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}
	return count, nil
}

// StatusesByRun возвращает статусы всех jobs для run.
// Используется для восстановления агрегата после рестарта orchestrator.
func (r *JobRepo) StatusesByRun(ctx context.Context, runID uuid.UUID) ([]domain.JobStatus, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status FROM jobs WHERE run_id = $1
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list job statuses: %w", err)
	}
	defer rows.Close()

	var statuses []domain.JobStatus
	for rows.Next() {
		var s domain.JobStatus
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan job status: %w", err)
		}
		statuses = append(statuses, s)
	}
	return statuses, rows.Err()
}

// --- Helpers ---

func (r *JobRepo) scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	var specJSON, stepsJSON []byte
	var failureKind, failedStep, jobError *string

	err := row.Scan(
		&job.ID,
		&job.RunID,
		&job.Key,
		&specJSON,
		&job.Status,
		&failureKind,
		&failedStep,
		&stepsJSON,
		&jobError,
		&job.StartedAt,
		&job.FinishedAt,
		&job.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}

	if specJSON != nil {
		if err := json.Unmarshal(specJSON, &job.Spec); err != nil {
			return nil, fmt.Errorf("unmarshal spec: %w", err)
		}
	}
	if stepsJSON != nil {
		if err := json.Unmarshal(stepsJSON, &job.Steps); err != nil {
			return nil, fmt.Errorf("unmarshal steps: %w", err)
		}
	}
	if failureKind != nil {
		job.FailureKind = domain.FailureKind(*failureKind)
	}
	if failedStep != nil {
		job.FailedStep = *failedStep
	}
	if jobError != nil {
		job.Error = *jobError
	}

	return &job, nil
}

func (r *JobRepo) scanJobFromRows(rows pgx.Rows) (*domain.Job, error) {
	var job domain.Job
	var specJSON, stepsJSON []byte
	var failureKind, failedStep, jobError *string

	err := rows.Scan(
		&job.ID,
		&job.RunID,
		&job.Key,
		&specJSON,
		&job.Status,
		&failureKind,
		&failedStep,
		&stepsJSON,
		&jobError,
		&job.StartedAt,
		&job.FinishedAt,
		&job.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}

	if specJSON != nil {
		if err := json.Unmarshal(specJSON, &job.Spec); err != nil {
			return nil, fmt.Errorf("unmarshal spec: %w", err)
		}
	}
	if stepsJSON != nil {
		if err := json.Unmarshal(stepsJSON, &job.Steps); err != nil {
			return nil, fmt.Errorf("unmarshal steps: %w", err)
		}
	}
	if failureKind != nil {
		job.FailureKind = domain.FailureKind(*failureKind)
	}
	if failedStep != nil {
		job.FailedStep = *failedStep
	}
	if jobError != nil {
		job.Error = *jobError
	}

	return &job, nil
}
