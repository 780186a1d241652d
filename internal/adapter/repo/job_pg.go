package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/domain"
)

// JobRepositoryPG implements domain.JobRepository backed by PostgreSQL.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

const jobColumns = `id, user_id, kind, status, provider_job_id, credits_cost, result_ref, error_message, created_at, updated_at`

// Create inserts a new job record in PENDING state.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	query := `
INSERT INTO jobs (id, user_id, kind, status, provider_job_id, credits_cost, result_ref, error_message)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
`
	_, err := r.pool.Exec(ctx, query,
		job.ID,
		job.UserID,
		job.Kind,
		job.Status,
		job.ProviderJobID,
		job.CreditsCost,
		job.ResultRef,
		job.ErrorMessage,
	)
	return err
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1;`, jobID)
	return scanJob(row)
}

// ListByUser returns the user's most recent jobs.
func (r *JobRepositoryPG) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Job, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+jobColumns+`
FROM jobs
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2;
`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// MarkInProgress stores the provider correlation id; only a PENDING job moves.
func (r *JobRepositoryPG) MarkInProgress(ctx context.Context, jobID, providerJobID string) error {
	query := `
UPDATE jobs
SET status = $2,
    provider_job_id = $3,
    updated_at = NOW()
WHERE id = $1
  AND status = $4;
`
	_, err := r.pool.Exec(ctx, query, jobID, domain.JobStatusInProgress, providerJobID, domain.JobStatusPending)
	return err
}

// Finalize performs the terminal transition as an atomic conditional update.
// The WHERE clause commits only when the current status is still
// non-terminal, so at most one of any concurrent callers wins.
func (r *JobRepositoryPG) Finalize(ctx context.Context, jobID string, status domain.JobStatus, resultRef, errMsg string) (bool, error) {
	if !status.Terminal() {
		return false, errors.New("finalize requires a terminal status")
	}
	query := `
UPDATE jobs
SET status = $2,
    result_ref = COALESCE(NULLIF($3, ''), result_ref),
    error_message = COALESCE(NULLIF($4, ''), error_message),
    updated_at = NOW()
WHERE id = $1
  AND status IN ($5, $6);
`
	tag, err := r.pool.Exec(ctx, query, jobID, status, resultRef, errMsg, domain.JobStatusPending, domain.JobStatusInProgress)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	if err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.Kind,
		&job.Status,
		&job.ProviderJobID,
		&job.CreditsCost,
		&job.ResultRef,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}
