package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mrbuddhu/Speechix/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrJobNotFound is returned when a job does not exist or has already been
// claimed/finished. A concurrent claimer losing the race sees the same error
// as a caller passing an unknown id.
var ErrJobNotFound = errors.New("job not found or already processed")

const jobColumns = `id, user_id, status, text, voice_type, voice_id, reference_audio_id,
       COALESCE(audio_url, ''), COALESCE(audio_duration, 0), COALESCE(error_message, ''),
       metadata, created_at, updated_at`

// JobRepository persists TTS jobs. Claim and Cancel take an exclusive row lock
// so concurrent attempts on the same job serialize.
type JobRepository interface {
	CreateJob(ctx context.Context, job *model.TTSJob) (*model.TTSJob, error)
	// ClaimJob locks a job still in queued/processing and moves it to
	// processing. Returns ErrJobNotFound when no claimable row matches.
	ClaimJob(ctx context.Context, jobID string) (*model.TTSJob, error)
	CompleteJob(ctx context.Context, jobID, audioURL string, duration float64) error
	FailJob(ctx context.Context, jobID, errorMessage string) error
	// CancelJob cancels a non-terminal job owned by userID. Returns false when
	// no such job exists (wrong id, wrong owner, or already terminal).
	CancelJob(ctx context.Context, jobID, userID string) (bool, error)
	// GetJob returns nil without error when the job does not exist. An empty
	// userID skips the ownership filter.
	GetJob(ctx context.Context, jobID, userID string) (*model.TTSJob, error)
	// ListJobsByUser returns a page of the user's jobs newest-first plus the
	// total matching count. An empty status matches all statuses.
	ListJobsByUser(ctx context.Context, userID string, status model.JobStatus, limit, offset int) ([]model.TTSJob, int, error)
}

type jobRepo struct {
	pool *pgxpool.Pool
}

// NewJobRepo creates a new JobRepository.
func NewJobRepo(pool *pgxpool.Pool) JobRepository {
	return &jobRepo{pool: pool}
}

func scanJob(row pgx.Row) (*model.TTSJob, error) {
	var j model.TTSJob
	var rawMeta []byte
	err := row.Scan(
		&j.ID,
		&j.UserID,
		&j.Status,
		&j.Text,
		&j.VoiceType,
		&j.VoiceID,
		&j.ReferenceAudioID,
		&j.AudioURL,
		&j.AudioDuration,
		&j.ErrorMessage,
		&rawMeta,
		&j.CreatedAt,
		&j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(rawMeta) > 0 {
		if err := json.Unmarshal(rawMeta, &j.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata for job %s: %w", j.ID, err)
		}
	}
	return &j, nil
}

// CreateJob inserts a new job in the queued state.
func (r *jobRepo) CreateJob(ctx context.Context, job *model.TTSJob) (*model.TTSJob, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	meta, err := json.Marshal(job.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	const q = `
        INSERT INTO tts_jobs (id, user_id, status, text, voice_type, voice_id, reference_audio_id, metadata, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
        RETURNING created_at, updated_at
    `
	err = r.pool.QueryRow(ctx, q,
		job.ID, job.UserID, model.JobQueued, job.Text, job.VoiceType, job.VoiceID, job.ReferenceAudioID, meta,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert job for user %s: %w", job.UserID, err)
	}
	job.Status = model.JobQueued
	return job, nil
}

// ClaimJob acquires the exclusive right to process a job. The FOR UPDATE lock
// is the sole correctness guarantee against double-processing.
func (r *jobRepo) ClaimJob(ctx context.Context, jobID string) (*model.TTSJob, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting claim transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const lockQ = `
        SELECT ` + jobColumns + `
        FROM tts_jobs
        WHERE id = $1
          AND status IN ('queued', 'processing')
        FOR UPDATE
    `
	job, err := scanJob(tx.QueryRow(ctx, lockQ, jobID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("locking job %s: %w", jobID, err)
	}

	if err := job.StartProcessing(); err != nil {
		return nil, err
	}
	const updateQ = `UPDATE tts_jobs SET status = $1, updated_at = NOW() WHERE id = $2`
	if _, err := tx.Exec(ctx, updateQ, job.Status, jobID); err != nil {
		return nil, fmt.Errorf("marking job %s processing: %w", jobID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing claim of job %s: %w", jobID, err)
	}
	return job, nil
}

// CompleteJob records a successful outcome. The status filter keeps the write
// idempotent: a job no longer in processing is left untouched.
func (r *jobRepo) CompleteJob(ctx context.Context, jobID, audioURL string, duration float64) error {
	const q = `
        UPDATE tts_jobs
        SET status = 'completed', audio_url = $1, audio_duration = $2, error_message = NULL, updated_at = NOW()
        WHERE id = $3 AND status = 'processing'
    `
	tag, err := r.pool.Exec(ctx, q, audioURL, duration, jobID)
	if err != nil {
		return fmt.Errorf("completing job %s: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

// FailJob records a failure with a human-readable cause.
func (r *jobRepo) FailJob(ctx context.Context, jobID, errorMessage string) error {
	const q = `
        UPDATE tts_jobs
        SET status = 'failed', error_message = $1, updated_at = NOW()
        WHERE id = $2 AND status = 'processing'
    `
	tag, err := r.pool.Exec(ctx, q, errorMessage, jobID)
	if err != nil {
		return fmt.Errorf("failing job %s: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

// CancelJob moves a queued/processing job owned by userID to cancelled.
func (r *jobRepo) CancelJob(ctx context.Context, jobID, userID string) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("starting cancel transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const lockQ = `
        SELECT ` + jobColumns + `
        FROM tts_jobs
        WHERE id = $1
          AND user_id = $2
          AND status IN ('queued', 'processing')
        FOR UPDATE
    `
	job, err := scanJob(tx.QueryRow(ctx, lockQ, jobID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("locking job %s for cancel: %w", jobID, err)
	}

	if err := job.Cancel(); err != nil {
		return false, nil
	}
	const updateQ = `UPDATE tts_jobs SET status = $1, updated_at = NOW() WHERE id = $2`
	if _, err := tx.Exec(ctx, updateQ, job.Status, jobID); err != nil {
		return false, fmt.Errorf("cancelling job %s: %w", jobID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("committing cancel of job %s: %w", jobID, err)
	}
	return true, nil
}

// GetJob fetches a job by id, optionally scoped to an owner.
func (r *jobRepo) GetJob(ctx context.Context, jobID, userID string) (*model.TTSJob, error) {
	q := `SELECT ` + jobColumns + ` FROM tts_jobs WHERE id = $1`
	args := []any{jobID}
	if userID != "" {
		q += ` AND user_id = $2`
		args = append(args, userID)
	}
	job, err := scanJob(r.pool.QueryRow(ctx, q, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching job %s: %w", jobID, err)
	}
	return job, nil
}

// ListJobsByUser pages through a user's job history newest-first.
func (r *jobRepo) ListJobsByUser(ctx context.Context, userID string, status model.JobStatus, limit, offset int) ([]model.TTSJob, int, error) {
	countQ := `SELECT COUNT(*) FROM tts_jobs WHERE user_id = $1`
	listQ := `SELECT ` + jobColumns + ` FROM tts_jobs WHERE user_id = $1`
	args := []any{userID}
	if status != "" {
		countQ += ` AND status = $2`
		listQ += ` AND status = $2`
		args = append(args, status)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting jobs for user %s: %w", userID, err)
	}

	listQ += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, listQ, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing jobs for user %s: %w", userID, err)
	}
	defer rows.Close()

	var jobs []model.TTSJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning job row: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("job row iteration: %w", err)
	}
	return jobs, total, nil
}
