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

const referenceAudioColumns = `id, user_id, name, COALESCE(description, ''), audio_url, audio_duration,
       is_active, is_public, metadata, created_at, updated_at`

// ReferenceAudioRepository persists voice-clone samples. Records are never
// deleted; Deactivate flips is_active so jobs keep their reference.
type ReferenceAudioRepository interface {
	Create(ctx context.Context, audio *model.ReferenceAudio) (*model.ReferenceAudio, error)
	// GetActive returns the active record with the given id owned by userID,
	// or nil when none matches.
	GetActive(ctx context.Context, audioID, userID string) (*model.ReferenceAudio, error)
	CountActive(ctx context.Context, userID string) (int, error)
	// Deactivate soft-deletes. Idempotent: deactivating an already-inactive
	// record still succeeds. Returns false only when no record owned by
	// userID exists at all.
	Deactivate(ctx context.Context, audioID, userID string) (bool, error)
	// ListByUser returns a page of the user's records with the given active
	// flag, newest-first, plus the total matching count.
	ListByUser(ctx context.Context, userID string, isActive bool, limit, offset int) ([]model.ReferenceAudio, int, error)
}

type referenceAudioRepo struct {
	pool *pgxpool.Pool
}

// NewReferenceAudioRepo creates a new ReferenceAudioRepository.
func NewReferenceAudioRepo(pool *pgxpool.Pool) ReferenceAudioRepository {
	return &referenceAudioRepo{pool: pool}
}

func scanReferenceAudio(row pgx.Row) (*model.ReferenceAudio, error) {
	var a model.ReferenceAudio
	var rawMeta []byte
	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.Name,
		&a.Description,
		&a.AudioURL,
		&a.AudioDuration,
		&a.IsActive,
		&a.IsPublic,
		&rawMeta,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(rawMeta) > 0 {
		if err := json.Unmarshal(rawMeta, &a.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata for reference audio %s: %w", a.ID, err)
		}
	}
	return &a, nil
}

func (r *referenceAudioRepo) Create(ctx context.Context, audio *model.ReferenceAudio) (*model.ReferenceAudio, error) {
	if audio.ID == "" {
		audio.ID = uuid.NewString()
	}
	meta, err := json.Marshal(audio.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	const q = `
        INSERT INTO reference_audios (id, user_id, name, description, audio_url, audio_duration, is_active, is_public, metadata, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7, $8, NOW(), NOW())
        RETURNING created_at, updated_at
    `
	err = r.pool.QueryRow(ctx, q,
		audio.ID, audio.UserID, audio.Name, audio.Description, audio.AudioURL, audio.AudioDuration, audio.IsPublic, meta,
	).Scan(&audio.CreatedAt, &audio.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert reference audio for user %s: %w", audio.UserID, err)
	}
	audio.IsActive = true
	return audio, nil
}

func (r *referenceAudioRepo) GetActive(ctx context.Context, audioID, userID string) (*model.ReferenceAudio, error) {
	const q = `
        SELECT ` + referenceAudioColumns + `
        FROM reference_audios
        WHERE id = $1 AND user_id = $2 AND is_active = TRUE
    `
	audio, err := scanReferenceAudio(r.pool.QueryRow(ctx, q, audioID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching reference audio %s: %w", audioID, err)
	}
	return audio, nil
}

func (r *referenceAudioRepo) CountActive(ctx context.Context, userID string) (int, error) {
	const q = `SELECT COUNT(*) FROM reference_audios WHERE user_id = $1 AND is_active = TRUE`
	var count int
	if err := r.pool.QueryRow(ctx, q, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting reference audios for user %s: %w", userID, err)
	}
	return count, nil
}

func (r *referenceAudioRepo) Deactivate(ctx context.Context, audioID, userID string) (bool, error) {
	// No is_active filter: flipping an inactive record is a harmless no-op,
	// which keeps the delete idempotent.
	const q = `
        UPDATE reference_audios
        SET is_active = FALSE, updated_at = NOW()
        WHERE id = $1 AND user_id = $2
    `
	tag, err := r.pool.Exec(ctx, q, audioID, userID)
	if err != nil {
		return false, fmt.Errorf("deactivating reference audio %s: %w", audioID, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *referenceAudioRepo) ListByUser(ctx context.Context, userID string, isActive bool, limit, offset int) ([]model.ReferenceAudio, int, error) {
	const countQ = `SELECT COUNT(*) FROM reference_audios WHERE user_id = $1 AND is_active = $2`
	var total int
	if err := r.pool.QueryRow(ctx, countQ, userID, isActive).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting reference audios for user %s: %w", userID, err)
	}

	const q = `
        SELECT ` + referenceAudioColumns + `
        FROM reference_audios
        WHERE user_id = $1 AND is_active = $2
        ORDER BY created_at DESC
        LIMIT $3 OFFSET $4
    `
	rows, err := r.pool.Query(ctx, q, userID, isActive, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing reference audios for user %s: %w", userID, err)
	}
	defer rows.Close()

	var audios []model.ReferenceAudio
	for rows.Next() {
		audio, err := scanReferenceAudio(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning reference audio row: %w", err)
		}
		audios = append(audios, *audio)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("reference audio row iteration: %w", err)
	}
	return audios, total, nil
}
