package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrbuddhu/Speechix/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, email, COALESCE(full_name, ''), is_active, role, last_login, created_at, updated_at`

// UserRepository persists users. A user and their subscription are created in
// one transaction; a user without a subscription never exists.
type UserRepository interface {
	CreateUserWithSubscription(ctx context.Context, user *model.User, sub *model.Subscription) error
	GetUserByID(ctx context.Context, userID string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

type userRepo struct {
	pool *pgxpool.Pool
}

// NewUserRepo creates a new UserRepository.
func NewUserRepo(pool *pgxpool.Pool) UserRepository {
	return &userRepo{pool: pool}
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.FullName,
		&u.IsActive,
		&u.Role,
		&u.LastLogin,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUserWithSubscription inserts the user and their subscription
// atomically.
func (r *userRepo) CreateUserWithSubscription(ctx context.Context, user *model.User, sub *model.Subscription) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	sub.UserID = user.ID

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("starting user creation transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const userQ = `
        INSERT INTO users (id, email, full_name, is_active, role, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
        RETURNING created_at, updated_at
    `
	if err := tx.QueryRow(ctx, userQ,
		user.ID, user.Email, user.FullName, user.IsActive, user.Role,
	).Scan(&user.CreatedAt, &user.UpdatedAt); err != nil {
		return fmt.Errorf("insert user %s: %w", user.Email, err)
	}

	const subQ = `
        INSERT INTO subscriptions (id, user_id, plan_id, is_active,
            monthly_character_limit, monthly_character_usage,
            daily_character_limit, daily_character_usage,
            max_voice_clones, current_period_start, current_period_end,
            created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, 0, $6, 0, $7, $8, $9, NOW(), NOW())
    `
	if _, err := tx.Exec(ctx, subQ,
		sub.ID, sub.UserID, sub.PlanID, sub.IsActive,
		sub.MonthlyCharacterLimit, sub.DailyCharacterLimit,
		sub.MaxVoiceClones, sub.CurrentPeriodStart, sub.CurrentPeriodEnd,
	); err != nil {
		return fmt.Errorf("insert subscription for user %s: %w", user.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing user creation: %w", err)
	}
	return nil
}

// GetUserByID returns nil without error when the user does not exist.
func (r *userRepo) GetUserByID(ctx context.Context, userID string) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(r.pool.QueryRow(ctx, q, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch user %s: %w", userID, err)
	}
	return u, nil
}

// GetUserByEmail returns nil without error when no user has that email.
func (r *userRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	u, err := scanUser(r.pool.QueryRow(ctx, q, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch user by email %s: %w", email, err)
	}
	return u, nil
}
