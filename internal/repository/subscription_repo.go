package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mrbuddhu/Speechix/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNoActiveSubscription is returned when the user has no subscription or
	// it is inactive.
	ErrNoActiveSubscription = errors.New("no active subscription")
	// ErrInsufficientQuota is returned when a quota check fails against the
	// daily or monthly character limit.
	ErrInsufficientQuota = errors.New("insufficient quota")
)

const subscriptionColumns = `id, user_id, plan_id, is_active,
       monthly_character_limit, monthly_character_usage,
       daily_character_limit, daily_character_usage,
       max_voice_clones, current_period_start, current_period_end,
       created_at, updated_at`

// SubscriptionRepository persists subscriptions and applies the quota ledger
// under the same row-locking discipline as job claims.
type SubscriptionRepository interface {
	GetByUserID(ctx context.Context, userID string) (*model.Subscription, error)
	// CheckQuota verifies that the user's active subscription can absorb
	// `characters` more. The lazy daily reset performed by the check is
	// persisted. Nothing is consumed.
	CheckQuota(ctx context.Context, userID string, characters int, now time.Time) error
	// RecordUsage adds `characters` to both usage counters. Called exactly
	// once per completed job.
	RecordUsage(ctx context.Context, userID string, characters int) error
	// UpdatePlan is the administrative plan change; switching plans resets the
	// billing period.
	UpdatePlan(ctx context.Context, userID, planID string, isActive bool, monthlyLimit, dailyLimit, maxVoiceClones *int, now time.Time) error
}

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

// NewSubscriptionRepo creates a new SubscriptionRepository.
func NewSubscriptionRepo(pool *pgxpool.Pool) SubscriptionRepository {
	return &subscriptionRepo{pool: pool}
}

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	var s model.Subscription
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.PlanID,
		&s.IsActive,
		&s.MonthlyCharacterLimit,
		&s.MonthlyCharacterUsage,
		&s.DailyCharacterLimit,
		&s.DailyCharacterUsage,
		&s.MaxVoiceClones,
		&s.CurrentPeriodStart,
		&s.CurrentPeriodEnd,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByUserID returns the user's subscription regardless of status, or nil
// when none exists.
func (r *subscriptionRepo) GetByUserID(ctx context.Context, userID string) (*model.Subscription, error) {
	const q = `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1`
	sub, err := scanSubscription(r.pool.QueryRow(ctx, q, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch subscription for user %s: %w", userID, err)
	}
	return sub, nil
}

func (r *subscriptionRepo) lockActive(ctx context.Context, tx pgx.Tx, userID string) (*model.Subscription, error) {
	const q = `
        SELECT ` + subscriptionColumns + `
        FROM subscriptions
        WHERE user_id = $1 AND is_active = TRUE
        FOR UPDATE
    `
	sub, err := scanSubscription(tx.QueryRow(ctx, q, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveSubscription
		}
		return nil, fmt.Errorf("locking subscription for user %s: %w", userID, err)
	}
	return sub, nil
}

// CheckQuota locks the subscription row, applies the lazy daily reset, and
// evaluates both limits. The reset is committed even when the check fails, so
// the first check of a new day always zeroes the daily counter.
func (r *subscriptionRepo) CheckQuota(ctx context.Context, userID string, characters int, now time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("starting quota check transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	sub, err := r.lockActive(ctx, tx, userID)
	if err != nil {
		return err
	}

	before := sub.DailyCharacterUsage
	ok := sub.HasQuota(now, characters)
	if sub.DailyCharacterUsage != before {
		const resetQ = `UPDATE subscriptions SET daily_character_usage = $1, updated_at = NOW() WHERE id = $2`
		if _, err := tx.Exec(ctx, resetQ, sub.DailyCharacterUsage, sub.ID); err != nil {
			return fmt.Errorf("persisting daily reset for user %s: %w", userID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing quota check for user %s: %w", userID, err)
	}
	if !ok {
		return ErrInsufficientQuota
	}
	return nil
}

// RecordUsage adds to both counters under the row lock.
func (r *subscriptionRepo) RecordUsage(ctx context.Context, userID string, characters int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("starting usage transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	sub, err := r.lockActive(ctx, tx, userID)
	if err != nil {
		return err
	}
	sub.RecordUsage(characters)

	const q = `
        UPDATE subscriptions
        SET daily_character_usage = $1, monthly_character_usage = $2, updated_at = NOW()
        WHERE id = $3
    `
	if _, err := tx.Exec(ctx, q, sub.DailyCharacterUsage, sub.MonthlyCharacterUsage, sub.ID); err != nil {
		return fmt.Errorf("recording usage for user %s: %w", userID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing usage for user %s: %w", userID, err)
	}
	return nil
}

// UpdatePlan applies an administrative subscription change. A plan switch
// resets the billing period; limit arguments left nil keep their values.
func (r *subscriptionRepo) UpdatePlan(ctx context.Context, userID, planID string, isActive bool, monthlyLimit, dailyLimit, maxVoiceClones *int, now time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("starting plan update transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const lockQ = `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1 FOR UPDATE`
	sub, err := scanSubscription(tx.QueryRow(ctx, lockQ, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNoActiveSubscription
		}
		return fmt.Errorf("locking subscription for user %s: %w", userID, err)
	}

	periodStart, periodEnd := sub.CurrentPeriodStart, sub.CurrentPeriodEnd
	if planID != sub.PlanID {
		periodStart = now
		periodEnd = now.AddDate(0, 0, 30)
	}
	if monthlyLimit != nil {
		sub.MonthlyCharacterLimit = *monthlyLimit
	}
	if dailyLimit != nil {
		sub.DailyCharacterLimit = *dailyLimit
	}
	if maxVoiceClones != nil {
		sub.MaxVoiceClones = *maxVoiceClones
	}

	const q = `
        UPDATE subscriptions
        SET plan_id = $1, is_active = $2,
            monthly_character_limit = $3, daily_character_limit = $4, max_voice_clones = $5,
            current_period_start = $6, current_period_end = $7, updated_at = NOW()
        WHERE id = $8
    `
	if _, err := tx.Exec(ctx, q,
		planID, isActive,
		sub.MonthlyCharacterLimit, sub.DailyCharacterLimit, sub.MaxVoiceClones,
		periodStart, periodEnd, sub.ID,
	); err != nil {
		return fmt.Errorf("updating plan for user %s: %w", userID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing plan update for user %s: %w", userID, err)
	}
	return nil
}
