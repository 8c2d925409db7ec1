package model

import "time"

// UserRole distinguishes regular users from administrators.
type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// User represents an account in the system. Every user owns exactly one
// Subscription, created in the same transaction as the user itself.
type User struct {
	ID        string     `db:"id" json:"id"`
	Email     string     `db:"email" json:"email"`
	FullName  string     `db:"full_name" json:"full_name"`
	IsActive  bool       `db:"is_active" json:"is_active"`
	Role      UserRole   `db:"role" json:"role"`
	LastLogin *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// Subscription carries the plan limits and the running usage counters for one
// user. The counters are mutated only through HasQuota (lazy daily reset) and
// RecordUsage, always under the same row lock as job claims.
type Subscription struct {
	ID                    string    `db:"id" json:"id"`
	UserID                string    `db:"user_id" json:"user_id"`
	PlanID                string    `db:"plan_id" json:"plan_id"`
	IsActive              bool      `db:"is_active" json:"is_active"`
	MonthlyCharacterLimit int       `db:"monthly_character_limit" json:"monthly_character_limit"`
	MonthlyCharacterUsage int       `db:"monthly_character_usage" json:"monthly_character_usage"`
	DailyCharacterLimit   int       `db:"daily_character_limit" json:"daily_character_limit"`
	DailyCharacterUsage   int       `db:"daily_character_usage" json:"daily_character_usage"`
	MaxVoiceClones        int       `db:"max_voice_clones" json:"max_voice_clones"`
	CurrentPeriodStart    time.Time `db:"current_period_start" json:"current_period_start"`
	CurrentPeriodEnd      time.Time `db:"current_period_end" json:"current_period_end"`
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time `db:"updated_at" json:"updated_at"`
}

// DefaultSubscription returns the free-tier subscription created for new users.
func DefaultSubscription(userID string, now time.Time) *Subscription {
	return &Subscription{
		UserID:                userID,
		PlanID:                "free",
		IsActive:              true,
		MonthlyCharacterLimit: 10000,
		DailyCharacterLimit:   500,
		MaxVoiceClones:        3,
		CurrentPeriodStart:    now,
		CurrentPeriodEnd:      now.AddDate(0, 0, 30),
	}
}

// HasQuota reports whether the subscription can absorb an additional
// `characters` of usage. If the wall-clock date has advanced past the
// subscription's last update, the daily counter is reset to zero as a side
// effect of the check; callers persisting the subscription afterwards make the
// reset durable. Both the daily and the monthly limit must hold.
func (s *Subscription) HasQuota(now time.Time, characters int) bool {
	if now.Truncate(24 * time.Hour).After(s.UpdatedAt.Truncate(24 * time.Hour)) {
		s.DailyCharacterUsage = 0
	}
	if s.DailyCharacterUsage+characters > s.DailyCharacterLimit {
		return false
	}
	if s.MonthlyCharacterUsage+characters > s.MonthlyCharacterLimit {
		return false
	}
	return true
}

// RecordUsage adds `characters` to both counters. Usage is consumption-based:
// this must be called exactly once per job, and only after synthesis succeeded.
func (s *Subscription) RecordUsage(characters int) {
	s.DailyCharacterUsage += characters
	s.MonthlyCharacterUsage += characters
}
