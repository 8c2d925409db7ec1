package dto

import (
	"time"

	"github.com/mrbuddhu/Speechix/internal/model"
)

// CreateUserDTO is the body of POST /users.
type CreateUserDTO struct {
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"full_name" validate:"max=200"`
}

// UserResponseDTO is the wire shape of one user.
type UserResponseDTO struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name,omitempty"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// NewUserResponse maps a user onto the wire shape.
func NewUserResponse(u *model.User) UserResponseDTO {
	return UserResponseDTO{
		UserID:    u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      string(u.Role),
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

// UpdateSubscriptionDTO is the admin plan change body.
type UpdateSubscriptionDTO struct {
	PlanID                string `json:"plan_id" validate:"required"`
	IsActive              bool   `json:"is_active"`
	MonthlyCharacterLimit *int   `json:"monthly_character_limit,omitempty" validate:"omitempty,gte=0"`
	DailyCharacterLimit   *int   `json:"daily_character_limit,omitempty" validate:"omitempty,gte=0"`
	MaxVoiceClones        *int   `json:"max_voice_clones,omitempty" validate:"omitempty,gte=0"`
}

// SubscriptionResponseDTO is the wire shape of one subscription.
type SubscriptionResponseDTO struct {
	PlanID                string    `json:"plan_id"`
	IsActive              bool      `json:"is_active"`
	MonthlyCharacterLimit int       `json:"monthly_character_limit"`
	MonthlyCharacterUsage int       `json:"monthly_character_usage"`
	DailyCharacterLimit   int       `json:"daily_character_limit"`
	DailyCharacterUsage   int       `json:"daily_character_usage"`
	MaxVoiceClones        int       `json:"max_voice_clones"`
	CurrentPeriodStart    time.Time `json:"current_period_start"`
	CurrentPeriodEnd      time.Time `json:"current_period_end"`
}

// NewSubscriptionResponse maps a subscription onto the wire shape.
func NewSubscriptionResponse(s *model.Subscription) SubscriptionResponseDTO {
	return SubscriptionResponseDTO{
		PlanID:                s.PlanID,
		IsActive:              s.IsActive,
		MonthlyCharacterLimit: s.MonthlyCharacterLimit,
		MonthlyCharacterUsage: s.MonthlyCharacterUsage,
		DailyCharacterLimit:   s.DailyCharacterLimit,
		DailyCharacterUsage:   s.DailyCharacterUsage,
		MaxVoiceClones:        s.MaxVoiceClones,
		CurrentPeriodStart:    s.CurrentPeriodStart,
		CurrentPeriodEnd:      s.CurrentPeriodEnd,
	}
}
