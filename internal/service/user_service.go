package service

import (
	"context"
	"errors"
	"time"

	"github.com/mrbuddhu/Speechix/internal/model"
	"github.com/mrbuddhu/Speechix/internal/repository"

	"github.com/rs/zerolog"
)

var (
	// ErrUserNotFound is returned for lookups of unknown users.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken is returned when registration hits an existing email.
	ErrEmailTaken = errors.New("email already registered")
)

// UserService manages accounts and their subscriptions.
type UserService interface {
	// CreateUser registers a new user with the default free subscription.
	CreateUser(ctx context.Context, email, fullName string) (*model.User, error)
	GetUser(ctx context.Context, userID string) (*model.User, error)
	// UpdateSubscriptionPlan is the administrative plan change. Nil limit
	// pointers keep the current values; a plan switch resets the period.
	UpdateSubscriptionPlan(ctx context.Context, userID, planID string, isActive bool, monthlyLimit, dailyLimit, maxVoiceClones *int) (*model.Subscription, error)
}

type userService struct {
	users      repository.UserRepository
	subs       repository.SubscriptionRepository
	userLogger zerolog.Logger
}

// NewUserService creates a UserService.
func NewUserService(users repository.UserRepository, subs repository.SubscriptionRepository, logger zerolog.Logger) UserService {
	return &userService{
		users:      users,
		subs:       subs,
		userLogger: logger.With().Str("service", "UserService").Logger(),
	}
}

func (s *userService) CreateUser(ctx context.Context, email, fullName string) (*model.User, error) {
	existing, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	user := &model.User{
		Email:    email,
		FullName: fullName,
		IsActive: true,
		Role:     model.RoleUser,
	}
	sub := model.DefaultSubscription("", time.Now())
	if err := s.users.CreateUserWithSubscription(ctx, user, sub); err != nil {
		s.userLogger.Error().Err(err).Str("email", email).Msg("Failed to create user")
		return nil, err
	}
	s.userLogger.Info().Str("user_id", user.ID).Msg("User created with default subscription")
	return user, nil
}

func (s *userService) GetUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *userService) UpdateSubscriptionPlan(ctx context.Context, userID, planID string, isActive bool, monthlyLimit, dailyLimit, maxVoiceClones *int) (*model.Subscription, error) {
	if err := s.subs.UpdatePlan(ctx, userID, planID, isActive, monthlyLimit, dailyLimit, maxVoiceClones, time.Now()); err != nil {
		return nil, err
	}
	return s.subs.GetByUserID(ctx, userID)
}
