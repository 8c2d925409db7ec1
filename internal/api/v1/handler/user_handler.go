package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/mrbuddhu/Speechix/internal/api/v1/dto"
	"github.com/mrbuddhu/Speechix/internal/middleware"
	"github.com/mrbuddhu/Speechix/internal/repository"
	"github.com/mrbuddhu/Speechix/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// UserHandler handles the /users endpoints.
type UserHandler struct {
	users    service.UserService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users service.UserService, validate *validator.Validate, logger zerolog.Logger) *UserHandler {
	return &UserHandler{users: users, validate: validate, logger: logger}
}

// RegisterRoutes mounts user routes. Registration is open: credentials are
// issued by the external identity provider, not by this service. Subscription
// updates are admin-only.
func (h *UserHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/users", http.HandlerFunc(h.createUser))
	mux.Handle("/users/me", authMw(http.HandlerFunc(h.getMe)))
	mux.Handle("/users/", authMw(middleware.RequireAdmin(http.HandlerFunc(h.updateSubscription))))
}

// createUser godoc
// @Summary Register a user
// @Description Creates a user with the default free subscription.
// @Tags users
// @Accept json
// @Produce json
// @Param user body dto.CreateUserDTO true "User data"
// @Success 201 {object} dto.UserResponseDTO
// @Failure 409 {string} string "Email already registered"
// @Router /users [post]
func (h *UserHandler) createUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	var body dto.CreateUserDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(body); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.users.CreateUser(r.Context(), body.Email, body.FullName)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		h.logger.Error().Err(err).Msg("Failed to create user")
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, dto.NewUserResponse(user))
}

// getMe godoc
// @Summary Get the authenticated user
// @Tags users
// @Produce json
// @Success 200 {object} dto.UserResponseDTO
// @Router /users/me [get]
func (h *UserHandler) getMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := middleware.UserID(r.Context())
	if userID == "" {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	user, err := h.users.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			http.Error(w, "User not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to retrieve user", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewUserResponse(user))
}

// updateSubscription godoc
// @Summary Update a user's subscription plan
// @Description Admin-only plan change. A plan switch resets the billing period.
// @Tags users
// @Accept json
// @Produce json
// @Param userId path string true "User ID"
// @Param subscription body dto.UpdateSubscriptionDTO true "Plan data"
// @Success 200 {object} dto.SubscriptionResponseDTO
// @Failure 403 {string} string "Admin role required"
// @Router /users/{userId}/subscription [put]
func (h *UserHandler) updateSubscription(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/users/")
	targetID := strings.TrimSuffix(path, "/subscription")
	if targetID == "" || targetID == path {
		http.NotFound(w, r)
		return
	}

	var body dto.UpdateSubscriptionDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(body); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	sub, err := h.users.UpdateSubscriptionPlan(r.Context(), targetID, body.PlanID, body.IsActive,
		body.MonthlyCharacterLimit, body.DailyCharacterLimit, body.MaxVoiceClones)
	if err != nil {
		if errors.Is(err, repository.ErrNoActiveSubscription) {
			http.Error(w, "Subscription not found", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Str("user_id", targetID).Msg("Failed to update subscription")
		http.Error(w, "Failed to update subscription", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewSubscriptionResponse(sub))
}
