package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mrbuddhu/Speechix/internal/model"
	"github.com/mrbuddhu/Speechix/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUserService struct {
	createFn func(ctx context.Context, email, fullName string) (*model.User, error)
	getFn    func(ctx context.Context, userID string) (*model.User, error)
}

func (s *stubUserService) CreateUser(ctx context.Context, email, fullName string) (*model.User, error) {
	return s.createFn(ctx, email, fullName)
}

func (s *stubUserService) GetUser(ctx context.Context, userID string) (*model.User, error) {
	return s.getFn(ctx, userID)
}

func (s *stubUserService) UpdateSubscriptionPlan(context.Context, string, string, bool, *int, *int, *int) (*model.Subscription, error) {
	return nil, nil
}

// rejectingAuth stands in for the JWT middleware: every request that reaches
// it fails. Routes mounted outside it must still work.
func rejectingAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})
}

func newUserMux(t *testing.T, users service.UserService) *http.ServeMux {
	t.Helper()
	h := NewUserHandler(users, validator.New(), zerolog.Nop())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux, rejectingAuth)
	return mux
}

func TestCreateUserRequiresNoAuth(t *testing.T) {
	stub := &stubUserService{
		createFn: func(_ context.Context, email, fullName string) (*model.User, error) {
			return &model.User{
				ID:        "u1",
				Email:     email,
				FullName:  fullName,
				Role:      model.RoleUser,
				IsActive:  true,
				CreatedAt: time.Now(),
			}, nil
		},
	}
	mux := newUserMux(t, stub)

	req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{"email":"new@example.com","full_name":"New User"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, "registration must not require a token")
	assert.Contains(t, rec.Body.String(), `"user_id":"u1"`)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	stub := &stubUserService{
		createFn: func(context.Context, string, string) (*model.User, error) {
			return nil, service.ErrEmailTaken
		},
	}
	mux := newUserMux(t, stub)

	req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{"email":"dupe@example.com"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateUserInvalidEmail(t *testing.T) {
	stub := &stubUserService{
		createFn: func(context.Context, string, string) (*model.User, error) {
			t.Fatal("CreateUser must not be called for an invalid body")
			return nil, nil
		},
	}
	mux := newUserMux(t, stub)

	req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{"email":"not-an-email"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetMeStaysBehindAuth(t *testing.T) {
	stub := &stubUserService{
		getFn: func(context.Context, string) (*model.User, error) {
			t.Fatal("GetUser must not be reachable without auth")
			return nil, nil
		},
	}
	mux := newUserMux(t, stub)

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
