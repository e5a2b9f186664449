package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	domain "github.com/easybuy/api/internal/domain"
	"github.com/easybuy/api/internal/platform/httpx"
	"github.com/easybuy/api/internal/services"
)

const maxAuthBodySize = 8 * 1024

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	Location string `json:"location"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userPayload struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	Phone        string `json:"phone,omitempty"`
	Address      string `json:"address,omitempty"`
	Location     string `json:"location,omitempty"`
	IsActive     bool   `json:"isActive"`
	LastActiveAt string `json:"lastActiveAt,omitempty"`
	CreatedAt    string `json:"createdAt"`
	UpdatedAt    string `json:"updatedAt"`
}

type authResponse struct {
	User  userPayload `json:"user"`
	Token string      `json:"token"`
}

// AuthHandlers exposes sign-up and login.
type AuthHandlers struct {
	users services.UserService
}

// NewAuthHandlers constructs a new AuthHandlers instance.
func NewAuthHandlers(users services.UserService) *AuthHandlers {
	return &AuthHandlers{users: users}
}

// Routes registers the /auth endpoints.
func (h *AuthHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/register", h.register)
	r.Post("/login", h.login)
}

func (h *AuthHandlers) register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req registerRequest
	if !decodeJSONBody(ctx, w, r, maxAuthBodySize, &req) {
		return
	}

	result, err := h.users.Register(ctx, services.RegisterCommand{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		Phone:    req.Phone,
		Address:  req.Address,
		Location: req.Location,
	})
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, authResponse{
		User:  buildUserPayload(result.User),
		Token: result.Token,
	})
}

func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if !decodeJSONBody(ctx, w, r, maxAuthBodySize, &req) {
		return
	}

	result, err := h.users.Login(ctx, req.Email, req.Password)
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, authResponse{
		User:  buildUserPayload(result.User),
		Token: result.Token,
	})
}

func buildUserPayload(user domain.User) userPayload {
	return userPayload{
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		Role:         string(user.Role),
		Phone:        user.Phone,
		Address:      user.Address,
		Location:     user.Location,
		IsActive:     user.IsActive,
		LastActiveAt: formatTimePointer(user.LastActiveAt),
		CreatedAt:    formatTime(user.CreatedAt),
		UpdatedAt:    formatTime(user.UpdatedAt),
	}
}

func writeUserError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrUserInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrUserEmailTaken):
		httpx.WriteError(ctx, w, httpx.NewError("email_taken", "email already registered", http.StatusConflict))
	case errors.Is(err, services.ErrUserBadCredentials):
		httpx.WriteError(ctx, w, httpx.NewError("bad_credentials", "invalid email or password", http.StatusUnauthorized))
	case errors.Is(err, services.ErrUserInactive):
		httpx.WriteError(ctx, w, httpx.NewError("account_inactive", "account is deactivated", http.StatusForbidden))
	case errors.Is(err, services.ErrUserNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("user_not_found", "user not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("user_error", "failed to process account request", http.StatusInternalServerError))
	}
}
