package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/easybuy/api/internal/domain"
	"github.com/easybuy/api/internal/services"
)

type stubUserService struct {
	registerFn func(context.Context, services.RegisterCommand) (services.AuthResult, error)
	loginFn    func(ctx context.Context, email, password string) (services.AuthResult, error)
	getFn      func(context.Context, string) (domain.User, error)
	updateFn   func(context.Context, services.UpdateProfileCommand) (domain.User, error)
}

func (s *stubUserService) Register(ctx context.Context, cmd services.RegisterCommand) (services.AuthResult, error) {
	if s.registerFn != nil {
		return s.registerFn(ctx, cmd)
	}
	return services.AuthResult{}, errors.New("not implemented")
}

func (s *stubUserService) Login(ctx context.Context, email, password string) (services.AuthResult, error) {
	if s.loginFn != nil {
		return s.loginFn(ctx, email, password)
	}
	return services.AuthResult{}, errors.New("not implemented")
}

func (s *stubUserService) GetProfile(ctx context.Context, userID string) (domain.User, error) {
	if s.getFn != nil {
		return s.getFn(ctx, userID)
	}
	return domain.User{}, errors.New("not implemented")
}

func (s *stubUserService) UpdateProfile(ctx context.Context, cmd services.UpdateProfileCommand) (domain.User, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, cmd)
	}
	return domain.User{}, errors.New("not implemented")
}

func authRouter(svc services.UserService) chi.Router {
	r := chi.NewRouter()
	NewAuthHandlers(svc).Routes(r)
	return r
}

func TestAuthHandlersRegister(t *testing.T) {
	svc := &stubUserService{
		registerFn: func(ctx context.Context, cmd services.RegisterCommand) (services.AuthResult, error) {
			return services.AuthResult{
				User:  domain.User{ID: "usr_1", Name: cmd.Name, Email: cmd.Email, Role: domain.RoleBuyer, IsActive: true},
				Token: "signed-token",
			}, nil
		},
	}
	router := authRouter(svc)

	body := []byte(`{"name":"Asha Rao","email":"asha@example.com","password":"tr0ub4dor&3","role":"buyer"}`)
	req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var payload authResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if payload.Token != "signed-token" || payload.User.ID != "usr_1" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestAuthHandlersRegisterConflict(t *testing.T) {
	svc := &stubUserService{
		registerFn: func(ctx context.Context, cmd services.RegisterCommand) (services.AuthResult, error) {
			return services.AuthResult{}, services.ErrUserEmailTaken
		},
	}
	router := authRouter(svc)

	body := []byte(`{"name":"Asha","email":"asha@example.com","password":"tr0ub4dor&3","role":"buyer"}`)
	req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestAuthHandlersLoginBadCredentials(t *testing.T) {
	svc := &stubUserService{
		loginFn: func(ctx context.Context, email, password string) (services.AuthResult, error) {
			return services.AuthResult{}, services.ErrUserBadCredentials
		},
	}
	router := authRouter(svc)

	body := []byte(`{"email":"asha@example.com","password":"wrong"}`)
	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestAuthHandlersLoginOmitsPasswordHash(t *testing.T) {
	svc := &stubUserService{
		loginFn: func(ctx context.Context, email, password string) (services.AuthResult, error) {
			return services.AuthResult{
				User:  domain.User{ID: "usr_1", Email: email, PasswordHash: "$2a$12$secret", Role: domain.RoleBuyer},
				Token: "signed-token",
			}, nil
		},
	}
	router := authRouter(svc)

	body := []byte(`{"email":"asha@example.com","password":"tr0ub4dor&3"}`)
	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var raw map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &raw); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	user, _ := raw["user"].(map[string]any)
	if _, leaked := user["passwordHash"]; leaked {
		t.Fatalf("password hash must never appear in responses")
	}
}
